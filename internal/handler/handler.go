// Package handler exposes the food ordering services over HTTP.
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/xenking/foodcart/internal/domain/cart"
	"github.com/xenking/foodcart/internal/domain/catalog"
	"github.com/xenking/foodcart/internal/domain/checkout"
	"github.com/xenking/foodcart/internal/domain/coupon"
	"github.com/xenking/foodcart/internal/domain/order"
	"github.com/xenking/foodcart/internal/domain/payment"
	"github.com/xenking/foodcart/internal/domain/review"
	"github.com/xenking/foodcart/internal/domain/session"
	"github.com/xenking/foodcart/pkg/httpmiddleware"
)

// Catalog is implemented by *catalog.Service.
type Catalog interface {
	Food(ctx context.Context, id int64) (*catalog.Food, error)
	Foods(ctx context.Context, branchID int64) ([]catalog.Food, error)
	Branch(ctx context.Context, id int64) (*catalog.Branch, error)
	Branches(ctx context.Context) ([]catalog.Branch, error)
	Search(ctx context.Context, query string) ([]catalog.SearchResult, error)
	Options(ctx context.Context, name string) ([]catalog.Option, error)
	CreateFood(ctx context.Context, sess *session.Session, in catalog.FoodInput) (*catalog.Food, error)
	UpdateFood(ctx context.Context, sess *session.Session, id int64, in catalog.FoodInput) (*catalog.Food, error)
	DeleteFood(ctx context.Context, sess *session.Session, id int64) error
}

// Carts is implemented by *cart.Service.
type Carts interface {
	Get(ctx context.Context, sess *session.Session) (*cart.View, error)
	AddItem(ctx context.Context, sess *session.Session, cand cart.Entry) (*cart.View, error)
	ReplaceWith(ctx context.Context, sess *session.Session, cand cart.Entry) (*cart.View, error)
	UpdateQuantity(ctx context.Context, sess *session.Session, foodID int64, qty int) (*cart.View, error)
	RemoveItem(ctx context.Context, sess *session.Session, foodID int64) (*cart.View, error)
	Clear(ctx context.Context, sess *session.Session) (*cart.View, error)
	ApplyCoupon(ctx context.Context, sess *session.Session, code string) (*cart.View, error)
	RemoveCoupon(ctx context.Context, sess *session.Session) (*cart.View, error)
}

// Coupons is implemented by *coupon.Service.
type Coupons interface {
	Create(ctx context.Context, sess *session.Session, in coupon.CreateInput) (*coupon.Coupon, error)
	List(ctx context.Context, sess *session.Session) ([]coupon.Coupon, error)
}

// Checkout is implemented by *checkout.Service.
type Checkout interface {
	Checkout(ctx context.Context, sess *session.Session, contact checkout.Contact) (*order.Order, error)
}

// Orders is implemented by *order.Service.
type Orders interface {
	Get(ctx context.Context, sess *session.Session, id int64) (*order.Order, error)
	ListMine(ctx context.Context, sess *session.Session) ([]order.Order, error)
	ListBranch(ctx context.Context, sess *session.Session) ([]order.Order, error)
	Transition(ctx context.Context, sess *session.Session, id int64, to order.Status) (*order.Order, error)
}

// Payments is implemented by *payment.Service.
type Payments interface {
	Pay(ctx context.Context, sess *session.Session, orderID int64, amount decimal.Decimal) (*payment.Payment, error)
	History(ctx context.Context, sess *session.Session) ([]payment.Payment, error)
}

// Events is implemented by *notify.Hub.
type Events interface {
	ServeBranch(w http.ResponseWriter, r *http.Request, branchID int64) error
}

// Reviews is implemented by *review.Service.
type Reviews interface {
	Create(ctx context.Context, sess *session.Session, in review.Input) (*review.Review, error)
}

// TokenParser is implemented by *session.Issuer.
type TokenParser interface {
	Parse(token string) (*session.Session, error)
}

// Deps are the services behind the API.
type Deps struct {
	Catalog  Catalog
	Carts    Carts
	Coupons  Coupons
	Verifier coupon.Validator
	Checkout Checkout
	Orders   Orders
	Payments Payments
	Reviews  Reviews
	Events   Events
	Tokens   TokenParser
}

// Config holds non-dependency settings.
type Config struct {
	// VerifyLimit caps coupon verification attempts per caller and window.
	VerifyLimit  int
	VerifyWindow time.Duration
}

// Handler serves the /api routes.
type Handler struct {
	Deps
	verifyLimit httpmiddleware.Middleware
}

// New creates a Handler. ctx bounds the rate limiter's cleanup goroutine.
func New(ctx context.Context, cfg Config, deps Deps) *Handler {
	if cfg.VerifyLimit <= 0 {
		cfg.VerifyLimit = 10
	}
	if cfg.VerifyWindow <= 0 {
		cfg.VerifyWindow = time.Minute
	}
	return &Handler{
		Deps: deps,
		verifyLimit: httpmiddleware.RateLimitWithCleanup(ctx, httpmiddleware.RateLimitConfig{
			Max:     cfg.VerifyLimit,
			Window:  cfg.VerifyWindow,
			KeyFunc: callerKey,
		}),
	}
}

// Mount registers every API route under /api on r.
func (h *Handler) Mount(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Use(h.authenticate)

		r.Get("/branches", h.listBranches)
		r.Get("/branches/{id}", h.getBranch)

		r.Route("/foods", func(r chi.Router) {
			r.Get("/", h.listFoods)
			r.Post("/", h.createFood)
			r.Get("/search", h.searchFoods)
			r.Get("/options", h.foodOptions)
			r.Get("/{id}", h.getFood)
			r.Put("/{id}", h.updateFood)
			r.Delete("/{id}", h.deleteFood)
		})

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", h.getCart)
			r.Delete("/", h.clearCart)
			r.Post("/items", h.addCartItem)
			r.Put("/items", h.replaceCart)
			r.Patch("/items/{foodID}", h.updateCartItem)
			r.Delete("/items/{foodID}", h.removeCartItem)
			r.Put("/coupon", h.applyCoupon)
			r.Delete("/coupon", h.removeCoupon)
		})

		r.Route("/coupons", func(r chi.Router) {
			r.Get("/", h.listCoupons)
			r.Post("/", h.createCoupon)
			r.With(h.verifyLimit).Post("/verify", h.verifyCoupon)
		})

		r.Post("/checkout", h.checkout)

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", h.listMyOrders)
			r.Get("/{id}", h.getOrder)
			r.Patch("/{id}/status", h.updateOrderStatus)
			r.Post("/{id}/pay", h.payOrder)
			r.Post("/{id}/review", h.reviewOrder)
		})
		r.Get("/branch/orders", h.listBranchOrders)
		r.Get("/branch/events", h.branchEvents)
		r.Get("/payments", h.listPayments)
	})
}

// Router returns a chi router with the API mounted.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	h.Mount(r)
	return r
}
