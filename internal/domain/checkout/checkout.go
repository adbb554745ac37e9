// Package checkout turns a priced cart into an order request.
package checkout

import (
	"context"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/foodcart/internal/domain/cart"
	"github.com/xenking/foodcart/internal/domain/order"
	"github.com/xenking/foodcart/internal/domain/session"
)

// ErrIncompleteContact matches every *IncompleteContactInfoError.
var ErrIncompleteContact = errors.New("incomplete contact info")

// IncompleteContactInfoError lists the blank required contact fields.
type IncompleteContactInfoError struct {
	Missing []string
}

func (e *IncompleteContactInfoError) Error() string {
	return "missing contact info: " + strings.Join(e.Missing, ", ")
}

func (e *IncompleteContactInfoError) Unwrap() error { return ErrIncompleteContact }

// Contact is the delivery information entered at checkout.
type Contact struct {
	Name    string
	Phone   string
	Address string
	Note    string
}

func (c Contact) missing() []string {
	var out []string
	if strings.TrimSpace(c.Name) == "" {
		out = append(out, "name")
	}
	if strings.TrimSpace(c.Phone) == "" {
		out = append(out, "phone")
	}
	if strings.TrimSpace(c.Address) == "" {
		out = append(out, "address")
	}
	return out
}

// Assemble builds the order request for view. Only food ids and quantities
// are carried; prices are derived again when the order is placed.
func Assemble(view *cart.View, contact Contact, userID int64) (order.PlaceRequest, error) {
	if view == nil || view.Empty() {
		return order.PlaceRequest{}, cart.ErrEmptyCart
	}
	if m := contact.missing(); len(m) > 0 {
		return order.PlaceRequest{}, &IncompleteContactInfoError{Missing: m}
	}

	items := make([]order.ItemRequest, 0, len(view.Lines))
	for _, l := range view.Lines {
		if l.Unavailable {
			return order.PlaceRequest{}, &cart.NotFoundError{FoodID: l.FoodID}
		}
		items = append(items, order.ItemRequest{FoodID: l.FoodID, Quantity: l.Quantity})
	}

	req := order.PlaceRequest{
		BranchID: view.BranchID,
		UserID:   userID,
		Items:    items,
		Customer: order.Customer{
			Name:    strings.TrimSpace(contact.Name),
			Phone:   strings.TrimSpace(contact.Phone),
			Address: strings.TrimSpace(contact.Address),
			Note:    strings.TrimSpace(contact.Note),
		},
	}
	if view.Coupon != nil {
		req.CouponCode = view.Coupon.Code
	}
	return req, nil
}

// CartReader is the part of the cart service checkout needs.
type CartReader interface {
	Get(ctx context.Context, sess *session.Session) (*cart.View, error)
	Clear(ctx context.Context, sess *session.Session) (*cart.View, error)
}

// OrderPlacer places assembled orders.
type OrderPlacer interface {
	Place(ctx context.Context, req order.PlaceRequest) (*order.Order, error)
}

// Service runs checkout for a customer session.
type Service struct {
	carts  CartReader
	orders OrderPlacer
}

// NewService creates a checkout Service.
func NewService(carts CartReader, orders OrderPlacer) *Service {
	return &Service{carts: carts, orders: orders}
}

// Checkout places an order for the session's cart and then empties the cart
// and its coupon. Nothing is placed when assembly fails. Once the order is
// placed Checkout succeeds: a cart that could not be emptied is only logged,
// so the caller never retries into a second order.
func (s *Service) Checkout(ctx context.Context, sess *session.Session, contact Contact) (*order.Order, error) {
	if err := sess.RequireCustomer(); err != nil {
		return nil, err
	}
	view, err := s.carts.Get(ctx, sess)
	if err != nil {
		return nil, errors.Wrap(err, "load cart")
	}
	req, err := Assemble(view, contact, sess.UserID)
	if err != nil {
		return nil, err
	}

	o, err := s.orders.Place(ctx, req)
	if err != nil {
		return nil, errors.Wrap(err, "place order")
	}
	if _, err := s.carts.Clear(ctx, sess); err != nil {
		zctx.From(ctx).Error("Cart not cleared after checkout",
			zap.Int64("order_id", o.ID),
			zap.Int64("user_id", sess.UserID),
			zap.Error(err),
		)
	}
	return o, nil
}
