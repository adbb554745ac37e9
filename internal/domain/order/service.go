package order

import (
	"context"
	"strconv"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/xenking/foodcart/internal/domain/catalog"
	"github.com/xenking/foodcart/internal/domain/coupon"
	"github.com/xenking/foodcart/internal/domain/pricing"
	"github.com/xenking/foodcart/internal/domain/session"
)

// Sentinel errors for order validation.
var (
	ErrEmptyItems      = errors.New("items required")
	ErrInvalidQuantity = errors.New("quantity must be greater than 0")
	ErrMissingContact  = errors.New("name, phone and address are required")
	// ErrStatusChanged is returned when another actor moved the order between
	// read and write.
	ErrStatusChanged = errors.New("order status changed concurrently")
)

// FoodNotFoundError indicates a requested food does not exist at the
// order's branch.
type FoodNotFoundError struct {
	FoodID   int64
	BranchID int64
}

func (e *FoodNotFoundError) Error() string {
	return "food " + strconv.FormatInt(e.FoodID, 10) + " not found at branch " + strconv.FormatInt(e.BranchID, 10)
}

// FoodSource fetches foods in one batch.
type FoodSource interface {
	GetFoods(ctx context.Context, ids []int64) ([]catalog.Food, error)
}

// CouponRedeemer records that a customer used a coupon.
type CouponRedeemer interface {
	Redeem(ctx context.Context, couponID, userID, orderID int64) error
}

// Notifier is told about every order placed. It must not block.
type Notifier interface {
	OrderPlaced(ctx context.Context, o *Order)
}

// Service encapsulates order placement and every status change. All
// transitions go through CanTransition.
type Service struct {
	orders   Repository
	foods    FoodSource
	coupons  coupon.Validator
	redeemer CouponRedeemer
	notifier Notifier

	placed      metric.Int64Counter
	transitions metric.Int64Counter
}

// NewService creates an order Service.
func NewService(
	orders Repository,
	foods FoodSource,
	coupons coupon.Validator,
	redeemer CouponRedeemer,
	meter metric.Meter,
) (*Service, error) {
	placed, err := meter.Int64Counter("foodcart.orders.placed",
		metric.WithDescription("Orders placed"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "orders placed counter")
	}
	transitions, err := meter.Int64Counter("foodcart.orders.transitions",
		metric.WithDescription("Order status transitions by target status"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "order transitions counter")
	}
	return &Service{
		orders:      orders,
		foods:       foods,
		coupons:     coupons,
		redeemer:    redeemer,
		placed:      placed,
		transitions: transitions,
	}, nil
}

// SetNotifier makes Place announce new orders to n.
func (s *Service) SetNotifier(n Notifier) {
	s.notifier = n
}

// Place validates the request, prices every line from the catalog, applies
// the coupon and stores the order as PENDING_PAYMENT.
func (s *Service) Place(ctx context.Context, req PlaceRequest) (*Order, error) {
	if len(req.Items) == 0 {
		return nil, ErrEmptyItems
	}
	c := req.Customer
	if strings.TrimSpace(c.Name) == "" || strings.TrimSpace(c.Phone) == "" || strings.TrimSpace(c.Address) == "" {
		return nil, ErrMissingContact
	}

	ids := make([]int64, 0, len(req.Items))
	for _, item := range req.Items {
		if item.Quantity <= 0 {
			return nil, errors.Wrapf(ErrInvalidQuantity, "food %d", item.FoodID)
		}
		ids = append(ids, item.FoodID)
	}

	fetched, err := s.foods.GetFoods(ctx, ids)
	if err != nil {
		return nil, errors.Wrap(err, "get foods")
	}
	foods := make(map[int64]catalog.Food, len(fetched))
	for _, f := range fetched {
		foods[f.ID] = f
	}

	items := make([]Item, 0, len(req.Items))
	lines := make([]pricing.Line, 0, len(req.Items))
	for _, item := range req.Items {
		f, ok := foods[item.FoodID]
		if !ok || f.BranchID != req.BranchID {
			return nil, &FoodNotFoundError{FoodID: item.FoodID, BranchID: req.BranchID}
		}
		price := f.FinalPrice()
		items = append(items, Item{
			FoodID:   f.ID,
			Name:     f.Name,
			Price:    price,
			Quantity: item.Quantity,
			ImageURL: f.ImageURL,
		})
		lines = append(lines, pricing.Line{UnitPrice: price, Quantity: item.Quantity})
	}

	var applied *coupon.Coupon
	quote := pricing.Compute(lines)
	if req.CouponCode != "" {
		applied, err = s.coupons.Verify(ctx, req.CouponCode, req.BranchID, req.UserID)
		if err != nil {
			return nil, errors.Wrap(err, "verify coupon")
		}
		quote = pricing.ComputeWithPercent(lines, decimal.NewFromInt(int64(applied.DiscountPercent)))
	}

	o := &Order{
		UserID:   req.UserID,
		BranchID: req.BranchID,
		Customer: Customer{
			Name:    strings.TrimSpace(c.Name),
			Phone:   strings.TrimSpace(c.Phone),
			Address: strings.TrimSpace(c.Address),
			Note:    strings.TrimSpace(c.Note),
		},
		Items:    items,
		Subtotal: quote.Subtotal,
		Discount: quote.Discount,
		Total:    quote.Total,
		Status:   StatusPendingPayment,
	}
	if applied != nil {
		o.CouponCode = applied.Code
	}
	if err := s.orders.Create(ctx, o); err != nil {
		return nil, errors.Wrap(err, "create order")
	}

	if applied != nil {
		if err := s.redeemer.Redeem(ctx, applied.ID, o.UserID, o.ID); err != nil {
			zctx.From(ctx).Error("Coupon redemption not recorded",
				zap.Int64("order_id", o.ID),
				zap.String("coupon", applied.Code),
				zap.Error(err),
			)
		}
	}

	s.placed.Add(ctx, 1, metric.WithAttributes(attribute.Int64("branch_id", o.BranchID)))
	if s.notifier != nil {
		s.notifier.OrderPlaced(ctx, o)
	}
	return o, nil
}

// ActorFor maps a session to the actor it transitions orders as.
func ActorFor(sess *session.Session) Actor {
	if sess.IsSeller() {
		return ActorSeller
	}
	return ActorCustomer
}

// Get returns an order visible to sess: the customer who placed it or a
// seller of its branch.
func (s *Service) Get(ctx context.Context, sess *session.Session, id int64) (*Order, error) {
	if sess == nil || sess.UserID == 0 {
		return nil, session.ErrUnauthenticated
	}
	o, err := s.orders.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := authorize(sess, o); err != nil {
		return nil, err
	}
	return o, nil
}

func authorize(sess *session.Session, o *Order) error {
	if sess.IsSeller() {
		return sess.RequireSeller(o.BranchID)
	}
	if err := sess.RequireCustomer(); err != nil {
		return err
	}
	if o.UserID != sess.UserID {
		// Other customers' orders are not revealed.
		return ErrNotFound
	}
	return nil
}

// ListMine returns the customer's orders, newest first.
func (s *Service) ListMine(ctx context.Context, sess *session.Session) ([]Order, error) {
	if err := sess.RequireCustomer(); err != nil {
		return nil, err
	}
	list, err := s.orders.ListByUser(ctx, sess.UserID)
	if err != nil {
		return nil, errors.Wrap(err, "list orders")
	}
	return list, nil
}

// ListBranch returns the orders of the seller's branch, newest first.
func (s *Service) ListBranch(ctx context.Context, sess *session.Session) ([]Order, error) {
	if err := sess.RequireSeller(0); err != nil {
		return nil, err
	}
	list, err := s.orders.ListByBranch(ctx, sess.BranchID)
	if err != nil {
		return nil, errors.Wrap(err, "list branch orders")
	}
	return list, nil
}

// Transition moves an order on behalf of a customer or seller.
func (s *Service) Transition(ctx context.Context, sess *session.Session, id int64, to Status) (*Order, error) {
	o, err := s.Get(ctx, sess, id)
	if err != nil {
		return nil, err
	}
	return s.apply(ctx, o, to, ActorFor(sess))
}

// ConfirmPayment marks an order paid on behalf of the payment service.
func (s *Service) ConfirmPayment(ctx context.Context, id int64) (*Order, error) {
	o, err := s.orders.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.apply(ctx, o, StatusPaid, ActorPayment)
}

func (s *Service) apply(ctx context.Context, o *Order, to Status, actor Actor) (*Order, error) {
	lg := zctx.From(ctx).With(
		zap.Int64("order_id", o.ID),
		zap.String("from", string(o.Status)),
		zap.String("to", string(to)),
		zap.String("actor", string(actor)),
	)
	if err := CanTransition(o.Status, to, actor); err != nil {
		lg.Warn("Refused order transition")
		return nil, err
	}
	if o.Status == to {
		return o, nil
	}

	ok, err := s.orders.UpdateStatus(ctx, o.ID, o.Status, to)
	if err != nil {
		return nil, errors.Wrap(err, "update status")
	}
	if !ok {
		current, err := s.orders.Get(ctx, o.ID)
		if err != nil {
			return nil, err
		}
		if current.Status == to {
			return current, nil
		}
		if err := CanTransition(current.Status, to, actor); err != nil {
			lg.Warn("Refused order transition after concurrent update",
				zap.String("current", string(current.Status)),
			)
			return nil, err
		}
		return nil, ErrStatusChanged
	}

	s.transitions.Add(ctx, 1, metric.WithAttributes(attribute.String("status", string(to))))
	lg.Info("Order transitioned")

	updated, err := s.orders.Get(ctx, o.ID)
	if err != nil {
		return nil, err
	}
	return updated, nil
}
