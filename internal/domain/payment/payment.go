// Package payment records customer payments and confirms the paid order.
package payment

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/xenking/foodcart/internal/domain/order"
	"github.com/xenking/foodcart/internal/domain/session"
)

var (
	// ErrNotFound is returned when an order has no payment.
	ErrNotFound = errors.New("payment not found")
	// ErrAmountMismatch is returned when the paid amount differs from the
	// order total.
	ErrAmountMismatch = errors.New("amount does not match order total")
	// ErrDuplicate is returned by Repository.Create when the order already
	// has a payment.
	ErrDuplicate = errors.New("order already has a payment")
)

// StatusSuccess is the only status a recorded payment has.
const StatusSuccess = "SUCCESS"

// Payment is a settled payment for one order.
type Payment struct {
	ID            int64
	OrderID       int64
	UserID        int64
	Amount        decimal.Decimal
	TransactionID string
	Status        string
	CreatedAt     time.Time
}

// Repository persists payments.
type Repository interface {
	Create(ctx context.Context, p *Payment) error
	// FindByOrder returns ErrNotFound when the order was never paid.
	FindByOrder(ctx context.Context, orderID int64) (*Payment, error)
	// ListByUser returns the user's payments, newest first.
	ListByUser(ctx context.Context, userID int64) ([]Payment, error)
}

// Orders is the part of the order service payments need.
type Orders interface {
	Get(ctx context.Context, sess *session.Session, id int64) (*order.Order, error)
	ConfirmPayment(ctx context.Context, id int64) (*order.Order, error)
}

// Service settles payments.
type Service struct {
	repo    Repository
	orders  Orders
	newTxID func() string
}

// NewService creates a payment Service.
func NewService(repo Repository, orders Orders) *Service {
	return &Service{repo: repo, orders: orders, newTxID: transactionID}
}

func transactionID() string {
	hex := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "PAY_" + strings.ToUpper(hex[:8])
}

// Pay settles the customer's order for amount, which must equal the order
// total. Paying an order that is already paid returns the existing payment.
//
// The order is confirmed before the payment is recorded, so an order
// cancelled after the status check fails the confirmation and leaves no
// payment behind. A retry after a failed record finds the order paid and
// records it then.
func (s *Service) Pay(ctx context.Context, sess *session.Session, orderID int64, amount decimal.Decimal) (*Payment, error) {
	if err := sess.RequireCustomer(); err != nil {
		return nil, err
	}
	o, err := s.orders.Get(ctx, sess, orderID)
	if err != nil {
		return nil, err
	}
	if err := order.CanTransition(o.Status, order.StatusPaid, order.ActorPayment); err != nil {
		return nil, err
	}
	if !amount.Equal(o.Total) {
		return nil, errors.Wrapf(ErrAmountMismatch, "want %s", o.Total.StringFixed(2))
	}

	p, err := s.repo.FindByOrder(ctx, o.ID)
	switch {
	case err == nil:
		return p, nil
	case !errors.Is(err, ErrNotFound):
		return nil, errors.Wrap(err, "find payment")
	}

	if _, err := s.orders.ConfirmPayment(ctx, o.ID); err != nil {
		return nil, errors.Wrap(err, "confirm order")
	}
	p = &Payment{
		OrderID:       o.ID,
		UserID:        sess.UserID,
		Amount:        amount,
		TransactionID: s.newTxID(),
		Status:        StatusSuccess,
	}
	if err := s.repo.Create(ctx, p); err != nil {
		if errors.Is(err, ErrDuplicate) {
			// A concurrent Pay recorded it first.
			return s.repo.FindByOrder(ctx, o.ID)
		}
		return nil, errors.Wrap(err, "record payment")
	}
	return p, nil
}

// History lists the customer's own payments, newest first.
func (s *Service) History(ctx context.Context, sess *session.Session) ([]Payment, error) {
	if err := sess.RequireCustomer(); err != nil {
		return nil, err
	}
	out, err := s.repo.ListByUser(ctx, sess.UserID)
	if err != nil {
		return nil, errors.Wrap(err, "list payments")
	}
	return out, nil
}
