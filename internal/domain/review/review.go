// Package review stores customer reviews of completed orders.
package review

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"

	"github.com/xenking/foodcart/internal/domain/order"
	"github.com/xenking/foodcart/internal/domain/session"
)

const maxCommentLen = 500

var (
	// ErrInvalidReview is returned when the input fails validation.
	ErrInvalidReview = errors.New("invalid review")
	// ErrAlreadyReviewed is returned for a second review of the same order.
	ErrAlreadyReviewed = errors.New("order already reviewed")
)

// ItemScore rates one food of the order.
type ItemScore struct {
	FoodID int64
	Score  int
}

// Review is a customer's rating of an order and its foods.
type Review struct {
	ID        int64
	OrderID   int64
	UserID    int64
	BranchID  int64
	Rating    int
	Comment   string
	Items     []ItemScore
	CreatedAt time.Time
}

// Input is what the customer submits.
type Input struct {
	OrderID int64
	Rating  int
	Comment string
	Items   []ItemScore
}

// Repository persists reviews.
type Repository interface {
	// Create returns ErrAlreadyReviewed if the order has a review.
	Create(ctx context.Context, r *Review) error
}

// Orders looks up an order the session may see.
type Orders interface {
	Get(ctx context.Context, sess *session.Session, id int64) (*order.Order, error)
}

// Service accepts reviews.
type Service struct {
	repo   Repository
	orders Orders
}

// NewService creates a review Service.
func NewService(repo Repository, orders Orders) *Service {
	return &Service{repo: repo, orders: orders}
}

func validScore(n int) bool { return n >= 1 && n <= 5 }

// Create records a review. The order must belong to the customer and be
// completed; every rated food must be part of it.
func (s *Service) Create(ctx context.Context, sess *session.Session, in Input) (*Review, error) {
	if err := sess.RequireCustomer(); err != nil {
		return nil, err
	}
	if !validScore(in.Rating) {
		return nil, errors.Wrap(ErrInvalidReview, "rating must be within 1..5")
	}
	comment := strings.TrimSpace(in.Comment)
	if len([]rune(comment)) > maxCommentLen {
		return nil, errors.Wrap(ErrInvalidReview, "comment too long")
	}

	o, err := s.orders.Get(ctx, sess, in.OrderID)
	if err != nil {
		return nil, err
	}
	if err := order.CanReview(o); err != nil {
		return nil, err
	}

	ordered := make(map[int64]bool, len(o.Items))
	for _, it := range o.Items {
		ordered[it.FoodID] = true
	}
	for _, it := range in.Items {
		if !validScore(it.Score) {
			return nil, errors.Wrapf(ErrInvalidReview, "score for food %d must be within 1..5", it.FoodID)
		}
		if !ordered[it.FoodID] {
			return nil, errors.Wrapf(ErrInvalidReview, "food %d is not part of the order", it.FoodID)
		}
	}

	r := &Review{
		OrderID:  o.ID,
		UserID:   sess.UserID,
		BranchID: o.BranchID,
		Rating:   in.Rating,
		Comment:  comment,
		Items:    in.Items,
	}
	if err := s.repo.Create(ctx, r); err != nil {
		if errors.Is(err, ErrAlreadyReviewed) {
			return nil, err
		}
		return nil, errors.Wrap(err, "create review")
	}
	return r, nil
}
