package coupon

import (
	"context"
	"time"

	"github.com/go-faster/errors"

	"github.com/xenking/foodcart/internal/domain/session"
)

// CreateInput is the seller-owner's request for a new coupon.
type CreateInput struct {
	Code            string
	DiscountPercent int
	ValidFrom       time.Time
	ValidUntil      time.Time
	// Global makes the coupon valid at every branch.
	Global bool
}

func (in CreateInput) validate() error {
	if NormalizeCode(in.Code) == "" {
		return errors.Wrap(ErrInvalidCoupon, "code required")
	}
	if in.DiscountPercent < 0 || in.DiscountPercent > 100 {
		return errors.Wrap(ErrInvalidCoupon, "discount must be within 0..100")
	}
	if in.ValidFrom.IsZero() || in.ValidUntil.IsZero() {
		return errors.Wrap(ErrInvalidCoupon, "validity window required")
	}
	if !in.ValidFrom.Before(in.ValidUntil) {
		return errors.Wrap(ErrInvalidCoupon, "valid_from must precede valid_until")
	}
	return nil
}

// Service manages coupons for sellers and records redemptions.
type Service struct {
	repo  Repository
	index *CodeIndex
	now   func() time.Time
}

// NewService creates a coupon Service. index may be nil.
func NewService(repo Repository, index *CodeIndex) *Service {
	return &Service{repo: repo, index: index, now: time.Now}
}

// Create issues a coupon for the owner's branch.
func (s *Service) Create(ctx context.Context, sess *session.Session, in CreateInput) (*Coupon, error) {
	if err := sess.RequireOwner(0); err != nil {
		return nil, err
	}
	branchID := sess.BranchID
	if in.Global {
		branchID = 0
	}
	return s.Import(ctx, branchID, in)
}

// Import stores a coupon for branchID without a session. It backs the bulk
// import tool; in.Global is ignored in favour of branchID.
func (s *Service) Import(ctx context.Context, branchID int64, in CreateInput) (*Coupon, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	c := &Coupon{
		Code:            NormalizeCode(in.Code),
		DiscountPercent: in.DiscountPercent,
		BranchID:        branchID,
		ValidFrom:       in.ValidFrom,
		ValidUntil:      in.ValidUntil,
		Active:          true,
		CreatedAt:       s.now(),
	}
	if err := s.repo.Create(ctx, c); err != nil {
		if errors.Is(err, ErrDuplicateCode) {
			return nil, err
		}
		return nil, errors.Wrap(err, "create coupon")
	}
	if s.index != nil {
		s.index.Add(c.Code)
	}
	return c, nil
}

// List returns the coupons usable at the seller's branch, global ones included.
func (s *Service) List(ctx context.Context, sess *session.Session) ([]Coupon, error) {
	if err := sess.RequireSeller(0); err != nil {
		return nil, err
	}
	list, err := s.repo.ListByBranch(ctx, sess.BranchID)
	if err != nil {
		return nil, errors.Wrap(err, "list coupons")
	}
	return list, nil
}

// Redeem marks the coupon as used by userID for orderID.
func (s *Service) Redeem(ctx context.Context, couponID, userID, orderID int64) error {
	if err := s.repo.Redeem(ctx, couponID, userID, orderID); err != nil {
		return errors.Wrap(err, "redeem coupon")
	}
	return nil
}
