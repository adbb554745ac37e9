package coupon

import (
	"context"
	"time"

	"github.com/go-faster/errors"
)

// Validator verifies a code for a branch on behalf of a customer.
type Validator interface {
	Verify(ctx context.Context, code string, branchID, userID int64) (*Coupon, error)
}

// RepoValidator implements Validator on top of a Repository. Every code is
// looked up, since coupons may be issued by other processes at any time.
type RepoValidator struct {
	repo Repository
	now  func() time.Time
}

var _ Validator = (*RepoValidator)(nil)

// NewRepoValidator creates a RepoValidator.
func NewRepoValidator(repo Repository) *RepoValidator {
	return &RepoValidator{repo: repo, now: time.Now}
}

// Verify returns the coupon or a *RejectedError. A zero userID skips the
// redemption check.
func (v *RepoValidator) Verify(ctx context.Context, code string, branchID, userID int64) (*Coupon, error) {
	code = NormalizeCode(code)
	if code == "" {
		return nil, reject(code, ReasonNotFound)
	}

	c, err := v.repo.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, reject(code, ReasonNotFound)
		}
		return nil, errors.Wrap(err, "lookup coupon")
	}
	if !c.Active {
		return nil, reject(code, ReasonNotFound)
	}
	if !c.Global() && c.BranchID != branchID {
		return nil, reject(code, ReasonWrongBranch)
	}

	now := v.now()
	if now.Before(c.ValidFrom) {
		return nil, reject(code, ReasonNotYetActive)
	}
	if c.Expired(now) {
		return nil, reject(code, ReasonExpired)
	}

	if userID != 0 {
		used, err := v.repo.HasRedeemed(ctx, c.ID, userID)
		if err != nil {
			return nil, errors.Wrap(err, "check redemption")
		}
		if used {
			return nil, reject(code, ReasonAlreadyRedeemed)
		}
	}
	return c, nil
}
