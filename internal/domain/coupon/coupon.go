// Package coupon verifies promotional codes against a branch and a date
// window, and lets seller-owners manage them.
package coupon

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
)

// Reason explains why a coupon was rejected.
type Reason string

const (
	ReasonNotFound        Reason = "not_found"
	ReasonWrongBranch     Reason = "wrong_branch"
	ReasonNotYetActive    Reason = "not_yet_active"
	ReasonExpired         Reason = "expired"
	ReasonAlreadyRedeemed Reason = "already_redeemed"
)

var (
	// ErrNotFound is returned when no active coupon has the code.
	ErrNotFound = errors.New("coupon not found")
	// ErrWrongBranch is returned when the coupon belongs to another branch.
	ErrWrongBranch = errors.New("coupon not valid for this branch")
	// ErrNotYetActive is returned before the coupon's valid_from.
	ErrNotYetActive = errors.New("coupon not yet active")
	// ErrExpired is returned after the coupon's valid_until.
	ErrExpired = errors.New("coupon expired")
	// ErrAlreadyRedeemed is returned when the customer already used the coupon.
	ErrAlreadyRedeemed = errors.New("coupon already redeemed")

	// ErrDuplicateCode is returned by Repository.Create for an existing code.
	ErrDuplicateCode = errors.New("coupon code already exists")
	// ErrInvalidCoupon is returned when seller input fails validation.
	ErrInvalidCoupon = errors.New("invalid coupon")
)

var reasonErrors = map[Reason]error{
	ReasonNotFound:        ErrNotFound,
	ReasonWrongBranch:     ErrWrongBranch,
	ReasonNotYetActive:    ErrNotYetActive,
	ReasonExpired:         ErrExpired,
	ReasonAlreadyRedeemed: ErrAlreadyRedeemed,
}

// RejectedError is returned by Verify when a code cannot be applied.
type RejectedError struct {
	Code   string
	Reason Reason
}

func (e *RejectedError) Error() string {
	return "coupon " + e.Code + " rejected: " + string(e.Reason)
}

// Unwrap exposes the sentinel matching the reason.
func (e *RejectedError) Unwrap() error {
	return reasonErrors[e.Reason]
}

func reject(code string, r Reason) error {
	return &RejectedError{Code: code, Reason: r}
}

// Coupon is a percent discount scoped to one branch, or to every branch
// when BranchID is zero.
type Coupon struct {
	ID              int64
	Code            string
	DiscountPercent int
	BranchID        int64
	ValidFrom       time.Time
	ValidUntil      time.Time
	Active          bool
	CreatedAt       time.Time
}

// Global reports whether the coupon applies to every branch.
func (c *Coupon) Global() bool {
	return c.BranchID == 0
}

// Expired reports whether now is past the end of the window.
func (c *Coupon) Expired(now time.Time) bool {
	return now.After(c.ValidUntil)
}

// NormalizeCode trims and upper-cases a code before lookup or storage.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Repository persists coupons and their redemptions.
type Repository interface {
	// FindByCode returns ErrNotFound when no active coupon has the code.
	FindByCode(ctx context.Context, code string) (*Coupon, error)
	Create(ctx context.Context, c *Coupon) error
	ListByBranch(ctx context.Context, branchID int64) ([]Coupon, error)
	ListCodes(ctx context.Context) ([]string, error)
	HasRedeemed(ctx context.Context, couponID, userID int64) (bool, error)
	Redeem(ctx context.Context, couponID, userID, orderID int64) error
}
