// Package cart keeps a customer's cart consistent: every line comes from one
// branch, at most one coupon is applied, and the quote is derived on read.
package cart

import (
	"context"
	"strconv"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/foodcart/internal/domain/coupon"
	"github.com/xenking/foodcart/internal/domain/pricing"
)

var (
	// ErrEmptyCart is returned when an operation needs at least one line.
	ErrEmptyCart = errors.New("cart is empty")
	// ErrConflict matches every *BranchConflictError.
	ErrConflict = errors.New("cart branch conflict")
	// ErrNotFound matches every *NotFoundError.
	ErrNotFound = errors.New("cart item not found")
	// ErrInvalidQuantity matches every *InvalidQuantityError.
	ErrInvalidQuantity = errors.New("invalid quantity")
	// ErrBranchMismatch is returned when a candidate names a branch the food
	// is not sold at.
	ErrBranchMismatch = errors.New("food is not sold at this branch")
)

// BranchConflictError is returned when a food from another branch is added
// to a non-empty cart. The cart is left unchanged; ReplaceWith is the
// recovery.
type BranchConflictError struct {
	CartBranch      int64
	CandidateBranch int64
}

func (e *BranchConflictError) Error() string {
	return "cart holds items from branch " + strconv.FormatInt(e.CartBranch, 10) +
		", cannot add from branch " + strconv.FormatInt(e.CandidateBranch, 10)
}

func (e *BranchConflictError) Unwrap() error { return ErrConflict }

// NotFoundError is returned when a food is absent from the cart or the catalog.
type NotFoundError struct {
	FoodID int64
}

func (e *NotFoundError) Error() string {
	return "food " + strconv.FormatInt(e.FoodID, 10) + " not found"
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// InvalidQuantityError is returned for quantities below one.
type InvalidQuantityError struct {
	FoodID   int64
	Quantity int
}

func (e *InvalidQuantityError) Error() string {
	return "invalid quantity " + strconv.Itoa(e.Quantity) + " for food " + strconv.FormatInt(e.FoodID, 10)
}

func (e *InvalidQuantityError) Unwrap() error { return ErrInvalidQuantity }

// Entry is a stored cart line: what the customer chose, without prices.
type Entry struct {
	FoodID   int64
	BranchID int64
	Quantity int
}

// Line is an entry enriched from the catalog. Unavailable lines refer to
// foods that have since been removed and are priced at zero.
type Line struct {
	FoodID      int64
	BranchID    int64
	Quantity    int
	UnitPrice   decimal.Decimal
	Name        string
	ImageRef    string
	Unavailable bool
}

// View is the priced state of a cart.
type View struct {
	BranchID int64
	Lines    []Line
	Coupon   *coupon.Coupon
	Quote    pricing.Quote
}

// Empty reports whether the cart has no lines.
func (v *View) Empty() bool {
	return len(v.Lines) == 0
}

// Available reports whether every line can still be ordered.
func (v *View) Available() bool {
	for _, l := range v.Lines {
		if l.Unavailable {
			return false
		}
	}
	return true
}

func emptyView() *View {
	return &View{Lines: []Line{}, Quote: pricing.Compute(nil)}
}

func price(lines []Line, c *coupon.Coupon) pricing.Quote {
	in := make([]pricing.Line, 0, len(lines))
	for _, l := range lines {
		if l.Unavailable {
			continue
		}
		in = append(in, pricing.Line{UnitPrice: l.UnitPrice, Quantity: l.Quantity})
	}
	if c == nil {
		return pricing.Compute(in)
	}
	return pricing.ComputeWithPercent(in, decimal.NewFromInt(int64(c.DiscountPercent)))
}

// Store persists the cart of each user.
type Store interface {
	Lines(ctx context.Context, userID int64) ([]Entry, error)
	// PutQuantity inserts the line or overwrites its quantity.
	PutQuantity(ctx context.Context, userID int64, e Entry) error
	DeleteLine(ctx context.Context, userID, foodID int64) error
	// DeleteAll removes every line and the applied coupon.
	DeleteAll(ctx context.Context, userID int64) error
	CouponCode(ctx context.Context, userID int64) (string, error)
	// SetCouponCode binds a code to the cart; an empty code clears it.
	SetCouponCode(ctx context.Context, userID int64, code string) error
	// Atomic runs fn against a Store whose writes commit together or not at all.
	Atomic(ctx context.Context, fn func(Store) error) error
}
