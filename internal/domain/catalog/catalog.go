// Package catalog describes the foods sold by each branch.
package catalog

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/foodcart/internal/domain/pricing"
)

var (
	// ErrFoodNotFound is returned when a requested food does not exist.
	ErrFoodNotFound = errors.New("food not found")
	// ErrBranchNotFound is returned when a requested branch does not exist.
	ErrBranchNotFound = errors.New("branch not found")
)

// Food is a menu item of a single branch. DiscountPercent is the item's own
// markdown, independent of coupons.
type Food struct {
	ID              int64
	BranchID        int64
	Name            string
	Price           decimal.Decimal
	DiscountPercent int
	ImageURL        string
}

// FinalPrice is the unit price a customer pays before coupons.
func (f Food) FinalPrice() decimal.Decimal {
	return pricing.DiscountedPrice(f.Price, f.DiscountPercent)
}

// Branch is a selling location.
type Branch struct {
	ID      int64
	Name    string
	Address string
	Phone   string
}

// Rating aggregates review scores for a food.
type Rating struct {
	Average decimal.Decimal
	Count   int
}

// RatedFood pairs a food with its review aggregate.
type RatedFood struct {
	Food
	Rating Rating
}

// Repository provides catalog reads and seller writes.
type Repository interface {
	GetFood(ctx context.Context, id int64) (*Food, error)
	GetFoods(ctx context.Context, ids []int64) ([]Food, error)
	ListFoods(ctx context.Context, branchID int64) ([]Food, error)
	SearchFoods(ctx context.Context, query string) ([]RatedFood, error)
	FoodsByName(ctx context.Context, name string) ([]Food, error)
	CreateFood(ctx context.Context, f *Food) error
	UpdateFood(ctx context.Context, f *Food) error
	DeleteFood(ctx context.Context, id int64) error

	GetBranch(ctx context.Context, id int64) (*Branch, error)
	ListBranches(ctx context.Context) ([]Branch, error)
	GetBranches(ctx context.Context, ids []int64) ([]Branch, error)
}
