// Package order models placed orders and their status lifecycle.
package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when an order does not exist.
var ErrNotFound = errors.New("order not found")

// Customer is the delivery contact recorded on an order.
type Customer struct {
	Name    string
	Phone   string
	Address string
	Note    string
}

// Item is a snapshot of a food taken when the order was placed. Later catalog
// edits do not change it.
type Item struct {
	FoodID   int64           `json:"food_id"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Quantity int             `json:"quantity"`
	ImageURL string          `json:"image_url,omitempty"`
}

// Order is a placed order.
type Order struct {
	ID         int64
	UserID     int64
	BranchID   int64
	Customer   Customer
	Items      []Item
	CouponCode string
	Subtotal   decimal.Decimal
	Discount   decimal.Decimal
	Total      decimal.Decimal
	Status     Status
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// ItemRequest is one requested line. Prices are never taken from the caller.
type ItemRequest struct {
	FoodID   int64
	Quantity int
}

// PlaceRequest is the immutable payload produced by checkout.
type PlaceRequest struct {
	BranchID   int64
	UserID     int64
	Items      []ItemRequest
	CouponCode string
	Customer   Customer
}

// Repository defines persistence operations for orders.
type Repository interface {
	// Create stores o and fills in its ID and timestamps.
	Create(ctx context.Context, o *Order) error
	Get(ctx context.Context, id int64) (*Order, error)
	ListByUser(ctx context.Context, userID int64) ([]Order, error)
	ListByBranch(ctx context.Context, branchID int64) ([]Order, error)
	// UpdateStatus moves the order to `to` only if it is still in `from`.
	// It reports whether a row changed.
	UpdateStatus(ctx context.Context, id int64, from, to Status) (bool, error)
}
