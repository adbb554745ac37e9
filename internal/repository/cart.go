package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/foodcart/internal/domain/cart"
)

const (
	cartLinesSQL = `SELECT food_id, branch_id, quantity FROM cart_items
		WHERE user_id = $1 ORDER BY updated_at, food_id`

	putCartLineSQL = `INSERT INTO cart_items (user_id, food_id, branch_id, quantity)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, food_id)
		DO UPDATE SET quantity = EXCLUDED.quantity, branch_id = EXCLUDED.branch_id, updated_at = NOW()`

	deleteCartLineSQL  = `DELETE FROM cart_items WHERE user_id = $1 AND food_id = $2`
	deleteCartLinesSQL = `DELETE FROM cart_items WHERE user_id = $1`

	cartCouponSQL = `SELECT coupon_code FROM cart_coupons WHERE user_id = $1`

	setCartCouponSQL = `INSERT INTO cart_coupons (user_id, coupon_code) VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE SET coupon_code = EXCLUDED.coupon_code`

	clearCartCouponSQL = `DELETE FROM cart_coupons WHERE user_id = $1`
)

var _ cart.Store = (*CartStore)(nil)

// CartStore implements cart.Store backed by PostgreSQL. Inside Atomic it is
// bound to a transaction.
type CartStore struct {
	pool *pgxpool.Pool
	db   querier
}

// NewCartStore returns a CartStore that uses the given pool.
func NewCartStore(pool *pgxpool.Pool) *CartStore {
	return &CartStore{pool: pool, db: pool}
}

func (s *CartStore) Lines(ctx context.Context, userID int64) ([]cart.Entry, error) {
	rows, err := s.db.Query(ctx, cartLinesSQL, userID)
	if err != nil {
		return nil, fmt.Errorf("listing cart of user %d: %w", userID, err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (cart.Entry, error) {
		var e cart.Entry
		err := row.Scan(&e.FoodID, &e.BranchID, &e.Quantity)
		return e, err
	})
}

func (s *CartStore) PutQuantity(ctx context.Context, userID int64, e cart.Entry) error {
	if _, err := s.db.Exec(ctx, putCartLineSQL, userID, e.FoodID, e.BranchID, e.Quantity); err != nil {
		return fmt.Errorf("putting cart line %d: %w", e.FoodID, err)
	}
	return nil
}

func (s *CartStore) DeleteLine(ctx context.Context, userID, foodID int64) error {
	if _, err := s.db.Exec(ctx, deleteCartLineSQL, userID, foodID); err != nil {
		return fmt.Errorf("deleting cart line %d: %w", foodID, err)
	}
	return nil
}

// DeleteAll removes the lines and the coupon in one transaction.
func (s *CartStore) DeleteAll(ctx context.Context, userID int64) error {
	return s.Atomic(ctx, func(st cart.Store) error {
		tx := st.(*CartStore)
		if _, err := tx.db.Exec(ctx, deleteCartLinesSQL, userID); err != nil {
			return fmt.Errorf("clearing cart of user %d: %w", userID, err)
		}
		return tx.SetCouponCode(ctx, userID, "")
	})
}

// CouponCode returns "" when no coupon is applied.
func (s *CartStore) CouponCode(ctx context.Context, userID int64) (string, error) {
	var code string
	err := s.db.QueryRow(ctx, cartCouponSQL, userID).Scan(&code)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("getting cart coupon of user %d: %w", userID, err)
	}
	return code, nil
}

func (s *CartStore) SetCouponCode(ctx context.Context, userID int64, code string) error {
	var err error
	if code == "" {
		_, err = s.db.Exec(ctx, clearCartCouponSQL, userID)
	} else {
		_, err = s.db.Exec(ctx, setCartCouponSQL, userID, code)
	}
	if err != nil {
		return fmt.Errorf("setting cart coupon of user %d: %w", userID, err)
	}
	return nil
}

// Atomic runs fn in a transaction. Nested calls join the outer one.
func (s *CartStore) Atomic(ctx context.Context, fn func(cart.Store) error) error {
	if s.pool == nil {
		return fn(s)
	}
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		return fn(&CartStore{db: tx})
	})
}
