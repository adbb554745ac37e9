package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/foodcart/internal/domain/coupon"
)

const (
	couponColumns = `id, code, discount_percent, branch_id, valid_from, valid_until, active, created_at`

	findCouponSQL = `SELECT ` + couponColumns + ` FROM coupons WHERE code = UPPER($1)`

	createCouponSQL = `INSERT INTO coupons (code, discount_percent, branch_id, valid_from, valid_until, active)
		VALUES (UPPER($1), $2, $3, $4, $5, $6) RETURNING id, created_at`

	listCouponsSQL = `SELECT ` + couponColumns + ` FROM coupons
		WHERE branch_id = $1 OR branch_id = 0 ORDER BY created_at DESC, id DESC`

	listCouponCodesSQL = `SELECT code FROM coupons WHERE active`

	hasRedeemedSQL = `SELECT EXISTS (SELECT 1 FROM coupon_redemptions WHERE coupon_id = $1 AND user_id = $2)`

	redeemCouponSQL = `INSERT INTO coupon_redemptions (coupon_id, user_id, order_id) VALUES ($1, $2, $3)`
)

var _ coupon.Repository = (*CouponRepository)(nil)

// CouponRepository implements coupon.Repository backed by PostgreSQL.
type CouponRepository struct {
	pool *pgxpool.Pool
}

// NewCouponRepository returns a CouponRepository that uses the given pool.
func NewCouponRepository(pool *pgxpool.Pool) *CouponRepository {
	return &CouponRepository{pool: pool}
}

// FindByCode returns inactive coupons too; the validator decides what they
// mean.
func (r *CouponRepository) FindByCode(ctx context.Context, code string) (*coupon.Coupon, error) {
	rows, err := r.pool.Query(ctx, findCouponSQL, code)
	if err != nil {
		return nil, fmt.Errorf("finding coupon %q: %w", code, err)
	}
	c, err := pgx.CollectExactlyOneRow(rows, scanCoupon)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, coupon.ErrNotFound
		}
		return nil, fmt.Errorf("finding coupon %q: %w", code, err)
	}
	return &c, nil
}

// Create stores c, setting its ID and CreatedAt.
func (r *CouponRepository) Create(ctx context.Context, c *coupon.Coupon) error {
	err := r.pool.QueryRow(ctx, createCouponSQL,
		c.Code, c.DiscountPercent, c.BranchID, c.ValidFrom, c.ValidUntil, c.Active,
	).Scan(&c.ID, &c.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return coupon.ErrDuplicateCode
		}
		return fmt.Errorf("creating coupon %q: %w", c.Code, err)
	}
	return nil
}

// ListByBranch includes global coupons.
func (r *CouponRepository) ListByBranch(ctx context.Context, branchID int64) ([]coupon.Coupon, error) {
	rows, err := r.pool.Query(ctx, listCouponsSQL, branchID)
	if err != nil {
		return nil, fmt.Errorf("listing coupons of branch %d: %w", branchID, err)
	}
	return pgx.CollectRows(rows, scanCoupon)
}

// ListCodes returns every active code; it seeds the code index at startup.
func (r *CouponRepository) ListCodes(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, listCouponCodesSQL)
	if err != nil {
		return nil, fmt.Errorf("listing coupon codes: %w", err)
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

func (r *CouponRepository) HasRedeemed(ctx context.Context, couponID, userID int64) (bool, error) {
	var ok bool
	if err := r.pool.QueryRow(ctx, hasRedeemedSQL, couponID, userID).Scan(&ok); err != nil {
		return false, fmt.Errorf("checking redemption of coupon %d: %w", couponID, err)
	}
	return ok, nil
}

// Redeem returns coupon.ErrAlreadyRedeemed when the user used the coupon
// before.
func (r *CouponRepository) Redeem(ctx context.Context, couponID, userID, orderID int64) error {
	if _, err := r.pool.Exec(ctx, redeemCouponSQL, couponID, userID, orderID); err != nil {
		if isUniqueViolation(err) {
			return coupon.ErrAlreadyRedeemed
		}
		return fmt.Errorf("redeeming coupon %d: %w", couponID, err)
	}
	return nil
}

func scanCoupon(row pgx.CollectableRow) (coupon.Coupon, error) {
	var c coupon.Coupon
	err := row.Scan(
		&c.ID, &c.Code, &c.DiscountPercent, &c.BranchID,
		&c.ValidFrom, &c.ValidUntil, &c.Active, &c.CreatedAt,
	)
	return c, err
}
