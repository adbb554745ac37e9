package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/foodcart/internal/domain/payment"
)

const (
	createPaymentSQL = `INSERT INTO payments (order_id, user_id, amount, transaction_id, status)
		VALUES ($1, $2, $3, $4, $5) RETURNING id, created_at`

	findPaymentSQL = `SELECT id, order_id, user_id, amount, transaction_id, status, created_at
		FROM payments WHERE order_id = $1`

	listPaymentsByUserSQL = `SELECT id, order_id, user_id, amount, transaction_id, status, created_at
		FROM payments WHERE user_id = $1 ORDER BY created_at DESC, id DESC`
)

var _ payment.Repository = (*PaymentRepository)(nil)

// PaymentRepository implements payment.Repository backed by PostgreSQL.
type PaymentRepository struct {
	pool *pgxpool.Pool
}

// NewPaymentRepository returns a PaymentRepository that uses the given pool.
func NewPaymentRepository(pool *pgxpool.Pool) *PaymentRepository {
	return &PaymentRepository{pool: pool}
}

func (r *PaymentRepository) Create(ctx context.Context, p *payment.Payment) error {
	err := r.pool.QueryRow(ctx, createPaymentSQL,
		p.OrderID, p.UserID, p.Amount, p.TransactionID, p.Status,
	).Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return errors.Wrapf(payment.ErrDuplicate, "order %d", p.OrderID)
		}
		return fmt.Errorf("creating payment for order %d: %w", p.OrderID, err)
	}
	return nil
}

func (r *PaymentRepository) FindByOrder(ctx context.Context, orderID int64) (*payment.Payment, error) {
	rows, err := r.pool.Query(ctx, findPaymentSQL, orderID)
	if err != nil {
		return nil, fmt.Errorf("finding payment for order %d: %w", orderID, err)
	}
	p, err := pgx.CollectExactlyOneRow(rows, scanPayment)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, payment.ErrNotFound
		}
		return nil, fmt.Errorf("finding payment for order %d: %w", orderID, err)
	}
	return &p, nil
}

func (r *PaymentRepository) ListByUser(ctx context.Context, userID int64) ([]payment.Payment, error) {
	rows, err := r.pool.Query(ctx, listPaymentsByUserSQL, userID)
	if err != nil {
		return nil, fmt.Errorf("listing payments of user %d: %w", userID, err)
	}
	out, err := pgx.CollectRows(rows, scanPayment)
	if err != nil {
		return nil, fmt.Errorf("listing payments of user %d: %w", userID, err)
	}
	return out, nil
}

func scanPayment(row pgx.CollectableRow) (payment.Payment, error) {
	var p payment.Payment
	err := row.Scan(&p.ID, &p.OrderID, &p.UserID, &p.Amount, &p.TransactionID, &p.Status, &p.CreatedAt)
	return p, err
}
