package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/foodcart/internal/domain/review"
)

const (
	createReviewSQL = `INSERT INTO reviews (order_id, user_id, branch_id, rating, comment)
		VALUES ($1, $2, $3, $4, $5) RETURNING id, created_at`

	createReviewItemSQL = `INSERT INTO review_items (review_id, food_id, score) VALUES ($1, $2, $3)`
)

var _ review.Repository = (*ReviewRepository)(nil)

// ReviewRepository implements review.Repository backed by PostgreSQL. Item
// scores feed the catalog rating aggregates.
type ReviewRepository struct {
	pool *pgxpool.Pool
}

// NewReviewRepository returns a ReviewRepository that uses the given pool.
func NewReviewRepository(pool *pgxpool.Pool) *ReviewRepository {
	return &ReviewRepository{pool: pool}
}

// Create stores the review and its item scores in one transaction.
func (r *ReviewRepository) Create(ctx context.Context, rv *review.Review) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, createReviewSQL,
			rv.OrderID, rv.UserID, rv.BranchID, rv.Rating, rv.Comment,
		).Scan(&rv.ID, &rv.CreatedAt)
		if err != nil {
			if isUniqueViolation(err) {
				return review.ErrAlreadyReviewed
			}
			return fmt.Errorf("creating review for order %d: %w", rv.OrderID, err)
		}

		batch := &pgx.Batch{}
		for _, it := range rv.Items {
			batch.Queue(createReviewItemSQL, rv.ID, it.FoodID, it.Score)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("creating review items: %w", err)
		}
		return nil
	})
}
