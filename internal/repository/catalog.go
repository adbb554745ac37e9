package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/foodcart/internal/domain/catalog"
)

const (
	foodColumns = `f.id, f.branch_id, f.name, f.price, f.discount_percent, f.image_url`

	getFoodSQL = `SELECT ` + foodColumns + ` FROM foods f WHERE f.id = $1 AND NOT f.deleted`

	getFoodsSQL = `SELECT ` + foodColumns + ` FROM foods f WHERE f.id = ANY($1) AND NOT f.deleted`

	listFoodsSQL = `SELECT ` + foodColumns + ` FROM foods f
		WHERE NOT f.deleted AND ($1::bigint = 0 OR f.branch_id = $1)
		ORDER BY f.branch_id, f.id`

	foodsByNameSQL = `SELECT ` + foodColumns + ` FROM foods f
		WHERE NOT f.deleted AND LOWER(f.name) = LOWER($1)`

	searchFoodsSQL = `SELECT ` + foodColumns + `,
			COALESCE(ROUND(AVG(ri.score), 1), 0), COUNT(ri.score)
		FROM foods f
		LEFT JOIN review_items ri ON ri.food_id = f.id
		WHERE NOT f.deleted AND ($1::text = '' OR f.name ILIKE '%' || $1 || '%')
		GROUP BY f.id
		ORDER BY f.name, f.id`

	createFoodSQL = `INSERT INTO foods (branch_id, name, price, discount_percent, image_url)
		VALUES ($1, $2, $3, $4, $5) RETURNING id`

	updateFoodSQL = `UPDATE foods SET name = $2, price = $3, discount_percent = $4, image_url = $5
		WHERE id = $1 AND NOT deleted`

	// Foods are soft-deleted so order snapshots and carts keep resolving ids.
	deleteFoodSQL = `UPDATE foods SET deleted = TRUE WHERE id = $1 AND NOT deleted`

	branchColumns = `id, name, address, phone`

	getBranchSQL    = `SELECT ` + branchColumns + ` FROM branches WHERE id = $1`
	getBranchesSQL  = `SELECT ` + branchColumns + ` FROM branches WHERE id = ANY($1)`
	listBranchesSQL = `SELECT ` + branchColumns + ` FROM branches ORDER BY id`
)

var _ catalog.Repository = (*CatalogRepository)(nil)

// CatalogRepository implements catalog.Repository backed by PostgreSQL.
type CatalogRepository struct {
	pool *pgxpool.Pool
}

// NewCatalogRepository returns a CatalogRepository that uses the given pool.
func NewCatalogRepository(pool *pgxpool.Pool) *CatalogRepository {
	return &CatalogRepository{pool: pool}
}

// GetFood returns catalog.ErrFoodNotFound for missing or deleted foods.
func (r *CatalogRepository) GetFood(ctx context.Context, id int64) (*catalog.Food, error) {
	rows, err := r.pool.Query(ctx, getFoodSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting food %d: %w", id, err)
	}
	f, err := pgx.CollectExactlyOneRow(rows, scanFood)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, catalog.ErrFoodNotFound
		}
		return nil, fmt.Errorf("getting food %d: %w", id, err)
	}
	return &f, nil
}

// GetFoods returns the foods that exist among ids, in no particular order.
func (r *CatalogRepository) GetFoods(ctx context.Context, ids []int64) ([]catalog.Food, error) {
	rows, err := r.pool.Query(ctx, getFoodsSQL, ids)
	if err != nil {
		return nil, fmt.Errorf("getting foods by ids: %w", err)
	}
	return pgx.CollectRows(rows, scanFood)
}

func (r *CatalogRepository) ListFoods(ctx context.Context, branchID int64) ([]catalog.Food, error) {
	rows, err := r.pool.Query(ctx, listFoodsSQL, branchID)
	if err != nil {
		return nil, fmt.Errorf("listing foods: %w", err)
	}
	return pgx.CollectRows(rows, scanFood)
}

// SearchFoods matches names case-insensitively and attaches review
// aggregates. An empty query matches everything.
func (r *CatalogRepository) SearchFoods(ctx context.Context, query string) ([]catalog.RatedFood, error) {
	rows, err := r.pool.Query(ctx, searchFoodsSQL, query)
	if err != nil {
		return nil, fmt.Errorf("searching foods: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (catalog.RatedFood, error) {
		var (
			f     catalog.RatedFood
			count int64
		)
		err := row.Scan(
			&f.ID, &f.BranchID, &f.Name, &f.Price, &f.DiscountPercent, &f.ImageURL,
			&f.Rating.Average, &count,
		)
		f.Rating.Count = int(count)
		return f, err
	})
}

func (r *CatalogRepository) FoodsByName(ctx context.Context, name string) ([]catalog.Food, error) {
	rows, err := r.pool.Query(ctx, foodsByNameSQL, name)
	if err != nil {
		return nil, fmt.Errorf("getting foods named %q: %w", name, err)
	}
	return pgx.CollectRows(rows, scanFood)
}

// CreateFood stores f and sets its ID.
func (r *CatalogRepository) CreateFood(ctx context.Context, f *catalog.Food) error {
	err := r.pool.QueryRow(ctx, createFoodSQL,
		f.BranchID, f.Name, f.Price, f.DiscountPercent, f.ImageURL,
	).Scan(&f.ID)
	if err != nil {
		return fmt.Errorf("creating food: %w", err)
	}
	return nil
}

func (r *CatalogRepository) UpdateFood(ctx context.Context, f *catalog.Food) error {
	tag, err := r.pool.Exec(ctx, updateFoodSQL, f.ID, f.Name, f.Price, f.DiscountPercent, f.ImageURL)
	if err != nil {
		return fmt.Errorf("updating food %d: %w", f.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return catalog.ErrFoodNotFound
	}
	return nil
}

func (r *CatalogRepository) DeleteFood(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, deleteFoodSQL, id)
	if err != nil {
		return fmt.Errorf("deleting food %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return catalog.ErrFoodNotFound
	}
	return nil
}

// GetBranch returns catalog.ErrBranchNotFound for unknown ids.
func (r *CatalogRepository) GetBranch(ctx context.Context, id int64) (*catalog.Branch, error) {
	rows, err := r.pool.Query(ctx, getBranchSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting branch %d: %w", id, err)
	}
	b, err := pgx.CollectExactlyOneRow(rows, scanBranch)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, catalog.ErrBranchNotFound
		}
		return nil, fmt.Errorf("getting branch %d: %w", id, err)
	}
	return &b, nil
}

func (r *CatalogRepository) ListBranches(ctx context.Context) ([]catalog.Branch, error) {
	rows, err := r.pool.Query(ctx, listBranchesSQL)
	if err != nil {
		return nil, fmt.Errorf("listing branches: %w", err)
	}
	return pgx.CollectRows(rows, scanBranch)
}

func (r *CatalogRepository) GetBranches(ctx context.Context, ids []int64) ([]catalog.Branch, error) {
	rows, err := r.pool.Query(ctx, getBranchesSQL, ids)
	if err != nil {
		return nil, fmt.Errorf("getting branches by ids: %w", err)
	}
	return pgx.CollectRows(rows, scanBranch)
}

func scanFood(row pgx.CollectableRow) (catalog.Food, error) {
	var f catalog.Food
	err := row.Scan(&f.ID, &f.BranchID, &f.Name, &f.Price, &f.DiscountPercent, &f.ImageURL)
	return f, err
}

func scanBranch(row pgx.CollectableRow) (catalog.Branch, error) {
	var b catalog.Branch
	err := row.Scan(&b.ID, &b.Name, &b.Address, &b.Phone)
	return b, err
}
