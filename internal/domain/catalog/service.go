package catalog

import (
	"context"
	"sort"
	"strings"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/foodcart/internal/domain/session"
)

// ErrInvalidFood is returned when seller input fails validation.
var ErrInvalidFood = errors.New("invalid food")

// SearchResult groups every branch's offer of one food name.
type SearchResult struct {
	Name        string
	MinPrice    decimal.Decimal
	MaxPrice    decimal.Decimal
	BranchCount int
	AvgRating   decimal.Decimal
	ReviewCount int
	ImageURL    string
}

// Option is one branch's offer of a food.
type Option struct {
	FoodID        int64
	BranchID      int64
	BranchName    string
	OriginalPrice decimal.Decimal
	Discount      int
	FinalPrice    decimal.Decimal
	ImageURL      string
}

// FoodInput is the seller-editable part of a food.
type FoodInput struct {
	Name            string
	Price           decimal.Decimal
	DiscountPercent int
	ImageURL        string
}

func (in FoodInput) validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return errors.Wrap(ErrInvalidFood, "name required")
	}
	if in.Price.IsNegative() {
		return errors.Wrap(ErrInvalidFood, "price must not be negative")
	}
	if in.DiscountPercent < 0 || in.DiscountPercent > 100 {
		return errors.Wrap(ErrInvalidFood, "discount must be within 0..100")
	}
	return nil
}

// Service exposes catalog queries and seller food management.
type Service struct {
	repo Repository
}

// NewService creates a catalog Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Food returns a single food.
func (s *Service) Food(ctx context.Context, id int64) (*Food, error) {
	return s.repo.GetFood(ctx, id)
}

// Foods lists foods of a branch, or every food when branchID is zero.
func (s *Service) Foods(ctx context.Context, branchID int64) ([]Food, error) {
	return s.repo.ListFoods(ctx, branchID)
}

// Branch returns a single branch.
func (s *Service) Branch(ctx context.Context, id int64) (*Branch, error) {
	return s.repo.GetBranch(ctx, id)
}

// Branches lists all branches.
func (s *Service) Branches(ctx context.Context) ([]Branch, error) {
	return s.repo.ListBranches(ctx)
}

// Search groups matching foods by name. The image and rating shown for a
// group come from the branch with the most reviews.
func (s *Service) Search(ctx context.Context, query string) ([]SearchResult, error) {
	foods, err := s.repo.SearchFoods(ctx, strings.TrimSpace(query))
	if err != nil {
		return nil, errors.Wrap(err, "search foods")
	}
	return groupByName(foods), nil
}

func groupByName(foods []RatedFood) []SearchResult {
	var (
		order   []string
		grouped = make(map[string]*SearchResult)
	)
	for _, f := range foods {
		price := f.FinalPrice()
		g, ok := grouped[f.Name]
		if !ok {
			grouped[f.Name] = &SearchResult{
				Name:        f.Name,
				MinPrice:    price,
				MaxPrice:    price,
				BranchCount: 1,
				AvgRating:   f.Rating.Average,
				ReviewCount: f.Rating.Count,
				ImageURL:    f.ImageURL,
			}
			order = append(order, f.Name)
			continue
		}
		g.MinPrice = decimal.Min(g.MinPrice, price)
		g.MaxPrice = decimal.Max(g.MaxPrice, price)
		g.BranchCount++
		if f.Rating.Count > g.ReviewCount {
			g.AvgRating = f.Rating.Average
			g.ReviewCount = f.Rating.Count
			if f.ImageURL != "" {
				g.ImageURL = f.ImageURL
			}
		}
	}

	out := make([]SearchResult, 0, len(order))
	for _, name := range order {
		out = append(out, *grouped[name])
	}
	return out
}

// Options lists every branch offering a food named name, cheapest first.
func (s *Service) Options(ctx context.Context, name string) ([]Option, error) {
	foods, err := s.repo.FoodsByName(ctx, name)
	if err != nil {
		return nil, errors.Wrap(err, "foods by name")
	}
	if len(foods) == 0 {
		return []Option{}, nil
	}

	ids := make([]int64, 0, len(foods))
	for _, f := range foods {
		ids = append(ids, f.BranchID)
	}
	branches, err := s.repo.GetBranches(ctx, ids)
	if err != nil {
		return nil, errors.Wrap(err, "get branches")
	}
	names := make(map[int64]string, len(branches))
	for _, b := range branches {
		names[b.ID] = b.Name
	}

	out := make([]Option, 0, len(foods))
	for _, f := range foods {
		branchName, ok := names[f.BranchID]
		if !ok {
			branchName = "Unknown"
		}
		out = append(out, Option{
			FoodID:        f.ID,
			BranchID:      f.BranchID,
			BranchName:    branchName,
			OriginalPrice: f.Price,
			Discount:      f.DiscountPercent,
			FinalPrice:    f.FinalPrice(),
			ImageURL:      f.ImageURL,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].FinalPrice.LessThan(out[j].FinalPrice)
	})
	return out, nil
}

// CreateFood adds a food to the seller's branch.
func (s *Service) CreateFood(ctx context.Context, sess *session.Session, in FoodInput) (*Food, error) {
	if err := sess.RequireSeller(0); err != nil {
		return nil, err
	}
	if err := in.validate(); err != nil {
		return nil, err
	}

	f := &Food{
		BranchID:        sess.BranchID,
		Name:            strings.TrimSpace(in.Name),
		Price:           in.Price,
		DiscountPercent: in.DiscountPercent,
		ImageURL:        in.ImageURL,
	}
	if err := s.repo.CreateFood(ctx, f); err != nil {
		return nil, errors.Wrap(err, "create food")
	}
	return f, nil
}

// UpdateFood edits a food. Only sellers of the food's branch may edit it.
// Orders already placed keep their own snapshot of name and price.
func (s *Service) UpdateFood(ctx context.Context, sess *session.Session, id int64, in FoodInput) (*Food, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	f, err := s.repo.GetFood(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := sess.RequireSeller(f.BranchID); err != nil {
		return nil, err
	}

	f.Name = strings.TrimSpace(in.Name)
	f.Price = in.Price
	f.DiscountPercent = in.DiscountPercent
	if in.ImageURL != "" {
		f.ImageURL = in.ImageURL
	}
	if err := s.repo.UpdateFood(ctx, f); err != nil {
		return nil, errors.Wrap(err, "update food")
	}
	return f, nil
}

// DeleteFood removes a food. Seller-owner only.
func (s *Service) DeleteFood(ctx context.Context, sess *session.Session, id int64) error {
	f, err := s.repo.GetFood(ctx, id)
	if err != nil {
		return err
	}
	if err := sess.RequireOwner(f.BranchID); err != nil {
		return err
	}
	if err := s.repo.DeleteFood(ctx, id); err != nil {
		return errors.Wrap(err, "delete food")
	}
	return nil
}
