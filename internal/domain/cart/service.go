package cart

import (
	"context"

	"github.com/go-faster/errors"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/foodcart/internal/domain/catalog"
	"github.com/xenking/foodcart/internal/domain/coupon"
	"github.com/xenking/foodcart/internal/domain/session"
)

const enrichConcurrency = 8

// FoodLookup resolves a food from the catalog.
type FoodLookup interface {
	Food(ctx context.Context, id int64) (*catalog.Food, error)
}

// Service implements cart operations for the customer of a session. Every
// mutation returns a freshly priced View.
type Service struct {
	store   Store
	foods   FoodLookup
	coupons coupon.Validator
}

// NewService creates a cart Service.
func NewService(store Store, foods FoodLookup, coupons coupon.Validator) *Service {
	return &Service{store: store, foods: foods, coupons: coupons}
}

// Get returns the priced cart. Lines whose food was removed from the catalog
// are marked unavailable, and a coupon that no longer verifies is dropped.
func (s *Service) Get(ctx context.Context, sess *session.Session) (*View, error) {
	if err := sess.RequireCustomer(); err != nil {
		return nil, err
	}
	return s.view(ctx, s.store, sess.UserID)
}

// commit runs fn and prices the result inside one transaction, so a change
// is kept only when the caller also receives the view that reflects it.
func (s *Service) commit(ctx context.Context, userID int64, fn func(tx Store) error) (*View, error) {
	var v *View
	err := s.store.Atomic(ctx, func(tx Store) error {
		if err := fn(tx); err != nil {
			return err
		}
		var err error
		v, err = s.view(ctx, tx, userID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return v, nil
}

func (s *Service) view(ctx context.Context, st Store, userID int64) (*View, error) {
	entries, err := st.Lines(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "load cart")
	}
	code, err := st.CouponCode(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "load applied coupon")
	}
	if len(entries) == 0 {
		if code != "" {
			if err := st.SetCouponCode(ctx, userID, ""); err != nil {
				return nil, errors.Wrap(err, "drop coupon")
			}
		}
		return emptyView(), nil
	}

	lines, err := s.enrich(ctx, entries)
	if err != nil {
		return nil, err
	}
	v := &View{BranchID: entries[0].BranchID, Lines: lines}

	if code != "" {
		c, err := s.coupons.Verify(ctx, code, v.BranchID, userID)
		var rej *coupon.RejectedError
		switch {
		case err == nil:
			v.Coupon = c
		case errors.As(err, &rej):
			if err := st.SetCouponCode(ctx, userID, ""); err != nil {
				return nil, errors.Wrap(err, "drop coupon")
			}
		default:
			return nil, errors.Wrap(err, "verify applied coupon")
		}
	}

	v.Quote = price(v.Lines, v.Coupon)
	return v, nil
}

func (s *Service) enrich(ctx context.Context, entries []Entry) ([]Line, error) {
	lines := make([]Line, len(entries))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(enrichConcurrency)
	for i, e := range entries {
		g.Go(func() error {
			line := Line{FoodID: e.FoodID, BranchID: e.BranchID, Quantity: e.Quantity}
			f, err := s.foods.Food(gctx, e.FoodID)
			switch {
			case errors.Is(err, catalog.ErrFoodNotFound):
				line.Unavailable = true
			case err != nil:
				return errors.Wrapf(err, "get food %d", e.FoodID)
			default:
				line.Name = f.Name
				line.UnitPrice = f.FinalPrice()
				line.ImageRef = f.ImageURL
			}
			lines[i] = line
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return lines, nil
}

func (s *Service) lookup(ctx context.Context, cand Entry) (*catalog.Food, error) {
	if cand.Quantity < 1 {
		return nil, &InvalidQuantityError{FoodID: cand.FoodID, Quantity: cand.Quantity}
	}
	f, err := s.foods.Food(ctx, cand.FoodID)
	if err != nil {
		if errors.Is(err, catalog.ErrFoodNotFound) {
			return nil, &NotFoundError{FoodID: cand.FoodID}
		}
		return nil, errors.Wrap(err, "get food")
	}
	if cand.BranchID != 0 && cand.BranchID != f.BranchID {
		return nil, ErrBranchMismatch
	}
	return f, nil
}

func find(entries []Entry, foodID int64) (Entry, bool) {
	for _, e := range entries {
		if e.FoodID == foodID {
			return e, true
		}
	}
	return Entry{}, false
}

// AddItem adds a food to the cart, increasing the quantity of an existing
// line. Adding from another branch fails with *BranchConflictError and leaves
// the cart as it was.
func (s *Service) AddItem(ctx context.Context, sess *session.Session, cand Entry) (*View, error) {
	if err := sess.RequireCustomer(); err != nil {
		return nil, err
	}
	f, err := s.lookup(ctx, cand)
	if err != nil {
		return nil, err
	}

	entries, err := s.store.Lines(ctx, sess.UserID)
	if err != nil {
		return nil, errors.Wrap(err, "load cart")
	}
	if len(entries) > 0 && entries[0].BranchID != f.BranchID {
		return nil, &BranchConflictError{CartBranch: entries[0].BranchID, CandidateBranch: f.BranchID}
	}

	qty := cand.Quantity
	if existing, ok := find(entries, f.ID); ok {
		qty += existing.Quantity
	}
	return s.commit(ctx, sess.UserID, func(tx Store) error {
		return errors.Wrap(
			tx.PutQuantity(ctx, sess.UserID, Entry{FoodID: f.ID, BranchID: f.BranchID, Quantity: qty}),
			"put line",
		)
	})
}

// ReplaceWith clears the cart and inserts cand as one unit. It is the
// recovery for a branch conflict; on failure the original cart is intact.
func (s *Service) ReplaceWith(ctx context.Context, sess *session.Session, cand Entry) (*View, error) {
	if err := sess.RequireCustomer(); err != nil {
		return nil, err
	}
	f, err := s.lookup(ctx, cand)
	if err != nil {
		return nil, err
	}

	return s.commit(ctx, sess.UserID, func(tx Store) error {
		if err := tx.DeleteAll(ctx, sess.UserID); err != nil {
			return errors.Wrap(err, "clear cart")
		}
		if err := tx.PutQuantity(ctx, sess.UserID, Entry{FoodID: f.ID, BranchID: f.BranchID, Quantity: cand.Quantity}); err != nil {
			return errors.Wrap(err, "put line")
		}
		return nil
	})
}

// UpdateQuantity sets the quantity of a line. Quantities below one are
// rejected; use RemoveItem to delete a line.
func (s *Service) UpdateQuantity(ctx context.Context, sess *session.Session, foodID int64, qty int) (*View, error) {
	if err := sess.RequireCustomer(); err != nil {
		return nil, err
	}
	if qty < 1 {
		return nil, &InvalidQuantityError{FoodID: foodID, Quantity: qty}
	}
	entries, err := s.store.Lines(ctx, sess.UserID)
	if err != nil {
		return nil, errors.Wrap(err, "load cart")
	}
	e, ok := find(entries, foodID)
	if !ok {
		return nil, &NotFoundError{FoodID: foodID}
	}
	e.Quantity = qty
	return s.commit(ctx, sess.UserID, func(tx Store) error {
		return errors.Wrap(tx.PutQuantity(ctx, sess.UserID, e), "put line")
	})
}

// RemoveItem deletes a line. Removing the last line also drops the coupon.
func (s *Service) RemoveItem(ctx context.Context, sess *session.Session, foodID int64) (*View, error) {
	if err := sess.RequireCustomer(); err != nil {
		return nil, err
	}
	entries, err := s.store.Lines(ctx, sess.UserID)
	if err != nil {
		return nil, errors.Wrap(err, "load cart")
	}
	if _, ok := find(entries, foodID); !ok {
		return nil, &NotFoundError{FoodID: foodID}
	}

	if len(entries) == 1 {
		if err := s.store.DeleteAll(ctx, sess.UserID); err != nil {
			return nil, errors.Wrap(err, "clear cart")
		}
		return emptyView(), nil
	}
	return s.commit(ctx, sess.UserID, func(tx Store) error {
		return errors.Wrap(tx.DeleteLine(ctx, sess.UserID, foodID), "delete line")
	})
}

// Clear removes every line together with the applied coupon.
func (s *Service) Clear(ctx context.Context, sess *session.Session) (*View, error) {
	if err := sess.RequireCustomer(); err != nil {
		return nil, err
	}
	if err := s.store.DeleteAll(ctx, sess.UserID); err != nil {
		return nil, errors.Wrap(err, "clear cart")
	}
	return emptyView(), nil
}

// ApplyCoupon verifies code against the cart's branch and binds it. A
// rejected code also clears any coupon applied before, so the cart reverts
// to full price; the *coupon.RejectedError is returned.
func (s *Service) ApplyCoupon(ctx context.Context, sess *session.Session, code string) (*View, error) {
	if err := sess.RequireCustomer(); err != nil {
		return nil, err
	}
	entries, err := s.store.Lines(ctx, sess.UserID)
	if err != nil {
		return nil, errors.Wrap(err, "load cart")
	}
	if len(entries) == 0 {
		return nil, ErrEmptyCart
	}

	c, err := s.coupons.Verify(ctx, code, entries[0].BranchID, sess.UserID)
	if err != nil {
		var rej *coupon.RejectedError
		if !errors.As(err, &rej) {
			return nil, errors.Wrap(err, "verify coupon")
		}
		if err := s.store.SetCouponCode(ctx, sess.UserID, ""); err != nil {
			return nil, errors.Wrap(err, "drop coupon")
		}
		return nil, rej
	}

	return s.commit(ctx, sess.UserID, func(tx Store) error {
		return errors.Wrap(tx.SetCouponCode(ctx, sess.UserID, c.Code), "set coupon")
	})
}

// RemoveCoupon drops the applied coupon, if any.
func (s *Service) RemoveCoupon(ctx context.Context, sess *session.Session) (*View, error) {
	if err := sess.RequireCustomer(); err != nil {
		return nil, err
	}
	return s.commit(ctx, sess.UserID, func(tx Store) error {
		return errors.Wrap(tx.SetCouponCode(ctx, sess.UserID, ""), "drop coupon")
	})
}
