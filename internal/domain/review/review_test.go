package review

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/foodcart/internal/domain/order"
	"github.com/xenking/foodcart/internal/domain/session"
)

type mockRepo struct {
	byOrder map[int64]*Review
}

func (m *mockRepo) Create(_ context.Context, r *Review) error {
	if _, ok := m.byOrder[r.OrderID]; ok {
		return ErrAlreadyReviewed
	}
	r.ID = int64(len(m.byOrder) + 1)
	m.byOrder[r.OrderID] = r
	return nil
}

type mockOrders map[int64]*order.Order

func (m mockOrders) Get(_ context.Context, sess *session.Session, id int64) (*order.Order, error) {
	o, ok := m[id]
	if !ok || o.UserID != sess.UserID {
		return nil, order.ErrNotFound
	}
	return o, nil
}

func TestCreate(t *testing.T) {
	ctx := context.Background()
	customer := &session.Session{UserID: 1, Role: session.RoleCustomer}
	orders := mockOrders{
		1: {ID: 1, UserID: 1, BranchID: 3, Status: order.StatusCompleted, Items: []order.Item{{FoodID: 11}, {FoodID: 12}}},
		2: {ID: 2, UserID: 1, BranchID: 3, Status: order.StatusShipping},
	}

	t.Run("completed order", func(t *testing.T) {
		repo := &mockRepo{byOrder: map[int64]*Review{}}
		r, err := NewService(repo, orders).Create(ctx, customer, Input{
			OrderID: 1, Rating: 5, Comment: " ngon ",
			Items: []ItemScore{{FoodID: 11, Score: 4}},
		})
		require.NoError(t, err)
		assert.Equal(t, int64(3), r.BranchID)
		assert.Equal(t, "ngon", r.Comment)

		_, err = NewService(repo, orders).Create(ctx, customer, Input{OrderID: 1, Rating: 4})
		require.ErrorIs(t, err, ErrAlreadyReviewed)
	})

	t.Run("not completed", func(t *testing.T) {
		repo := &mockRepo{byOrder: map[int64]*Review{}}
		_, err := NewService(repo, orders).Create(ctx, customer, Input{OrderID: 2, Rating: 5})
		var rna *order.ReviewNotAllowedError
		require.ErrorAs(t, err, &rna)
		assert.Equal(t, order.StatusShipping, rna.Status)
		assert.Empty(t, repo.byOrder)
	})

	invalid := []Input{
		{OrderID: 1, Rating: 0},
		{OrderID: 1, Rating: 6},
		{OrderID: 1, Rating: 5, Items: []ItemScore{{FoodID: 11, Score: 9}}},
		{OrderID: 1, Rating: 5, Items: []ItemScore{{FoodID: 99, Score: 3}}},
	}
	for _, in := range invalid {
		_, err := NewService(&mockRepo{byOrder: map[int64]*Review{}}, orders).Create(ctx, customer, in)
		require.ErrorIs(t, err, ErrInvalidReview)
	}

	t.Run("seller cannot review", func(t *testing.T) {
		seller := &session.Session{UserID: 9, Role: session.RoleSeller, SellerMode: session.ModeOwner, BranchID: 3}
		_, err := NewService(&mockRepo{byOrder: map[int64]*Review{}}, orders).Create(ctx, seller, Input{OrderID: 1, Rating: 5})
		require.ErrorIs(t, err, session.ErrForbidden)
	})
}
