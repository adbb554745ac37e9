package payment

import (
	"context"
	"regexp"
	"testing"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/foodcart/internal/domain/order"
	"github.com/xenking/foodcart/internal/domain/session"
)

type mockRepo struct {
	byOrder   map[int64]*Payment
	created   int
	createErr error
}

func (m *mockRepo) Create(_ context.Context, p *Payment) error {
	if m.createErr != nil {
		return m.createErr
	}
	if _, ok := m.byOrder[p.OrderID]; ok {
		return ErrDuplicate
	}
	m.created++
	p.ID = int64(m.created)
	m.byOrder[p.OrderID] = p
	return nil
}

func (m *mockRepo) FindByOrder(_ context.Context, orderID int64) (*Payment, error) {
	p, ok := m.byOrder[orderID]
	if !ok {
		return nil, ErrNotFound
	}
	return p, nil
}

func (m *mockRepo) ListByUser(_ context.Context, userID int64) ([]Payment, error) {
	var out []Payment
	for _, p := range m.byOrder {
		if p.UserID == userID {
			out = append(out, *p)
		}
	}
	return out, nil
}

type mockOrders struct {
	orders     map[int64]*order.Order
	confirmErr error
	confirmed  []int64
	// beforeConfirm runs at the start of ConfirmPayment.
	beforeConfirm func()
}

func (m *mockOrders) Get(_ context.Context, sess *session.Session, id int64) (*order.Order, error) {
	o, ok := m.orders[id]
	if !ok || o.UserID != sess.UserID {
		return nil, order.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (m *mockOrders) ConfirmPayment(_ context.Context, id int64) (*order.Order, error) {
	if m.beforeConfirm != nil {
		m.beforeConfirm()
	}
	if m.confirmErr != nil {
		return nil, m.confirmErr
	}
	if err := order.CanTransition(m.orders[id].Status, order.StatusPaid, order.ActorPayment); err != nil {
		return nil, err
	}
	if m.orders[id].Status == order.StatusPaid {
		cp := *m.orders[id]
		return &cp, nil
	}
	m.confirmed = append(m.confirmed, id)
	m.orders[id].Status = order.StatusPaid
	cp := *m.orders[id]
	return &cp, nil
}

var customer = &session.Session{UserID: 1, Role: session.RoleCustomer}

func newFixture(status order.Status) (*Service, *mockRepo, *mockOrders) {
	repo := &mockRepo{byOrder: map[int64]*Payment{}}
	orders := &mockOrders{orders: map[int64]*order.Order{
		10: {ID: 10, UserID: 1, Total: decimal.NewFromInt(90000), Status: status},
	}}
	return NewService(repo, orders), repo, orders
}

func TestPay(t *testing.T) {
	ctx := context.Background()

	t.Run("settles pending order", func(t *testing.T) {
		svc, repo, orders := newFixture(order.StatusPendingPayment)
		p, err := svc.Pay(ctx, customer, 10, decimal.RequireFromString("90000.00"))
		require.NoError(t, err)
		assert.Regexp(t, regexp.MustCompile(`^PAY_[0-9A-F]{8}$`), p.TransactionID)
		assert.Equal(t, StatusSuccess, p.Status)
		assert.Equal(t, 1, repo.created)
		assert.Equal(t, []int64{10}, orders.confirmed)
		assert.Equal(t, order.StatusPaid, orders.orders[10].Status)
	})

	t.Run("already paid returns existing payment", func(t *testing.T) {
		svc, repo, orders := newFixture(order.StatusPendingPayment)
		first, err := svc.Pay(ctx, customer, 10, decimal.NewFromInt(90000))
		require.NoError(t, err)
		second, err := svc.Pay(ctx, customer, 10, decimal.NewFromInt(90000))
		require.NoError(t, err)
		assert.Equal(t, first.TransactionID, second.TransactionID)
		assert.Equal(t, 1, repo.created)
		assert.Len(t, orders.confirmed, 1)
	})

	t.Run("failed confirmation records nothing", func(t *testing.T) {
		svc, repo, orders := newFixture(order.StatusPendingPayment)
		orders.confirmErr = errors.New("timeout")
		_, err := svc.Pay(ctx, customer, 10, decimal.NewFromInt(90000))
		require.Error(t, err)
		assert.Zero(t, repo.created)

		orders.confirmErr = nil
		_, err = svc.Pay(ctx, customer, 10, decimal.NewFromInt(90000))
		require.NoError(t, err)
		assert.Equal(t, 1, repo.created)
		assert.Equal(t, []int64{10}, orders.confirmed)
	})

	t.Run("retry after failed record", func(t *testing.T) {
		svc, repo, orders := newFixture(order.StatusPendingPayment)
		repo.createErr = errors.New("connection reset")
		_, err := svc.Pay(ctx, customer, 10, decimal.NewFromInt(90000))
		require.Error(t, err)
		assert.Equal(t, order.StatusPaid, orders.orders[10].Status)

		repo.createErr = nil
		p, err := svc.Pay(ctx, customer, 10, decimal.NewFromInt(90000))
		require.NoError(t, err)
		assert.Equal(t, StatusSuccess, p.Status)
		assert.Equal(t, 1, repo.created)
		assert.Equal(t, []int64{10}, orders.confirmed)
	})

	t.Run("order cancelled before confirmation", func(t *testing.T) {
		svc, repo, orders := newFixture(order.StatusPendingPayment)
		orders.beforeConfirm = func() { orders.orders[10].Status = order.StatusCancelled }
		_, err := svc.Pay(ctx, customer, 10, decimal.NewFromInt(90000))
		require.ErrorIs(t, err, order.ErrIllegalTransition)
		assert.Zero(t, repo.created)
		assert.Empty(t, repo.byOrder)
		assert.Equal(t, order.StatusCancelled, orders.orders[10].Status)
	})

	t.Run("amount mismatch", func(t *testing.T) {
		svc, repo, _ := newFixture(order.StatusPendingPayment)
		_, err := svc.Pay(ctx, customer, 10, decimal.NewFromInt(1000))
		require.ErrorIs(t, err, ErrAmountMismatch)
		assert.Zero(t, repo.created)
	})

	t.Run("cancelled order", func(t *testing.T) {
		svc, _, _ := newFixture(order.StatusCancelled)
		_, err := svc.Pay(ctx, customer, 10, decimal.NewFromInt(90000))
		require.ErrorIs(t, err, order.ErrIllegalTransition)
	})

	t.Run("someone else's order", func(t *testing.T) {
		svc, _, _ := newFixture(order.StatusPendingPayment)
		other := &session.Session{UserID: 2, Role: session.RoleCustomer}
		_, err := svc.Pay(ctx, other, 10, decimal.NewFromInt(90000))
		require.ErrorIs(t, err, order.ErrNotFound)
	})
}

func TestHistory(t *testing.T) {
	ctx := context.Background()
	svc, repo, _ := newFixture(order.StatusPendingPayment)
	_, err := svc.Pay(ctx, customer, 10, decimal.NewFromInt(90000))
	require.NoError(t, err)
	repo.byOrder[77] = &Payment{ID: 9, OrderID: 77, UserID: 2, Status: StatusSuccess}

	got, err := svc.History(ctx, customer)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, int64(10), got[0].OrderID)

	seller := &session.Session{UserID: 5, Role: session.RoleSeller, SellerMode: session.ModeOwner, BranchID: 3}
	_, err = svc.History(ctx, seller)
	require.ErrorIs(t, err, session.ErrForbidden)
}
