package ordersync

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/foodcart/internal/domain/order"
)

// fakeSource serves a mutable server-side order list.
type fakeSource struct {
	mu     sync.Mutex
	orders []order.Order
	err    error
	calls  atomic.Int32
	// gate, when set, blocks ListOrders after it captured its result until
	// the channel is closed. started is closed once the result is captured.
	gate    chan struct{}
	started chan struct{}
}

func (f *fakeSource) set(orders ...order.Order) {
	f.mu.Lock()
	f.orders = orders
	f.mu.Unlock()
}

func (f *fakeSource) setStatus(id int64, st order.Status) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.orders {
		if f.orders[i].ID == id {
			f.orders[i].Status = st
		}
	}
}

func (f *fakeSource) ListOrders(ctx context.Context) ([]order.Order, error) {
	f.calls.Add(1)
	f.mu.Lock()
	out := make([]order.Order, len(f.orders))
	copy(out, f.orders)
	err := f.err
	gate, started := f.gate, f.started
	f.mu.Unlock()

	if gate != nil {
		close(started)
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return out, err
}

func statuses(orders []order.Order) map[int64]order.Status {
	out := make(map[int64]order.Status, len(orders))
	for _, o := range orders {
		out[o.ID] = o.Status
	}
	return out
}

func TestRefresh_ReplacesView(t *testing.T) {
	ctx := context.Background()
	src := &fakeSource{}
	src.set(order.Order{ID: 1, Status: order.StatusPaid}, order.Order{ID: 2, Status: order.StatusPendingPayment})

	var changes atomic.Int32
	s := New(src, Options{OnChange: func([]order.Order) { changes.Add(1) }})
	require.NoError(t, s.Refresh(ctx))
	assert.Len(t, s.Snapshot(), 2)

	src.set(order.Order{ID: 2, Status: order.StatusCancelled})
	require.NoError(t, s.Refresh(ctx))
	assert.Equal(t, map[int64]order.Status{2: order.StatusCancelled}, statuses(s.Snapshot()))
	assert.Equal(t, int32(2), changes.Load())
}

func TestRefresh_ErrorKeepsView(t *testing.T) {
	ctx := context.Background()
	src := &fakeSource{}
	src.set(order.Order{ID: 1, Status: order.StatusPaid})
	s := New(src, Options{})
	require.NoError(t, s.Refresh(ctx))

	src.mu.Lock()
	src.err = errors.New("503")
	src.mu.Unlock()
	require.Error(t, s.Refresh(ctx))
	assert.Len(t, s.Snapshot(), 1)
}

func TestMutate_OptimisticThenSettled(t *testing.T) {
	ctx := context.Background()
	src := &fakeSource{}
	src.set(order.Order{ID: 1, Status: order.StatusPaid})
	s := New(src, Options{})
	require.NoError(t, s.Refresh(ctx))

	var seenDuringCall order.Status
	res, err := s.Mutate(ctx, 1, order.StatusShipping, func(context.Context) (*order.Order, error) {
		seenDuringCall = s.Snapshot()[0].Status
		assert.True(t, s.Pending(1))
		src.setStatus(1, order.StatusShipping)
		return &order.Order{ID: 1, Status: order.StatusShipping}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, order.StatusShipping, res.Status)
	assert.Equal(t, order.StatusShipping, seenDuringCall)
	assert.False(t, s.Pending(1))
}

func TestMutate_RevertsOnFailure(t *testing.T) {
	ctx := context.Background()
	src := &fakeSource{}
	src.set(order.Order{ID: 1, Status: order.StatusPaid})
	s := New(src, Options{})
	require.NoError(t, s.Refresh(ctx))

	_, err := s.Mutate(ctx, 1, order.StatusCancelled, func(context.Context) (*order.Order, error) {
		return nil, errors.New("network down")
	})
	require.Error(t, err)
	assert.Equal(t, order.StatusPaid, s.Snapshot()[0].Status)
}

func TestMutate_Errors(t *testing.T) {
	ctx := context.Background()
	src := &fakeSource{}
	src.set(order.Order{ID: 1, Status: order.StatusPaid})
	s := New(src, Options{})
	require.NoError(t, s.Refresh(ctx))

	_, err := s.Mutate(ctx, 99, order.StatusCancelled, nil)
	require.ErrorIs(t, err, ErrUnknownOrder)

	_, err = s.Mutate(ctx, 1, order.StatusShipping, func(ctx context.Context) (*order.Order, error) {
		_, inner := s.Mutate(ctx, 1, order.StatusCancelled, nil)
		require.ErrorIs(t, inner, ErrMutationInFlight)
		return &order.Order{ID: 1, Status: order.StatusShipping}, nil
	})
	require.NoError(t, err)
}

func TestMutate_RefusesIllegalTransition(t *testing.T) {
	ctx := context.Background()
	src := &fakeSource{}
	src.set(order.Order{ID: 1, Status: order.StatusPaid})

	var changes atomic.Int32
	s := New(src, Options{OnChange: func([]order.Order) { changes.Add(1) }})
	require.NoError(t, s.Refresh(ctx))

	called := false
	_, err := s.Mutate(ctx, 1, order.StatusCompleted, func(context.Context) (*order.Order, error) {
		called = true
		return &order.Order{ID: 1, Status: order.StatusCompleted}, nil
	})
	require.ErrorIs(t, err, order.ErrIllegalTransition)
	var ite *order.IllegalTransitionError
	require.ErrorAs(t, err, &ite)
	assert.Equal(t, order.ActorSeller, ite.Actor)

	assert.False(t, called)
	assert.False(t, s.Pending(1))
	assert.Equal(t, order.StatusPaid, s.Snapshot()[0].Status)
	assert.Equal(t, int32(1), changes.Load(), "only the refresh notified")
}

func TestMutate_ActorOption(t *testing.T) {
	ctx := context.Background()
	src := &fakeSource{}
	src.set(order.Order{ID: 1, Status: order.StatusPaid})
	s := New(src, Options{Actor: order.ActorCustomer})
	require.NoError(t, s.Refresh(ctx))

	_, err := s.Mutate(ctx, 1, order.StatusShipping, nil)
	require.ErrorIs(t, err, order.ErrIllegalTransition)

	res, err := s.Mutate(ctx, 1, order.StatusCancelled, func(context.Context) (*order.Order, error) {
		return &order.Order{ID: 1, Status: order.StatusCancelled}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, order.StatusCancelled, res.Status)
}

func TestMutate_EmptyResultKeepsRequestedStatus(t *testing.T) {
	ctx := context.Background()
	src := &fakeSource{}
	src.set(order.Order{ID: 1, Status: order.StatusPaid, Customer: order.Customer{Name: "Lan"}})
	s := New(src, Options{})
	require.NoError(t, s.Refresh(ctx))

	res, err := s.Mutate(ctx, 1, order.StatusShipping, func(context.Context) (*order.Order, error) {
		return nil, nil
	})
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, order.StatusShipping, res.Status)
	assert.Equal(t, "Lan", res.Customer.Name)
	assert.Equal(t, order.StatusShipping, s.Snapshot()[0].Status)
	assert.False(t, s.Pending(1))
}

func TestRefresh_DuringMutationKeepsOptimisticStatus(t *testing.T) {
	ctx := context.Background()
	src := &fakeSource{}
	src.set(order.Order{ID: 1, Status: order.StatusPaid}, order.Order{ID: 2, Status: order.StatusPaid})
	s := New(src, Options{})
	require.NoError(t, s.Refresh(ctx))

	_, err := s.Mutate(ctx, 1, order.StatusCancelled, func(ctx context.Context) (*order.Order, error) {
		// Server has not applied the cancel yet; order 2 moved meanwhile.
		src.setStatus(2, order.StatusShipping)
		require.NoError(t, s.Refresh(ctx))
		got := statuses(s.Snapshot())
		assert.Equal(t, order.StatusCancelled, got[1])
		assert.Equal(t, order.StatusShipping, got[2])
		return &order.Order{ID: 1, Status: order.StatusCancelled}, nil
	})
	require.NoError(t, err)
}

func TestRefresh_StartedBeforeSettleDoesNotClobber(t *testing.T) {
	ctx := context.Background()
	src := &fakeSource{}
	src.set(order.Order{ID: 1, Status: order.StatusPaid})
	s := New(src, Options{})
	require.NoError(t, s.Refresh(ctx))

	src.mu.Lock()
	src.gate = make(chan struct{})
	src.started = make(chan struct{})
	gate, started := src.gate, src.started
	src.mu.Unlock()

	refreshed := make(chan error, 1)
	go func() { refreshed <- s.Refresh(ctx) }()
	<-started

	src.mu.Lock()
	src.gate, src.started = nil, nil
	src.mu.Unlock()

	_, err := s.Mutate(ctx, 1, order.StatusShipping, func(context.Context) (*order.Order, error) {
		return &order.Order{ID: 1, Status: order.StatusShipping}, nil
	})
	require.NoError(t, err)

	close(gate)
	require.NoError(t, <-refreshed)
	assert.Equal(t, order.StatusShipping, s.Snapshot()[0].Status)

	// The next poll sees the server state again.
	src.setStatus(1, order.StatusCompleted)
	require.NoError(t, s.Refresh(ctx))
	assert.Equal(t, order.StatusCompleted, s.Snapshot()[0].Status)
}

func TestStartStop(t *testing.T) {
	src := &fakeSource{}
	src.set(order.Order{ID: 1, Status: order.StatusPaid})
	s := New(src, Options{Interval: 5 * time.Millisecond})

	require.NoError(t, s.Start(context.Background()))
	require.ErrorIs(t, s.Start(context.Background()), ErrRunning)

	require.Eventually(t, func() bool { return src.calls.Load() >= 3 }, time.Second, time.Millisecond)
	s.Stop()
	after := src.calls.Load()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, after, src.calls.Load())

	s.Stop()
	require.NoError(t, s.Start(context.Background()))
	s.Stop()
}

func TestStart_StopsOnContextCancel(t *testing.T) {
	src := &fakeSource{}
	s := New(src, Options{Interval: 5 * time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, s.Start(ctx))
	require.Eventually(t, func() bool { return src.calls.Load() >= 1 }, time.Second, time.Millisecond)
	cancel()

	s.runMu.Lock()
	done := s.done
	s.runMu.Unlock()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("poll loop did not exit")
	}
	s.Stop()
}
