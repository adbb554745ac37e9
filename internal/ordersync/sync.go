// Package ordersync keeps a local order list fresh by polling, without
// clobbering status changes the user has just made.
package ordersync

import (
	"context"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/xenking/foodcart/internal/domain/order"
)

const defaultInterval = 5 * time.Second

var (
	// ErrRunning is returned by Start when the synchronizer already polls.
	ErrRunning = errors.New("synchronizer already running")
	// ErrUnknownOrder is returned by Mutate for an order not in the view.
	ErrUnknownOrder = errors.New("order not in view")
	// ErrMutationInFlight is returned by Mutate while another change to the
	// same order is outstanding.
	ErrMutationInFlight = errors.New("order has a pending change")
)

// Source lists the orders the view shows.
type Source interface {
	ListOrders(ctx context.Context) ([]order.Order, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context) ([]order.Order, error)

// ListOrders calls f.
func (f SourceFunc) ListOrders(ctx context.Context) ([]order.Order, error) { return f(ctx) }

// Options configures a Synchronizer.
type Options struct {
	Interval       time.Duration
	Logger         *zap.Logger
	TracerProvider trace.TracerProvider
	// Actor is who Mutate changes orders as. Defaults to the seller.
	Actor order.Actor
	// OnChange receives a copy of the view after every change. It is called
	// without holding any lock.
	OnChange func([]order.Order)
}

func (o *Options) setDefaults() {
	if o.Interval <= 0 {
		o.Interval = defaultInterval
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	if o.TracerProvider == nil {
		o.TracerProvider = noop.NewTracerProvider()
	}
	if o.Actor == "" {
		o.Actor = order.ActorSeller
	}
}

// Synchronizer owns an order view refreshed from a Source.
//
// A refresh replaces the view wholesale, except for orders with a mutation
// in flight and orders whose mutation settled after the refresh started.
type Synchronizer struct {
	src      Source
	interval time.Duration
	lg       *zap.Logger
	tracer   trace.Tracer
	actor    order.Actor
	onChange func([]order.Order)

	mu      sync.Mutex
	view    []order.Order
	pending map[int64]struct{}
	// settled maps an order to the generation its last mutation settled at.
	settled map[int64]uint64
	gen     uint64

	runMu  sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a stopped Synchronizer.
func New(src Source, opts Options) *Synchronizer {
	opts.setDefaults()
	return &Synchronizer{
		src:      src,
		interval: opts.Interval,
		lg:       opts.Logger,
		tracer:   opts.TracerProvider.Tracer("foodcart/ordersync"),
		actor:    opts.Actor,
		onChange: opts.OnChange,
		pending:  map[int64]struct{}{},
		settled:  map[int64]uint64{},
	}
}

// Start begins polling: one refresh immediately, then one per interval,
// until Stop is called or ctx is done.
func (s *Synchronizer) Start(ctx context.Context) error {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	if s.cancel != nil {
		return ErrRunning
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	s.cancel, s.done = cancel, done

	go func() {
		defer close(done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			if err := s.Refresh(ctx); err != nil && ctx.Err() == nil {
				s.lg.Warn("Order refresh failed", zap.Error(err))
			}
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
	return nil
}

// Stop cancels polling and waits for the loop to exit. Stopping a stopped
// Synchronizer is a no-op.
func (s *Synchronizer) Stop() {
	s.runMu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.runMu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Refresh fetches the orders once and merges them into the view. The fetch
// runs without holding the view lock.
func (s *Synchronizer) Refresh(ctx context.Context) error {
	ctx, span := s.tracer.Start(ctx, "ordersync.Refresh")
	defer span.End()

	s.mu.Lock()
	startGen := s.gen
	s.mu.Unlock()

	fetched, err := s.src.ListOrders(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return errors.Wrap(err, "list orders")
	}

	s.mu.Lock()
	local := make(map[int64]order.Order, len(s.view))
	for _, o := range s.view {
		local[o.ID] = o
	}
	kept := 0
	next := make([]order.Order, 0, len(fetched))
	for _, o := range fetched {
		if s.protected(o.ID, startGen) {
			if l, ok := local[o.ID]; ok {
				o = l
				kept++
			}
		}
		next = append(next, o)
	}
	for id, g := range s.settled {
		if g <= startGen {
			delete(s.settled, id)
		}
	}
	s.view = next
	snap := s.snapshotLocked()
	s.mu.Unlock()

	span.SetAttributes(
		attribute.Int("orders", len(next)),
		attribute.Int("kept_local", kept),
	)
	s.notify(snap)
	return nil
}

func (s *Synchronizer) protected(id int64, startGen uint64) bool {
	if _, ok := s.pending[id]; ok {
		return true
	}
	return s.settled[id] > startGen
}

// Mutate shows the order in status `to` right away, then runs call. The
// view settles on the order call returns, or reverts if it fails. Polls
// never overwrite the order while call is outstanding.
//
// A change the actor may not make from the order's current status fails
// with *order.IllegalTransitionError without running call. A call that
// returns no order and no error keeps the requested status.
func (s *Synchronizer) Mutate(ctx context.Context, id int64, to order.Status, call func(ctx context.Context) (*order.Order, error)) (*order.Order, error) {
	s.mu.Lock()
	idx := s.indexLocked(id)
	if idx < 0 {
		s.mu.Unlock()
		return nil, ErrUnknownOrder
	}
	if _, ok := s.pending[id]; ok {
		s.mu.Unlock()
		return nil, ErrMutationInFlight
	}
	prev := s.view[idx]
	if err := order.CanTransition(prev.Status, to, s.actor); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	s.view[idx].Status = to
	s.pending[id] = struct{}{}
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.notify(snap)

	res, err := call(ctx)
	if err == nil && res == nil {
		settled := prev
		settled.Status = to
		res = &settled
	}

	s.mu.Lock()
	delete(s.pending, id)
	s.gen++
	s.settled[id] = s.gen
	if idx := s.indexLocked(id); idx >= 0 {
		if err != nil {
			s.view[idx] = prev
		} else {
			s.view[idx] = *res
		}
	}
	snap = s.snapshotLocked()
	s.mu.Unlock()
	s.notify(snap)

	if err != nil {
		return nil, err
	}
	return res, nil
}

// Snapshot returns a copy of the current view.
func (s *Synchronizer) Snapshot() []order.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Pending reports whether a mutation of the order is outstanding.
func (s *Synchronizer) Pending(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.pending[id]
	return ok
}

func (s *Synchronizer) indexLocked(id int64) int {
	for i := range s.view {
		if s.view[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Synchronizer) snapshotLocked() []order.Order {
	out := make([]order.Order, len(s.view))
	copy(out, s.view)
	return out
}

func (s *Synchronizer) notify(snap []order.Order) {
	if s.onChange != nil {
		s.onChange(snap)
	}
}
