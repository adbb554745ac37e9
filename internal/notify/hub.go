// Package notify pushes branch events, such as a newly placed order, to the
// sellers connected for that branch.
package notify

import (
	"context"
	"sync"
	"time"

	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/foodcart/internal/domain/order"
)

// EventType names what happened.
type EventType string

// EventNewOrder announces an order placed at the branch.
const EventNewOrder EventType = "NEW_ORDER"

// Event is one message for a branch.
type Event struct {
	Type     EventType
	BranchID int64
	OrderID  int64
	Total    decimal.Decimal
	At       time.Time
}

const defaultBuffer = 16

type subscription struct {
	ch   chan Event
	once sync.Once
}

// Hub fans events out to per-branch subscribers. Publish never blocks: a
// subscriber whose buffer is full misses the event.
type Hub struct {
	lg     *zap.Logger
	buffer int
	now    func() time.Time

	mu   sync.Mutex
	subs map[int64]map[*subscription]struct{}
}

// NewHub creates a Hub.
func NewHub(lg *zap.Logger) *Hub {
	if lg == nil {
		lg = zap.NewNop()
	}
	return &Hub{
		lg:     lg,
		buffer: defaultBuffer,
		now:    time.Now,
		subs:   map[int64]map[*subscription]struct{}{},
	}
}

// Subscribe registers for branchID's events. The returned function
// unsubscribes and closes the channel; calling it again is a no-op.
func (h *Hub) Subscribe(branchID int64) (<-chan Event, func()) {
	sub := &subscription{ch: make(chan Event, h.buffer)}

	h.mu.Lock()
	set, ok := h.subs[branchID]
	if !ok {
		set = map[*subscription]struct{}{}
		h.subs[branchID] = set
	}
	set[sub] = struct{}{}
	h.mu.Unlock()

	return sub.ch, func() {
		sub.once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			delete(set, sub)
			if len(set) == 0 {
				delete(h.subs, branchID)
			}
			close(sub.ch)
		})
	}
}

// Subscribers returns how many listeners branchID has.
func (h *Hub) Subscribers(branchID int64) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[branchID])
}

// Publish delivers ev to the subscribers of its branch and returns how many
// received it.
func (h *Hub) Publish(ev Event) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	delivered := 0
	for sub := range h.subs[ev.BranchID] {
		select {
		case sub.ch <- ev:
			delivered++
		default:
			h.lg.Warn("Dropped event for slow subscriber",
				zap.Int64("branch_id", ev.BranchID),
				zap.String("type", string(ev.Type)),
			)
		}
	}
	return delivered
}

// OrderPlaced announces o to its branch.
func (h *Hub) OrderPlaced(ctx context.Context, o *order.Order) {
	n := h.Publish(Event{
		Type:     EventNewOrder,
		BranchID: o.BranchID,
		OrderID:  o.ID,
		Total:    o.Total,
		At:       h.now(),
	})
	zctx.From(ctx).Debug("New order announced",
		zap.Int64("order_id", o.ID),
		zap.Int64("branch_id", o.BranchID),
		zap.Int("listeners", n),
	)
}
