// internal/publisher/dispatcher.go
package publisher

import (
	"context"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/tamzrod/weather-station/internal/poller"
)

// DataFunc receives one Data item. The map is shared between subscribers: read only.
type DataFunc func(data poller.Data)

// ErrorFunc receives one Failure item.
type ErrorFunc func(failure poller.Failure)

type subscription struct {
	id   uint64
	data DataFunc
	err  ErrorFunc
}

// Dispatcher fans poll items out to subscribers.
// Items are delivered in queue order; within an item, subscribers are called
// one at a time in registration order. A slow callback holds up everything behind it.
type Dispatcher struct {
	in     <-chan poller.Item
	logger *zap.Logger

	mu       sync.Mutex
	lastID   uint64
	subs     []subscription
	observer func(poller.Item)

	// >0 while an item is being delivered
	dispatching atomic.Int32
}

// New creates a dispatcher reading from in. Call Run to start draining.
func New(in <-chan poller.Item, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		in:     in,
		logger: logger.Named("publisher"),
	}
}

// Subscribe registers callbacks and returns the subscription id.
// Ids start at 1 and are never reused. errFn may be nil: failures are then skipped.
func (d *Dispatcher) Subscribe(data DataFunc, errFn ErrorFunc) uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.lastID++
	d.subs = append(d.subs, subscription{id: d.lastID, data: data, err: errFn})

	d.logger.Debug("subscribed",
		zap.Uint64("subscription", d.lastID),
		zap.Bool("errors", errFn != nil),
	)
	return d.lastID
}

// Unsubscribe removes a subscription. Unknown ids are logged and ignored.
// Once it returns, no item dispatched afterwards reaches the subscription.
func (d *Dispatcher) Unsubscribe(id uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for i, s := range d.subs {
		if s.id == id {
			d.subs = append(d.subs[:i:i], d.subs[i+1:]...)
			d.logger.Debug("unsubscribed", zap.Uint64("subscription", id))
			return
		}
	}

	d.logger.Warn("unsubscribe: no such subscription", zap.Uint64("subscription", id))
}

// Observe installs fn to see every item before the subscribers do.
// The observer is not a subscription: it takes no id and cannot be unsubscribed.
func (d *Dispatcher) Observe(fn func(poller.Item)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.observer = fn
}

// Len is the number of live subscriptions.
func (d *Dispatcher) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.subs)
}

// Dispatching reports whether an item is being delivered right now.
// Called from inside a callback it is always true.
func (d *Dispatcher) Dispatching() bool {
	return d.dispatching.Load() > 0
}

// Run drains the queue until ctx is cancelled or the queue is closed.
func (d *Dispatcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case item, ok := <-d.in:
			if !ok {
				return
			}
			d.Dispatch(item)
		}
	}
}

// Dispatch delivers one item to the current subscribers, synchronously.
func (d *Dispatcher) Dispatch(item poller.Item) {
	d.dispatching.Add(1)
	defer d.dispatching.Add(-1)

	subs, observer := d.snapshot()
	if observer != nil {
		d.invoke(0, "observer", func() { observer(item) })
	}

	for _, s := range subs {
		// callbacks may unsubscribe others (or themselves) mid-item
		if !d.active(s.id) {
			continue
		}

		if item.IsFailure() {
			if s.err == nil {
				continue
			}
			failure := *item.Failure
			d.invoke(s.id, "error", func() { s.err(failure) })
			continue
		}

		if s.data == nil {
			continue
		}
		d.invoke(s.id, "data", func() { s.data(item.Data) })
	}
}

func (d *Dispatcher) snapshot() ([]subscription, func(poller.Item)) {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make([]subscription, len(d.subs))
	copy(out, d.subs)
	return out, d.observer
}

func (d *Dispatcher) active(id uint64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, s := range d.subs {
		if s.id == id {
			return true
		}
	}
	return false
}

// invoke runs one callback. A panic stops at this boundary so later subscribers still get the item.
func (d *Dispatcher) invoke(id uint64, kind string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("subscriber callback failed",
				zap.Uint64("subscription", id),
				zap.String("callback", kind),
				zap.Any("panic", r),
			)
		}
	}()
	fn()
}
