package event

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Bus is a thread-safe publish-subscribe event bus with typed payloads.
//
// Bus is safe for concurrent use.
type Bus struct {
	mu sync.RWMutex

	// subs holds subscriptions in registration order.
	subs []*Subscription

	closed atomic.Bool
	logger *slog.Logger

	// Stats
	published atomic.Uint64
	delivered atomic.Uint64
	panics    atomic.Uint64
}

// Stats contains bus counters.
type Stats struct {
	// Published is the number of Publish calls on an open bus.
	Published uint64

	// Delivered is the number of successful handler invocations.
	Delivered uint64

	// Panics is the number of handler invocations that panicked.
	Panics uint64

	// Subscribers is the current number of active subscriptions.
	Subscribers int
}

// BusOption configures a Bus.
type BusOption func(*Bus)

// WithLogger sets the logger used to report handler panics.
func WithLogger(l *slog.Logger) BusOption {
	return func(b *Bus) {
		if l != nil {
			b.logger = l
		}
	}
}

// NewBus creates a new event bus.
func NewBus(opts ...BusOption) *Bus {
	b := &Bus{
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscribe registers handler for topic t, which may be a pattern.
func (b *Bus) Subscribe(t Topic, handler Handler) (*Subscription, error) {
	if handler == nil {
		return nil, ErrNilHandler
	}
	if t == "" {
		return nil, ErrEmptyTopic
	}

	sub := &Subscription{
		id:      uuid.NewString(),
		topic:   t,
		handler: handler,
		bus:     b,
	}
	sub.active.Store(true)

	b.mu.Lock()
	defer b.mu.Unlock()

	// Checked under lock so Close cannot race a late subscriber in.
	if b.closed.Load() {
		return nil, ErrBusClosed
	}
	b.subs = append(b.subs, sub)
	return sub, nil
}

// On subscribes a handler that only receives payloads of type T published
// on topic t. Events with other payload types are ignored.
func On[T any](b *Bus, t Topic, fn func(payload T)) (*Subscription, error) {
	if fn == nil {
		return nil, ErrNilHandler
	}
	return b.Subscribe(t, func(e Event) {
		if p, ok := e.Payload.(T); ok {
			fn(p)
		}
	})
}

// Publish delivers payload to every subscription matching t, in
// subscription order, in the calling goroutine.
func (b *Bus) Publish(t Topic, payload any) {
	if b.closed.Load() {
		return
	}
	b.published.Add(1)

	e := Event{Topic: t, Payload: payload, Time: time.Now()}
	for _, sub := range b.matching(t) {
		if sub.deliver(e, b.onPanic) {
			b.delivered.Add(1)
		}
	}
}

// Close removes every subscription, waiting for in-flight deliveries.
// Publishing on a closed bus is a no-op. Close is idempotent.
func (b *Bus) Close() {
	if b.closed.Swap(true) {
		return
	}

	b.mu.Lock()
	subs := b.subs
	b.subs = nil
	b.mu.Unlock()

	for _, sub := range subs {
		sub.active.Store(false)
		sub.deliverMu.Lock()
		//nolint:staticcheck // wait out the current delivery
		sub.deliverMu.Unlock()
	}
}

// IsClosed reports whether Close was called.
func (b *Bus) IsClosed() bool {
	return b.closed.Load()
}

// SubscriptionCount returns the number of active subscriptions.
func (b *Bus) SubscriptionCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Stats returns a snapshot of the bus counters.
func (b *Bus) Stats() Stats {
	return Stats{
		Published:   b.published.Load(),
		Delivered:   b.delivered.Load(),
		Panics:      b.panics.Load(),
		Subscribers: b.SubscriptionCount(),
	}
}

// matching returns a snapshot of subscriptions that match t.
func (b *Bus) matching(t Topic) []*Subscription {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var out []*Subscription
	for _, sub := range b.subs {
		if sub.topic.Matches(t) {
			out = append(out, sub)
		}
	}
	return out
}

// remove drops a subscription by ID.
func (b *Bus) remove(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, sub := range b.subs {
		if sub.id == id {
			b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
			return
		}
	}
}

func (b *Bus) onPanic(e Event, s *Subscription, r any) {
	b.panics.Add(1)
	b.logger.Error("event handler panicked",
		"topic", string(e.Topic),
		"subscription", s.id,
		"panic", r,
	)
}

var _ Publisher = (*Bus)(nil)
