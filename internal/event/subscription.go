package event

import (
	"sync"
	"sync/atomic"
)

// Subscription is a registered handler on a topic or topic pattern.
type Subscription struct {
	id      string
	topic   Topic
	handler Handler
	bus     *Bus

	// deliverMu is held for the whole duration of a handler call. Taking it
	// in Unsubscribe waits out an in-flight delivery.
	deliverMu sync.Mutex
	active    atomic.Bool
}

// ID returns the unique subscription identifier.
func (s *Subscription) ID() string {
	return s.id
}

// Topic returns the subscribed topic or pattern.
func (s *Subscription) Topic() Topic {
	return s.topic
}

// IsActive reports whether the subscription still receives events.
func (s *Subscription) IsActive() bool {
	return s.active.Load()
}

// Unsubscribe removes the subscription and waits for any in-flight
// delivery to finish. After it returns the handler will not run again.
// It is safe to call more than once.
func (s *Subscription) Unsubscribe() {
	s.Cancel()
	s.deliverMu.Lock()
	//nolint:staticcheck // empty critical section waits out the current delivery
	s.deliverMu.Unlock()
}

// Cancel removes the subscription without waiting for an in-flight
// delivery. It is the variant to use from inside the handler itself.
func (s *Subscription) Cancel() {
	if !s.active.Swap(false) {
		return
	}
	if s.bus != nil {
		s.bus.remove(s.id)
	}
}

// deliver invokes the handler if the subscription is still active.
// It returns false if the handler panicked.
func (s *Subscription) deliver(e Event, onPanic func(e Event, s *Subscription, r any)) bool {
	s.deliverMu.Lock()
	defer s.deliverMu.Unlock()

	if !s.active.Load() {
		return true
	}

	ok := true
	func() {
		defer func() {
			if r := recover(); r != nil {
				ok = false
				if onPanic != nil {
					onPanic(e, s, r)
				}
			}
		}()
		s.handler(e)
	}()
	return ok
}
