package event

import "errors"

// Sentinel errors for the event package.
var (
	// ErrBusClosed is returned when subscribing to a closed bus.
	ErrBusClosed = errors.New("event bus is closed")

	// ErrNilHandler is returned when subscribing with a nil handler.
	ErrNilHandler = errors.New("nil event handler")

	// ErrEmptyTopic is returned when subscribing to an empty topic.
	ErrEmptyTopic = errors.New("empty topic")
)
