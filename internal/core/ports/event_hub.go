package ports

import (
	"DeskRelay/internal/core/domain"
	"context"
)

// Handle identifies a single subscription on the hub.
// Handles are unique for the lifetime of a hub; zero is never issued.
type Handle uint64

// Event is a generic wrapper for any event payload
type Event struct {
	Name    domain.EventName
	Payload interface{}
}

// EventHandler is a function that can handle a specific event
type EventHandler func(ctx context.Context, event Event) error

// EventHub defines the interface for our in-process pub/sub system
type EventHub interface {
	// Subscribe registers a handler for an event name. It reports false
	// (with a zero handle) when the name is unknown or the handler is nil.
	Subscribe(event domain.EventName, handler EventHandler) (Handle, bool)

	// Unsubscribe removes the subscription matching both the event name
	// and the handle, reporting whether one was found.
	Unsubscribe(event domain.EventName, handle Handle) bool

	// Dispatch delivers an event to all current subscribers of the name,
	// synchronously and in subscription order.
	Dispatch(ctx context.Context, event domain.EventName, payload interface{})
}
