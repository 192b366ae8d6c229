package eventhub

import (
	"DeskRelay/internal/core/domain"
	"DeskRelay/internal/core/ports"
	"context"
	"sync"

	"github.com/rs/zerolog"
)

// subscription ties a handle to its handler. Slice order is
// registration order, which is also dispatch order.
type subscription struct {
	handle  ports.Handle
	handler ports.EventHandler
}

// inMemoryHub implements the ports.EventHub interface
type inMemoryHub struct {
	log         zerolog.Logger
	subscribers map[domain.EventName][]subscription
	nextHandle  ports.Handle
	mu          sync.RWMutex
}

var _ ports.EventHub = (*inMemoryHub)(nil) // Ensure compliance

// NewInMemoryHub creates a new, empty event hub.
// Each hub instance keeps its own registry and handle sequence.
func NewInMemoryHub(baseLogger *zerolog.Logger) ports.EventHub {
	return &inMemoryHub{
		log:         baseLogger.With().Str("component", "in_memory_hub").Logger(),
		subscribers: make(map[domain.EventName][]subscription),
	}
}

// Subscribe registers a handler for an event name.
// Unknown names and nil handlers are rejected without touching the registry.
func (h *inMemoryHub) Subscribe(event domain.EventName, handler ports.EventHandler) (ports.Handle, bool) {
	if !event.Valid() {
		h.log.Debug().Str("event", string(event)).Msg("Rejected subscription for unknown event name")
		return 0, false
	}
	if handler == nil {
		h.log.Debug().Str("event", string(event)).Msg("Rejected subscription with nil handler")
		return 0, false
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	// Handles are never reused, so a stale unsubscribe can't remove
	// a later subscriber by accident.
	h.nextHandle++
	handle := h.nextHandle

	h.subscribers[event] = append(h.subscribers[event], subscription{handle: handle, handler: handler})
	h.log.Info().Str("event", string(event)).Uint64("handle", uint64(handle)).Msg("New handler subscribed to event")
	return handle, true
}

// Unsubscribe removes the subscription matching both the event name and
// the handle. Removing the slice entry also drops the last reference to
// the handler.
func (h *inMemoryHub) Unsubscribe(event domain.EventName, handle ports.Handle) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	subs := h.subscribers[event]
	for i, sub := range subs {
		if sub.handle != handle {
			continue
		}
		h.subscribers[event] = append(subs[:i], subs[i+1:]...)
		h.log.Info().Str("event", string(event)).Uint64("handle", uint64(handle)).Msg("Handler unsubscribed from event")
		return true
	}

	h.log.Debug().Str("event", string(event)).Uint64("handle", uint64(handle)).Msg("Unsubscribe matched no subscription")
	return false
}

// Dispatch invokes every current subscriber for the event, one after the
// other, in the order they subscribed. A failing handler never prevents
// the remaining ones from running.
func (h *inMemoryHub) Dispatch(ctx context.Context, event domain.EventName, payload interface{}) {
	h.mu.RLock()
	registered := h.subscribers[event]
	// Copy under the read lock so a handler that (un)subscribes during
	// dispatch can't shift entries out from under this delivery.
	subs := make([]subscription, len(registered))
	copy(subs, registered)
	h.mu.RUnlock()

	if len(subs) == 0 {
		// No subscribers for this event, which is fine
		h.log.Debug().Str("event", string(event)).Msg("Dispatched event with no subscribers")
		return
	}

	evt := ports.Event{
		Name:    event,
		Payload: payload,
	}

	for _, sub := range subs {
		h.invoke(ctx, evt, sub)
	}

	h.log.Debug().Str("event", string(event)).Int("handlers", len(subs)).Msg("Event dispatched")
}

// invoke runs a single handler, turning a panic into a logged error so
// the subscribers after it still run.
func (h *inMemoryHub) invoke(ctx context.Context, evt ports.Event, sub subscription) {
	defer func() {
		if r := recover(); r != nil {
			h.log.Error().
				Interface("panic", r).
				Str("event", string(evt.Name)).
				Uint64("handle", uint64(sub.handle)).
				Msg("Event handler panicked")
		}
	}()

	if err := sub.handler(ctx, evt); err != nil {
		h.log.Error().
			Err(err).
			Str("event", string(evt.Name)).
			Uint64("handle", uint64(sub.handle)).
			Msg("Event handler failed")
	}
}
