package relay

import (
	"DeskRelay/internal/core/domain"
	"DeskRelay/internal/core/ports"
	"context"
	"fmt"

	"github.com/rs/zerolog"
)

// forwardedEvents are the hub events worth announcing in chat. Count
// updates are too chatty to forward.
var forwardedEvents = []domain.EventName{
	domain.EventCallConnected,
	domain.EventCallDisconnected,
	domain.EventMeetingStarted,
}

// Forwarder re-emits selected hub events as chat notifications.
type Forwarder struct {
	hub      ports.EventHub
	notifier ports.NotifierPort
	log      zerolog.Logger
	handles  map[domain.EventName]ports.Handle
}

// NewForwarder subscribes the notifier to call and meeting events.
func NewForwarder(hub ports.EventHub, notifier ports.NotifierPort, baseLogger *zerolog.Logger) *Forwarder {
	f := &Forwarder{
		hub:      hub,
		notifier: notifier,
		log:      baseLogger.With().Str("component", "forwarder").Logger(),
		handles:  make(map[domain.EventName]ports.Handle),
	}

	for _, name := range forwardedEvents {
		handle, ok := hub.Subscribe(name, f.handleEvent)
		if !ok {
			// forwardedEvents only holds supported names, so this
			// can't happen outside a broken hub.
			f.log.Error().Str("event", string(name)).Msg("Hub rejected forwarder subscription")
			continue
		}
		f.handles[name] = handle
	}

	f.log.Info().Int("events", len(f.handles)).Msg("Forwarder attached to hub")
	return f
}

// Detach removes the forwarder's subscriptions from the hub.
func (f *Forwarder) Detach() {
	for name, handle := range f.handles {
		f.hub.Unsubscribe(name, handle)
		delete(f.handles, name)
	}
	f.log.Info().Msg("Forwarder detached from hub")
}

// handleEvent sends one notification per forwarded event. Errors
// propagate to the hub, which logs them without affecting the other
// subscribers.
func (f *Forwarder) handleEvent(ctx context.Context, evt ports.Event) error {
	text, ok := FormatNotification(evt)
	if !ok {
		return nil
	}
	return f.notifier.Notify(ctx, text)
}

// FormatNotification renders the chat text for a forwarded event.
// Events the forwarder doesn't announce return ok=false.
func FormatNotification(evt ports.Event) (string, bool) {
	switch evt.Name {
	case domain.EventCallConnected:
		return "Call connected", true
	case domain.EventCallDisconnected:
		return "Call disconnected", true
	case domain.EventMeetingStarted:
		payload, _ := evt.Payload.(domain.MeetingPayload)
		if payload.Title == "" {
			return "Meeting started", true
		}
		return fmt.Sprintf("Meeting started: %s", payload.Title), true
	default:
		return "", false
	}
}
