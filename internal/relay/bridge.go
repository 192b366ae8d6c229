package relay

import (
	"DeskRelay/internal/core/domain"
	"DeskRelay/internal/core/ports"
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// workerKindMeetingStarted marks the worker records the bridge acts on.
const workerKindMeetingStarted = "meetingStarted"

// workerRecord is one element of the array the shell worker posts.
type workerRecord struct {
	Kind  string `json:"kind"`
	Title string `json:"title"`
}

// Bridge waits for the shell controller to appear, then translates its
// raw events into the simplified ones dispatched on the hub.
type Bridge struct {
	provider ports.ControllerProvider
	hub      ports.EventHub
	interval time.Duration
	log      zerolog.Logger

	mu         sync.Mutex
	controller ports.ShellController // nil until Start completes
}

// defaultPollInterval is used when the configured interval is missing.
const defaultPollInterval = time.Second

// NewBridge creates a bridge that polls the provider every interval
// while waiting for the shell to attach.
func NewBridge(
	provider ports.ControllerProvider,
	hub ports.EventHub,
	interval time.Duration,
	baseLogger *zerolog.Logger,
) *Bridge {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	return &Bridge{
		provider: provider,
		hub:      hub,
		interval: interval,
		log:      baseLogger.With().Str("component", "bridge").Logger(),
	}
}

// Start blocks until the shell controller is available, then wires the
// raw event sources exactly once. The wait has no internal deadline;
// cancel ctx to bound it. Calling Start again after it has succeeded is
// a no-op.
func (b *Bridge) Start(ctx context.Context) error {
	b.mu.Lock()
	if b.controller != nil {
		b.mu.Unlock()
		b.log.Debug().Msg("Bridge already started, ignoring")
		return nil
	}
	b.mu.Unlock()

	ctrl, err := b.waitForController(ctx)
	if err != nil {
		return err
	}

	b.mu.Lock()
	if b.controller != nil {
		// A concurrent Start won the race; its wiring stands.
		b.mu.Unlock()
		return nil
	}
	b.controller = ctrl
	b.mu.Unlock()

	b.wire(ctx, ctrl)
	b.log.Info().Msg("Shell controller ready, event sources wired")
	return nil
}

// Ready reports whether Start has completed its wiring.
func (b *Bridge) Ready() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.controller != nil
}

// SetDefaultTitle waits for the controller the same way Start does, then
// sets the shell's default window title. It is independent of Start.
func (b *Bridge) SetDefaultTitle(ctx context.Context, title string) error {
	ctrl, err := b.awaitController(ctx)
	if err != nil {
		return err
	}

	ctrl.SetDefaultTitle(title)
	b.log.Info().Str("title", title).Msg("Default title set")
	return nil
}

// awaitController returns the controller Start stored, or falls back to
// polling the provider when the bridge was never started.
func (b *Bridge) awaitController(ctx context.Context) (ports.ShellController, error) {
	b.mu.Lock()
	ctrl := b.controller
	b.mu.Unlock()
	if ctrl != nil {
		return ctrl, nil
	}
	return b.waitForController(ctx)
}

// waitForController polls the provider on a fixed interval until it
// yields a controller or ctx ends.
func (b *Bridge) waitForController(ctx context.Context) (ports.ShellController, error) {
	if ctrl := b.provider.Controller(); ctrl != nil {
		return ctrl, nil
	}

	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			b.log.Warn().Err(ctx.Err()).Msg("Gave up waiting for shell controller")
			return nil, ctx.Err()
		case <-ticker.C:
			if ctrl := b.provider.Controller(); ctrl != nil {
				return ctrl, nil
			}
			b.log.Debug().Msg("Shell controller not attached yet, retrying")
		}
	}
}

// wire registers the raw listeners and starts the worker consumer.
// Each raw event maps onto one simplified event on the hub.
func (b *Bridge) wire(ctx context.Context, ctrl ports.ShellController) {
	events := ctrl.Events()

	events.Register(ports.RawCallConnected, func() {
		b.hub.Dispatch(ctx, domain.EventCallConnected, domain.CallPayload{})
	})
	events.Register(ports.RawCallDisconnected, func() {
		b.hub.Dispatch(ctx, domain.EventCallDisconnected, domain.CallPayload{})
	})
	events.Register(ports.RawBellCountChanged, func() {
		count := ctrl.Bell().UnseenCount()
		b.hub.Dispatch(ctx, domain.EventActivitiesCountUpdated, domain.CountPayload{Count: count})
	})
	events.Register(ports.RawChatListChanged, func() {
		count := ctrl.ChatList().UnreadCount()
		b.hub.Dispatch(ctx, domain.EventUnreadCountUpdated, domain.CountPayload{Count: count})
	})

	go b.consumeWorkerMessages(ctx, ctrl)
}

// consumeWorkerMessages reads the controller's worker channel until ctx
// ends or the channel closes.
func (b *Bridge) consumeWorkerMessages(ctx context.Context, ctrl ports.ShellController) {
	messages := ctrl.WorkerMessages()
	b.log.Debug().Msg("Worker message consumer started")

	for {
		select {
		case <-ctx.Done():
			b.log.Debug().Msg("Worker message consumer stopped (context done)")
			return
		case raw, ok := <-messages:
			if !ok {
				b.log.Debug().Msg("Worker message consumer stopped (channel closed)")
				return
			}
			b.handleWorkerPayload(ctx, raw)
		}
	}
}

// handleWorkerPayload dispatches one meeting-started event per matching
// record, in array order. The worker also posts payloads that are not
// record arrays; those are dropped without complaint.
func (b *Bridge) handleWorkerPayload(ctx context.Context, raw json.RawMessage) {
	var elements []json.RawMessage
	if err := json.Unmarshal(raw, &elements); err != nil {
		b.log.Debug().Err(err).Msg("Ignoring non-array worker payload")
		return
	}

	for _, el := range elements {
		var rec workerRecord
		if err := json.Unmarshal(el, &rec); err != nil {
			b.log.Debug().Err(err).Msg("Skipping undecodable worker record")
			continue
		}
		if rec.Kind != workerKindMeetingStarted {
			continue
		}
		b.hub.Dispatch(ctx, domain.EventMeetingStarted, domain.MeetingPayload{Title: rec.Title})
	}
}
