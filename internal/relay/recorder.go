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

const (
	recorderQueueSize     = 1024
	recorderBatchSize     = 64
	recorderFlushInterval = 2 * time.Second
	recorderWriteTimeout  = 5 * time.Second
)

// Recorder persists every dispatched event through the event log.
// Entries are queued and written in batches by a background goroutine
// so that a slow store never blocks dispatch.
type Recorder struct {
	hub     ports.EventHub
	store   ports.EventLog
	log     zerolog.Logger
	handles map[domain.EventName]ports.Handle

	entries chan domain.EventLogEntry
	done    chan struct{}

	mu        sync.RWMutex
	closed    bool
	closeOnce sync.Once
}

// NewRecorder subscribes to every supported event and starts the writer.
func NewRecorder(hub ports.EventHub, store ports.EventLog, baseLogger *zerolog.Logger) *Recorder {
	r := &Recorder{
		hub:     hub,
		store:   store,
		log:     baseLogger.With().Str("component", "recorder").Logger(),
		handles: make(map[domain.EventName]ports.Handle),
		entries: make(chan domain.EventLogEntry, recorderQueueSize),
		done:    make(chan struct{}),
	}

	for _, name := range domain.EventNames() {
		handle, ok := hub.Subscribe(name, r.handleEvent)
		if !ok {
			r.log.Error().Str("event", string(name)).Msg("Hub rejected recorder subscription")
			continue
		}
		r.handles[name] = handle
	}

	go r.run()

	r.log.Info().Int("events", len(r.handles)).Msg("Recorder attached to hub")
	return r
}

// handleEvent queues one entry per dispatched event. A full queue drops
// the entry rather than stalling the dispatching goroutine.
func (r *Recorder) handleEvent(ctx context.Context, evt ports.Event) error {
	payload, err := json.Marshal(evt.Payload)
	if err != nil {
		r.log.Error().Err(err).Str("event", string(evt.Name)).Msg("Failed to marshal event payload")
		return err
	}

	entry := domain.EventLogEntry{
		Name:       evt.Name,
		Payload:    payload,
		OccurredAt: time.Now().UTC(),
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return nil
	}

	select {
	case r.entries <- entry:
	default:
		r.log.Warn().Str("event", string(evt.Name)).Msg("Recorder queue full, dropping event")
	}
	return nil
}

// run accumulates entries and flushes them on size or on a timer.
func (r *Recorder) run() {
	ticker := time.NewTicker(recorderFlushInterval)
	defer ticker.Stop()

	batch := make([]domain.EventLogEntry, 0, recorderBatchSize)

	flush := func() {
		if len(batch) == 0 {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), recorderWriteTimeout)
		if err := r.store.AppendBatch(ctx, batch); err != nil {
			r.log.Error().Err(err).Int("entries", len(batch)).Msg("Failed to flush event batch")
		}
		cancel()
		batch = batch[:0]
	}

	for {
		select {
		case entry, ok := <-r.entries:
			if !ok {
				flush()
				close(r.done)
				return
			}
			batch = append(batch, entry)
			if len(batch) >= recorderBatchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}

// Close unsubscribes from the hub, then waits for the queued entries to
// reach the store.
func (r *Recorder) Close() {
	r.closeOnce.Do(func() {
		for name, handle := range r.handles {
			r.hub.Unsubscribe(name, handle)
		}

		r.mu.Lock()
		r.closed = true
		close(r.entries)
		r.mu.Unlock()

		<-r.done
		r.log.Info().Msg("Recorder stopped")
	})
}
