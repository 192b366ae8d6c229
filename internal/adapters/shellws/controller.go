package shellws

import (
	"DeskRelay/internal/core/domain"
	"DeskRelay/internal/core/ports"
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// workerBufferSize bounds how many unread worker payloads we keep
// before dropping new ones.
const workerBufferSize = 64

// controller is the relay-side proxy for the shell's UI controller.
// It caches the state the shell pushes and forwards commands back
// through the server's current connection.
type controller struct {
	srv *Server
	log zerolog.Logger

	mu             sync.RWMutex
	listeners      map[string][]ports.ListenerFunc
	activities     int
	unread         int
	entries        []domain.CalendarEntry
	refreshPending bool

	workerMu     sync.RWMutex
	worker       chan json.RawMessage
	workerClosed bool
	closeOnce    sync.Once
}

var _ ports.ShellController = (*controller)(nil) // Ensure compliance

func newController(srv *Server) *controller {
	return &controller{
		srv:       srv,
		log:       srv.log.With().Str("unit", "controller").Logger(),
		listeners: make(map[string][]ports.ListenerFunc),
		worker:    make(chan json.RawMessage, workerBufferSize),
	}
}

// --- Inbound frame handling (called from the server's read loop) ---

// handleFrame routes one decoded shell frame.
func (c *controller) handleFrame(data []byte) {
	var frame inboundFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		c.log.Warn().Err(err).Msg("Dropping malformed shell frame")
		return
	}

	switch frame.Type {
	case frameEvent:
		c.fire(frame.Name)
	case frameState:
		c.applyState(frame)
	case frameCalendar:
		c.applyCalendar(frame.Entries)
	case frameWorker:
		c.deliverWorker(frame.Records)
	case frameHello:
		// A duplicate hello after the handshake is harmless.
	default:
		c.log.Debug().Str("type", frame.Type).Msg("Ignoring unknown shell frame")
	}
}

// fire invokes the listeners for a raw event name, in registration order.
func (c *controller) fire(name string) {
	c.mu.RLock()
	fns := make([]ports.ListenerFunc, len(c.listeners[name]))
	copy(fns, c.listeners[name])
	c.mu.RUnlock()

	c.log.Debug().Str("raw_event", name).Int("listeners", len(fns)).Msg("Raw shell event")
	for _, fn := range fns {
		fn()
	}
}

// applyState updates the cached counters and fires the matching raw
// events for counters that actually changed.
func (c *controller) applyState(frame inboundFrame) {
	var bellChanged, chatChanged bool

	c.mu.Lock()
	if frame.Activities != nil && *frame.Activities != c.activities {
		c.activities = *frame.Activities
		bellChanged = true
	}
	if frame.Unread != nil && *frame.Unread != c.unread {
		c.unread = *frame.Unread
		chatChanged = true
	}
	c.mu.Unlock()

	if bellChanged {
		c.fire(ports.RawBellCountChanged)
	}
	if chatChanged {
		c.fire(ports.RawChatListChanged)
	}
}

// applyCalendar replaces the cached snapshot and settles a pending
// refresh. Entries with unusable ids are skipped.
func (c *controller) applyCalendar(frames []calendarEntryFrame) {
	entries := make([]domain.CalendarEntry, 0, len(frames))
	for _, f := range frames {
		id, err := uuid.Parse(f.ID)
		if err != nil {
			c.log.Warn().Err(err).Str("title", f.Title).Msg("Skipping calendar entry with bad id")
			continue
		}
		entries = append(entries, domain.CalendarEntry{
			ID:        id,
			Title:     f.Title,
			Organizer: f.Organizer,
			StartsAt:  f.StartsAt,
			EndsAt:    f.EndsAt,
		})
	}

	c.mu.Lock()
	c.entries = entries
	c.refreshPending = false
	c.mu.Unlock()

	c.log.Debug().Int("entries", len(entries)).Msg("Calendar snapshot updated")
}

// deliverWorker hands the raw records to the worker channel without
// blocking the read loop. Frames that arrive once the channel is full,
// or race a shutdown, are dropped.
func (c *controller) deliverWorker(records json.RawMessage) {
	if len(records) == 0 {
		return
	}

	c.workerMu.RLock()
	defer c.workerMu.RUnlock()
	if c.workerClosed {
		c.log.Debug().Msg("Dropping worker payload after shutdown")
		return
	}

	select {
	case c.worker <- records:
	default:
		c.log.Warn().Msg("Worker channel full, dropping payload")
	}
}

// closeWorker ends the worker channel when the transport shuts down.
// The flag keeps a late frame from hitting the closed channel.
func (c *controller) closeWorker() {
	c.closeOnce.Do(func() {
		c.workerMu.Lock()
		c.workerClosed = true
		close(c.worker)
		c.workerMu.Unlock()
	})
}

// --- ports.ShellController ---

func (c *controller) Events() ports.EventingService { return eventingView{c} }

func (c *controller) Bell() ports.BellService { return bellView{c} }

func (c *controller) ChatList() ports.ChatListService { return chatListView{c} }

func (c *controller) Calendar() ports.CalendarService { return calendarView{c} }

func (c *controller) WorkerMessages() <-chan json.RawMessage { return c.worker }

// SetDefaultTitle forwards the title to the shell. Failures are logged;
// the shell keeps its previous title until it reconnects and the caller
// tries again.
func (c *controller) SetDefaultTitle(title string) {
	if err := c.srv.send(setTitleFrame{Type: frameSetTitle, Title: title}); err != nil {
		c.log.Error().Err(err).Str("title", title).Msg("Failed to set shell title")
	}
}

// --- Service views ---

type eventingView struct{ c *controller }

func (v eventingView) Register(event string, fn ports.ListenerFunc) {
	if fn == nil {
		return
	}
	v.c.mu.Lock()
	v.c.listeners[event] = append(v.c.listeners[event], fn)
	v.c.mu.Unlock()
	v.c.log.Debug().Str("raw_event", event).Msg("Raw listener registered")
}

type bellView struct{ c *controller }

func (v bellView) UnseenCount() int {
	v.c.mu.RLock()
	defer v.c.mu.RUnlock()
	return v.c.activities
}

type chatListView struct{ c *controller }

func (v chatListView) UnreadCount() int {
	v.c.mu.RLock()
	defer v.c.mu.RUnlock()
	return v.c.unread
}

type calendarView struct{ c *controller }

func (v calendarView) CachedEntries() []domain.CalendarEntry {
	v.c.mu.RLock()
	defer v.c.mu.RUnlock()
	entries := make([]domain.CalendarEntry, len(v.c.entries))
	copy(entries, v.c.entries)
	return entries
}

// RequestRefresh marks the refresh pending and asks the shell to
// refetch. When the send fails the flag is cleared again so a waiter
// doesn't hang on a request the shell never saw.
func (v calendarView) RequestRefresh() {
	v.c.mu.Lock()
	v.c.refreshPending = true
	v.c.mu.Unlock()

	if err := v.c.srv.send(refreshCalendarFrame{Type: frameRefreshCalendar}); err != nil {
		v.c.log.Error().Err(err).Msg("Failed to request calendar refresh")
		v.c.mu.Lock()
		v.c.refreshPending = false
		v.c.mu.Unlock()
	}
}

func (v calendarView) RefreshPending() bool {
	v.c.mu.RLock()
	defer v.c.mu.RUnlock()
	return v.c.refreshPending
}
