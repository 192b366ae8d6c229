package ports

import (
	"DeskRelay/internal/core/domain"
	"encoding/json"
)

// Raw controller event names the relay listens for. These are the
// shell's own names, not the simplified ones the hub re-emits.
const (
	RawCallConnected    = "callConnected"
	RawCallDisconnected = "callDisconnected"
	RawBellCountChanged = "bellCountChanged"
	RawChatListChanged  = "chatListChanged"
)

// ListenerFunc is a callback registered with the shell's eventing service.
type ListenerFunc func()

// EventingService is the controller's generic pub/sub primitive.
type EventingService interface {
	Register(event string, fn ListenerFunc)
}

// BellService exposes the shell's notification counter.
type BellService interface {
	UnseenCount() int
}

// ChatListService exposes the shell's unread conversation counter.
type ChatListService interface {
	UnreadCount() int
}

// CalendarService exposes the shell's calendar cache.
// RequestRefresh is asynchronous; RefreshPending reports whether a
// refresh is still in flight.
type CalendarService interface {
	CachedEntries() []domain.CalendarEntry
	RequestRefresh()
	RefreshPending() bool
}

// ShellController is the narrow slice of the shell's UI controller
// that the relay needs.
type ShellController interface {
	Events() EventingService
	Bell() BellService
	ChatList() ChatListService
	Calendar() CalendarService

	// WorkerMessages delivers raw payloads posted by the shell's
	// background worker. The channel closes when the transport shuts down.
	WorkerMessages() <-chan json.RawMessage

	SetDefaultTitle(title string)
}

// ControllerProvider yields the controller once the shell has attached.
// Controller returns nil until then.
type ControllerProvider interface {
	Controller() ShellController
}
