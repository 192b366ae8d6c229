package domain

import "time"

// EventName is a custom type for the simplified events the relay emits.
type EventName string

const (
	EventCallConnected          EventName = "call-connected"
	EventCallDisconnected       EventName = "call-disconnected"
	EventActivitiesCountUpdated EventName = "activities-count-updated"
	EventUnreadCountUpdated     EventName = "unread-count-updated"
	EventMeetingStarted         EventName = "meeting-started"
)

// EventNames returns every supported event name in a stable order.
func EventNames() []EventName {
	return []EventName{
		EventCallConnected,
		EventCallDisconnected,
		EventActivitiesCountUpdated,
		EventUnreadCountUpdated,
		EventMeetingStarted,
	}
}

// Valid reports whether the name is one of the supported events.
func (n EventName) Valid() bool {
	switch n {
	case EventCallConnected,
		EventCallDisconnected,
		EventActivitiesCountUpdated,
		EventUnreadCountUpdated,
		EventMeetingStarted:
		return true
	}
	return false
}

// CallPayload accompanies call-connected and call-disconnected.
// The shell carries no detail for call transitions, so it is empty.
type CallPayload struct{}

// CountPayload accompanies activities-count-updated and
// unread-count-updated.
type CountPayload struct {
	Count int `json:"count"`
}

// MeetingPayload accompanies meeting-started.
type MeetingPayload struct {
	Title string `json:"title"`
}

// EventLogEntry is the persisted form of a dispatched event.
// Payload holds the event payload as JSON.
type EventLogEntry struct {
	ID         int64
	Name       EventName
	Payload    []byte
	OccurredAt time.Time
}
