package shellws

import (
	"encoding/json"
	"time"
)

// Frame types exchanged with the shell over the websocket.
const (
	frameHello           = "hello"
	frameWelcome         = "welcome"
	frameEvent           = "event"
	frameState           = "state"
	frameCalendar        = "calendar"
	frameWorker          = "worker"
	frameSetTitle        = "setTitle"
	frameRefreshCalendar = "refreshCalendar"
)

// helloFrame is the first frame the shell sends after connecting.
type helloFrame struct {
	Type  string `json:"type"`
	Token string `json:"token,omitempty"`
}

// welcomeFrame completes the handshake.
type welcomeFrame struct {
	Type string `json:"type"`
}

// inboundFrame is the superset of everything the shell sends after the
// handshake. Only the fields matching Type are populated.
type inboundFrame struct {
	Type string `json:"type"`

	// event
	Name string `json:"name,omitempty"`

	// state; pointers so an absent counter is not mistaken for zero
	Activities *int `json:"activities,omitempty"`
	Unread     *int `json:"unread,omitempty"`

	// calendar
	Entries []calendarEntryFrame `json:"entries,omitempty"`

	// worker; kept raw because the payload shape is the worker's business
	Records json.RawMessage `json:"records,omitempty"`
}

// calendarEntryFrame is the wire form of one calendar entry.
type calendarEntryFrame struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Organizer string    `json:"organizer"`
	StartsAt  time.Time `json:"startsAt"`
	EndsAt    time.Time `json:"endsAt"`
}

// setTitleFrame asks the shell to change its default window title.
type setTitleFrame struct {
	Type  string `json:"type"`
	Title string `json:"title"`
}

// refreshCalendarFrame asks the shell to refetch its calendar.
type refreshCalendarFrame struct {
	Type string `json:"type"`
}
