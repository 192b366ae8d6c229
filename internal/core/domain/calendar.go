package domain

import (
	"time"

	"github.com/google/uuid"
)

// CalendarEntry represents one meeting in the shell's calendar snapshot.
type CalendarEntry struct {
	ID        uuid.UUID
	Title     string
	Organizer string
	StartsAt  time.Time
	EndsAt    time.Time
}
