package ports

import (
	"DeskRelay/internal/core/domain"
	"context"
)

// EventLog persists dispatched events.
type EventLog interface {
	// Append stores a single entry.
	Append(ctx context.Context, entry domain.EventLogEntry) error

	// AppendBatch stores a group of entries in one round trip.
	AppendBatch(ctx context.Context, entries []domain.EventLogEntry) error

	// Recent returns up to limit entries, newest first.
	Recent(ctx context.Context, limit int) ([]domain.EventLogEntry, error)
}
