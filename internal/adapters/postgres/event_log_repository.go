package postgres

import (
	"DeskRelay/internal/core/domain"
	"DeskRelay/internal/core/ports"
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

type eventLogRepository struct {
	db  *DB
	log zerolog.Logger
}

var _ ports.EventLog = (*eventLogRepository)(nil) // Ensure compliance

const insertEventQuery = `
	INSERT INTO relay_events (event_name, payload, occurred_at)
	VALUES ($1, $2, $3)
`

// NewEventLogRepository creates the repository and ensures its table exists.
func NewEventLogRepository(ctx context.Context, db *DB, baseLogger *zerolog.Logger) (ports.EventLog, error) {
	repo := &eventLogRepository{
		db:  db,
		log: baseLogger.With().Str("component", "event_log_repo").Logger(),
	}

	if err := repo.ensureSchema(ctx); err != nil {
		repo.log.Error().Err(err).Msg("Failed to ensure event log schema")
		return nil, err
	}
	return repo, nil
}

func (r *eventLogRepository) ensureSchema(ctx context.Context) error {
	schema := `
		CREATE TABLE IF NOT EXISTS relay_events (
			id BIGSERIAL PRIMARY KEY,
			event_name TEXT NOT NULL,
			payload JSONB NOT NULL DEFAULT '{}'::jsonb,
			occurred_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);
		CREATE INDEX IF NOT EXISTS relay_events_occurred_at_idx
			ON relay_events (occurred_at DESC, id DESC);
	`
	_, err := r.db.pool.Exec(ctx, schema)
	return err
}

// Append stores a single entry.
func (r *eventLogRepository) Append(ctx context.Context, entry domain.EventLogEntry) error {
	_, err := r.db.pool.Exec(ctx, insertEventQuery,
		string(entry.Name),
		normalizePayload(entry.Payload),
		entry.OccurredAt,
	)
	if err != nil {
		r.log.Error().Err(err).Str("event", string(entry.Name)).Msg("Failed to insert event log entry")
	}
	return err
}

// AppendBatch stores all entries in a single round trip.
func (r *eventLogRepository) AppendBatch(ctx context.Context, entries []domain.EventLogEntry) error {
	if len(entries) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, entry := range entries {
		batch.Queue(insertEventQuery,
			string(entry.Name),
			normalizePayload(entry.Payload),
			entry.OccurredAt,
		)
	}

	results := r.db.pool.SendBatch(ctx, batch)
	defer results.Close()

	for range entries {
		if _, err := results.Exec(); err != nil {
			r.log.Error().Err(err).Int("batch_size", len(entries)).Msg("Failed to insert event log batch")
			return err
		}
	}
	return results.Close()
}

// Recent returns the newest entries, newest first.
func (r *eventLogRepository) Recent(ctx context.Context, limit int) ([]domain.EventLogEntry, error) {
	query := `
		SELECT id, event_name, payload, occurred_at
		FROM relay_events
		ORDER BY occurred_at DESC, id DESC
		LIMIT $1
	`

	rows, err := r.db.pool.Query(ctx, query, limit)
	if err != nil {
		r.log.Error().Err(err).Msg("Failed to query recent events")
		return nil, err
	}
	defer rows.Close()

	var entries []domain.EventLogEntry
	for rows.Next() {
		var entry domain.EventLogEntry
		var name string
		if err := rows.Scan(&entry.ID, &name, &entry.Payload, &entry.OccurredAt); err != nil {
			r.log.Error().Err(err).Msg("Failed to scan event log row")
			return nil, err
		}
		entry.Name = domain.EventName(name)
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// normalizePayload keeps the JSONB column happy when a payload is absent.
func normalizePayload(payload []byte) []byte {
	if len(payload) == 0 {
		return []byte(`{}`)
	}
	return payload
}
