package postgres

import (
	"DeskRelay/internal/core/domain"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// markedPayload tags rows with a per-test marker so cleanup removes
// exactly what the test inserted, even against a shared database.
func markedPayload(t *testing.T, marker uuid.UUID, seq int) []byte {
	payload, err := json.Marshal(map[string]interface{}{
		"marker": marker.String(),
		"seq":    seq,
	})
	if err != nil {
		t.Fatalf("Failed to marshal test payload: %v", err)
	}
	return payload
}

func cleanupMarkedEvents(t *testing.T, marker uuid.UUID) {
	_, err := testDB.pool.Exec(context.Background(),
		"DELETE FROM relay_events WHERE payload->>'marker' = $1", marker.String())
	if err != nil {
		t.Logf("Warning: Failed to cleanup events for marker %s: %v", marker, err)
	}
}

// recentMarked filters Recent down to this test's rows, preserving order.
func recentMarked(t *testing.T, repo *eventLogRepository, marker uuid.UUID) []domain.EventLogEntry {
	entries, err := repo.Recent(context.Background(), 100)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}

	var mine []domain.EventLogEntry
	for _, entry := range entries {
		var doc struct {
			Marker string `json:"marker"`
		}
		if err := json.Unmarshal(entry.Payload, &doc); err != nil {
			continue
		}
		if doc.Marker == marker.String() {
			mine = append(mine, entry)
		}
	}
	return mine
}

func newTestEventLogRepository(t *testing.T) *eventLogRepository {
	nopLogger := zerolog.Nop()
	repo, err := NewEventLogRepository(context.Background(), testDB, &nopLogger)
	if err != nil {
		t.Fatalf("NewEventLogRepository failed: %v", err)
	}
	return repo.(*eventLogRepository)
}

func TestEventLogRepository_AppendAndRecent(t *testing.T) {
	requireDB(t)

	// 1. Setup
	repo := newTestEventLogRepository(t)
	marker := uuid.New()
	defer cleanupMarkedEvents(t, marker)

	base := time.Now().UTC().Truncate(time.Microsecond)
	names := []domain.EventName{
		domain.EventCallConnected,
		domain.EventUnreadCountUpdated,
		domain.EventCallDisconnected,
	}

	// 2. Append three entries with ascending timestamps
	for i, name := range names {
		err := repo.Append(context.Background(), domain.EventLogEntry{
			Name:       name,
			Payload:    markedPayload(t, marker, i),
			OccurredAt: base.Add(time.Duration(i) * time.Second),
		})
		if err != nil {
			t.Fatalf("Append %d failed: %v", i, err)
		}
	}

	// 3. Recent returns them newest first
	mine := recentMarked(t, repo, marker)
	if len(mine) != len(names) {
		t.Fatalf("Expected %d marked entries, got %d", len(names), len(mine))
	}

	for i, entry := range mine {
		wantName := names[len(names)-1-i]
		if entry.Name != wantName {
			t.Errorf("Entry %d: got event %q, want %q", i, entry.Name, wantName)
		}
		if entry.ID == 0 {
			t.Errorf("Entry %d: ID was not assigned", i)
		}
		if entry.OccurredAt.IsZero() {
			t.Errorf("Entry %d: OccurredAt was not stored", i)
		}

		var doc struct {
			Seq int `json:"seq"`
		}
		if err := json.Unmarshal(entry.Payload, &doc); err != nil {
			t.Fatalf("Entry %d: payload did not round-trip: %v", i, err)
		}
		if doc.Seq != len(names)-1-i {
			t.Errorf("Entry %d: got seq %d, want %d", i, doc.Seq, len(names)-1-i)
		}
	}
}

func TestEventLogRepository_AppendBatch(t *testing.T) {
	requireDB(t)

	// 1. Setup
	repo := newTestEventLogRepository(t)
	marker := uuid.New()
	defer cleanupMarkedEvents(t, marker)

	base := time.Now().UTC().Truncate(time.Microsecond)
	batch := make([]domain.EventLogEntry, 0, 5)
	for i, name := range domain.EventNames() {
		batch = append(batch, domain.EventLogEntry{
			Name:       name,
			Payload:    markedPayload(t, marker, i),
			OccurredAt: base.Add(time.Duration(i) * time.Millisecond),
		})
	}

	// 2. Run AppendBatch
	if err := repo.AppendBatch(context.Background(), batch); err != nil {
		t.Fatalf("AppendBatch failed: %v", err)
	}

	// 3. Verify every entry landed
	mine := recentMarked(t, repo, marker)
	if len(mine) != len(batch) {
		t.Fatalf("Expected %d entries, got %d", len(batch), len(mine))
	}

	found := make(map[domain.EventName]bool)
	for _, entry := range mine {
		found[entry.Name] = true
	}
	for _, name := range domain.EventNames() {
		if !found[name] {
			t.Errorf("Event %q missing from the stored batch", name)
		}
	}
}

func TestEventLogRepository_AppendBatchEmptyIsNoOp(t *testing.T) {
	requireDB(t)

	repo := newTestEventLogRepository(t)
	if err := repo.AppendBatch(context.Background(), nil); err != nil {
		t.Fatalf("AppendBatch with no entries failed: %v", err)
	}
}

func TestEventLogRepository_SchemaIsIdempotent(t *testing.T) {
	requireDB(t)

	nopLogger := zerolog.Nop()
	for i := 0; i < 2; i++ {
		if _, err := NewEventLogRepository(context.Background(), testDB, &nopLogger); err != nil {
			t.Fatalf("NewEventLogRepository run %d failed: %v", i+1, err)
		}
	}
}

func TestEventLogRepository_NilPayloadStoredAsEmptyObject(t *testing.T) {
	requireDB(t)

	// 1. Setup: a nil payload must still satisfy the JSONB column
	repo := newTestEventLogRepository(t)

	occurredAt := time.Now().UTC().Truncate(time.Microsecond)
	err := repo.Append(context.Background(), domain.EventLogEntry{
		Name:       domain.EventActivitiesCountUpdated,
		Payload:    nil,
		OccurredAt: occurredAt,
	})
	if err != nil {
		t.Fatalf("Append with nil payload failed: %v", err)
	}

	// 2. The row is unmarked, so clean it up by name and timestamp
	defer func() {
		_, err := testDB.pool.Exec(context.Background(),
			"DELETE FROM relay_events WHERE event_name = $1 AND occurred_at = $2",
			string(domain.EventActivitiesCountUpdated), occurredAt)
		if err != nil {
			t.Logf("Warning: Failed to cleanup nil-payload row: %v", err)
		}
	}()

	var payload string
	row := testDB.pool.QueryRow(context.Background(),
		"SELECT payload::text FROM relay_events WHERE event_name = $1 AND occurred_at = $2",
		string(domain.EventActivitiesCountUpdated), occurredAt)
	if err := row.Scan(&payload); err != nil {
		t.Fatalf("Failed to read the stored payload back: %v", err)
	}
	if payload != "{}" {
		t.Errorf("Got payload %s, want {}", payload)
	}
}
