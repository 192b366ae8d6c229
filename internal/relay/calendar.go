package relay

import (
	"DeskRelay/internal/core/domain"
	"context"
	"time"
)

// CalendarEntries waits for the shell controller, then returns the
// calendar snapshot the shell currently caches.
func (b *Bridge) CalendarEntries(ctx context.Context) ([]domain.CalendarEntry, error) {
	ctrl, err := b.awaitController(ctx)
	if err != nil {
		return nil, err
	}

	entries := ctrl.Calendar().CachedEntries()
	b.log.Debug().Int("entries", len(entries)).Msg("Returning cached calendar entries")
	return entries, nil
}

// RefreshCalendarEntries asks the shell to refetch its calendar, waits
// for the refresh to settle, and returns the refreshed snapshot.
// The shell gives no completion signal beyond clearing its pending flag,
// so the wait polls on the bridge interval; cancel ctx to bound it.
func (b *Bridge) RefreshCalendarEntries(ctx context.Context) ([]domain.CalendarEntry, error) {
	ctrl, err := b.awaitController(ctx)
	if err != nil {
		return nil, err
	}

	cal := ctrl.Calendar()
	cal.RequestRefresh()

	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	for cal.RefreshPending() {
		select {
		case <-ctx.Done():
			b.log.Warn().Err(ctx.Err()).Msg("Gave up waiting for calendar refresh")
			return nil, ctx.Err()
		case <-ticker.C:
			b.log.Debug().Msg("Calendar refresh still pending")
		}
	}

	entries := cal.CachedEntries()
	b.log.Info().Int("entries", len(entries)).Msg("Calendar refreshed")
	return entries, nil
}
