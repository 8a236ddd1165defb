package db

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/j-veylop/flightwatch/internal/models"
)

func testEvent(id string) models.PendingEvent {
	return models.PendingEvent{
		EventID:    id,
		FAFlightID: "UAL123-1",
		ObservedAt: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
		Flight:     &models.Flight{FAFlightID: "UAL123-1", Ident: "UAL123", Status: "En Route"},
	}
}

func TestEventQueue_EnqueueClaimAck(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	inserted, err := db.EnqueueEvent(ctx, testEvent("e1"), now)
	require.NoError(t, err)
	require.True(t, inserted)

	inserted, err = db.EnqueueEvent(ctx, testEvent("e1"), now)
	require.NoError(t, err)
	require.False(t, inserted, "duplicate event ids are ignored")

	q, err := db.ClaimEvent(ctx, now, time.Minute)
	require.NoError(t, err)
	require.Equal(t, "e1", q.Event.EventID)
	require.Equal(t, "UAL123", q.Event.Flight.Ident)
	require.Equal(t, 1, q.Attempts)

	_, err = db.ClaimEvent(ctx, now, time.Minute)
	require.ErrorIs(t, err, ErrNotFound, "leased events are not claimable")

	require.NoError(t, db.AckEvent(ctx, q.ID))

	stats, err := db.EventQueueStats(ctx)
	require.NoError(t, err)
	require.Equal(t, EventQueueStats{}, stats)
}

func TestEventQueue_ExpiredLeaseRedelivers(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	_, err := db.EnqueueEvent(ctx, testEvent("e1"), now)
	require.NoError(t, err)

	_, err = db.ClaimEvent(ctx, now, time.Minute)
	require.NoError(t, err)

	stats, err := db.EventQueueStats(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, stats.Delivering)

	q, err := db.ClaimEvent(ctx, now.Add(time.Minute), time.Minute)
	require.NoError(t, err)
	require.Equal(t, 2, q.Attempts)
}

func TestEventQueue_NackDelays(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	_, err := db.EnqueueEvent(ctx, testEvent("e1"), now)
	require.NoError(t, err)

	q, err := db.ClaimEvent(ctx, now, time.Minute)
	require.NoError(t, err)
	require.NoError(t, db.NackEvent(ctx, q.ID, now.Add(30*time.Second), "rate limited"))

	_, err = db.ClaimEvent(ctx, now.Add(10*time.Second), time.Minute)
	require.ErrorIs(t, err, ErrNotFound)

	q, err = db.ClaimEvent(ctx, now.Add(30*time.Second), time.Minute)
	require.NoError(t, err)
	require.Equal(t, 2, q.Attempts)
}

func TestEventQueue_UndecodableRowDoesNotBlockQueue(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	_, err := db.ExecContext(ctx, `
		INSERT INTO pending_events (event_id, fa_flight_id, payload_json, status, attempts, available_at, created_at)
		VALUES ('broken', 'X-1', '{not json', ?, 0, ?, ?)`,
		EventPending, toMillis(now.Add(-time.Minute)), toMillis(now.Add(-time.Minute)))
	require.NoError(t, err)

	_, err = db.EnqueueEvent(ctx, testEvent("e1"), now)
	require.NoError(t, err)

	q, err := db.ClaimEvent(ctx, now, time.Minute)
	require.NoError(t, err)
	require.Equal(t, "e1", q.Event.EventID)
	require.NoError(t, db.AckEvent(ctx, q.ID))

	_, err = db.ClaimEvent(ctx, now.Add(time.Hour), time.Minute)
	require.ErrorIs(t, err, ErrNotFound, "failed rows are never claimed again")

	stats, err := db.EventQueueStats(ctx)
	require.NoError(t, err)
	require.Equal(t, EventQueueStats{Failed: 1}, stats)

	var lastError string
	require.NoError(t, db.QueryRowContext(ctx,
		`SELECT last_error FROM pending_events WHERE event_id = 'broken'`).Scan(&lastError))
	require.Contains(t, lastError, "decode")

	purged, err := db.PurgeFailedEvents(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), purged)

	stats, err = db.EventQueueStats(ctx)
	require.NoError(t, err)
	require.Equal(t, EventQueueStats{}, stats)
}

func TestEventQueue_OnlyUndecodableRows(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	_, err := db.ExecContext(ctx, `
		INSERT INTO pending_events (event_id, fa_flight_id, payload_json, status, attempts, available_at, created_at)
		VALUES ('broken', 'X-1', '[]', ?, 0, ?, ?)`,
		EventPending, toMillis(now), toMillis(now))
	require.NoError(t, err)

	_, err = db.ClaimEvent(ctx, now, time.Minute)
	require.ErrorIs(t, err, ErrNotFound)

	stats, err := db.EventQueueStats(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, stats.Failed, "quarantine survives an empty claim")
}

func TestEventQueue_ExtendLease(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	_, err := db.EnqueueEvent(ctx, testEvent("e1"), now)
	require.NoError(t, err)

	q, err := db.ClaimEvent(ctx, now, time.Minute)
	require.NoError(t, err)
	require.NoError(t, db.ExtendLease(ctx, q.ID, now.Add(5*time.Minute)))

	_, err = db.ClaimEvent(ctx, now.Add(2*time.Minute), time.Minute)
	require.ErrorIs(t, err, ErrNotFound, "extended lease still holds")

	require.NoError(t, db.AckEvent(ctx, q.ID))
	require.ErrorIs(t, db.ExtendLease(ctx, q.ID, now.Add(10*time.Minute)), ErrNotFound)
}
