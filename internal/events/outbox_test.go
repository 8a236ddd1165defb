package events

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/j-veylop/flightwatch/internal/db"
)

func newTestOutbox(t *testing.T, lease time.Duration) (*Outbox, *db.DB) {
	t.Helper()

	store, err := db.New(filepath.Join(t.TempDir(), "outbox.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	return NewOutbox(store, OutboxConfig{PollInterval: 10 * time.Millisecond, Lease: lease}), store
}

func TestOutbox_PublishConsumeAck(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	o, store := newTestOutbox(t, time.Minute)
	ev := NewEvent(flight("f1"), time.Now())
	require.NoError(t, o.Publish(ctx, ev))
	require.NoError(t, o.Publish(ctx, ev), "republishing is a no-op")

	d := receive(t, o.Consume(ctx))
	assert.Equal(t, ev.EventID, d.Event.EventID)
	assert.Equal(t, "UAL123", d.Event.Flight.Ident)
	assert.Equal(t, 1, d.Attempt)
	require.NoError(t, d.Ack(ctx))

	stats, err := store.EventQueueStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, db.EventQueueStats{}, stats)
}

func TestOutbox_NackRedelivers(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	o, _ := newTestOutbox(t, time.Minute)
	require.NoError(t, o.Publish(ctx, NewEvent(flight("f1"), time.Now())))

	deliveries := o.Consume(ctx)
	first := receive(t, deliveries)
	require.NoError(t, first.Nack(ctx, 0, "upstream"))

	second := receive(t, deliveries)
	assert.Equal(t, first.Event.EventID, second.Event.EventID)
	assert.Equal(t, 2, second.Attempt)
}

func TestOutbox_ExpiredLeaseRedelivers(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	o, store := newTestOutbox(t, 20*time.Millisecond)
	ev := NewEvent(flight("f1"), time.Now())
	require.NoError(t, o.Publish(ctx, ev))

	// A consumer that died mid-delivery: claimed, never renewed or settled.
	_, err := store.ClaimEvent(ctx, time.Now(), 20*time.Millisecond)
	require.NoError(t, err)

	second := receive(t, o.Consume(ctx))
	assert.Equal(t, ev.EventID, second.Event.EventID)
	assert.Equal(t, 2, second.Attempt)
}

func TestOutbox_RenewsLeaseWhileUnsettled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	o, store := newTestOutbox(t, 60*time.Millisecond)
	require.NoError(t, o.Publish(ctx, NewEvent(flight("f1"), time.Now())))

	deliveries := o.Consume(ctx)
	first := receive(t, deliveries)

	select {
	case d := <-deliveries:
		t.Fatalf("event redelivered while still in flight: attempt %d", d.Attempt)
	case <-time.After(300 * time.Millisecond):
	}

	require.NoError(t, first.Ack(ctx))

	stats, err := store.EventQueueStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, db.EventQueueStats{}, stats)
}

func TestOutbox_ReleasesClaimOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	o, store := newTestOutbox(t, time.Hour)
	require.NoError(t, o.Publish(ctx, NewEvent(flight("f1"), time.Now())))

	// Nobody receives, so the consumer holds a claimed event.
	deliveries := o.Consume(ctx)
	require.Eventually(t, func() bool {
		stats, err := store.EventQueueStats(context.Background())
		return err == nil && stats.Delivering == 1
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	for range deliveries {
	}

	stats, err := store.EventQueueStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, db.EventQueueStats{Pending: 1}, stats, "claim released without waiting for the lease")
}

func TestOutbox_ConsumeOnlyOnce(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	o, _ := newTestOutbox(t, time.Minute)
	require.NoError(t, o.Publish(ctx, NewEvent(flight("f1"), time.Now())))

	first := o.Consume(ctx)
	_, ok := <-o.Consume(ctx)
	assert.False(t, ok, "second consumer is closed")

	receive(t, first)
}
