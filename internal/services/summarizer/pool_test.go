package summarizer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/j-veylop/flightwatch/internal/events"
	"github.com/j-veylop/flightwatch/internal/models"
	"github.com/j-veylop/flightwatch/internal/services/provider"
)

func TestPool_ProcessesAndAcks(t *testing.T) {
	store := newTestStore(t)
	w := NewWorker(&scriptedSummarizer{text: "ok"}, store, nil)
	pool := NewPool(w, PoolConfig{Workers: 3})

	ch := events.NewMemoryChannel(16)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ids := []string{"a", "b", "c", "d"}
	for _, id := range ids {
		f := testFlight()
		f.FAFlightID = id
		require.NoError(t, ch.Publish(ctx, events.NewEvent(f, time.Now())))
	}

	done := make(chan error, 1)
	go func() { done <- pool.Run(ctx, ch) }()

	require.Eventually(t, func() bool {
		return w.Stats().Succeeded == int64(len(ids))
	}, 5*time.Second, 10*time.Millisecond)

	for _, id := range ids {
		got, err := store.GetSummary(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, "ok", got.Text)
	}

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("pool did not stop")
	}
}

func TestPool_NacksFailuresForRedelivery(t *testing.T) {
	sum := &scriptedSummarizer{
		results: []error{provider.NotFound("summarize flight", "x")},
		text:    "second try",
	}
	store := newTestStore(t)
	w := NewWorker(sum, store, nil)
	pool := NewPool(w, PoolConfig{Workers: 1, NackDelay: 10 * time.Millisecond})

	ch := events.NewMemoryChannel(4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, ch.Publish(ctx, events.NewEvent(testFlight(), time.Now())))

	go func() { _ = pool.Run(ctx, ch) }()

	require.Eventually(t, func() bool { return w.Stats().Succeeded == 1 }, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, int64(1), w.Stats().Failed)
	assert.Equal(t, int32(2), sum.calls.Load())
}

func TestPool_DropsAfterMaxDeliveries(t *testing.T) {
	sum := &scriptedSummarizer{results: []error{
		errors.New("a"), errors.New("b"), errors.New("c"),
	}}
	w := NewWorker(sum, newTestStore(t), nil, WithBackoff(Backoff{MaxAttempts: 1}))
	pool := NewPool(w, PoolConfig{Workers: 1, NackDelay: time.Millisecond, MaxDeliveries: 2})

	ch := events.NewMemoryChannel(4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, ch.Publish(ctx, events.NewEvent(testFlight(), time.Now())))

	go func() { _ = pool.Run(ctx, ch) }()

	require.Eventually(t, func() bool { return w.Stats().Failed == 2 }, 5*time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(2), sum.calls.Load())
	assert.Equal(t, 0, ch.Len())
}

func TestPool_DropsInvalidEvents(t *testing.T) {
	w := NewWorker(&scriptedSummarizer{}, newTestStore(t), nil)
	pool := NewPool(w, PoolConfig{Workers: 1, NackDelay: time.Millisecond})

	ch := events.NewMemoryChannel(4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, ch.Publish(ctx, models.PendingEvent{EventID: "bad"}))

	go func() { _ = pool.Run(ctx, ch) }()

	require.Eventually(t, func() bool { return w.Stats().Failed == 1 }, 5*time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int64(1), w.Stats().Failed)
}
