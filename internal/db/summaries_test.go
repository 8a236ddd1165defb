package db

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestUpsertSummary_CreatesThenUpdates(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	t0 := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	res, err := db.UpsertSummary(ctx, SummaryUpsert{
		FAFlightID: "UAL123-1",
		Ident:      "UAL123",
		Text:       "first",
		ObservedAt: t0,
		Now:        t0,
	})
	require.NoError(t, err)
	require.True(t, res.Created)
	require.Equal(t, t0, res.Summary.GeneratedAt)

	t1 := t0.Add(10 * time.Minute)
	res, err = db.UpsertSummary(ctx, SummaryUpsert{
		FAFlightID: "UAL123-1",
		Ident:      "UAL123",
		Text:       "second",
		ObservedAt: t1,
		Now:        t1,
	})
	require.NoError(t, err)
	require.False(t, res.Created)
	require.False(t, res.Stale)

	got, err := db.GetSummary(ctx, "UAL123-1")
	require.NoError(t, err)
	require.Equal(t, "second", got.Text)
	require.Equal(t, t0, got.GeneratedAt, "generated_at must survive updates")
	require.Equal(t, t1, got.LastUpdatedAt)

	n, err := db.CountSummaries(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

func TestUpsertSummary_SkipsOlderSnapshot(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	t0 := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	_, err := db.UpsertSummary(ctx, SummaryUpsert{
		FAFlightID: "DAL9-1", Ident: "DAL9", Text: "newer",
		ObservedAt: t0.Add(time.Minute), Now: t0,
	})
	require.NoError(t, err)

	res, err := db.UpsertSummary(ctx, SummaryUpsert{
		FAFlightID: "DAL9-1", Ident: "DAL9", Text: "older",
		ObservedAt: t0, Now: t0.Add(2 * time.Minute),
	})
	require.NoError(t, err)
	require.True(t, res.Stale)
	require.Equal(t, "newer", res.Summary.Text)

	got, err := db.GetSummary(ctx, "DAL9-1")
	require.NoError(t, err)
	require.Equal(t, "newer", got.Text)
}

func TestUpsertSummary_EqualSnapshotOverwrites(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	t0 := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	for _, text := range []string{"a", "b"} {
		_, err := db.UpsertSummary(ctx, SummaryUpsert{
			FAFlightID: "AAL1-1", Ident: "AAL1", Text: text, ObservedAt: t0, Now: t0,
		})
		require.NoError(t, err)
	}

	got, err := db.GetSummary(ctx, "AAL1-1")
	require.NoError(t, err)
	require.Equal(t, "b", got.Text)
}

func TestUpsertSummary_ConcurrentWritersKeepOneRow(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	t0 := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := db.UpsertSummary(ctx, SummaryUpsert{
				FAFlightID: "SWA7-1", Ident: "SWA7", Text: "x", ObservedAt: t0, Now: t0,
			})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}

	n, err := db.CountSummaries(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

func TestUpsertSummary_RejectsEmptyID(t *testing.T) {
	db := newTestDB(t)

	_, err := db.UpsertSummary(context.Background(), SummaryUpsert{Text: "x"})
	require.Error(t, err)
}

func TestGetSummary_NotFound(t *testing.T) {
	db := newTestDB(t)

	_, err := db.GetSummary(context.Background(), "missing")
	require.True(t, errors.Is(err, ErrNotFound))
}

func TestLatestSummaryByIdent(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	t0 := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	_, err := db.UpsertSummary(ctx, SummaryUpsert{
		FAFlightID: "UAL1-a", Ident: "UAL1", Text: "yesterday", ObservedAt: t0, Now: t0,
	})
	require.NoError(t, err)
	_, err = db.UpsertSummary(ctx, SummaryUpsert{
		FAFlightID: "UAL1-b", Ident: "UAL1", Text: "today",
		ObservedAt: t0.Add(24 * time.Hour), Now: t0.Add(24 * time.Hour),
	})
	require.NoError(t, err)

	got, err := db.LatestSummaryByIdent(ctx, "UAL1")
	require.NoError(t, err)
	require.Equal(t, "UAL1-b", got.FAFlightID)

	_, err = db.LatestSummaryByIdent(ctx, "NOPE")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestRecentSummaries(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	t0 := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	for i, id := range []string{"a", "b", "c"} {
		at := t0.Add(time.Duration(i) * time.Minute)
		_, err := db.UpsertSummary(ctx, SummaryUpsert{
			FAFlightID: id, Ident: "X", Text: id, ObservedAt: at, Now: at,
		})
		require.NoError(t, err)
	}

	got, err := db.RecentSummaries(ctx, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, "c", got[0].FAFlightID)
	require.Equal(t, "b", got[1].FAFlightID)
}
