package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/j-veylop/flightwatch/internal/services/quota"
)

// CounterStore persists quota window counters so every process sharing the
// database enforces one quota.
type CounterStore struct {
	db *DB
}

// NewCounterStore returns a quota.CounterStore backed by db.
func NewCounterStore(db *DB) *CounterStore {
	return &CounterStore{db: db}
}

var _ quota.CounterStore = (*CounterStore)(nil)

// Reserve implements quota.CounterStore. The read, check and write happen in
// one immediate transaction.
func (s *CounterStore) Reserve(ctx context.Context, limiter string, windows []quota.Window, now time.Time) (quota.Reservation, error) {
	var res quota.Reservation

	err := s.db.withTx(ctx, func(tx *sql.Tx) error {
		current, err := loadCounters(ctx, tx, limiter)
		if err != nil {
			return err
		}

		res = quota.Apply(windows, current, now)
		if !res.Allowed {
			return nil
		}

		for _, st := range res.States {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO quota_counters (limiter, window_name, count, window_start)
				VALUES (?, ?, ?, ?)
				ON CONFLICT (limiter, window_name) DO UPDATE SET
					count = excluded.count,
					window_start = excluded.window_start`,
				limiter, st.Name, st.Count, st.Start.UnixMilli())
			if err != nil {
				return fmt.Errorf("failed to write quota counter: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return quota.Reservation{}, err
	}

	return res, nil
}

// Load implements quota.CounterStore.
func (s *CounterStore) Load(ctx context.Context, limiter string) (map[string]quota.WindowState, error) {
	return loadCounters(ctx, s.db, limiter)
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func loadCounters(ctx context.Context, q querier, limiter string) (map[string]quota.WindowState, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT window_name, count, window_start FROM quota_counters WHERE limiter = ?`, limiter)
	if err != nil {
		return nil, fmt.Errorf("failed to query quota counters: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := make(map[string]quota.WindowState)
	for rows.Next() {
		var (
			st    quota.WindowState
			start int64
		)
		if err := rows.Scan(&st.Name, &st.Count, &start); err != nil {
			return nil, fmt.Errorf("failed to scan quota counter: %w", err)
		}
		st.Start = time.UnixMilli(start).UTC()
		out[st.Name] = st
	}
	return out, rows.Err()
}
