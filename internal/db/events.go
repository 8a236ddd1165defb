package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/j-veylop/flightwatch/internal/logger"
	"github.com/j-veylop/flightwatch/internal/models"
)

// Event queue statuses.
const (
	EventPending    = "pending"
	EventDelivering = "delivering"
	// EventFailed rows could not be decoded. They are kept for inspection
	// and never claimed again.
	EventFailed = "failed"
)

// QueuedEvent is a claimed row of the pending event queue.
type QueuedEvent struct {
	LeaseUntil time.Time
	Event      models.PendingEvent
	ID         int64
	Attempts   int
}

// EventQueueStats counts queue rows by state.
type EventQueueStats struct {
	Pending    int
	Delivering int
	Failed     int
}

// EnqueueEvent stores an event for delivery. Re-enqueueing an EventID that is
// already queued is a no-op. It reports whether a row was inserted.
func (db *DB) EnqueueEvent(ctx context.Context, ev models.PendingEvent, now time.Time) (bool, error) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return false, fmt.Errorf("failed to encode event: %w", err)
	}

	result, err := db.ExecContext(ctx, `
		INSERT OR IGNORE INTO pending_events (
			event_id, fa_flight_id, payload_json, status, attempts, available_at, created_at
		) VALUES (?, ?, ?, ?, 0, ?, ?)`,
		ev.EventID, ev.FAFlightID, string(payload), EventPending, toMillis(now), toMillis(now))
	if err != nil {
		return false, fmt.Errorf("failed to enqueue event: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to enqueue event: %w", err)
	}
	return n > 0, nil
}

// ClaimEvent leases the oldest deliverable event until now+lease. An event is
// deliverable when it is pending and due, or when a previous lease expired
// without an ack. Rows whose payload cannot be decoded are marked failed and
// skipped. It returns ErrNotFound when nothing is deliverable.
func (db *DB) ClaimEvent(ctx context.Context, now time.Time, lease time.Duration) (*QueuedEvent, error) {
	var claimed *QueuedEvent

	err := db.withTx(ctx, func(tx *sql.Tx) error {
		nowMs := toMillis(now)

		for {
			var (
				q       QueuedEvent
				payload string
			)
			err := tx.QueryRowContext(ctx, `
				SELECT id, payload_json, attempts FROM pending_events
				WHERE (status = ? AND available_at <= ?)
				   OR (status = ? AND lease_until <= ?)
				ORDER BY available_at, id
				LIMIT 1`,
				EventPending, nowMs, EventDelivering, nowMs).Scan(&q.ID, &payload, &q.Attempts)
			if errors.Is(err, sql.ErrNoRows) {
				// Commit so rows quarantined in this pass stay quarantined.
				return nil
			}
			if err != nil {
				return fmt.Errorf("failed to select event: %w", err)
			}

			if err := json.Unmarshal([]byte(payload), &q.Event); err != nil {
				logger.Error("quarantining undecodable event", "id", q.ID, "error", err)
				_, err = tx.ExecContext(ctx, `
					UPDATE pending_events
					SET status = ?, lease_until = NULL, last_error = ?
					WHERE id = ?`,
					EventFailed, "decode: "+err.Error(), q.ID)
				if err != nil {
					return fmt.Errorf("failed to quarantine event %d: %w", q.ID, err)
				}
				continue
			}

			q.Attempts++
			q.LeaseUntil = now.Add(lease)
			_, err = tx.ExecContext(ctx, `
				UPDATE pending_events
				SET status = ?, attempts = ?, lease_until = ?
				WHERE id = ?`,
				EventDelivering, q.Attempts, toMillis(q.LeaseUntil), q.ID)
			if err != nil {
				return fmt.Errorf("failed to lease event: %w", err)
			}

			claimed = &q
			return nil
		}
	})
	if err != nil {
		return nil, err
	}
	if claimed == nil {
		return nil, ErrNotFound
	}

	return claimed, nil
}

// ExtendLease pushes the lease of a claimed event to until. It returns
// ErrNotFound when the event is no longer leased, e.g. after an ack.
func (db *DB) ExtendLease(ctx context.Context, id int64, until time.Time) error {
	result, err := db.ExecContext(ctx, `
		UPDATE pending_events SET lease_until = ?
		WHERE id = ? AND status = ?`,
		toMillis(until), id, EventDelivering)
	if err != nil {
		return fmt.Errorf("failed to extend lease: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to extend lease: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// AckEvent removes a delivered event.
func (db *DB) AckEvent(ctx context.Context, id int64) error {
	if _, err := db.ExecContext(ctx, `DELETE FROM pending_events WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to ack event: %w", err)
	}
	return nil
}

// NackEvent returns an event to the queue, deliverable again at retryAt.
func (db *DB) NackEvent(ctx context.Context, id int64, retryAt time.Time, reason string) error {
	_, err := db.ExecContext(ctx, `
		UPDATE pending_events
		SET status = ?, available_at = ?, lease_until = NULL, last_error = ?
		WHERE id = ?`,
		EventPending, toMillis(retryAt), nullString(reason), id)
	if err != nil {
		return fmt.Errorf("failed to nack event: %w", err)
	}
	return nil
}

// EventQueueStats returns the number of queued events by state.
func (db *DB) EventQueueStats(ctx context.Context) (EventQueueStats, error) {
	var stats EventQueueStats
	err := db.QueryRowContext(ctx, `
		SELECT
			COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0)
		FROM pending_events`, EventPending, EventDelivering, EventFailed).
		Scan(&stats.Pending, &stats.Delivering, &stats.Failed)
	if err != nil {
		return EventQueueStats{}, fmt.Errorf("failed to read event queue stats: %w", err)
	}
	return stats, nil
}
