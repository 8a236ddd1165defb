package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/j-veylop/flightwatch/internal/models"
	"github.com/j-veylop/flightwatch/internal/services/provider"
)

// SummaryUpsert is the input of UpsertSummary.
type SummaryUpsert struct {
	// ObservedAt is when the flight snapshot that produced Text was fetched.
	ObservedAt time.Time
	// Now stamps GeneratedAt on insert and LastUpdatedAt on every write.
	Now        time.Time
	FAFlightID string
	Ident      string
	Text       string
}

// UpsertResult reports what UpsertSummary did.
type UpsertResult struct {
	Summary models.Summary
	Created bool
	// Stale is set when the stored summary came from a newer snapshot and
	// the write was skipped.
	Stale bool
}

const summaryColumns = `id, fa_flight_id, ident, summary_text, generated_at,
	last_updated_at, source_observed_at`

// maxUpsertAttempts bounds the insert/re-read loop on conflicts.
const maxUpsertAttempts = 3

// UpsertSummary writes the summary for a flight idempotently. The first write
// for a FAFlightID inserts a row; later writes replace only the text and
// update timestamps, keeping the original GeneratedAt. A write carrying an
// older ObservedAt than the stored row is skipped, so an out-of-order
// redelivery cannot roll a summary back. Equal ObservedAt values overwrite.
//
// A concurrent insert of the same FAFlightID is resolved by re-reading and
// updating.
func (db *DB) UpsertSummary(ctx context.Context, in SummaryUpsert) (UpsertResult, error) {
	if in.FAFlightID == "" {
		return UpsertResult{}, fmt.Errorf("upsert summary: empty fa_flight_id")
	}
	if in.Now.IsZero() {
		in.Now = time.Now()
	}

	var lastErr error
	for range maxUpsertAttempts {
		existing, err := db.GetSummary(ctx, in.FAFlightID)
		switch {
		case errors.Is(err, ErrNotFound):
			res, err := db.insertSummary(ctx, in)
			if errors.Is(err, provider.ErrPersistenceConflict) {
				lastErr = err
				continue
			}
			return res, err

		case err != nil:
			return UpsertResult{}, err
		}

		if existing.SourceObservedAt.After(in.ObservedAt) {
			return UpsertResult{Summary: *existing, Stale: true}, nil
		}

		updated, err := db.updateSummary(ctx, in)
		if err != nil {
			return UpsertResult{}, err
		}
		if !updated {
			// A newer snapshot landed between the read and the write.
			lastErr = fmt.Errorf("summary for %s changed concurrently", in.FAFlightID)
			continue
		}

		existing.Ident = in.Ident
		existing.Text = in.Text
		existing.LastUpdatedAt = in.Now.UTC().Truncate(time.Millisecond)
		existing.SourceObservedAt = in.ObservedAt.UTC().Truncate(time.Millisecond)
		return UpsertResult{Summary: *existing}, nil
	}

	return UpsertResult{}, fmt.Errorf("upsert summary %s: %w", in.FAFlightID, lastErr)
}

func (db *DB) insertSummary(ctx context.Context, in SummaryUpsert) (UpsertResult, error) {
	query := `
		INSERT INTO flight_summaries (
			fa_flight_id, ident, summary_text, generated_at,
			last_updated_at, source_observed_at
		) VALUES (?, ?, ?, ?, ?, ?)
	`

	now := toMillis(in.Now)
	result, err := db.ExecContext(ctx, query,
		in.FAFlightID, in.Ident, in.Text, now, now, toMillis(in.ObservedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return UpsertResult{}, &provider.Error{
				Kind: provider.KindPersistenceConflict,
				Op:   "insert summary",
				Err:  err,
			}
		}
		return UpsertResult{}, fmt.Errorf("failed to insert summary: %w", err)
	}

	id, _ := result.LastInsertId()
	return UpsertResult{
		Created: true,
		Summary: models.Summary{
			ID:               id,
			FAFlightID:       in.FAFlightID,
			Ident:            in.Ident,
			Text:             in.Text,
			GeneratedAt:      fromMillis(now),
			LastUpdatedAt:    fromMillis(now),
			SourceObservedAt: fromMillis(toMillis(in.ObservedAt)),
		},
	}, nil
}

// updateSummary overwrites text and timestamps unless a newer snapshot is
// stored. It reports whether a row was written.
func (db *DB) updateSummary(ctx context.Context, in SummaryUpsert) (bool, error) {
	query := `
		UPDATE flight_summaries
		SET ident = ?, summary_text = ?, last_updated_at = ?, source_observed_at = ?
		WHERE fa_flight_id = ? AND source_observed_at <= ?
	`

	observed := toMillis(in.ObservedAt)
	result, err := db.ExecContext(ctx, query,
		in.Ident, in.Text, toMillis(in.Now), observed, in.FAFlightID, observed)
	if err != nil {
		return false, fmt.Errorf("failed to update summary: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to update summary: %w", err)
	}
	return n > 0, nil
}

// GetSummary returns the summary for a flight id, or ErrNotFound.
func (db *DB) GetSummary(ctx context.Context, faFlightID string) (*models.Summary, error) {
	row := db.QueryRowContext(ctx,
		`SELECT `+summaryColumns+` FROM flight_summaries WHERE fa_flight_id = ?`, faFlightID)
	return scanSummary(row)
}

// LatestSummaryByIdent returns the most recently generated summary for a
// flight number, or ErrNotFound.
func (db *DB) LatestSummaryByIdent(ctx context.Context, ident string) (*models.Summary, error) {
	row := db.QueryRowContext(ctx, `
		SELECT `+summaryColumns+` FROM flight_summaries
		WHERE ident = ?
		ORDER BY generated_at DESC, id DESC
		LIMIT 1`, ident)
	return scanSummary(row)
}

// RecentSummaries returns the most recently updated summaries.
func (db *DB) RecentSummaries(ctx context.Context, limit int) ([]models.Summary, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT `+summaryColumns+` FROM flight_summaries
		ORDER BY last_updated_at DESC, id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent summaries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []models.Summary
	for rows.Next() {
		s, err := scanSummary(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

// CountSummaries returns the number of stored summaries.
func (db *DB) CountSummaries(ctx context.Context) (int, error) {
	var n int
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM flight_summaries`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count summaries: %w", err)
	}
	return n, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSummary(row scanner) (*models.Summary, error) {
	var (
		s                              models.Summary
		generated, updated, observedAt int64
	)

	err := row.Scan(&s.ID, &s.FAFlightID, &s.Ident, &s.Text, &generated, &updated, &observedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan summary: %w", err)
	}

	s.GeneratedAt = fromMillis(generated)
	s.LastUpdatedAt = fromMillis(updated)
	s.SourceObservedAt = fromMillis(observedAt)
	return &s, nil
}
