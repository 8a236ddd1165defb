package summarizer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/j-veylop/flightwatch/internal/db"
	"github.com/j-veylop/flightwatch/internal/logger"
	"github.com/j-veylop/flightwatch/internal/models"
	"github.com/j-veylop/flightwatch/internal/services/provider"
)

// ErrRetriesExhausted wraps the last error once every attempt has failed.
var ErrRetriesExhausted = errors.New("summary retries exhausted")

// ErrInvalidEvent is returned for events that carry no flight.
var ErrInvalidEvent = errors.New("invalid flight event")

var errQuotaExhausted = errors.New("local summary quota exhausted")

// State is a step of processing one delivery.
type State int

const (
	// StateReceived is the state of a delivery before the first attempt.
	StateReceived State = iota
	// StateGenerating means a summarization call is in flight.
	StateGenerating
	// StateSucceeded is terminal: the summary is stored.
	StateSucceeded
	// StateRetryScheduled means the worker is waiting out a backoff.
	StateRetryScheduled
	// StateFailed is terminal for this delivery.
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateReceived:
		return "received"
	case StateGenerating:
		return "generating"
	case StateSucceeded:
		return "succeeded"
	case StateRetryScheduled:
		return "retry_scheduled"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Summarizer produces the summary text for a flight.
type Summarizer interface {
	Summarize(ctx context.Context, f *models.Flight) (string, error)
}

// Store persists summaries.
type Store interface {
	UpsertSummary(ctx context.Context, in db.SummaryUpsert) (db.UpsertResult, error)
}

// Gate decides whether a summarization call may be made.
type Gate interface {
	Allow(ctx context.Context) bool
}

// Outcome is the result of Process.
type Outcome struct {
	Summary  *models.Summary
	State    State
	Attempts int
	// Stale is set when a newer summary was already stored.
	Stale bool
}

// WorkerStats counts processed deliveries.
type WorkerStats struct {
	Succeeded int64
	Failed    int64
	Retries   int64
	Stale     int64
}

// Worker runs the retry state machine for one delivery at a time. A Worker
// is safe for concurrent use.
type Worker struct {
	client   Summarizer
	store    Store
	gate     Gate
	log      *slog.Logger
	now      func() time.Time
	sleep    func(ctx context.Context, d time.Duration) error
	observer func(ev models.PendingEvent, s State, attempt int)
	backoff  Backoff

	succeeded atomic.Int64
	failed    atomic.Int64
	retries   atomic.Int64
	stale     atomic.Int64
}

// WorkerOption configures a Worker.
type WorkerOption func(*Worker)

// WithBackoff overrides DefaultBackoff.
func WithBackoff(b Backoff) WorkerOption {
	return func(w *Worker) { w.backoff = b }
}

// WithSleep replaces the backoff wait, for tests.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) WorkerOption {
	return func(w *Worker) { w.sleep = fn }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) WorkerOption {
	return func(w *Worker) { w.now = now }
}

// WithObserver registers a callback for every state transition.
func WithObserver(fn func(ev models.PendingEvent, s State, attempt int)) WorkerOption {
	return func(w *Worker) { w.observer = fn }
}

// NewWorker creates a worker. A nil gate allows every call.
func NewWorker(client Summarizer, store Store, gate Gate, opts ...WorkerOption) *Worker {
	w := &Worker{
		client:  client,
		store:   store,
		gate:    gate,
		log:     logger.With("summarizer"),
		now:     time.Now,
		sleep:   sleepCtx,
		backoff: DefaultBackoff(),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.backoff.MaxAttempts < 1 {
		w.backoff.MaxAttempts = 1
	}
	return w
}

// Process summarizes ev and stores the result, retrying retryable failures
// on the backoff schedule. Processing the same event twice leaves one stored
// summary.
func (w *Worker) Process(ctx context.Context, ev models.PendingEvent) (Outcome, error) {
	log := w.log.With("event_id", ev.EventID, "fa_flight_id", ev.FAFlightID)
	w.transition(log, ev, StateReceived, 0)

	if ev.Flight == nil || ev.FAFlightID == "" {
		w.transition(log, ev, StateFailed, 0)
		w.failed.Add(1)
		return Outcome{State: StateFailed}, ErrInvalidEvent
	}

	for attempt := 1; ; attempt++ {
		w.transition(log, ev, StateGenerating, attempt)

		text, err := w.generate(ctx, ev.Flight)
		if err == nil {
			return w.save(ctx, log, ev, text, attempt)
		}

		kind := provider.KindOf(err)
		if !kind.Retryable() {
			log.Warn("summary failed", "attempt", attempt, "kind", kind, "error", err)
			return w.fail(log, ev, attempt, err)
		}

		if attempt >= w.backoff.MaxAttempts {
			log.Warn("summary retries exhausted", "attempts", attempt, "kind", kind, "error", err)
			return w.fail(log, ev, attempt, fmt.Errorf("%w after %d attempts: %w", ErrRetriesExhausted, attempt, err))
		}

		delay := w.backoff.Delay(attempt, provider.RetryAfterOf(err))
		w.retries.Add(1)
		w.transition(log, ev, StateRetryScheduled, attempt)
		log.Info("summary retry scheduled", "attempt", attempt, "kind", kind, "delay", delay)

		if err := w.sleep(ctx, delay); err != nil {
			return w.fail(log, ev, attempt, err)
		}
	}
}

func (w *Worker) generate(ctx context.Context, f *models.Flight) (string, error) {
	if w.gate != nil && !w.gate.Allow(ctx) {
		return "", provider.RateLimited("summarize flight", 0, errQuotaExhausted)
	}
	return w.client.Summarize(ctx, f)
}

func (w *Worker) save(ctx context.Context, log *slog.Logger, ev models.PendingEvent, text string, attempt int) (Outcome, error) {
	observed := ev.ObservedAt
	if observed.IsZero() {
		observed = w.now()
	}

	res, err := w.store.UpsertSummary(ctx, db.SummaryUpsert{
		FAFlightID: ev.FAFlightID,
		Ident:      ev.Flight.Ident,
		Text:       text,
		ObservedAt: observed,
		Now:        w.now(),
	})
	if err != nil {
		log.Error("failed to store summary", "error", err)
		return w.fail(log, ev, attempt, fmt.Errorf("store summary: %w", err))
	}

	if res.Stale {
		w.stale.Add(1)
		log.Info("newer summary already stored, skipping", "stored_observed_at", res.Summary.SourceObservedAt)
	} else {
		log.Info("summary stored", "ident", ev.Flight.Ident, "created", res.Created, "attempts", attempt)
	}

	w.succeeded.Add(1)
	w.transition(log, ev, StateSucceeded, attempt)
	summary := res.Summary
	return Outcome{State: StateSucceeded, Attempts: attempt, Summary: &summary, Stale: res.Stale}, nil
}

func (w *Worker) fail(log *slog.Logger, ev models.PendingEvent, attempt int, err error) (Outcome, error) {
	w.failed.Add(1)
	w.transition(log, ev, StateFailed, attempt)
	return Outcome{State: StateFailed, Attempts: attempt}, err
}

func (w *Worker) transition(log *slog.Logger, ev models.PendingEvent, s State, attempt int) {
	log.Debug("summary state", "state", s, "attempt", attempt)
	if w.observer != nil {
		w.observer(ev, s, attempt)
	}
}

// Stats returns a snapshot of the worker counters.
func (w *Worker) Stats() WorkerStats {
	return WorkerStats{
		Succeeded: w.succeeded.Load(),
		Failed:    w.failed.Load(),
		Retries:   w.retries.Load(),
		Stale:     w.stale.Load(),
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
