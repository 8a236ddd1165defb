package events

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/j-veylop/flightwatch/internal/db"
	"github.com/j-veylop/flightwatch/internal/logger"
	"github.com/j-veylop/flightwatch/internal/models"
)

// Outbox defaults.
const (
	DefaultPollInterval = 500 * time.Millisecond
	DefaultLease        = 2 * time.Minute
)

// Queue is the durable storage behind an Outbox.
type Queue interface {
	EnqueueEvent(ctx context.Context, ev models.PendingEvent, now time.Time) (bool, error)
	ClaimEvent(ctx context.Context, now time.Time, lease time.Duration) (*db.QueuedEvent, error)
	AckEvent(ctx context.Context, id int64) error
	NackEvent(ctx context.Context, id int64, retryAt time.Time, reason string) error
	ExtendLease(ctx context.Context, id int64, until time.Time) error
}

// OutboxConfig holds Outbox settings.
type OutboxConfig struct {
	// PollInterval is how long the consumer sleeps when the queue is empty.
	PollInterval time.Duration
	// Lease is how long a claimed event stays invisible to other consumers.
	// The lease is renewed while the delivery is unsettled, so it only runs
	// out when the consuming process dies.
	Lease time.Duration
}

// Outbox is a durable event channel on the pending_events table. Several
// processes may publish to and consume from the same database.
type Outbox struct {
	queue   Queue
	log     *slog.Logger
	now     func() time.Time
	cfg     OutboxConfig
	started sync.Once
}

// NewOutbox creates an outbox on q.
func NewOutbox(q Queue, cfg OutboxConfig) *Outbox {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.Lease <= 0 {
		cfg.Lease = DefaultLease
	}
	return &Outbox{
		queue: q,
		log:   logger.With("outbox"),
		now:   time.Now,
		cfg:   cfg,
	}
}

// Publish stores ev. Publishing an EventID twice stores it once.
func (o *Outbox) Publish(ctx context.Context, ev models.PendingEvent) error {
	inserted, err := o.queue.EnqueueEvent(ctx, ev, o.now())
	if err != nil {
		return err
	}
	if !inserted {
		o.log.Debug("event already queued", "event_id", ev.EventID)
	}
	return nil
}

// Consume implements Consumer by polling the queue. Only the first call
// yields deliveries; later calls return a closed channel.
func (o *Outbox) Consume(ctx context.Context) <-chan *Delivery {
	out := make(chan *Delivery)

	started := false
	o.started.Do(func() { started = true })
	if !started {
		close(out)
		return out
	}

	go func() {
		defer close(out)

		for {
			q, err := o.queue.ClaimEvent(ctx, o.now(), o.cfg.Lease)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				if !errors.Is(err, db.ErrNotFound) {
					o.log.Error("failed to claim event", "error", err)
				}
				if !sleep(ctx, o.cfg.PollInterval) {
					return
				}
				continue
			}

			d := o.delivery(ctx, q)
			select {
			case out <- d:
			case <-ctx.Done():
				if err := d.Nack(ctx, 0, "consumer stopped"); err != nil {
					o.log.Warn("failed to release event", "id", q.ID, "error", err)
				}
				return
			}
		}
	}()

	return out
}

// delivery wraps a claimed row. Its lease is renewed until the delivery is
// settled or the consumer stops.
func (o *Outbox) delivery(ctx context.Context, q *db.QueuedEvent) *Delivery {
	id := q.ID
	done := make(chan struct{})
	go o.renewLease(ctx, id, done)

	return &Delivery{
		Event:   q.Event,
		Attempt: q.Attempts,
		ack: func(ctx context.Context) error {
			close(done)
			return o.queue.AckEvent(context.WithoutCancel(ctx), id)
		},
		nack: func(ctx context.Context, delay time.Duration, reason string) error {
			close(done)
			return o.queue.NackEvent(context.WithoutCancel(ctx), id, o.now().Add(delay), reason)
		},
	}
}

func (o *Outbox) renewLease(ctx context.Context, id int64, done <-chan struct{}) {
	ticker := time.NewTicker(max(o.cfg.Lease/3, time.Millisecond))
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			err := o.queue.ExtendLease(ctx, id, o.now().Add(o.cfg.Lease))
			if errors.Is(err, db.ErrNotFound) {
				return
			}
			if err != nil && ctx.Err() == nil {
				o.log.Warn("failed to renew lease", "id", id, "error", err)
			}
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
