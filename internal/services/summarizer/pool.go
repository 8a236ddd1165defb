package summarizer

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/j-veylop/flightwatch/internal/events"
	"github.com/j-veylop/flightwatch/internal/logger"
)

// Pool defaults.
const (
	DefaultWorkers       = 2
	DefaultNackDelay     = 30 * time.Second
	DefaultMaxDeliveries = 10
)

// PoolConfig holds Pool settings.
type PoolConfig struct {
	// Workers is the number of deliveries processed concurrently.
	Workers int
	// NackDelay is how long a failed delivery waits before redelivery.
	NackDelay time.Duration
	// MaxDeliveries drops an event after this many failed deliveries.
	MaxDeliveries int
}

// Pool consumes deliveries with a fixed number of goroutines sharing one
// Worker.
type Pool struct {
	worker *Worker
	log    *slog.Logger
	cfg    PoolConfig
}

// NewPool creates a pool running w.
func NewPool(w *Worker, cfg PoolConfig) *Pool {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	if cfg.NackDelay <= 0 {
		cfg.NackDelay = DefaultNackDelay
	}
	if cfg.MaxDeliveries <= 0 {
		cfg.MaxDeliveries = DefaultMaxDeliveries
	}
	return &Pool{
		worker: w,
		log:    logger.With("summarizer.pool"),
		cfg:    cfg,
	}
}

// Run processes deliveries from c until ctx is cancelled.
func (p *Pool) Run(ctx context.Context, c events.Consumer) error {
	deliveries := c.Consume(ctx)
	p.log.Info("summarizer pool started", "workers", p.cfg.Workers)

	g, gctx := errgroup.WithContext(ctx)
	for i := range p.cfg.Workers {
		g.Go(func() error {
			for d := range deliveries {
				p.handle(gctx, i, d)
			}
			return nil
		})
	}

	err := g.Wait()
	p.log.Info("summarizer pool stopped")
	return err
}

func (p *Pool) handle(ctx context.Context, worker int, d *events.Delivery) {
	log := p.log.With("worker", worker, "event_id", d.Event.EventID, "delivery", d.Attempt)

	_, err := p.worker.Process(ctx, d.Event)
	switch {
	case err == nil:
		if err := d.Ack(ctx); err != nil {
			log.Error("failed to ack event", "error", err)
		}

	case errors.Is(err, ErrInvalidEvent) || d.Attempt >= p.cfg.MaxDeliveries:
		log.Error("dropping event", "error", err)
		if err := d.Ack(ctx); err != nil {
			log.Error("failed to ack event", "error", err)
		}

	default:
		delay := p.cfg.NackDelay
		if ctx.Err() != nil {
			// Shutting down: hand the event back for the next run.
			delay = 0
		}
		if err := d.Nack(ctx, delay, err.Error()); err != nil {
			log.Error("failed to nack event", "error", err)
		}
	}
}
