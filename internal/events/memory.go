package events

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/j-veylop/flightwatch/internal/logger"
	"github.com/j-veylop/flightwatch/internal/models"
)

// DefaultBufferSize is the MemoryChannel capacity used when none is given.
const DefaultBufferSize = 256

type queued struct {
	ev      models.PendingEvent
	attempt int
}

// MemoryChannel is an in-process bounded event channel. Events are lost when
// the process exits; use Outbox to survive restarts.
type MemoryChannel struct {
	buf     chan queued
	log     *slog.Logger
	closed  chan struct{}
	once    sync.Once
	started sync.Once
}

// NewMemoryChannel creates a channel holding at most size undelivered events.
func NewMemoryChannel(size int) *MemoryChannel {
	if size <= 0 {
		size = DefaultBufferSize
	}
	return &MemoryChannel{
		buf:    make(chan queued, size),
		log:    logger.With("events"),
		closed: make(chan struct{}),
	}
}

// Publish enqueues ev without blocking. It fails with ErrChannelFull when
// the buffer is full.
func (c *MemoryChannel) Publish(_ context.Context, ev models.PendingEvent) error {
	return c.offer(queued{ev: ev, attempt: 1})
}

func (c *MemoryChannel) offer(q queued) error {
	select {
	case c.buf <- q:
		return nil
	default:
		return ErrChannelFull
	}
}

// Len returns the number of buffered events.
func (c *MemoryChannel) Len() int {
	return len(c.buf)
}

// Consume implements Consumer. Only the first call yields deliveries; later
// calls return a closed channel.
func (c *MemoryChannel) Consume(ctx context.Context) <-chan *Delivery {
	out := make(chan *Delivery)

	started := false
	c.started.Do(func() { started = true })
	if !started {
		close(out)
		return out
	}

	go func() {
		defer close(out)
		defer c.once.Do(func() { close(c.closed) })

		for {
			select {
			case <-ctx.Done():
				return
			case q := <-c.buf:
				d := c.delivery(q)
				select {
				case out <- d:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out
}

func (c *MemoryChannel) delivery(q queued) *Delivery {
	return &Delivery{
		Event:   q.ev,
		Attempt: q.attempt,
		ack:     func(context.Context) error { return nil },
		nack: func(_ context.Context, delay time.Duration, reason string) error {
			c.log.Debug("event nacked", "event_id", q.ev.EventID, "attempt", q.attempt, "delay", delay, "reason", reason)
			c.redeliver(queued{ev: q.ev, attempt: q.attempt + 1}, delay)
			return nil
		},
	}
}

// redeliver re-enqueues q after delay, retrying while the buffer is full.
// Pending redeliveries are dropped once the consumer has stopped.
func (c *MemoryChannel) redeliver(q queued, delay time.Duration) {
	time.AfterFunc(delay, func() {
		select {
		case <-c.closed:
			c.log.Warn("dropping event after shutdown", "event_id", q.ev.EventID)
			return
		default:
		}

		if err := c.offer(q); err != nil {
			c.redeliver(q, time.Second)
		}
	})
}
