// Package events carries PendingEvents from the flight cache to the
// summarizer with at-least-once delivery.
package events

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/j-veylop/flightwatch/internal/models"
)

// ErrChannelFull is returned by MemoryChannel.Publish when the buffer is full.
var ErrChannelFull = errors.New("event channel full")

// ErrAlreadySettled is returned when a delivery is acked or nacked twice.
var ErrAlreadySettled = errors.New("delivery already settled")

// Publisher accepts events for delivery. Publish must not block on
// consumers.
type Publisher interface {
	Publish(ctx context.Context, ev models.PendingEvent) error
}

// Consumer hands out deliveries until ctx is cancelled. The returned channel
// is closed when the consumer stops; a consumer cannot be restarted.
type Consumer interface {
	Consume(ctx context.Context) <-chan *Delivery
}

// Channel is both ends of an event source.
type Channel interface {
	Publisher
	Consumer
}

// Delivery is one delivery attempt of an event. Exactly one of Ack or Nack
// must be called.
type Delivery struct {
	ack     func(ctx context.Context) error
	nack    func(ctx context.Context, delay time.Duration, reason string) error
	Event   models.PendingEvent
	Attempt int
	settled atomic.Bool
}

// Ack marks the event as handled.
func (d *Delivery) Ack(ctx context.Context) error {
	if !d.settled.CompareAndSwap(false, true) {
		return ErrAlreadySettled
	}
	return d.ack(ctx)
}

// Nack returns the event to its source for redelivery after delay.
func (d *Delivery) Nack(ctx context.Context, delay time.Duration, reason string) error {
	if !d.settled.CompareAndSwap(false, true) {
		return ErrAlreadySettled
	}
	return d.nack(ctx, delay, reason)
}

// NewEvent builds a PendingEvent for a freshly fetched flight.
func NewEvent(f *models.Flight, observedAt time.Time) models.PendingEvent {
	return models.PendingEvent{
		EventID:    newEventID(),
		FAFlightID: f.FAFlightID,
		ObservedAt: observedAt,
		Flight:     f.Clone(),
	}
}

// newEventID returns a time-ordered id so queue ordering follows creation.
func newEventID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
