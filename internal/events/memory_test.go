package events

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/j-veylop/flightwatch/internal/models"
)

func flight(id string) *models.Flight {
	return &models.Flight{FAFlightID: id, Ident: "UAL123", Status: "Scheduled"}
}

func receive(t *testing.T, ch <-chan *Delivery) *Delivery {
	t.Helper()
	select {
	case d, ok := <-ch:
		require.True(t, ok, "consumer closed")
		return d
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for delivery")
		return nil
	}
}

func TestMemoryChannel_PublishConsumeAck(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c := NewMemoryChannel(4)
	ev := NewEvent(flight("f1"), time.Now())
	require.NoError(t, c.Publish(ctx, ev))

	d := receive(t, c.Consume(ctx))
	assert.Equal(t, ev.EventID, d.Event.EventID)
	assert.Equal(t, 1, d.Attempt)
	require.NoError(t, d.Ack(ctx))
	require.ErrorIs(t, d.Ack(ctx), ErrAlreadySettled)
	require.ErrorIs(t, d.Nack(ctx, 0, ""), ErrAlreadySettled)
}

func TestMemoryChannel_FullBuffer(t *testing.T) {
	c := NewMemoryChannel(1)
	ctx := context.Background()

	require.NoError(t, c.Publish(ctx, NewEvent(flight("f1"), time.Now())))
	require.ErrorIs(t, c.Publish(ctx, NewEvent(flight("f2"), time.Now())), ErrChannelFull)
	assert.Equal(t, 1, c.Len())
}

func TestMemoryChannel_NackRedelivers(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c := NewMemoryChannel(4)
	require.NoError(t, c.Publish(ctx, NewEvent(flight("f1"), time.Now())))

	deliveries := c.Consume(ctx)
	first := receive(t, deliveries)
	require.NoError(t, first.Nack(ctx, 10*time.Millisecond, "boom"))

	second := receive(t, deliveries)
	assert.Equal(t, first.Event.EventID, second.Event.EventID)
	assert.Equal(t, 2, second.Attempt)
}

func TestMemoryChannel_ConsumeIsNotRestartable(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c := NewMemoryChannel(4)
	_ = c.Consume(ctx)

	_, ok := <-c.Consume(ctx)
	assert.False(t, ok)
}

func TestMemoryChannel_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	c := NewMemoryChannel(4)
	deliveries := c.Consume(ctx)
	cancel()

	select {
	case _, ok := <-deliveries:
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("consumer did not stop")
	}
}

func TestNewEvent_CopiesFlight(t *testing.T) {
	f := flight("f1")
	ev := NewEvent(f, time.Now())
	f.Status = "Landed"

	assert.Equal(t, "Scheduled", ev.Flight.Status)
	assert.Equal(t, "f1", ev.FAFlightID)
	assert.NotEmpty(t, ev.EventID)
	assert.NotEqual(t, ev.EventID, NewEvent(f, time.Now()).EventID)
}
