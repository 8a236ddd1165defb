package flightcache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/j-veylop/flightwatch/internal/models"
)

func TestMemoryCache_Expiry(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
	c := NewMemoryCache(clock.Now)

	c.Set("a", &models.Flight{FAFlightID: "a"}, time.Minute)
	c.Set("b", &models.Flight{FAFlightID: "b"}, time.Hour)
	c.Set("c", &models.Flight{FAFlightID: "c"}, 0)

	_, ok := c.Get("a")
	assert.True(t, ok)
	_, ok = c.Get("c")
	assert.False(t, ok, "zero ttl is not stored")

	clock.Advance(time.Minute)
	_, ok = c.Get("a")
	assert.False(t, ok)
	assert.Equal(t, 1, c.Len(), "expired entry dropped on read")

	clock.Advance(time.Hour)
	assert.Equal(t, 1, c.Prune())
	assert.Equal(t, 0, c.Len())
}

func TestMemoryCache_Delete(t *testing.T) {
	c := NewMemoryCache(nil)
	c.Set("a", &models.Flight{}, time.Minute)
	c.Delete("a")

	_, ok := c.Get("a")
	assert.False(t, ok)
}
