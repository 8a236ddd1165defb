package summarizer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestBackoff_Schedule(t *testing.T) {
	b := Backoff{Base: 2 * time.Second, Max: 60 * time.Second, MaxAttempts: 5}

	want := []time.Duration{2, 4, 8, 16, 32, 60, 60}
	for i, w := range want {
		assert.Equal(t, w*time.Second, b.Delay(i+1, 0), "attempt %d", i+1)
	}
}

func TestBackoff_ZeroMaxKeepsDoubling(t *testing.T) {
	b := Backoff{Base: time.Second}

	want := []time.Duration{1, 2, 4, 8, 16}
	for i, w := range want {
		assert.Equal(t, w*time.Second, b.Delay(i+1, 0), "attempt %d", i+1)
	}
	assert.Positive(t, b.Delay(200, 0), "very late attempts do not overflow")
}

func TestBackoff_HintIsExact(t *testing.T) {
	b := DefaultBackoff()
	assert.Equal(t, 2*time.Second, b.Delay(1, 2*time.Second))
	assert.Equal(t, 90*time.Second, b.Delay(4, 90*time.Second), "hint may exceed Max")
}

func TestBackoff_Properties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		b := Backoff{
			Base:   time.Duration(rapid.Int64Range(1, int64(10*time.Second)).Draw(t, "base")),
			Max:    time.Duration(rapid.Int64Range(int64(time.Second), int64(5*time.Minute)).Draw(t, "max")),
			Jitter: time.Duration(rapid.Int64Range(0, int64(time.Second)).Draw(t, "jitter")),
		}
		attempt := rapid.IntRange(1, 40).Draw(t, "attempt")

		d := b.Delay(attempt, 0)
		ceiling := max(b.Max, b.Base)
		if d < min(b.Base, b.Max) {
			t.Fatalf("delay %v below base %v", d, b.Base)
		}
		if d > ceiling+b.Jitter {
			t.Fatalf("delay %v above cap %v plus jitter %v", d, ceiling, b.Jitter)
		}

		next := b.Delay(attempt+1, 0)
		if next+b.Jitter < d {
			t.Fatalf("delay shrank from %v to %v", d, next)
		}
	})
}
