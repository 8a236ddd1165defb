package summarizer

import (
	"math"
	"math/rand/v2"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// unbounded stands in for a missing Max, leaving room for jitter.
const unbounded = time.Duration(math.MaxInt64 / 2)

// Backoff is the retry schedule of a summarization attempt.
type Backoff struct {
	Base time.Duration
	// Max caps the exponential delay. Zero means no cap.
	Max         time.Duration
	Jitter      time.Duration
	MaxAttempts int
}

// DefaultBackoff waits 2s, 4s, 8s, ... capped at 60s, for up to 5 attempts.
func DefaultBackoff() Backoff {
	return Backoff{
		Base:        2 * time.Second,
		Max:         60 * time.Second,
		Jitter:      500 * time.Millisecond,
		MaxAttempts: 5,
	}
}

// Delay returns how long to wait after the given failed attempt (1-based).
// A positive hint from the provider is honored exactly.
func (b Backoff) Delay(attempt int, hint time.Duration) time.Duration {
	if hint > 0 {
		return hint
	}
	if attempt < 1 {
		attempt = 1
	}

	limit := b.Max
	if limit <= 0 {
		limit = unbounded
	}

	exp := b.schedule(limit)
	d := exp.NextBackOff()
	for i := 1; i < attempt && d < limit; i++ {
		d = exp.NextBackOff()
	}
	d = min(d, limit)

	if b.Jitter > 0 {
		d += rand.N(b.Jitter)
	}
	return d
}

// schedule builds a deterministic doubling schedule. Jitter is added by
// Delay so it stays bounded by Jitter instead of a fraction of the delay.
func (b Backoff) schedule(limit time.Duration) *backoff.ExponentialBackOff {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = max(b.Base, 0)
	exp.Multiplier = 2
	exp.RandomizationFactor = 0
	exp.MaxInterval = limit
	exp.MaxElapsedTime = 0
	exp.Reset()
	return exp
}
