// Package flightcache serves flight records cache-aside in front of the
// rate-limited flight-data provider.
package flightcache

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/j-veylop/flightwatch/internal/events"
	"github.com/j-veylop/flightwatch/internal/logger"
	"github.com/j-veylop/flightwatch/internal/models"
	"github.com/j-veylop/flightwatch/internal/services/provider"
)

// DefaultTTL is how long a fetched flight is served from cache.
const DefaultTTL = 5 * time.Minute

// errQuotaExhausted is the cause wrapped by the rate-limit error returned
// when the local limiter denies a fetch.
var errQuotaExhausted = errors.New("local flight quota exhausted")

// Fetcher retrieves a flight from the provider.
type Fetcher interface {
	Fetch(ctx context.Context, ident string) (*models.Flight, error)
}

// Gate decides whether an upstream call may be made.
type Gate interface {
	Allow(ctx context.Context) bool
}

// Stats are the orchestrator counters.
type Stats struct {
	Hits            int64
	Misses          int64
	UpstreamCalls   int64
	PublishFailures int64
	Cached          int
	// LastUpstream and AvgUpstream time provider calls, failed ones included.
	LastUpstream time.Duration
	AvgUpstream  time.Duration
}

// HitRate returns hits over lookups, or 0 before the first lookup.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// Orchestrator implements GetOrFetch.
type Orchestrator struct {
	fetcher        Fetcher
	gate           Gate
	publisher      events.Publisher
	cache          Cache
	log            *slog.Logger
	now            func() time.Time
	onPublishError func(models.PendingEvent, error)
	group          singleflight.Group
	ttl            time.Duration

	hits            atomic.Int64
	misses          atomic.Int64
	upstreamCalls   atomic.Int64
	publishFailures atomic.Int64
	upstreamNanos   atomic.Int64
	lastUpstream    atomic.Int64
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithCache replaces the in-memory cache.
func WithCache(c Cache) Option {
	return func(o *Orchestrator) { o.cache = c }
}

// WithTTL overrides DefaultTTL.
func WithTTL(ttl time.Duration) Option {
	return func(o *Orchestrator) { o.ttl = ttl }
}

// WithClock overrides the time source used to stamp events.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// WithLogger overrides the logger.
func WithLogger(log *slog.Logger) Option {
	return func(o *Orchestrator) { o.log = log }
}

// OnPublishError registers a hook called for every event that could not be
// published. The fetch itself still succeeds.
func OnPublishError(fn func(models.PendingEvent, error)) Option {
	return func(o *Orchestrator) { o.onPublishError = fn }
}

// New creates an orchestrator. A nil gate allows every call and a nil
// publisher drops events.
func New(fetcher Fetcher, gate Gate, publisher events.Publisher, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		fetcher:   fetcher,
		gate:      gate,
		publisher: publisher,
		log:       logger.With("flightcache"),
		now:       time.Now,
		ttl:       DefaultTTL,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.cache == nil {
		o.cache = NewMemoryCache(o.now)
	}
	return o
}

// GetOrFetch returns the flight for ident from cache, or fetches, caches and
// announces it. Concurrent misses for one ident share a single upstream
// call, and only the caller that made it publishes the event.
//
// The upstream call is detached from ctx cancellation; the provider timeout
// bounds it. Errors are returned as is and never cached.
func (o *Orchestrator) GetOrFetch(ctx context.Context, ident string) (*models.Flight, error) {
	if f, ok := o.cache.Get(ident); ok {
		o.hits.Add(1)
		return f.Clone(), nil
	}
	o.misses.Add(1)

	var fetched bool
	v, err, _ := o.group.Do(ident, func() (any, error) {
		if f, ok := o.cache.Get(ident); ok {
			return f, nil
		}

		uctx := context.WithoutCancel(ctx)
		if o.gate != nil && !o.gate.Allow(uctx) {
			o.log.Warn("flight fetch denied by quota", "ident", ident)
			return nil, provider.RateLimited("fetch flight", 0, errQuotaExhausted)
		}

		o.upstreamCalls.Add(1)
		start := o.now()
		f, err := o.fetcher.Fetch(uctx, ident)
		o.observeUpstream(o.now().Sub(start))
		if err != nil {
			o.log.Warn("flight fetch failed", "ident", ident, "kind", provider.KindOf(err), "error", err)
			return nil, err
		}

		o.cache.Set(ident, f, o.ttl)
		fetched = true
		return f, nil
	})
	if err != nil {
		return nil, err
	}

	f := v.(*models.Flight)
	if fetched {
		o.publish(ctx, f)
	}
	return f.Clone(), nil
}

// publish announces a fresh fetch. Failures are logged and counted only.
func (o *Orchestrator) publish(ctx context.Context, f *models.Flight) {
	if o.publisher == nil {
		return
	}

	ev := events.NewEvent(f, o.now())
	if err := o.publisher.Publish(context.WithoutCancel(ctx), ev); err != nil {
		o.publishFailures.Add(1)
		o.log.Error("failed to publish flight event", "fa_flight_id", ev.FAFlightID, "event_id", ev.EventID, "error", err)
		if o.onPublishError != nil {
			o.onPublishError(ev, err)
		}
		return
	}

	o.log.Debug("flight event published", "fa_flight_id", ev.FAFlightID, "event_id", ev.EventID)
}

func (o *Orchestrator) observeUpstream(d time.Duration) {
	d = max(d, 0)
	o.upstreamNanos.Add(int64(d))
	o.lastUpstream.Store(int64(d))
}

// Invalidate drops ident from the cache so the next lookup goes upstream.
func (o *Orchestrator) Invalidate(ident string) {
	o.cache.Delete(ident)
}

// Prune drops expired cache entries and returns how many were removed.
func (o *Orchestrator) Prune() int {
	n := o.cache.Prune()
	if n > 0 {
		o.log.Debug("pruned expired flights", "count", n)
	}
	return n
}

// Stats returns a snapshot of the counters.
func (o *Orchestrator) Stats() Stats {
	s := Stats{
		Hits:            o.hits.Load(),
		Misses:          o.misses.Load(),
		UpstreamCalls:   o.upstreamCalls.Load(),
		PublishFailures: o.publishFailures.Load(),
		Cached:          o.cache.Len(),
		LastUpstream:    time.Duration(o.lastUpstream.Load()),
	}
	if s.UpstreamCalls > 0 {
		s.AvgUpstream = time.Duration(o.upstreamNanos.Load() / s.UpstreamCalls)
	}
	return s
}
