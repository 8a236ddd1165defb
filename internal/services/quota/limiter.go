package quota

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/j-veylop/flightwatch/internal/logger"
	"github.com/j-veylop/flightwatch/internal/models"
)

// WarnThreshold is the fraction of a ceiling at which usage is reported.
const WarnThreshold = 0.8

// Config holds the windows enforced by one limiter.
type Config struct {
	Windows []Window
	Enabled bool
}

// DefaultFlightConfig mirrors the flight-data provider's free tier.
func DefaultFlightConfig() Config {
	return Config{
		Enabled: true,
		Windows: []Window{
			{Name: "minute", Duration: time.Minute, Ceiling: 10},
			{Name: "hour", Duration: time.Hour, Ceiling: 200},
			{Name: "day", Duration: 24 * time.Hour, Ceiling: 300},
		},
	}
}

// DefaultSummaryConfig is the default quota for the summarization provider.
func DefaultSummaryConfig() Config {
	return Config{
		Enabled: true,
		Windows: []Window{
			{Name: "minute", Duration: time.Minute, Ceiling: 20},
			{Name: "hour", Duration: time.Hour, Ceiling: 500},
			{Name: "day", Duration: 24 * time.Hour, Ceiling: 2000},
		},
	}
}

// Notifier receives threshold alerts.
type Notifier interface {
	Notify(title, body string) error
}

// Limiter gates outbound calls against every configured window.
type Limiter struct {
	store    CounterStore
	notifier Notifier
	log      *slog.Logger
	now      func() time.Time
	// notified holds, per window, the start of the window period that has
	// already raised a threshold alert.
	notified  map[string]time.Time
	name      string
	cfg       Config
	failOpens atomic.Int64
	mu        sync.RWMutex
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

// WithLogger overrides the logger.
func WithLogger(log *slog.Logger) Option {
	return func(l *Limiter) { l.log = log }
}

// WithNotifier sends an alert the first time a window crosses WarnThreshold
// in a given window period.
func WithNotifier(n Notifier) Option {
	return func(l *Limiter) { l.notifier = n }
}

// New creates a limiter named name. The name keys the limiter's counters in
// the store, so limiters sharing a store must have distinct names.
func New(name string, cfg Config, store CounterStore, opts ...Option) *Limiter {
	if store == nil {
		store = NewMemoryStore()
	}

	l := &Limiter{
		name:     name,
		store:    store,
		log:      logger.With("quota").With("limiter", name),
		now:      time.Now,
		notified: make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.SetConfig(cfg)

	l.log.Info("quota limiter initialized", "enabled", cfg.Enabled, "windows", describe(l.cfg.Windows))
	return l
}

// Name returns the limiter name.
func (l *Limiter) Name() string {
	return l.name
}

// SetConfig swaps the enforced windows. Counters of windows whose name is
// kept survive the swap.
func (l *Limiter) SetConfig(cfg Config) {
	cfg.Windows = sortWindows(cfg.Windows)

	l.mu.Lock()
	l.cfg = cfg
	l.mu.Unlock()
}

func (l *Limiter) config() Config {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.cfg
}

// Allow reserves one call against every window. It returns false, without
// incrementing any counter, if any window would exceed its ceiling.
//
// If the counter store fails, Allow fails open and returns true: provider
// availability is preferred over strict quota accounting.
func (l *Limiter) Allow(ctx context.Context) bool {
	cfg := l.config()
	if !cfg.Enabled {
		return true
	}

	res, err := l.store.Reserve(ctx, l.name, cfg.Windows, l.now())
	if err != nil {
		l.failOpens.Add(1)
		l.log.Error("quota check failed, allowing request", "error", err)
		return true
	}

	if !res.Allowed {
		w := findWindow(cfg.Windows, res.Exceeded)
		l.log.Warn("quota exceeded", "window", res.Exceeded, "ceiling", w.Ceiling)
		return false
	}

	l.checkThresholds(cfg.Windows, res.States)
	return true
}

// Usage returns a snapshot of every window. It never mutates counters.
func (l *Limiter) Usage(ctx context.Context) models.QuotaUsage {
	cfg := l.config()
	usage := models.QuotaUsage{
		Limiter:   l.name,
		Enabled:   cfg.Enabled,
		FailOpens: l.failOpens.Load(),
		Windows:   make([]models.WindowUsage, len(cfg.Windows)),
	}

	states, err := l.store.Load(ctx, l.name)
	if err != nil {
		l.log.Error("failed to load quota usage", "error", err)
		states = nil
	}

	now := l.now()
	for i, w := range cfg.Windows {
		used := int64(0)
		if st, ok := states[w.Name]; ok && !st.Elapsed(w.Duration, now) {
			used = st.Count
		}
		usage.Windows[i] = models.WindowUsage{
			Name:     w.Name,
			Duration: w.Duration,
			Used:     used,
			Ceiling:  w.Ceiling,
		}
	}

	return usage
}

func (l *Limiter) checkThresholds(windows []Window, states []WindowState) {
	for i, w := range windows {
		if w.Ceiling <= 0 {
			continue
		}
		st := states[i]
		if float64(st.Count) < float64(w.Ceiling)*WarnThreshold {
			continue
		}

		pct := st.Count * 100 / w.Ceiling
		l.log.Warn("quota usage high", "window", w.Name, "used", st.Count, "ceiling", w.Ceiling, "percent", pct)

		if l.notifier == nil {
			continue
		}

		l.mu.Lock()
		already := l.notified[w.Name].Equal(st.Start)
		if !already {
			l.notified[w.Name] = st.Start
		}
		l.mu.Unlock()

		if already {
			continue
		}

		title := fmt.Sprintf("Quota high: %s", l.name)
		body := fmt.Sprintf("%d/%d calls used in the current %s window", st.Count, w.Ceiling, w.Name)
		if err := l.notifier.Notify(title, body); err != nil {
			l.log.Debug("quota notification failed", "error", err)
		}
	}
}

func findWindow(windows []Window, name string) Window {
	for _, w := range windows {
		if w.Name == name {
			return w
		}
	}
	return Window{Name: name}
}

func describe(windows []Window) string {
	s := ""
	for i, w := range windows {
		if i > 0 {
			s += ", "
		}
		s += fmt.Sprintf("%d/%s", w.Ceiling, w.Name)
	}
	return s
}
