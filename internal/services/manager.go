// Package services wires the flight pipeline together and routes its events
// to the CLI and the TUI.
package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/j-veylop/flightwatch/internal/config"
	"github.com/j-veylop/flightwatch/internal/db"
	"github.com/j-veylop/flightwatch/internal/events"
	"github.com/j-veylop/flightwatch/internal/logger"
	"github.com/j-veylop/flightwatch/internal/models"
	"github.com/j-veylop/flightwatch/internal/services/flightcache"
	"github.com/j-veylop/flightwatch/internal/services/flightdata"
	"github.com/j-veylop/flightwatch/internal/services/quota"
	"github.com/j-veylop/flightwatch/internal/services/summarizer"
)

type (
	// FlightFetchedEvent is emitted after a successful lookup.
	FlightFetchedEvent struct {
		Flight *models.Flight
		Ident  string
	}

	// SummaryStateEvent is emitted on every summarizer state transition.
	SummaryStateEvent struct {
		EventID    string
		FAFlightID string
		Ident      string
		State      summarizer.State
		Attempt    int
	}

	// QuotaUpdatedEvent is emitted when limiter usage may have changed.
	QuotaUpdatedEvent struct {
		Usage []models.QuotaUsage
	}

	// LimitsReloadedEvent is emitted after the limits file is re-applied.
	LimitsReloadedEvent struct{}

	// ErrorEvent is emitted when an error occurs in any service.
	ErrorEvent struct {
		Error   error
		Service string
		Ident   string
	}

	// StatsEvent carries pipeline counters.
	StatsEvent struct {
		Cache     flightcache.Stats
		Worker    summarizer.WorkerStats
		Queue     db.EventQueueStats
		Summaries int
	}
)

// ServiceEvent is the interface implemented by all service events.
type ServiceEvent interface {
	isServiceEvent()
}

func (FlightFetchedEvent) isServiceEvent()  {}
func (SummaryStateEvent) isServiceEvent()   {}
func (QuotaUpdatedEvent) isServiceEvent()   {}
func (LimitsReloadedEvent) isServiceEvent() {}
func (ErrorEvent) isServiceEvent()          {}
func (StatsEvent) isServiceEvent()          {}

// Option configures a Manager.
type Option func(*Manager)

// WithFetcher replaces the flight-data client.
func WithFetcher(f flightcache.Fetcher) Option {
	return func(m *Manager) { m.fetcher = f }
}

// WithSummarizer replaces the summarization client.
func WithSummarizer(s summarizer.Summarizer) Option {
	return func(m *Manager) { m.summarizer = s }
}

// WithWorkerOptions passes extra options to the summary worker.
func WithWorkerOptions(opts ...summarizer.WorkerOption) Option {
	return func(m *Manager) { m.workerOpts = append(m.workerOpts, opts...) }
}

// Manager owns the pipeline components and event routing.
type Manager struct {
	cfg            *config.Config
	database       *db.DB
	fetcher        flightcache.Fetcher
	summarizer     summarizer.Summarizer
	flightLimiter  *quota.Limiter
	summaryLimiter *quota.Limiter
	orchestrator   *flightcache.Orchestrator
	channel        events.Channel
	worker         *summarizer.Worker
	pool           *summarizer.Pool
	limitsWatcher  *config.FileWatcher
	subscribers    []chan<- ServiceEvent
	workerOpts     []summarizer.WorkerOption
	mu             sync.RWMutex
	closeOnce      sync.Once
}

// NewManager creates a new service manager.
func NewManager(cfg *config.Config, opts ...Option) (*Manager, error) {
	m := &Manager{cfg: cfg}
	for _, opt := range opts {
		opt(m)
	}

	var err error
	m.database, err = db.New(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	var store quota.CounterStore
	if cfg.QuotaBackend == config.BackendSQLite {
		store = db.NewCounterStore(m.database)
	}

	var limiterOpts []quota.Option
	if cfg.QuotaNotify {
		limiterOpts = append(limiterOpts, quota.WithNotifier(quota.DesktopNotifier{}))
	}
	m.flightLimiter = quota.New(config.LimiterFlightAware, cfg.FlightQuota, store, limiterOpts...)
	m.summaryLimiter = quota.New(config.LimiterSummary, cfg.SummaryQuota, store, limiterOpts...)

	if m.fetcher == nil {
		m.fetcher = flightdata.New(cfg.FlightAware)
	}
	if m.summarizer == nil {
		m.summarizer = summarizer.NewClient(cfg.OpenAI)
	}

	switch cfg.EventBackend {
	case config.BackendMemory:
		m.channel = events.NewMemoryChannel(events.DefaultBufferSize)
	default:
		m.channel = events.NewOutbox(m.database, events.OutboxConfig{})
	}

	m.orchestrator = flightcache.New(m.fetcher, m.flightLimiter, m.channel,
		flightcache.WithTTL(cfg.CacheTTL),
		flightcache.OnPublishError(func(ev models.PendingEvent, err error) {
			m.broadcast(ErrorEvent{Service: "events", Ident: ev.FAFlightID, Error: err})
		}),
	)

	workerOpts := append([]summarizer.WorkerOption{
		summarizer.WithBackoff(cfg.Backoff),
		summarizer.WithObserver(m.onSummaryState),
	}, m.workerOpts...)
	m.worker = summarizer.NewWorker(m.summarizer, m.database, m.summaryLimiter, workerOpts...)
	m.pool = summarizer.NewPool(m.worker, summarizer.PoolConfig{Workers: cfg.Workers})

	if cfg.LimitsFile != "" {
		m.limitsWatcher, err = config.WatchFile(cfg.LimitsFile, m.reloadLimits)
		if err != nil {
			logger.Warn("limits file will not be reloaded", "path", cfg.LimitsFile, "error", err)
		}
	}

	return m, nil
}

// Fetch returns the flight for ident through the cache.
func (m *Manager) Fetch(ctx context.Context, ident string) (*models.Flight, error) {
	f, err := m.orchestrator.GetOrFetch(ctx, ident)
	if err != nil {
		m.broadcast(ErrorEvent{Service: "flightdata", Ident: ident, Error: err})
	} else {
		m.broadcast(FlightFetchedEvent{Ident: ident, Flight: f})
	}
	m.broadcast(QuotaUpdatedEvent{Usage: m.Usage(ctx)})
	return f, err
}

// Refresh drops any cached record for ident and fetches it again.
func (m *Manager) Refresh(ctx context.Context, ident string) (*models.Flight, error) {
	m.orchestrator.Invalidate(ident)
	return m.Fetch(ctx, ident)
}

// DefaultMaintenanceInterval is how often RunMaintenance sweeps.
const DefaultMaintenanceInterval = 30 * time.Second

// RunMaintenance prunes expired cache entries and broadcasts a StatsEvent
// every interval until ctx is cancelled.
func (m *Manager) RunMaintenance(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultMaintenanceInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.orchestrator.Prune()
			m.broadcast(m.GetStats(ctx))
		}
	}
}

// RunSummarizer consumes flight events until ctx is cancelled.
func (m *Manager) RunSummarizer(ctx context.Context) error {
	return m.pool.Run(ctx, m.channel)
}

// Summary returns the stored summary for a FlightAware flight id.
func (m *Manager) Summary(ctx context.Context, faFlightID string) (*models.Summary, error) {
	return m.database.GetSummary(ctx, faFlightID)
}

// LatestSummary returns the newest summary for a flight number.
func (m *Manager) LatestSummary(ctx context.Context, ident string) (*models.Summary, error) {
	return m.database.LatestSummaryByIdent(ctx, ident)
}

// RecentSummaries returns the most recently updated summaries.
func (m *Manager) RecentSummaries(ctx context.Context, limit int) ([]models.Summary, error) {
	return m.database.RecentSummaries(ctx, limit)
}

// Usage returns the usage of both limiters.
func (m *Manager) Usage(ctx context.Context) []models.QuotaUsage {
	return []models.QuotaUsage{
		m.flightLimiter.Usage(ctx),
		m.summaryLimiter.Usage(ctx),
	}
}

// GetStats returns pipeline counters.
func (m *Manager) GetStats(ctx context.Context) StatsEvent {
	stats := StatsEvent{
		Cache:  m.orchestrator.Stats(),
		Worker: m.worker.Stats(),
	}

	if m.cfg.EventBackend == config.BackendMemory {
		if ch, ok := m.channel.(*events.MemoryChannel); ok {
			stats.Queue.Pending = ch.Len()
		}
	} else {
		q, err := m.database.EventQueueStats(ctx)
		if err != nil {
			logger.Warn("failed to read event queue stats", "error", err)
		}
		stats.Queue = q
	}

	n, err := m.database.CountSummaries(ctx)
	if err != nil {
		logger.Warn("failed to count summaries", "error", err)
	}
	stats.Summaries = n
	return stats
}

// ReloadLimits re-reads the limits file and applies it to both limiters.
func (m *Manager) ReloadLimits() error {
	if m.cfg.LimitsFile == "" {
		return errors.New("no limits file configured")
	}

	m.mu.RLock()
	next := *m.cfg
	m.mu.RUnlock()

	if err := next.ApplyLimits(); err != nil {
		return err
	}

	for _, l := range []struct {
		limiter *quota.Limiter
		cfg     quota.Config
	}{
		{m.flightLimiter, next.FlightQuota},
		{m.summaryLimiter, next.SummaryQuota},
	} {
		l.limiter.SetConfig(l.cfg)
		logger.Debug("limiter reconfigured", "limiter", l.limiter.Name(),
			"enabled", l.cfg.Enabled, "windows", len(l.cfg.Windows))
	}

	m.mu.Lock()
	m.cfg.FlightQuota = next.FlightQuota
	m.cfg.SummaryQuota = next.SummaryQuota
	m.mu.Unlock()

	logger.Info("limits reloaded", "path", m.cfg.LimitsFile)
	return nil
}

func (m *Manager) reloadLimits() {
	if err := m.ReloadLimits(); err != nil {
		logger.Error("failed to reload limits", "error", err)
		m.broadcast(ErrorEvent{Service: "quota", Error: err})
		return
	}
	m.broadcast(LimitsReloadedEvent{})
	m.broadcast(QuotaUpdatedEvent{Usage: m.Usage(context.Background())})
}

func (m *Manager) onSummaryState(ev models.PendingEvent, s summarizer.State, attempt int) {
	e := SummaryStateEvent{
		EventID:    ev.EventID,
		FAFlightID: ev.FAFlightID,
		State:      s,
		Attempt:    attempt,
	}
	if ev.Flight != nil {
		e.Ident = ev.Flight.Ident
	}
	m.broadcast(e)
}

// broadcast sends an event to all subscribers.
func (m *Manager) broadcast(event ServiceEvent) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, sub := range m.subscribers {
		select {
		case sub <- event:
		default:
			// Subscriber channel full, skip
		}
	}
}

// Subscribe creates a channel for receiving service events.
// Returns a tea.Cmd that can be used in Bubble Tea's Init or Update.
func (m *Manager) Subscribe() (chan ServiceEvent, tea.Cmd) {
	ch := make(chan ServiceEvent, 50)

	m.mu.Lock()
	m.subscribers = append(m.subscribers, ch)
	m.mu.Unlock()

	return ch, WaitForEvent(ch)
}

// WaitForEvent returns a tea.Cmd for the next event on a channel.
func WaitForEvent(ch <-chan ServiceEvent) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return nil
		}
		return ev
	}
}

// Unsubscribe removes a subscriber channel.
func (m *Manager) Unsubscribe(ch chan ServiceEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, sub := range m.subscribers {
		if sub == ch {
			m.subscribers = append(m.subscribers[:i], m.subscribers[i+1:]...)
			close(ch)
			break
		}
	}
}

// Config returns the active configuration.
func (m *Manager) Config() *config.Config {
	return m.cfg
}

// Database returns the database instance for direct access.
func (m *Manager) Database() *db.DB {
	return m.database
}

// Close closes the manager and all its services.
func (m *Manager) Close() error {
	var errs []error

	m.closeOnce.Do(func() {
		if m.limitsWatcher != nil {
			if err := m.limitsWatcher.Close(); err != nil {
				errs = append(errs, err)
			}
		}

		m.mu.Lock()
		for _, sub := range m.subscribers {
			close(sub)
		}
		m.subscribers = nil
		m.mu.Unlock()

		if m.database != nil {
			if err := m.database.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	})

	return errors.Join(errs...)
}
