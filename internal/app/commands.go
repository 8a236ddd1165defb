package app

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/j-veylop/flightwatch/internal/models"
	"github.com/j-veylop/flightwatch/internal/services"
)

const (
	// DefaultTickInterval is the default interval between ticks.
	DefaultTickInterval = 2 * time.Second

	// DefaultNotificationDuration is the default duration for notifications.
	DefaultNotificationDuration = 5 * time.Second

	// RecentSummaryLimit is how many summaries the dashboard lists.
	RecentSummaryLimit = 6

	loadTimeout = 5 * time.Second
)

// Backend is what the dashboard needs from the service manager.
type Backend interface {
	Fetch(ctx context.Context, ident string) (*models.Flight, error)
	Refresh(ctx context.Context, ident string) (*models.Flight, error)
	RecentSummaries(ctx context.Context, limit int) ([]models.Summary, error)
	Usage(ctx context.Context) []models.QuotaUsage
	GetStats(ctx context.Context) services.StatsEvent
	Subscribe() (chan services.ServiceEvent, tea.Cmd)
}

func tickCmd(interval time.Duration) tea.Cmd {
	return tea.Tick(interval, func(t time.Time) tea.Msg {
		return TickMsg{Time: t}
	})
}

func subscribeToServicesCmd(b Backend) tea.Cmd {
	ch, _ := b.Subscribe()
	return func() tea.Msg {
		return SubscriptionEventMsg{Channel: ch}
	}
}

func waitForServiceEventCmd(ch <-chan services.ServiceEvent) tea.Cmd {
	return func() tea.Msg {
		event, ok := <-ch
		if !ok {
			return nil
		}
		return ServiceEventMsg{Event: event}
	}
}

// fetchFlightCmd is not bounded by loadTimeout: the provider client carries
// its own timeout and a concurrent caller may be waiting on the same lookup.
// A refresh skips the cache.
func fetchFlightCmd(b Backend, ident string, refresh bool) tea.Cmd {
	return func() tea.Msg {
		fetch := b.Fetch
		if refresh {
			fetch = b.Refresh
		}
		f, err := fetch(context.Background(), ident)
		return FlightLoadedMsg{Ident: ident, Flight: f, Err: err}
	}
}

func loadSummariesCmd(b Backend) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), loadTimeout)
		defer cancel()

		sums, err := b.RecentSummaries(ctx, RecentSummaryLimit)
		return SummariesLoadedMsg{Summaries: sums, Err: err}
	}
}

func loadStatsCmd(b Backend) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), loadTimeout)
		defer cancel()

		return StatsLoadedMsg{Stats: b.GetStats(ctx), Usage: b.Usage(ctx)}
	}
}

func notifyCmd(t NotificationType, message string) tea.Cmd {
	return func() tea.Msg {
		return AddNotificationMsg{Type: t, Message: message, Duration: DefaultNotificationDuration}
	}
}

func clearNotificationCmd(id string, delay time.Duration) tea.Cmd {
	return tea.Tick(delay, func(_ time.Time) tea.Msg {
		return RemoveNotificationMsg{ID: id}
	})
}
