// Package app provides the Bubble Tea dashboard model and its state.
package app

import (
	"fmt"
	"sync"
	"time"

	"github.com/j-veylop/flightwatch/internal/models"
	"github.com/j-veylop/flightwatch/internal/services"
)

const (
	maxNotifications = 5
	maxActivity      = 8
	maxHitSamples    = 120
)

// NotificationType defines the type of notification.
type NotificationType int

const (
	// NotificationSuccess represents a success notification.
	NotificationSuccess NotificationType = iota
	// NotificationError represents an error notification.
	NotificationError
	// NotificationWarning represents a warning notification.
	NotificationWarning
	// NotificationInfo represents an informational notification.
	NotificationInfo
)

// String returns the string representation of a NotificationType.
func (n NotificationType) String() string {
	switch n {
	case NotificationSuccess:
		return "success"
	case NotificationError:
		return "error"
	case NotificationWarning:
		return "warning"
	case NotificationInfo:
		return "info"
	default:
		return "unknown"
	}
}

// Notification is a transient toast.
type Notification struct {
	CreatedAt time.Time
	ID        string
	Message   string
	Duration  time.Duration
	Type      NotificationType
}

// IsExpired returns true if the notification has expired.
func (n *Notification) IsExpired(now time.Time) bool {
	if n.Duration <= 0 {
		return false
	}
	return now.Sub(n.CreatedAt) > n.Duration
}

// Activity is one summarizer state transition shown in the dashboard.
type Activity struct {
	At    time.Time
	Event services.SummaryStateEvent
}

// State holds everything the dashboard renders. It is written from Update
// and read from View, both on the Bubble Tea goroutine, but the lock keeps
// it safe for commands that snapshot it.
type State struct {
	lastUpdated     time.Time
	flight          *models.Flight
	now             func() time.Time
	usage           []models.QuotaUsage
	summaries       []models.Summary
	hitSamples      []float64
	latencySamples  []float64
	activity        []Activity
	notifications   []Notification
	stats           services.StatsEvent
	notificationSeq int
	mu              sync.RWMutex
}

// NewState creates an empty dashboard state.
func NewState() *State {
	return &State{now: time.Now}
}

// SetFlight records the last looked-up flight.
func (s *State) SetFlight(f *models.Flight) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flight = f
	s.lastUpdated = s.now()
}

// Flight returns the last looked-up flight, or nil.
func (s *State) Flight() *models.Flight {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.flight
}

// SetUsage replaces the limiter usage snapshot.
func (s *State) SetUsage(u []models.QuotaUsage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.usage = u
}

// Usage returns the limiter usage snapshot.
func (s *State) Usage() []models.QuotaUsage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.usage
}

// SetSummaries replaces the recent summaries list.
func (s *State) SetSummaries(sums []models.Summary) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.summaries = sums
}

// Summaries returns the recent summaries list.
func (s *State) Summaries() []models.Summary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.summaries
}

// SetStats stores pipeline counters and appends a hit-rate sample once at
// least one lookup has happened. A latency sample is taken whenever the
// upstream call count moved.
func (s *State) SetStats(stats services.StatsEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if stats.Cache.UpstreamCalls > s.stats.Cache.UpstreamCalls {
		ms := float64(stats.Cache.LastUpstream) / float64(time.Millisecond)
		s.latencySamples = appendCapped(s.latencySamples, ms)
	}

	s.stats = stats
	if stats.Cache.Hits+stats.Cache.Misses == 0 {
		return
	}
	s.hitSamples = appendCapped(s.hitSamples, stats.Cache.HitRate()*100)
}

func appendCapped(samples []float64, v float64) []float64 {
	samples = append(samples, v)
	if len(samples) > maxHitSamples {
		samples = samples[len(samples)-maxHitSamples:]
	}
	return samples
}

// Stats returns the last pipeline counters.
func (s *State) Stats() services.StatsEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stats
}

// HitSamples returns a copy of the hit-rate history.
func (s *State) HitSamples() []float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]float64(nil), s.hitSamples...)
}

// LatencySamples returns a copy of the upstream latency history in
// milliseconds.
func (s *State) LatencySamples() []float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]float64(nil), s.latencySamples...)
}

// AddActivity records a summarizer transition, newest first.
func (s *State) AddActivity(ev services.SummaryStateEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.activity = append([]Activity{{At: s.now(), Event: ev}}, s.activity...)
	if len(s.activity) > maxActivity {
		s.activity = s.activity[:maxActivity]
	}
}

// Activity returns recent summarizer transitions, newest first.
func (s *State) Activity() []Activity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Activity(nil), s.activity...)
}

// AddNotification adds a new notification and returns its ID.
func (s *State) AddNotification(notifType NotificationType, message string, duration time.Duration) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.notificationSeq++
	id := fmt.Sprintf("n%d", s.notificationSeq)

	s.notifications = append(s.notifications, Notification{
		ID:        id,
		Type:      notifType,
		Message:   message,
		CreatedAt: s.now(),
		Duration:  duration,
	})

	if len(s.notifications) > maxNotifications {
		s.notifications = s.notifications[len(s.notifications)-maxNotifications:]
	}

	return id
}

// RemoveNotification removes a notification by ID.
func (s *State) RemoveNotification(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, n := range s.notifications {
		if n.ID == id {
			s.notifications = append(s.notifications[:i], s.notifications[i+1:]...)
			return
		}
	}
}

// ClearExpiredNotifications removes all expired notifications.
func (s *State) ClearExpiredNotifications() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	active := s.notifications[:0]
	for _, n := range s.notifications {
		if !n.IsExpired(now) {
			active = append(active, n)
		}
	}
	s.notifications = active
}

// Notifications returns a copy of all active notifications.
func (s *State) Notifications() []Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := s.now()
	active := make([]Notification, 0, len(s.notifications))
	for _, n := range s.notifications {
		if !n.IsExpired(now) {
			active = append(active, n)
		}
	}
	return active
}

// LastUpdated returns when the flight was last replaced.
func (s *State) LastUpdated() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastUpdated
}
