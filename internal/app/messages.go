package app

import (
	"time"

	"github.com/j-veylop/flightwatch/internal/models"
	"github.com/j-veylop/flightwatch/internal/services"
)

// TickMsg is sent periodically to refresh counters and usage.
type TickMsg struct {
	Time time.Time
}

// SubscriptionEventMsg carries the manager event channel after subscribing.
type SubscriptionEventMsg struct {
	Channel chan services.ServiceEvent
}

// ServiceEventMsg wraps an event received from the manager.
type ServiceEventMsg struct {
	Event services.ServiceEvent
}

// FlightLoadedMsg is the result of a lookup started from the input box.
type FlightLoadedMsg struct {
	Flight *models.Flight
	Err    error
	Ident  string
}

// SummariesLoadedMsg contains the recent summaries list.
type SummariesLoadedMsg struct {
	Err       error
	Summaries []models.Summary
}

// StatsLoadedMsg contains pipeline counters and limiter usage.
type StatsLoadedMsg struct {
	Usage []models.QuotaUsage
	Stats services.StatsEvent
}

// AddNotificationMsg requests a toast.
type AddNotificationMsg struct {
	Message  string
	Duration time.Duration
	Type     NotificationType
}

// RemoveNotificationMsg removes a toast by ID.
type RemoveNotificationMsg struct {
	ID string
}
