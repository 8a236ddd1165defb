package models

import (
	"fmt"
	"strings"
	"time"
)

// WindowUsage is the used/ceiling pair of one quota window.
type WindowUsage struct {
	Name     string        `json:"name"`
	Duration time.Duration `json:"duration"`
	Used     int64         `json:"used"`
	Ceiling  int64         `json:"ceiling"`
}

// Percent returns usage as a percentage of the ceiling. A zero ceiling is
// reported as fully used.
func (w WindowUsage) Percent() float64 {
	if w.Ceiling <= 0 {
		return 100
	}
	return float64(w.Used) / float64(w.Ceiling) * 100
}

// QuotaUsage is a point-in-time snapshot of a limiter.
type QuotaUsage struct {
	Limiter   string        `json:"limiter"`
	Windows   []WindowUsage `json:"windows"`
	Enabled   bool          `json:"enabled"`
	FailOpens int64         `json:"fail_opens"`
}

// String renders usage as "minute=2/10, hour=5/200".
func (u QuotaUsage) String() string {
	parts := make([]string, 0, len(u.Windows))
	for _, w := range u.Windows {
		parts = append(parts, fmt.Sprintf("%s=%d/%d", w.Name, w.Used, w.Ceiling))
	}
	return strings.Join(parts, ", ")
}

// Window returns the usage of the named window.
func (u QuotaUsage) Window(name string) (WindowUsage, bool) {
	for _, w := range u.Windows {
		if w.Name == name {
			return w, true
		}
	}
	return WindowUsage{}, false
}
