// Package quota enforces multi-window request quotas in front of rate-limited
// providers.
package quota

import (
	"slices"
	"time"
)

// Window is one fixed quota window, e.g. 10 calls per minute.
type Window struct {
	Name     string
	Duration time.Duration
	Ceiling  int64
}

// WindowState is the stored counter of one window. Start is the instant the
// current window opened; a zero Start means the window has never been used.
type WindowState struct {
	Start time.Time
	Name  string
	Count int64
}

// Elapsed reports whether the window that opened at s.Start has closed.
func (s WindowState) Elapsed(d time.Duration, now time.Time) bool {
	return s.Start.IsZero() || !now.Before(s.Start.Add(d))
}

// Reservation is the outcome of an atomic check-and-increment across all
// windows of a limiter.
type Reservation struct {
	// Exceeded names the first window that would have gone over its
	// ceiling. Empty when Allowed.
	Exceeded string
	// States holds the post-reservation counters, one per window, in
	// window order. On a denial they are the unchanged counters.
	States  []WindowState
	Allowed bool
}

// Apply computes a reservation against the current counters. Elapsed windows
// are reset to zero and reopened at now. The increment is all-or-nothing: if
// any window would exceed its ceiling, no counter changes.
//
// Apply is pure; stores call it inside their own critical section and persist
// States only when Allowed.
func Apply(windows []Window, current map[string]WindowState, now time.Time) Reservation {
	next := make([]WindowState, len(windows))
	res := Reservation{Allowed: true}

	for i, w := range windows {
		st, ok := current[w.Name]
		if !ok || st.Elapsed(w.Duration, now) {
			st = WindowState{Name: w.Name, Start: now}
		}
		st.Name = w.Name

		if res.Allowed && st.Count+1 > w.Ceiling {
			res.Allowed = false
			res.Exceeded = w.Name
		}

		next[i] = st
	}

	if !res.Allowed {
		unchanged := make([]WindowState, len(windows))
		for i, w := range windows {
			unchanged[i] = current[w.Name]
			unchanged[i].Name = w.Name
		}
		res.States = unchanged
		return res
	}

	for i := range next {
		next[i].Count++
	}
	res.States = next
	return res
}

// sortWindows orders windows by ascending duration, so the finest
// granularity is checked first.
func sortWindows(windows []Window) []Window {
	sorted := slices.Clone(windows)
	slices.SortStableFunc(sorted, func(a, b Window) int {
		switch {
		case a.Duration < b.Duration:
			return -1
		case a.Duration > b.Duration:
			return 1
		default:
			return 0
		}
	})
	return sorted
}
