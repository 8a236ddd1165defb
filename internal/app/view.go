package app

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/j-veylop/flightwatch/internal/models"
	"github.com/j-veylop/flightwatch/internal/services/summarizer"
	"github.com/j-veylop/flightwatch/internal/ui/components"
	"github.com/j-veylop/flightwatch/internal/ui/styles"
)

const (
	wideLayoutWidth = 100
	minCardWidth    = 40
	minHeight       = 12
	chartHeight     = 5
)

// View renders the dashboard.
func (m *Model) View() string {
	if !m.ready {
		return "Starting flightwatch..."
	}
	if m.width < minCardWidth || m.height < minHeight {
		return styles.CenterBoth(m.width, m.height, styles.WarningTextStyle.Render(
			fmt.Sprintf("Terminal too small (%dx%d), need %dx%d", m.width, m.height, minCardWidth, minHeight)))
	}

	colWidth := m.width - 2
	wide := m.width >= wideLayoutWidth
	if wide {
		colWidth = m.width/2 - 2
	}
	colWidth = max(colWidth, minCardWidth)

	flight := m.card("Flight", m.renderFlight(colWidth-4), colWidth)
	quota := m.card("Quota", m.renderQuota(colWidth-4), colWidth)
	cache := m.card("Cache", m.renderCache(colWidth-4), colWidth)
	activity := m.card("Summarizer", m.renderActivity(colWidth-4), colWidth)

	var body string
	if wide {
		body = lipgloss.JoinVertical(lipgloss.Left,
			lipgloss.JoinHorizontal(lipgloss.Top, flight, quota),
			lipgloss.JoinHorizontal(lipgloss.Top, cache, activity),
		)
	} else {
		body = lipgloss.JoinVertical(lipgloss.Left, flight, quota, cache, activity)
	}

	summaryWidth := max(m.width-2, minCardWidth)
	summaries := m.card("Recent summaries", m.renderSummaries(summaryWidth-4), summaryWidth)

	view := lipgloss.JoinVertical(lipgloss.Left,
		m.renderHeader(),
		body,
		summaries,
		m.help.View(m.keymap),
	)

	return m.overlayToasts(view, m.renderNotifications())
}

func (m *Model) card(title, content string, width int) string {
	return styles.CardStyle.Width(width - 2).Render(
		styles.CardTitleStyle.Render(title) + "\n" + content,
	)
}

func (m *Model) renderHeader() string {
	title := styles.TitleStyle.MarginBottom(0).Render("flightwatch")
	line := title + "  " + m.input.View()
	if m.fetching != "" {
		line += "  " + m.spinner.View()
	}
	return line + "\n"
}

func (m *Model) renderFlight(width int) string {
	f := m.state.Flight()
	if f == nil {
		return styles.HelpStyle.Render("Type a flight number and press enter.")
	}

	status := f.Status
	if status == "" {
		status = "unknown"
	}

	rows := []string{
		field("Ident", f.Ident),
		field("Route", f.Route()),
		field("Status", styles.StatusStyle(f.IsAirborne(), f.Status).Render(status)),
		field("Departs", formatTimes(f.ScheduledOut, f.ActualOut)),
		field("Arrives", formatTimes(f.ScheduledIn, f.ActualIn)),
	}
	if f.AircraftType != "" {
		rows = append(rows, field("Aircraft", f.AircraftType))
	}
	if f.IsAirborne() {
		pos := fmt.Sprintf("%.3f, %.3f", *f.Latitude, *f.Longitude)
		if f.Altitude != nil {
			pos += fmt.Sprintf("  FL%03d", *f.Altitude)
		}
		if f.Groundspeed != nil {
			pos += fmt.Sprintf("  %dkt", *f.Groundspeed)
		}
		rows = append(rows, field("Position", pos))
	}
	rows = append(rows, field("Flight ID", styles.HelpStyle.Render(f.FAFlightID)))

	for i, r := range rows {
		rows[i] = ansi.Truncate(r, width, "…")
	}
	return strings.Join(rows, "\n")
}

func field(label, value string) string {
	return styles.LabelStyle.Render(label) + styles.ValueStyle.Render(value)
}

func formatTimes(scheduled, actual *time.Time) string {
	const layout = "Jan 02 15:04 MST"
	switch {
	case actual != nil:
		return actual.Local().Format(layout)
	case scheduled != nil:
		return scheduled.Local().Format(layout) + styles.HelpStyle.Render(" (sched)")
	default:
		return "?"
	}
}

func (m *Model) renderQuota(width int) string {
	usage := m.state.Usage()
	if len(usage) == 0 {
		return styles.HelpStyle.Render("No usage yet.")
	}

	panels := make([]string, 0, len(usage))
	for _, u := range usage {
		panels = append(panels, components.UsagePanel(u, width))
	}
	return strings.Join(panels, "\n")
}

func (m *Model) renderCache(width int) string {
	s := m.state.Stats()
	line := fmt.Sprintf("hits %d  misses %d  upstream %d  cached %d",
		s.Cache.Hits, s.Cache.Misses, s.Cache.UpstreamCalls, s.Cache.Cached)
	if s.Cache.PublishFailures > 0 {
		line += styles.WarningTextStyle.Render(fmt.Sprintf("  publish failures %d", s.Cache.PublishFailures))
	}

	lines := []string{ansi.Truncate(line, width, "…")}
	if s.Cache.UpstreamCalls > 0 {
		latency := fmt.Sprintf("upstream last %s  avg %s  ",
			s.Cache.LastUpstream.Round(time.Millisecond), s.Cache.AvgUpstream.Round(time.Millisecond))
		spark := components.RenderSparkline(m.state.LatencySamples(), max(width-lipgloss.Width(latency), 0))
		lines = append(lines, ansi.Truncate(latency+styles.InfoTextStyle.Render(spark), width, "…"))
	}

	// asciigraph adds a y-axis gutter of roughly eight cells.
	lines = append(lines, components.RenderHitRateChart(m.state.HitSamples(), width-8, chartHeight))
	return strings.Join(lines, "\n")
}

func (m *Model) renderActivity(width int) string {
	s := m.state.Stats()
	header := fmt.Sprintf("ok %d  failed %d  retries %d  stale %d  queued %d  stored %d",
		s.Worker.Succeeded, s.Worker.Failed, s.Worker.Retries, s.Worker.Stale,
		s.Queue.Pending+s.Queue.Delivering, s.Summaries)
	if s.Queue.Failed > 0 {
		header += styles.ErrorTextStyle.Render(fmt.Sprintf("  undecodable %d", s.Queue.Failed))
	}

	lines := []string{ansi.Truncate(header, width, "…")}
	activity := m.state.Activity()
	if len(activity) == 0 {
		lines = append(lines, styles.HelpStyle.Render("Idle."))
	}
	for _, a := range activity {
		ident := a.Event.Ident
		if ident == "" {
			ident = a.Event.FAFlightID
		}
		line := fmt.Sprintf("%s  %-8s %s #%d",
			a.At.Format("15:04:05"), ident, stateStyle(a.Event.State).Render(a.Event.State.String()), a.Event.Attempt)
		lines = append(lines, ansi.Truncate(line, width, "…"))
	}
	return strings.Join(lines, "\n")
}

func stateStyle(s summarizer.State) lipgloss.Style {
	switch s {
	case summarizer.StateSucceeded:
		return styles.SuccessTextStyle
	case summarizer.StateFailed:
		return styles.ErrorTextStyle
	case summarizer.StateRetryScheduled:
		return styles.WarningTextStyle
	default:
		return styles.InfoTextStyle
	}
}

func (m *Model) renderSummaries(width int) string {
	sums := m.state.Summaries()
	if len(sums) == 0 {
		return styles.HelpStyle.Render("No summaries yet.")
	}

	lines := make([]string, 0, len(sums))
	for _, s := range sums {
		lines = append(lines, summaryLine(s, width))
	}
	return strings.Join(lines, "\n")
}

func summaryLine(s models.Summary, width int) string {
	text := strings.Join(strings.Fields(s.Text), " ")
	prefix := styles.HelpKeyStyle.Render(fmt.Sprintf("%-8s", s.Ident)) + " " +
		styles.HelpStyle.Render(s.LastUpdatedAt.Local().Format("15:04")) + "  "
	return ansi.Truncate(prefix+text, width, "…")
}

func (m *Model) renderNotifications() []string {
	notifications := m.state.Notifications()
	if len(notifications) == 0 {
		return nil
	}

	toasts := make([]string, 0, len(notifications))
	for _, n := range notifications {
		var style lipgloss.Style
		var prefix string

		switch n.Type {
		case NotificationSuccess:
			style, prefix = styles.SuccessTextStyle, "[OK]"
		case NotificationError:
			style, prefix = styles.ErrorTextStyle.Bold(true), "[ERR]"
		case NotificationWarning:
			style, prefix = styles.WarningTextStyle, "[WARN]"
		default:
			style, prefix = styles.InfoTextStyle, "[INFO]"
		}

		msg := ansi.Truncate(n.Message, max(m.width/2, 20), "…")
		toast := styles.CardStyle.BorderForeground(style.GetForeground()).
			Render(style.Render(prefix + " " + msg))
		toasts = append(toasts, toast)
	}
	return toasts
}

// overlayToasts draws the toast stack over the top-right corner.
func (m *Model) overlayToasts(mainView string, toasts []string) string {
	if len(toasts) == 0 {
		return mainView
	}

	toastStack := lipgloss.JoinVertical(lipgloss.Right, toasts...)
	toastLines := strings.Split(toastStack, "\n")
	mainLines := strings.Split(mainView, "\n")

	startX := max(m.width-lipgloss.Width(toastStack)-1, 0)

	for i, toastLine := range toastLines {
		if i >= len(mainLines) {
			mainLines = append(mainLines, "")
		}

		mainLine := mainLines[i]
		if w := lipgloss.Width(mainLine); w < startX {
			mainLines[i] = mainLine + strings.Repeat(" ", startX-w) + toastLine
			continue
		}
		mainLines[i] = ansi.Truncate(mainLine, startX, "") + toastLine
	}

	return strings.Join(mainLines, "\n")
}
