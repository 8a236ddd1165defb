// Package components provides reusable UI components.
package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/j-veylop/flightwatch/internal/logger"
	"github.com/j-veylop/flightwatch/internal/models"
	"github.com/j-veylop/flightwatch/internal/ui/styles"
)

const (
	barLow  = "#51cf66"
	barHigh = "#ff6b6b"
)

// RenderGradientBar renders a consumption bar that shifts from green to red
// as it fills.
func RenderGradientBar(percent float64, width int) string {
	if width < 1 {
		return ""
	}

	filled := int(float64(width) * percent / 100)
	filled = min(max(filled, 0), width)

	var b strings.Builder
	for i := range width {
		if i < filled {
			t := float64(i) / float64(max(1, width-1))
			color := interpolateColor(barLow, barHigh, t)
			b.WriteString(lipgloss.NewStyle().Foreground(lipgloss.Color(color)).Render("█"))
			continue
		}
		b.WriteString(lipgloss.NewStyle().Foreground(styles.Subtle).Render("░"))
	}
	return b.String()
}

// UsageBar renders one window as "minute [████░░░░]  3/10".
func UsageBar(w models.WindowUsage, width int) string {
	const (
		labelWidth = 8
		countWidth = 12
	)

	barWidth := max(width-labelWidth-countWidth-4, 5)

	label := lipgloss.NewStyle().
		Foreground(styles.TextSecondary).
		Width(labelWidth).
		Render(w.Name)

	count := styles.UsageStyle(w.Percent()).
		Width(countWidth).
		Align(lipgloss.Right).
		Render(fmt.Sprintf("%d/%d", w.Used, w.Ceiling))

	return fmt.Sprintf("%s [%s]%s", label, RenderGradientBar(w.Percent(), barWidth), count)
}

// UsagePanel renders every window of a limiter under a header line.
func UsagePanel(u models.QuotaUsage, width int) string {
	header := styles.CardTitleStyle.Render(u.Limiter)
	switch {
	case !u.Enabled:
		header += " " + styles.HelpStyle.Render("(disabled)")
	case u.FailOpens > 0:
		header += " " + styles.WarningTextStyle.Render(fmt.Sprintf("(%d fail-open)", u.FailOpens))
	}

	lines := []string{header}
	for _, w := range u.Windows {
		lines = append(lines, UsageBar(w, width))
	}
	return strings.Join(lines, "\n")
}

func interpolateColor(fromHex, toHex string, t float64) string {
	from := hexToRGB(fromHex)
	to := hexToRGB(toHex)

	r := int(float64(from[0]) + t*(float64(to[0])-float64(from[0])))
	g := int(float64(from[1]) + t*(float64(to[1])-float64(from[1])))
	b := int(float64(from[2]) + t*(float64(to[2])-float64(from[2])))

	return fmt.Sprintf("#%02x%02x%02x", r, g, b)
}

func hexToRGB(hex string) [3]int {
	hex = strings.TrimPrefix(hex, "#")
	var r, g, b int
	if _, err := fmt.Sscanf(hex, "%02x%02x%02x", &r, &g, &b); err != nil {
		logger.Error("failed to parse hex color", "hex", hex, "error", err)
		return [3]int{0, 0, 0}
	}
	return [3]int{r, g, b}
}
