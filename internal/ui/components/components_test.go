package components

import (
	"strings"
	"testing"

	"github.com/charmbracelet/x/ansi"

	"github.com/j-veylop/flightwatch/internal/models"
)

func TestNewSpinner(t *testing.T) {
	s := NewSpinner("Loading")
	if s.label != "Loading" {
		t.Error("Spinner label mismatch")
	}

	s.SetLabel("Fetching UAL123")
	if !strings.Contains(ansi.Strip(s.View()), "Fetching UAL123") {
		t.Errorf("View = %q, want label", s.View())
	}

	if s.Tick() == nil {
		t.Error("Tick should return a message")
	}
}

func TestRenderGradientBar(t *testing.T) {
	tests := []struct {
		name    string
		percent float64
		filled  int
	}{
		{"empty", 0, 0},
		{"half", 50, 5},
		{"full", 100, 10},
		{"over", 250, 10},
		{"negative", -5, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bar := ansi.Strip(RenderGradientBar(tt.percent, 10))
			if got := strings.Count(bar, "█"); got != tt.filled {
				t.Errorf("filled = %d, want %d", got, tt.filled)
			}
			if got := ansi.StringWidth(bar); got != 10 {
				t.Errorf("width = %d, want 10", got)
			}
		})
	}

	if RenderGradientBar(50, 0) != "" {
		t.Error("zero width should render nothing")
	}
}

func TestUsagePanel(t *testing.T) {
	u := models.QuotaUsage{
		Limiter: "flightaware",
		Enabled: true,
		Windows: []models.WindowUsage{
			{Name: "minute", Used: 2, Ceiling: 10},
			{Name: "day", Used: 300, Ceiling: 300},
		},
	}

	out := ansi.Strip(UsagePanel(u, 60))
	for _, want := range []string{"flightaware", "minute", "2/10", "day", "300/300"} {
		if !strings.Contains(out, want) {
			t.Errorf("panel missing %q:\n%s", want, out)
		}
	}

	u.Enabled = false
	if !strings.Contains(ansi.Strip(UsagePanel(u, 60)), "disabled") {
		t.Error("disabled limiter should be marked")
	}
}

func TestInterpolateColor(t *testing.T) {
	if got := interpolateColor("#000000", "#ffffff", 0); got != "#000000" {
		t.Errorf("t=0 got %s", got)
	}
	if got := interpolateColor("#000000", "#ffffff", 1); got != "#ffffff" {
		t.Errorf("t=1 got %s", got)
	}
	if got := hexToRGB("zz"); got != [3]int{0, 0, 0} {
		t.Errorf("invalid hex got %v", got)
	}
}

func TestRenderHitRateChart(t *testing.T) {
	if !strings.Contains(ansi.Strip(RenderHitRateChart([]float64{50}, 40, 5)), "Waiting") {
		t.Error("single sample should render placeholder")
	}

	out := RenderHitRateChart([]float64{0, 50, 100, 75}, 40, 5)
	if !strings.Contains(out, "cache hit rate") {
		t.Errorf("chart missing caption:\n%s", out)
	}
}

func TestRenderSparkline(t *testing.T) {
	if RenderSparkline(nil, 10) != "" {
		t.Error("empty values should render nothing")
	}

	got := RenderSparkline([]float64{0, 1, 2, 3, 4, 5, 6, 7}, 4)
	if got != "▅▆▇█" {
		t.Errorf("sparkline = %q, want newest four samples", got)
	}
}
