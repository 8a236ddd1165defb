// Package styles defines the visual styling for the dashboard.
package styles

import "github.com/charmbracelet/lipgloss"

// Color definitions for the flightwatch theme.
var (
	Primary   = lipgloss.Color("33")  // Sky blue
	Secondary = lipgloss.Color("141") // Lavender
	Subtle    = lipgloss.Color("240") // Gray

	Success = lipgloss.Color("42")  // Green
	Error   = lipgloss.Color("196") // Red
	Warning = lipgloss.Color("220") // Yellow
	Info    = lipgloss.Color("39")  // Blue

	BgDark = lipgloss.Color("235")

	TextPrimary   = lipgloss.Color("252")
	TextSecondary = lipgloss.Color("245")
	TextMuted     = lipgloss.Color("240")
)

// TitleStyle is used for main headings.
var TitleStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(Primary).
	MarginBottom(1)

// CardStyle creates a bordered card container.
var CardStyle = lipgloss.NewStyle().
	Border(lipgloss.RoundedBorder()).
	BorderForeground(Subtle).
	Padding(0, 1)

// CardTitleStyle styles card headers.
var CardTitleStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(Secondary)

// LabelStyle styles field labels inside cards.
var LabelStyle = lipgloss.NewStyle().
	Foreground(TextSecondary).
	Width(12)

// ValueStyle styles field values inside cards.
var ValueStyle = lipgloss.NewStyle().
	Foreground(TextPrimary)

// HelpStyle is the base style for help text.
var HelpStyle = lipgloss.NewStyle().
	Foreground(TextMuted)

// HelpKeyStyle styles keyboard shortcut keys.
var HelpKeyStyle = lipgloss.NewStyle().
	Foreground(Primary).
	Bold(true)

// ErrorTextStyle for error messages.
var ErrorTextStyle = lipgloss.NewStyle().
	Foreground(Error)

// SuccessTextStyle for success messages.
var SuccessTextStyle = lipgloss.NewStyle().
	Foreground(Success)

// WarningTextStyle for warning messages.
var WarningTextStyle = lipgloss.NewStyle().
	Foreground(Warning)

// InfoTextStyle for info messages.
var InfoTextStyle = lipgloss.NewStyle().
	Foreground(Info)

// UsageStyle returns the style for a consumed-quota percentage.
// Below 50% is green, below 80% yellow, anything above red.
func UsageStyle(percent float64) lipgloss.Style {
	switch {
	case percent >= 80:
		return ErrorTextStyle
	case percent >= 50:
		return WarningTextStyle
	default:
		return SuccessTextStyle
	}
}

// StatusStyle returns the style for a provider flight status string.
func StatusStyle(airborne bool, status string) lipgloss.Style {
	switch {
	case airborne:
		return SuccessTextStyle.Bold(true)
	case status == "Cancelled" || status == "Diverted":
		return ErrorTextStyle
	case status == "":
		return HelpStyle
	default:
		return InfoTextStyle
	}
}

// CenterBoth centers content in a width x height box.
func CenterBoth(width, height int, content string) string {
	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, content)
}
