package dashboard

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/flowforge/flowforge/internal/workflow/state"
)

// The palette and style set are carried over from the teacher's
// internal/tui/dashboard/styles.go almost unchanged — status colors for a
// running pipeline translate directly regardless of what the dashboard is
// showing the status of.
var (
	primaryColor = lipgloss.Color("99")  // purple
	successColor = lipgloss.Color("42")  // green
	warningColor = lipgloss.Color("226") // yellow
	errorColor   = lipgloss.Color("196") // red
	mutedColor   = lipgloss.Color("245") // gray

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor).
			PaddingLeft(2).
			MarginBottom(1)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor).
			BorderStyle(lipgloss.NormalBorder()).
			BorderBottom(true).
			BorderForeground(mutedColor).
			PaddingBottom(1).
			MarginBottom(1)

	footerStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			BorderStyle(lipgloss.NormalBorder()).
			BorderTop(true).
			BorderForeground(mutedColor).
			PaddingTop(1).
			MarginTop(1)

	statusPendingStyle   = lipgloss.NewStyle().Foreground(mutedColor)
	statusRunningStyle   = lipgloss.NewStyle().Foreground(primaryColor).Bold(true)
	statusCompletedStyle = lipgloss.NewStyle().Foreground(successColor).Bold(true)
	statusFailedStyle    = lipgloss.NewStyle().Foreground(errorColor).Bold(true)
	statusSuspendedStyle = lipgloss.NewStyle().Foreground(warningColor).Bold(true)
	statusSkippedStyle   = lipgloss.NewStyle().Foreground(mutedColor).Italic(true)

	spinnerStyle = lipgloss.NewStyle().Foreground(primaryColor)
)

// statusStyle picks the style for a step's state.Status. Unknown statuses
// fall back to the muted/pending look rather than panicking on a value
// this package does not recognize.
func statusStyle(status state.Status) lipgloss.Style {
	switch status {
	case state.Running:
		return statusRunningStyle
	case state.Completed:
		return statusCompletedStyle
	case state.Failed:
		return statusFailedStyle
	case state.Suspended:
		return statusSuspendedStyle
	case state.Skipped:
		return statusSkippedStyle
	default:
		return statusPendingStyle
	}
}
