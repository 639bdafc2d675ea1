package main

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/rxtech-lab/tradermind/internal/types"
)

// Style definitions.
var (
	// TitleStyle for headers.
	TitleStyle = lipgloss.NewStyle().Bold(true)

	// HelpStyle for help text.
	HelpStyle = lipgloss.NewStyle().Faint(true)

	// ErrorStyle for error messages.
	ErrorStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))

	// WarningStyle for run warnings.
	WarningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
)

var statusColors = map[types.JobStatus]lipgloss.Color{
	types.JobStatusIdle:      lipgloss.Color("8"),
	types.JobStatusRunning:   lipgloss.Color("12"),
	types.JobStatusStopping:  lipgloss.Color("11"),
	types.JobStatusCompleted: lipgloss.Color("10"),
	types.JobStatusError:     lipgloss.Color("9"),
}

// FormatStatus renders a job status in its color.
func FormatStatus(status types.JobStatus) string {
	color, ok := statusColors[status]
	if !ok {
		return string(status)
	}

	return lipgloss.NewStyle().Bold(true).Foreground(color).Render(string(status))
}
