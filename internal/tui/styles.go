package tui

import (
	"github.com/charmbracelet/lipgloss"

	"workplace/internal/domain"
)

var (
	colorText    = lipgloss.Color("#cdd6f4")
	colorMuted   = lipgloss.Color("#7f849c")
	colorBorder  = lipgloss.Color("#45475a")
	colorFocus   = lipgloss.Color("#b4befe")
	colorSuccess = lipgloss.Color("#a6e3a1")
	colorWarning = lipgloss.Color("#f9e2af")
	colorError   = lipgloss.Color("#f38ba8")
	colorInfo    = lipgloss.Color("#89b4fa")
	colorAccent  = lipgloss.Color("#f5c2e7")
)

type styles struct {
	Title    lipgloss.Style
	Muted    lipgloss.Style
	Pane     lipgloss.Style
	Focused  lipgloss.Style
	Selected lipgloss.Style
	Metric   lipgloss.Style
	Error    lipgloss.Style
	Overlay  lipgloss.Style
}

func defaultStyles() styles {
	pane := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(colorBorder).
		Padding(0, 1)
	return styles{
		Title:    lipgloss.NewStyle().Bold(true).Foreground(colorAccent),
		Muted:    lipgloss.NewStyle().Foreground(colorMuted),
		Pane:     pane,
		Focused:  pane.BorderForeground(colorFocus),
		Selected: lipgloss.NewStyle().Bold(true).Foreground(colorFocus),
		Metric:   lipgloss.NewStyle().Bold(true).Foreground(colorText),
		Error:    lipgloss.NewStyle().Foreground(colorError),
		Overlay: lipgloss.NewStyle().
			Border(lipgloss.DoubleBorder()).
			BorderForeground(colorAccent).
			Padding(1, 2),
	}
}

func statusColor(s domain.ModelStatus) lipgloss.Color {
	switch s {
	case domain.ModelOnline:
		return colorSuccess
	case domain.ModelDegraded:
		return colorWarning
	case domain.ModelTraining:
		return colorInfo
	default:
		return colorError
	}
}

func priorityColor(p domain.Priority) lipgloss.Color {
	switch p {
	case domain.PriorityHigh:
		return colorError
	case domain.PriorityMedium:
		return colorWarning
	default:
		return colorMuted
	}
}

func channelColor(c domain.Channel) lipgloss.Color {
	switch c {
	case domain.ChannelModel:
		return colorInfo
	case domain.ChannelHuman:
		return colorAccent
	default:
		return colorMuted
	}
}
