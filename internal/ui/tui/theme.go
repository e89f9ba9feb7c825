package tui

import "github.com/charmbracelet/lipgloss"

type theme struct {
	Header  lipgloss.Style
	Section lipgloss.Style
	Muted   lipgloss.Style
	Success lipgloss.Style
	Alert   lipgloss.Style
	Danger  lipgloss.Style
}

func defaultTheme() theme {
	accent := lipgloss.Color("#00FFFF")
	secondary := lipgloss.Color("#7D7D7D")
	return theme{
		Header:  lipgloss.NewStyle().Bold(true).Foreground(accent),
		Section: lipgloss.NewStyle().Bold(true).Underline(true),
		Muted:   lipgloss.NewStyle().Foreground(secondary),
		Success: lipgloss.NewStyle().Foreground(lipgloss.Color("#00FF00")),
		Alert:   lipgloss.NewStyle().Foreground(lipgloss.Color("#FFBF00")),
		Danger:  lipgloss.NewStyle().Foreground(lipgloss.Color("#FF0055")),
	}
}
