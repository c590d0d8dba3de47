package tui

import "github.com/charmbracelet/lipgloss"

var (
	StyleTitle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	StyleDim     = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	StyleHelp    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	StyleError   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	StyleSuccess = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	StyleWarning = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	StyleInfo    = lipgloss.NewStyle().Foreground(lipgloss.Color("75"))
	StyleSpinner = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
	StyleTabOn   = lipgloss.NewStyle().Bold(true).Underline(true).Foreground(lipgloss.Color("39"))
	StyleTabOff  = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	StyleBadge   = lipgloss.NewStyle().Bold(true).Padding(0, 1).
			Foreground(lipgloss.Color("230")).Background(lipgloss.Color("166"))
	StylePanel = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).Padding(0, 1)
)
