package ui

import "github.com/charmbracelet/lipgloss"

var (
	promptTitleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	promptVarStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	promptDescStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	promptHelpStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("240")).MarginTop(1)
)
