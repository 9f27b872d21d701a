package main

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#00ffff"))
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#888899"))
	valueStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#00ccff"))
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#00ff88"))
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#ffaa00"))
	errorStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#ff4444"))
	panelStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("#444466")).Padding(0, 1)
)

func field(label string, value any) string {
	return labelStyle.Render(label+": ") + valueStyle.Render(fmt.Sprint(value))
}
