package tui

import "github.com/charmbracelet/lipgloss"

// Styles
var (
	accentFg = lipgloss.Color("#7C3AED")
	okFg     = lipgloss.Color("#4CAF50")
	failFg   = lipgloss.Color("#FF6B6B")
	runFg    = lipgloss.Color("#5B8DEF")
	dimFg    = lipgloss.AdaptiveColor{Light: "#6B7280", Dark: "#6B7280"}

	titleStyle   = lipgloss.NewStyle().Foreground(accentFg).Bold(true)
	okStyle      = lipgloss.NewStyle().Foreground(okFg)
	failStyle    = lipgloss.NewStyle().Foreground(failFg).Bold(true)
	runningStyle = lipgloss.NewStyle().Foreground(runFg)
	skipStyle    = lipgloss.NewStyle().Foreground(dimFg)
	dimStyle     = lipgloss.NewStyle().Foreground(dimFg)
)
