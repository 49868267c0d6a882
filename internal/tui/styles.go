// Package tui holds the interactive prompts and terminal views of the
// TrueMatch CLI.
package tui

import "github.com/charmbracelet/lipgloss"

// Styles contains lipgloss styles for terminal output
type Styles struct {
	Title    lipgloss.Style
	Subtitle lipgloss.Style
	Label    lipgloss.Style
	Status   lipgloss.Style
	Error    lipgloss.Style
	Success  lipgloss.Style
	Warning  lipgloss.Style
	Muted    lipgloss.Style
	Border   lipgloss.Style
	Score    lipgloss.Style
}

// NewStyles returns colored styles, or plain ones when noColor is set
func NewStyles(noColor bool) Styles {
	if noColor {
		return PlainStyles()
	}
	return DefaultStyles()
}

// DefaultStyles returns the default lipgloss styles
func DefaultStyles() Styles {
	return Styles{
		Title: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205")), // Pink
		Subtitle: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("63")), // Purple
		Label: lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")), // Gray
		Status: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("86")), // Cyan
		Error: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("196")), // Red
		Success: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("46")), // Green
		Warning: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("226")), // Yellow
		Muted: lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")), // Gray
		Border: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63")).
			Padding(0, 2),
		Score: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205")),
	}
}

// PlainStyles renders text without color or borders, for --no-color and
// non-terminal output
func PlainStyles() Styles {
	plain := lipgloss.NewStyle()
	return Styles{
		Title:    plain,
		Subtitle: plain,
		Label:    plain,
		Status:   plain,
		Error:    plain,
		Success:  plain,
		Warning:  plain,
		Muted:    plain,
		Border:   plain,
		Score:    plain,
	}
}
