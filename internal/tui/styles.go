// Package tui provides the interactive prompts and progress display.
package tui

import (
	"github.com/charmbracelet/lipgloss"
)

// Theme defines the color palette for prompts and progress output.
type Theme struct {
	Primary lipgloss.AdaptiveColor
	Success lipgloss.AdaptiveColor
	Warning lipgloss.AdaptiveColor
	Error   lipgloss.AdaptiveColor
	Muted   lipgloss.AdaptiveColor
}

// DefaultTheme returns the RecruitMate palette.
func DefaultTheme() Theme {
	return Theme{
		Primary: lipgloss.AdaptiveColor{Light: "#6D28D9", Dark: "#A78BFA"},
		Success: lipgloss.AdaptiveColor{Light: "#047857", Dark: "#34D399"},
		Warning: lipgloss.AdaptiveColor{Light: "#B45309", Dark: "#FBBF24"},
		Error:   lipgloss.AdaptiveColor{Light: "#B91C1C", Dark: "#F87171"},
		Muted:   lipgloss.AdaptiveColor{Light: "#6B7280", Dark: "#9CA3AF"},
	}
}

// Styles holds the styled components.
type Styles struct {
	theme Theme

	Title   lipgloss.Style
	Muted   lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
	Spinner lipgloss.Style
}

// NewStyles creates Styles with the default theme.
func NewStyles() *Styles {
	return NewStylesWithTheme(DefaultTheme())
}

// NewStylesWithTheme creates Styles with a custom theme.
func NewStylesWithTheme(theme Theme) *Styles {
	return &Styles{
		theme:   theme,
		Title:   lipgloss.NewStyle().Bold(true).Foreground(theme.Primary),
		Muted:   lipgloss.NewStyle().Foreground(theme.Muted),
		Success: lipgloss.NewStyle().Foreground(theme.Success),
		Warning: lipgloss.NewStyle().Foreground(theme.Warning),
		Error:   lipgloss.NewStyle().Foreground(theme.Error),
		Spinner: lipgloss.NewStyle().Foreground(theme.Primary),
	}
}

// Theme returns the current theme.
func (s *Styles) Theme() Theme {
	return s.theme
}

// RenderStatus renders a success or failure line.
func (s *Styles) RenderStatus(ok bool, message string) string {
	if ok {
		return s.Success.Render("✓ " + message)
	}
	return s.Error.Render("✗ " + message)
}

// RenderMatchStatus colors a Good/Medium/Weak label.
func (s *Styles) RenderMatchStatus(status string) string {
	switch status {
	case "Good":
		return s.Success.Render(status)
	case "Medium":
		return s.Warning.Render(status)
	case "Weak":
		return s.Error.Render(status)
	default:
		return s.Muted.Render(status)
	}
}
