package tui

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/tubeload/tubeload/internal/config"
	"github.com/tubeload/tubeload/internal/download"
)

// Styles groups the lipgloss styles for the queue view, resolved once per
// theme.
type Styles struct {
	Title    lipgloss.Style
	Item     lipgloss.Style
	Selected lipgloss.Style
	Meta     lipgloss.Style
	Error    lipgloss.Style
	Status   map[download.Status]lipgloss.Style
}

// NewStyles builds styles for the given theme. ThemeAdaptive probes the
// terminal background.
func NewStyles(theme config.Theme) Styles {
	dark := true
	switch theme {
	case config.ThemeLight:
		dark = false
	case config.ThemeDark:
		dark = true
	default:
		dark = termenv.HasDarkBackground()
	}

	fg := lipgloss.Color("235")
	dim := lipgloss.Color("245")
	if dark {
		fg = lipgloss.Color("252")
		dim = lipgloss.Color("243")
	}

	s := Styles{
		Title: lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Bold(true).
			MarginBottom(1),
		Item:     lipgloss.NewStyle().Foreground(fg),
		Selected: lipgloss.NewStyle().Foreground(lipgloss.Color("205")).Bold(true),
		Meta:     lipgloss.NewStyle().Foreground(dim),
		Error:    lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
		Status: map[download.Status]lipgloss.Style{
			download.StatusQueued:    lipgloss.NewStyle().Foreground(dim),
			download.StatusStarting:  lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
			download.StatusActive:    lipgloss.NewStyle().Foreground(lipgloss.Color("39")),
			download.StatusPaused:    lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
			download.StatusCompleted: lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
			download.StatusFailed:    lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
			download.StatusCancelled: lipgloss.NewStyle().Foreground(dim),
		},
	}
	return s
}
