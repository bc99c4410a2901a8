package view

import (
	"io"

	"github.com/charmbracelet/lipgloss"
)

// Color palette with light/dark mode variants.
var (
	colorPrimary = lipgloss.AdaptiveColor{Light: "#5A56E0", Dark: "#7571F9"}
	colorMuted   = lipgloss.AdaptiveColor{Light: "#6B7280", Dark: "#9CA3AF"}
	colorSuccess = lipgloss.AdaptiveColor{Light: "#059669", Dark: "#10B981"}
	colorWarning = lipgloss.AdaptiveColor{Light: "#D97706", Dark: "#F59E0B"}
)

// styles are bound to the renderer of the output they are written to, so
// color is dropped automatically when w is not a terminal.
type styles struct {
	title   lipgloss.Style
	header  lipgloss.Style
	name    lipgloss.Style
	key     lipgloss.Style
	muted   lipgloss.Style
	current lipgloss.Style
	missing lipgloss.Style
}

func newStyles(w io.Writer) styles {
	r := lipgloss.NewRenderer(w)
	return styles{
		title:   r.NewStyle().Bold(true).Foreground(colorPrimary),
		header:  r.NewStyle().Bold(true).Underline(true),
		name:    r.NewStyle().Bold(true),
		key:     r.NewStyle().Foreground(colorMuted),
		muted:   r.NewStyle().Foreground(colorMuted),
		current: r.NewStyle().Bold(true).Foreground(colorSuccess),
		missing: r.NewStyle().Italic(true).Foreground(colorWarning),
	}
}
