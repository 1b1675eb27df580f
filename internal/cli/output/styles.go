package output

import "github.com/charmbracelet/lipgloss"

// Styles holds the text styles of a renderer. On a non-TTY renderer every
// style renders plain text.
type Styles struct {
	Header1 lipgloss.Style
	Header2 lipgloss.Style
	Bold    lipgloss.Style
	Muted   lipgloss.Style
	Path    lipgloss.Style
	Code    lipgloss.Style

	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
	Info    lipgloss.Style

	StatusSuccess lipgloss.Style
	StatusFailed  lipgloss.Style
	StatusSkipped lipgloss.Style
}

var (
	colorGreen  = lipgloss.AdaptiveColor{Light: "#1a7f37", Dark: "#3fb950"}
	colorYellow = lipgloss.AdaptiveColor{Light: "#9a6700", Dark: "#d29922"}
	colorRed    = lipgloss.AdaptiveColor{Light: "#cf222e", Dark: "#f85149"}
	colorBlue   = lipgloss.AdaptiveColor{Light: "#0969da", Dark: "#58a6ff"}
	colorGray   = lipgloss.AdaptiveColor{Light: "#6e7781", Dark: "#8b949e"}
	colorPurple = lipgloss.AdaptiveColor{Light: "#8250df", Dark: "#bc8cff"}
)

func newStyles(lr *lipgloss.Renderer) *Styles {
	return &Styles{
		Header1: lr.NewStyle().Bold(true).Foreground(colorPurple),
		Header2: lr.NewStyle().Bold(true).Foreground(colorBlue),
		Bold:    lr.NewStyle().Bold(true),
		Muted:   lr.NewStyle().Foreground(colorGray),
		Path:    lr.NewStyle().Foreground(colorBlue),
		Code:    lr.NewStyle().Foreground(colorPurple),

		Success: lr.NewStyle().Foreground(colorGreen),
		Warning: lr.NewStyle().Foreground(colorYellow),
		Error:   lr.NewStyle().Foreground(colorRed),
		Info:    lr.NewStyle().Foreground(colorBlue),

		StatusSuccess: lr.NewStyle().Foreground(colorGreen).SetString("✓"),
		StatusFailed:  lr.NewStyle().Foreground(colorRed).SetString("✗"),
		StatusSkipped: lr.NewStyle().Foreground(colorGray).SetString("-"),
	}
}
