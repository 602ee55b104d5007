package cli

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/spf13/pflag"
)

// ColorMode is the --color setting.
type ColorMode string

var _ pflag.Value = (*ColorMode)(nil)

const (
	ColorAuto   ColorMode = "auto"
	ColorAlways ColorMode = "always"
	ColorNever  ColorMode = "never"
)

func (m *ColorMode) String() string { return string(*m) }

// Set parses a --color argument.
func (m *ColorMode) Set(s string) error {
	switch ColorMode(s) {
	case ColorAuto, ColorAlways, ColorNever:
		*m = ColorMode(s)
		return nil
	}
	return fmt.Errorf("invalid color mode %q (want auto, always or never)", s)
}

// Type names the flag value in help output.
func (m *ColorMode) Type() string { return "when" }

// Palette renders drone's styled output for one destination.
type Palette struct {
	renderer *lipgloss.Renderer
}

// NewPalette returns a palette for w.  In auto mode colors are used when
// w is a color-capable terminal.
func NewPalette(w io.Writer, mode ColorMode) *Palette {
	r := lipgloss.NewRenderer(w)
	switch mode {
	case ColorAlways:
		r.SetColorProfile(termenv.ANSI)
	case ColorNever:
		r.SetColorProfile(termenv.Ascii)
	}
	return &Palette{renderer: r}
}

// Error styles the "Error" prefix.
func (p *Palette) Error() lipgloss.Style {
	return p.renderer.NewStyle().Bold(true).Foreground(lipgloss.Color("1"))
}

// Banner styles the log output banner.
func (p *Palette) Banner() lipgloss.Style {
	return p.renderer.NewStyle().Bold(true).Foreground(lipgloss.Color("6"))
}
