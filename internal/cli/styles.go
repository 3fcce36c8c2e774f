package cli

import (
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

// IsColorEnabled resolves the --color mode ("auto", "always", "never")
// against the output writer. In auto mode colors are on only when the
// writer is a terminal.
func IsColorEnabled(mode string, w io.Writer) bool {
	switch mode {
	case "always":
		return true
	case "never":
		return false
	}
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Styles holds the lipgloss styles used by the token and expression
// printers.
type Styles struct {
	TokenType lipgloss.Style
	Part      lipgloss.Style
	Span      lipgloss.Style
	Issue     lipgloss.Style
}

// NewStyles returns the printer styles, plain when color is disabled.
func NewStyles(colorEnabled bool) *Styles {
	if !colorEnabled {
		plain := lipgloss.NewStyle()
		return &Styles{
			TokenType: plain,
			Part:      plain,
			Span:      plain,
			Issue:     plain,
		}
	}
	return &Styles{
		TokenType: lipgloss.NewStyle().Foreground(lipgloss.Color("14")).Bold(true),
		Part:      lipgloss.NewStyle().Foreground(lipgloss.Color("10")),
		Span:      lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
		Issue:     lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true),
	}
}
