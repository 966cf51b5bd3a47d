package cli

import (
	"io"

	"github.com/charmbracelet/lipgloss"

	"github.com/roach88/profilebus/internal/ir"
)

// styles renders text output. Colors are dropped automatically when w is
// not a terminal, so captured output stays plain.
type styles struct {
	header   lipgloss.Style
	key      lipgloss.Style
	muted    lipgloss.Style
	accepted lipgloss.Style
	rejected lipgloss.Style
	ejected  lipgloss.Style
	skipped  lipgloss.Style
	failed   lipgloss.Style
}

func newStyles(w io.Writer) styles {
	r := lipgloss.NewRenderer(w)
	return styles{
		header:   r.NewStyle().Bold(true).Foreground(lipgloss.Color("#7D56F4")),
		key:      r.NewStyle().Foreground(lipgloss.Color("#565F89")),
		muted:    r.NewStyle().Foreground(lipgloss.Color("#565F89")).Italic(true),
		accepted: r.NewStyle().Foreground(lipgloss.Color("#00C853")).Bold(true),
		rejected: r.NewStyle().Foreground(lipgloss.Color("#FFD600")),
		ejected:  r.NewStyle().Foreground(lipgloss.Color("#00E5FF")),
		skipped:  r.NewStyle().Foreground(lipgloss.Color("#565F89")),
		failed:   r.NewStyle().Foreground(lipgloss.Color("#FF1744")).Bold(true),
	}
}

// status renders an outcome status in its color.
func (s styles) status(st ir.OutcomeStatus) string {
	switch st {
	case ir.StatusAccepted:
		return s.accepted.Render(string(st))
	case ir.StatusRejected:
		return s.rejected.Render(string(st))
	case ir.StatusEjected:
		return s.ejected.Render(string(st))
	case ir.StatusSkipped:
		return s.skipped.Render(string(st))
	default:
		return s.failed.Render(string(st))
	}
}

// pass renders a scenario or check mark.
func (s styles) pass(ok bool) string {
	if ok {
		return s.accepted.Render("✓")
	}
	return s.failed.Render("✗")
}
