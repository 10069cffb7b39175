package report

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"

	"apisurface/internal/core/model"
)

// Palette styles terminal output. Writers that are not terminals get plain text.
type Palette struct {
	Major  lipgloss.Style
	Minor  lipgloss.Style
	Patch  lipgloss.Style
	Title  lipgloss.Style
	Status lipgloss.Style
}

func NewPalette(w io.Writer) Palette {
	r := lipgloss.NewRenderer(w)
	return Palette{
		Major:  r.NewStyle().Foreground(lipgloss.Color("#F87171")).Bold(true),
		Minor:  r.NewStyle().Foreground(lipgloss.Color("#FBBF24")).Bold(true),
		Patch:  r.NewStyle().Foreground(lipgloss.Color("#10B981")).Bold(true),
		Title:  r.NewStyle().Foreground(lipgloss.Color("#3B82F6")).Bold(true),
		Status: r.NewStyle().Foreground(lipgloss.Color("#64748B")).Italic(true),
	}
}

func (p Palette) Level(l model.Level) lipgloss.Style {
	switch l {
	case model.Major:
		return p.Major
	case model.Minor:
		return p.Minor
	}
	return p.Patch
}

// WriteText prints one aligned line per change followed by the recommended bump.
func WriteText(w io.Writer, c Comparison) {
	p := NewPalette(w)
	if len(c.Changes) == 0 {
		fmt.Fprintln(w, p.Status.Render("No API changes."))
	}

	width := 0
	for _, ch := range c.Changes {
		if n := len(ch.Category); n > width {
			width = n
		}
	}
	for _, ch := range c.Changes {
		fmt.Fprintf(w, "%s  %-*s  %s\n",
			p.Level(ch.Level).Render(fmt.Sprintf("%-5s", ch.Level)),
			width, ch.Category, ch.Detail)
	}
	fmt.Fprintf(w, "%s %s (%d major, %d minor, %d patch)\n",
		p.Title.Render("Recommended bump:"),
		p.Level(c.Level).Render(c.Level.String()),
		c.Summary.Major, c.Summary.Minor, c.Summary.Patch)
	if c.Next != "" {
		fmt.Fprintf(w, "%s %s\n", p.Title.Render("Next version:"), c.Next)
	}
}
