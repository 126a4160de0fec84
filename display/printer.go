// Package display renders the meal prep console: banner, status lines,
// recipe menu tables and Markdown panels.
package display

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

const DefaultWidth = 100

// Printer writes styled output to a terminal.
type Printer struct {
	out   io.Writer
	width int
	s     styles
}

func NewPrinter(out io.Writer, width int) *Printer {
	if width <= 0 {
		width = DefaultWidth
	}
	return &Printer{out: out, width: width, s: newStyles()}
}

func (p *Printer) Banner(title, subtitle string) {
	lines := []string{p.s.banner.Render(title)}
	if subtitle != "" {
		lines = append(lines, p.s.subtitle.Render(subtitle))
	}
	fmt.Fprintln(p.out, lipgloss.JoinVertical(lipgloss.Left, lines...))
}

func (p *Printer) Success(msg string) { fmt.Fprintln(p.out, p.s.success.Render("✓ "+msg)) }
func (p *Printer) Info(msg string)    { fmt.Fprintln(p.out, p.s.info.Render(msg)) }
func (p *Printer) Warn(msg string)    { fmt.Fprintln(p.out, p.s.warning.Render(msg)) }
func (p *Printer) Error(msg string)   { fmt.Fprintln(p.out, p.s.errorText.Render("Error: "+msg)) }
func (p *Printer) Muted(msg string)   { fmt.Fprintln(p.out, p.s.muted.Render(msg)) }

// Prompt writes a prompt without a trailing newline.
func (p *Printer) Prompt(label string) { fmt.Fprint(p.out, p.s.prompt.Render(label)) }

// Panel writes body inside a titled, bordered box.
func (p *Printer) Panel(title, body string, kind Kind) {
	fmt.Fprintln(p.out, Panel(title, body, kind, p.width))
}

// MarkdownPanel renders body as Markdown inside a titled box.
func (p *Printer) MarkdownPanel(title, body string, kind Kind) {
	p.Panel(title, Markdown(body, p.width-4), kind)
}

// Menu shows a recipe draft as a table, or as raw text when it is not a
// JSON array of recipe objects.
func (p *Printer) Menu(raw string) {
	if table, ok := RenderMenu(raw); ok {
		fmt.Fprintln(p.out, table)
		return
	}
	p.Panel("Recipe Output (Raw)", raw, KindWarning)
}

// Panel renders body inside a rounded border with the title on top.
func Panel(title, body string, kind Kind, width int) string {
	color := kindColor(kind)
	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(color).
		Padding(0, 1)
	if width > 0 {
		box = box.Width(width - 2)
	}
	heading := lipgloss.NewStyle().Bold(true).Foreground(color).Render(title)
	return lipgloss.JoinVertical(lipgloss.Left, heading, box.Render(strings.TrimRight(body, "\n")))
}
