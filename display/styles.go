package display

import "github.com/charmbracelet/lipgloss"

// Kind selects the accent color of a message or panel.
type Kind int

const (
	KindInfo Kind = iota
	KindSuccess
	KindWarning
	KindError
	KindMuted
)

type styles struct {
	banner    lipgloss.Style
	subtitle  lipgloss.Style
	success   lipgloss.Style
	info      lipgloss.Style
	warning   lipgloss.Style
	errorText lipgloss.Style
	muted     lipgloss.Style
	prompt    lipgloss.Style
	header    lipgloss.Style
	cell      lipgloss.Style
	border    lipgloss.Style
}

func newStyles() styles {
	return styles{
		banner:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39")).Border(lipgloss.DoubleBorder()).BorderForeground(lipgloss.Color("39")).Padding(0, 2),
		subtitle:  lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
		success:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42")),
		info:      lipgloss.NewStyle().Foreground(lipgloss.Color("252")),
		warning:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("214")),
		errorText: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("203")),
		muted:     lipgloss.NewStyle().Faint(true),
		prompt:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("69")),
		header:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("213")).Padding(0, 1),
		cell:      lipgloss.NewStyle().Padding(0, 1),
		border:    lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
	}
}

func kindColor(k Kind) lipgloss.TerminalColor {
	switch k {
	case KindSuccess:
		return lipgloss.Color("42")
	case KindWarning:
		return lipgloss.Color("214")
	case KindError:
		return lipgloss.Color("203")
	case KindMuted:
		return lipgloss.Color("241")
	default:
		return lipgloss.Color("39")
	}
}
