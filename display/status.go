package display

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Status shows that work is in progress while fn runs. Run calls fn exactly
// once and returns after it has finished.
type Status interface {
	Run(ctx context.Context, label string, fn func(context.Context) error) error
}

// PlainStatus prints the label once. Used when output is not a terminal.
type PlainStatus struct {
	out io.Writer
}

func NewPlainStatus(out io.Writer) *PlainStatus { return &PlainStatus{out: out} }

func (s *PlainStatus) Run(ctx context.Context, label string, fn func(context.Context) error) error {
	fmt.Fprintln(s.out, label)
	return fn(ctx)
}

// SpinnerStatus animates a spinner next to the label until fn returns.
type SpinnerStatus struct {
	out io.Writer
}

func NewSpinnerStatus(out io.Writer) *SpinnerStatus { return &SpinnerStatus{out: out} }

type workDoneMsg struct {
	err error
}

type spinnerModel struct {
	spinner spinner.Model
	label   string
	done    bool
}

func newSpinnerModel(label string) spinnerModel {
	s := spinner.New(
		spinner.WithSpinner(spinner.Dot),
		spinner.WithStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("69"))),
	)
	return spinnerModel{spinner: s, label: label}
}

func (m spinnerModel) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m spinnerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case workDoneMsg:
		m.done = true
		return m, tea.Quit
	default:
		return m, nil
	}
}

func (m spinnerModel) View() string {
	if m.done {
		return ""
	}
	return fmt.Sprintf("%s %s", m.spinner.View(), m.label)
}

// Run animates the spinner while fn runs on its own goroutine. The spinner
// failing to draw does not stop the work.
func (s *SpinnerStatus) Run(ctx context.Context, label string, fn func(context.Context) error) error {
	p := tea.NewProgram(
		newSpinnerModel(label),
		tea.WithInput(nil),
		tea.WithOutput(s.out),
		tea.WithContext(ctx),
	)

	errc := make(chan error, 1)
	go func() {
		err := fn(ctx)
		errc <- err
		p.Send(workDoneMsg{err: err})
	}()

	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		slog.Debug("DISPLAY: Spinner stopped early", "error", err)
	}
	return <-errc
}
