package planner

import (
	"log/slog"

	"mealprep"
	"mealprep/display"
)

// UI is what the planner shows the user. *display.Printer implements it.
type UI interface {
	Menu(raw string)
	Panel(title, body string, kind display.Kind)
	MarkdownPanel(title, body string, kind display.Kind)
	Success(msg string)
	Info(msg string)
	Warn(msg string)
	Muted(msg string)
	Error(msg string)
}

var _ UI = (*display.Printer)(nil)

// LogUI sends everything the planner would show to slog, for runs with no
// terminal attached.
type LogUI struct{}

func (LogUI) Menu(raw string) {
	if rows, ok := display.ParseMenu(raw); ok {
		slog.Info("PLANNER: Menu drafted", "recipes", len(rows))
		return
	}
	slog.Warn("PLANNER: Menu draft is not a recipe list", "preview", mealprep.Preview(raw, 200))
}

func (LogUI) Panel(title, body string, kind display.Kind) {
	slog.Info("PLANNER: "+title, "body", mealprep.Preview(body, 500))
}

func (LogUI) MarkdownPanel(title, body string, kind display.Kind) {
	slog.Info("PLANNER: "+title, "body", mealprep.Preview(body, 500))
}

func (LogUI) Success(msg string) { slog.Info("PLANNER: " + msg) }
func (LogUI) Info(msg string)    { slog.Info("PLANNER: " + msg) }
func (LogUI) Warn(msg string)    { slog.Warn("PLANNER: " + msg) }
func (LogUI) Muted(msg string)   { slog.Debug("PLANNER: " + msg) }
func (LogUI) Error(msg string)   { slog.Error("PLANNER: " + msg) }
