package mealprep

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
	"unicode/utf8"
)

// ConversationLogger is the interface for per-turn conversation logging.
type ConversationLogger interface {
	LogTurn(turn TurnLog) error
}

// NewConversationLogFilePath returns a file path based on a cleaned up provider and model name to make it easier to tell runs apart.
func NewConversationLogFilePath(provider, model string) string {
	name := provider
	if model != "" {
		name += "." + model
	}
	return fmt.Sprintf(
		"./logs/%d.%s.json",
		time.Now().Unix(),
		strings.NewReplacer(":", "_", "/", "_").Replace(strings.ToLower(name)),
	)
}

// TurnLog represents one model round-trip of an agent conversation
type TurnLog struct {
	Agent     string        `json:"agent"`
	Iteration int           `json:"iteration"`
	Timestamp time.Time     `json:"timestamp"`
	Input     string        `json:"input,omitempty"`
	Output    string        `json:"output,omitempty"`
	ToolCalls []ToolCallLog `json:"tool_calls,omitempty"`
	Error     string        `json:"error,omitempty"`
}

// ToolCallLog represents a tool execution requested by the model
type ToolCallLog struct {
	Name   string         `json:"name"`
	Input  map[string]any `json:"input"`
	Output map[string]any `json:"output"`
	Error  string         `json:"error,omitempty"`
}

// FileConversationLogger accumulates turns and writes them out on Flush
type FileConversationLogger struct {
	turns  []TurnLog
	writer io.Writer
}

func NewFileConversationLogger(writer io.Writer) *FileConversationLogger {
	return &FileConversationLogger{
		turns:  make([]TurnLog, 0),
		writer: writer,
	}
}

// LogTurn buffers the turn (does not write immediately)
func (l *FileConversationLogger) LogTurn(turn TurnLog) error {
	l.turns = append(l.turns, turn)
	return nil
}

// Flush writes all buffered turns to the writer
func (l *FileConversationLogger) Flush() error {
	if l.writer == nil {
		return nil
	}

	data, err := json.MarshalIndent(map[string]any{
		"conversation_session": map[string]any{
			"timestamp": time.Now(),
			"turns":     l.turns,
		},
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal conversation log: %w", err)
	}

	if _, err := l.writer.Write(data); err != nil {
		return fmt.Errorf("failed to write conversation log: %w", err)
	}

	l.turns = l.turns[:0]
	return nil
}

type NoOpConversationLogger struct{}

func NewNoOpConversationLogger() *NoOpConversationLogger {
	return &NoOpConversationLogger{}
}

func (nop *NoOpConversationLogger) LogTurn(turn TurnLog) error {
	return nil
}

// StdoutConversationLogger writes each turn as a JSON line (for Lambda/CloudWatch)
type StdoutConversationLogger struct {
	out io.Writer
}

func NewStdoutConversationLogger() *StdoutConversationLogger {
	return &StdoutConversationLogger{out: os.Stdout}
}

func (l *StdoutConversationLogger) LogTurn(turn TurnLog) error {
	data, err := json.Marshal(turn)
	if err != nil {
		return err
	}
	fmt.Fprintln(l.out, string(data))
	return nil
}

// Preview shortens text to at most max bytes for log lines, cutting on a
// rune boundary.
func Preview(text string, max int) string {
	if len(text) <= max || max < 4 {
		return text
	}
	cut := max - 3
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut] + "..."
}
