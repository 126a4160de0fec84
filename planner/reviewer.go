package planner

import (
	"context"
	"sync"
)

// Reviewer decides on each recipe draft. An answer that is empty after
// trimming whitespace approves the draft; anything else is feedback.
type Reviewer interface {
	Review(ctx context.Context, draft string) (string, error)
}

// ConsoleReviewer asks the person at the terminal.
type ConsoleReviewer struct {
	in LineReader
}

func NewConsoleReviewer(in LineReader) *ConsoleReviewer {
	return &ConsoleReviewer{in: in}
}

func (r *ConsoleReviewer) Review(ctx context.Context, draft string) (string, error) {
	return r.in.ReadLine(ctx, CritiquePrompt)
}

// AutoApprove accepts the first draft.
type AutoApprove struct{}

func (AutoApprove) Review(ctx context.Context, draft string) (string, error) {
	return "", nil
}

// ScriptedReviewer gives its feedback rounds in order and then approves.
type ScriptedReviewer struct {
	mu       sync.Mutex
	feedback []string
	drafts   []string
}

func NewScriptedReviewer(feedback ...string) *ScriptedReviewer {
	return &ScriptedReviewer{feedback: feedback}
}

func (r *ScriptedReviewer) Review(ctx context.Context, draft string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.drafts = append(r.drafts, draft)
	if len(r.feedback) == 0 {
		return "", nil
	}
	next := r.feedback[0]
	r.feedback = r.feedback[1:]
	return next, nil
}

// Drafts returns every draft reviewed so far.
func (r *ScriptedReviewer) Drafts() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.drafts...)
}
