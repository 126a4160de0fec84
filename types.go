package mealprep

import (
	"context"
	"fmt"
	"net/http"

	"mealprep/tools"
)

type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

type ToolProvider interface {
	GetTools() []tools.Tool
	GetTool(name string) (tools.Tool, error)
}

// ChatConfig describes one agent's conversation: who it is, what it was told
// and which capabilities the model may call.
type ChatConfig struct {
	AgentName         string
	SystemInstruction string
	Tools             ToolProvider
	WebSearch         bool
	JSONMode          bool
	Temperature       float32
}

// ChatSession is a stateful conversation; every Send sees the earlier turns.
type ChatSession interface {
	Send(ctx context.Context, text string) (string, error)
}

// ChatProvider opens new chat sessions against a model service.
type ChatProvider interface {
	Name() string
	NewChat(ctx context.Context, cfg ChatConfig) (ChatSession, error)
}

// MealPlanRecord is one completed pipeline run.
type MealPlanRecord struct {
	Query  string `json:"query"`
	Result string `json:"result"`
}

// RecipeItem is a single recipe as the recipe agent is asked to emit it.
type RecipeItem struct {
	Title       string   `json:"title"`
	Ingredients []string `json:"ingredients"`
	PrepTime    string   `json:"prep_time"`
	SourceURL   string   `json:"source_url"`
}

type FailureKind int

const (
	FailureNone FailureKind = iota
	// FailureTransient means the service kept rate limiting or was overloaded until retries ran out.
	FailureTransient
	// FailureService is any other failure of the model call.
	FailureService
)

func (k FailureKind) String() string {
	switch k {
	case FailureNone:
		return "none"
	case FailureTransient:
		return "transient"
	case FailureService:
		return "service"
	default:
		return fmt.Sprintf("FailureKind(%d)", int(k))
	}
}

// Reply is the outcome of one message sent to an agent.
type Reply struct {
	Agent string
	Text  string
	Err   error
	Kind  FailureKind
}

func (r Reply) Failed() bool {
	return r.Kind != FailureNone
}

// String renders the reply the way it is shown to users and handed to the
// next agent: the answer itself, or an error message naming the agent.
func (r Reply) String() string {
	if !r.Failed() {
		return r.Text
	}
	if r.Err == nil {
		return fmt.Sprintf("Error: %s unavailable.", r.Agent)
	}
	return fmt.Sprintf("Error in %s: %v", r.Agent, r.Err)
}
