// Package ollama implements chat sessions over the Ollama HTTP chat API.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"mealprep"
	"mealprep/tools"
)

const (
	defaultEndpoint      = "http://localhost:11434"
	defaultModel         = "llama3.2"
	defaultMaxIterations = 10
)

type options struct {
	Temperature   float64 `json:"temperature,omitempty"`
	TopP          float64 `json:"top_p,omitempty"`
	RepeatPenalty float64 `json:"repeat_penalty,omitempty"`
	NumCtx        int     `json:"num_ctx,omitempty"`
	NumPredict    int     `json:"num_predict,omitempty"`
}

type ProviderOpts struct {
	BaseEndpoint  string
	ModelID       string
	MaxTokens     int
	MaxIterations int
	HTTPClient    mealprep.HTTPClient
	Logger        mealprep.ConversationLogger
}

// Interface compliance check.
var _ mealprep.ChatProvider = (*Provider)(nil)

type Provider struct {
	endpoint      string
	model         string
	maxTokens     int
	maxIterations int
	httpClient    mealprep.HTTPClient
	logger        mealprep.ConversationLogger
}

func NewProvider(opts ProviderOpts) *Provider {
	p := &Provider{
		endpoint:      strings.TrimRight(opts.BaseEndpoint, "/") + "/api/chat",
		model:         opts.ModelID,
		maxTokens:     opts.MaxTokens,
		maxIterations: opts.MaxIterations,
		httpClient:    opts.HTTPClient,
		logger:        opts.Logger,
	}
	if opts.BaseEndpoint == "" {
		p.endpoint = defaultEndpoint + "/api/chat"
	}
	if p.model == "" {
		p.model = defaultModel
	}
	if p.maxIterations == 0 {
		p.maxIterations = defaultMaxIterations
	}
	if p.httpClient == nil {
		p.httpClient = http.DefaultClient
	}
	if p.logger == nil {
		p.logger = mealprep.NewNoOpConversationLogger()
	}
	return p
}

func (p *Provider) Name() string { return mealprep.ProviderOllama }

func (p *Provider) NewChat(ctx context.Context, cfg mealprep.ChatConfig) (mealprep.ChatSession, error) {
	if cfg.WebSearch {
		slog.Warn("CHAT_SESSION: Ollama has no built-in web search; relying on model knowledge", "agent", cfg.AgentName)
	}

	s := &Session{
		provider: p,
		agent:    cfg.AgentName,
		tools:    cfg.Tools,
		wire:     convertTools(cfg.Tools),
		jsonMode: cfg.JSONMode,
		options: options{
			Temperature:   float64(cfg.Temperature),
			TopP:          0.9,
			RepeatPenalty: 1.05,
			NumCtx:        16384,
			NumPredict:    p.maxTokens,
		},
		tracer: otel.Tracer(mealprep.TracerNameOllama),
	}
	if sp := strings.TrimSpace(cfg.SystemInstruction); sp != "" {
		s.history = append(s.history, Message{Role: "system", Content: sp})
	}

	slog.Info("CHAT_SESSION: Ollama chat created", "agent", cfg.AgentName, "model", p.model, "tools", len(s.wire))
	return s, nil
}

// Message is one entry of the Ollama chat history.
type Message struct {
	Role      string         `json:"role"`
	Content   string         `json:"content"`
	Name      string         `json:"name,omitempty"` // tool name for tool messages
	ToolCalls []wireToolCall `json:"tool_calls,omitempty"`
}

// Tool represents a tool in Ollama's native format
type Tool struct {
	Type     string     `json:"type"`
	Function ToolSchema `json:"function"`
}

type ToolSchema struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

type wireToolCall struct {
	Function struct {
		Name      string         `json:"name"`
		Arguments map[string]any `json:"arguments"`
	} `json:"function"`
}

type wireRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
	Tools    []Tool    `json:"tools,omitempty"`
	Format   string    `json:"format,omitempty"`
	Stream   bool      `json:"stream"`
	Options  options   `json:"options,omitempty"`
}

type wireResponse struct {
	Message Message `json:"message"`
	// other metadata omitted but available
}

// Session holds the message history of one agent.
type Session struct {
	provider *Provider
	agent    string
	tools    mealprep.ToolProvider
	wire     []Tool
	jsonMode bool
	options  options
	history  []Message
	tracer   trace.Tracer
}

// Send appends text to the history and answers native tool calls until the
// model replies with content. A failed turn leaves the history as it was.
func (s *Session) Send(ctx context.Context, text string) (string, error) {
	ctx, span := s.tracer.Start(ctx, "OllamaSession.Send", trace.WithAttributes(attribute.String("agent", s.agent)))
	defer span.End()

	msgs := append(append([]Message(nil), s.history...), Message{Role: "user", Content: text})
	input := text

	for iter := 0; iter < s.provider.maxIterations; iter++ {
		turn := mealprep.TurnLog{Agent: s.agent, Iteration: iter + 1, Timestamp: time.Now(), Input: input}

		msg, err := s.invoke(ctx, msgs)
		if err != nil {
			turn.Error = err.Error()
			s.logTurn(turn)
			span.SetStatus(codes.Error, "ollama chat failed")
			span.RecordError(err)
			return "", err
		}
		msgs = append(msgs, msg)

		if len(msg.ToolCalls) == 0 {
			turn.Output = msg.Content
			s.logTurn(turn)
			s.history = msgs
			span.SetAttributes(attribute.Int("iterations", iter+1))
			return msg.Content, nil
		}

		var names []string
		for _, call := range msg.ToolCalls {
			args := call.Function.Arguments
			if args == nil {
				args = map[string]any{}
			}
			result, tlog := mealprep.RunToolCall(ctx, s.tools, tools.Call{Name: call.Function.Name, Input: args})
			turn.ToolCalls = append(turn.ToolCalls, tlog)
			names = append(names, call.Function.Name)

			// Native Ollama tool result: role=tool, name=<function>, content=<JSON string>
			content, _ := json.Marshal(result)
			msgs = append(msgs, Message{Role: "tool", Name: call.Function.Name, Content: string(content)})
		}
		s.logTurn(turn)
		input = "tool results: " + strings.Join(names, ", ")
	}

	span.SetStatus(codes.Error, "max iterations")
	return "", mealprep.ErrMaxToolIterations
}

func (s *Session) invoke(ctx context.Context, msgs []Message) (Message, error) {
	slog.Info("LLM_CLIENT: Invoked", "agent", s.agent, "messages_len", len(msgs))

	reqBody := wireRequest{
		Model:    s.provider.model,
		Messages: msgs,
		Tools:    s.wire,
		Stream:   false,
		Options:  s.options,
	}
	if s.jsonMode {
		reqBody.Format = "json"
	}
	reqBytes, err := json.Marshal(reqBody)
	if err != nil {
		return Message{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.provider.endpoint, bytes.NewBuffer(reqBytes))
	if err != nil {
		return Message{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.provider.httpClient.Do(req)
	if err != nil {
		return Message{}, mealprep.NewModelError(mealprep.ProviderOllama, 0, err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return Message{}, mealprep.NewModelError(mealprep.ProviderOllama, resp.StatusCode,
			fmt.Errorf("%s: %s", resp.Status, strings.TrimSpace(string(body))))
	}

	var wr wireResponse
	if err := json.Unmarshal(body, &wr); err != nil {
		slog.Warn("LLM_CLIENT: decode failed, returning raw", "err", err, "body", mealprep.Preview(string(body), 200))
		return Message{Role: "assistant", Content: string(body)}, nil
	}
	if wr.Message.Role == "" {
		wr.Message.Role = "assistant"
	}
	return wr.Message, nil
}

func (s *Session) logTurn(turn mealprep.TurnLog) {
	if err := s.provider.logger.LogTurn(turn); err != nil {
		slog.Warn("LLM_CLIENT: Failed to log turn", "error", err)
	}
}

func convertTools(tp mealprep.ToolProvider) []Tool {
	if tp == nil {
		return nil
	}
	var out []Tool
	for _, t := range tp.GetTools() {
		out = append(out, Tool{
			Type: "function",
			Function: ToolSchema{
				Name:        t.Name(),
				Description: t.Description(),
				Parameters:  tools.SchemaMap(t.InputSchema()),
			},
		})
	}
	return out
}
