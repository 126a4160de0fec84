// Package gemini implements chat sessions against the Google Gemini API.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/genai"

	"mealprep"
	"mealprep/tools"
)

const (
	defaultModel         = mealprep.DefaultModelName
	defaultMaxIterations = 10
	jsonMIMEType         = "application/json"
)

// Interface compliance check.
var _ mealprep.ChatProvider = (*Provider)(nil)

// chatClient is the part of *genai.Chat a session uses.
type chatClient interface {
	SendMessage(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

type chatFactory func(ctx context.Context, model string, config *genai.GenerateContentConfig) (chatClient, error)

// Provider opens Gemini chat sessions.
type Provider struct {
	model         string
	maxTokens     int32
	maxIterations int
	logger        mealprep.ConversationLogger
	newChat       chatFactory
}

// Option configures a [Provider].
type Option func(*Provider)

// WithModel sets the model ID. Default is gemini-2.0-flash-exp.
func WithModel(model string) Option {
	return func(p *Provider) {
		if model != "" {
			p.model = model
		}
	}
}

func WithMaxTokens(n int32) Option {
	return func(p *Provider) { p.maxTokens = n }
}

// WithMaxIterations bounds the model round-trips of a single turn.
func WithMaxIterations(n int) Option {
	return func(p *Provider) {
		if n > 0 {
			p.maxIterations = n
		}
	}
}

func WithLogger(l mealprep.ConversationLogger) Option {
	return func(p *Provider) {
		if l != nil {
			p.logger = l
		}
	}
}

// New creates a Gemini [Provider] with the given API key and options.
func New(ctx context.Context, apiKey string, opts ...Option) (*Provider, error) {
	gc, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: %w", err)
	}

	p := newProvider(func(ctx context.Context, model string, config *genai.GenerateContentConfig) (chatClient, error) {
		return gc.Chats.Create(ctx, model, config, nil)
	}, opts...)
	return p, nil
}

func newProvider(factory chatFactory, opts ...Option) *Provider {
	p := &Provider{
		model:         defaultModel,
		maxIterations: defaultMaxIterations,
		logger:        mealprep.NewNoOpConversationLogger(),
		newChat:       factory,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

func (p *Provider) Name() string { return mealprep.ProviderGemini }

// NewChat starts an empty chat for cfg.
func (p *Provider) NewChat(ctx context.Context, cfg mealprep.ChatConfig) (mealprep.ChatSession, error) {
	config := BuildConfig(cfg, p.maxTokens)
	chat, err := p.newChat(ctx, p.model, config)
	if err != nil {
		return nil, fmt.Errorf("gemini: create chat: %w", err)
	}

	slog.Info("CHAT_SESSION: Gemini chat created", "agent", cfg.AgentName, "model", p.model)
	return &Session{
		agent:         cfg.AgentName,
		chat:          chat,
		tools:         cfg.Tools,
		maxIterations: p.maxIterations,
		logger:        p.logger,
		tracer:        otel.Tracer(mealprep.TracerNameGemini),
	}, nil
}

// BuildConfig translates a chat configuration into Gemini request settings.
// Exported for testing.
func BuildConfig(cfg mealprep.ChatConfig, maxTokens int32) *genai.GenerateContentConfig {
	temp := cfg.Temperature
	config := &genai.GenerateContentConfig{
		Temperature:     &temp,
		MaxOutputTokens: maxTokens,
	}

	if cfg.SystemInstruction != "" {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: cfg.SystemInstruction}},
		}
	}

	if cfg.WebSearch {
		config.Tools = append(config.Tools, &genai.Tool{GoogleSearch: &genai.GoogleSearch{}})
	}
	config.Tools = append(config.Tools, ConvertTools(cfg.Tools)...)

	// The API refuses a JSON response type together with search grounding,
	// so JSON output is then left to the instruction.
	if cfg.JSONMode && !cfg.WebSearch {
		config.ResponseMIMEType = jsonMIMEType
	}

	return config
}

// ConvertTools converts registry tools to Gemini function declarations.
// Exported for testing.
func ConvertTools(tp mealprep.ToolProvider) []*genai.Tool {
	if tp == nil {
		return nil
	}
	ts := tp.GetTools()
	if len(ts) == 0 {
		return nil
	}
	decls := make([]*genai.FunctionDeclaration, len(ts))
	for i, t := range ts {
		decls[i] = &genai.FunctionDeclaration{
			Name:                 t.Name(),
			Description:          t.Description(),
			ParametersJsonSchema: tools.SchemaMap(t.InputSchema()),
		}
	}
	return []*genai.Tool{{FunctionDeclarations: decls}}
}

// Session is one Gemini chat. History lives in the underlying chat.
type Session struct {
	agent         string
	chat          chatClient
	tools         mealprep.ToolProvider
	maxIterations int
	logger        mealprep.ConversationLogger
	tracer        trace.Tracer
}

// Send sends text and answers any function calls until the model replies
// with text.
func (s *Session) Send(ctx context.Context, text string) (string, error) {
	ctx, span := s.tracer.Start(ctx, "GeminiSession.Send", trace.WithAttributes(attribute.String("agent", s.agent)))
	defer span.End()

	parts := []genai.Part{{Text: text}}
	input := text

	for iter := 0; iter < s.maxIterations; iter++ {
		turn := mealprep.TurnLog{Agent: s.agent, Iteration: iter + 1, Timestamp: time.Now(), Input: input}

		slog.Debug("LLM_CLIENT: Sending message to Gemini", "agent", s.agent, "iteration", iter+1, "parts", len(parts))
		resp, err := s.chat.SendMessage(ctx, parts...)
		if err != nil {
			err = mapError(err)
			if iter > 0 {
				// The chat history now ends with a function call that has no
				// response; a retry from the top would be rejected.
				err = fmt.Errorf("%w: %w", mealprep.ErrIncompleteToolTurn, err)
			}
			turn.Error = err.Error()
			s.logTurn(turn)
			span.SetStatus(codes.Error, "gemini send failed")
			span.RecordError(err)
			return "", err
		}

		calls := resp.FunctionCalls()
		if len(calls) == 0 {
			out := resp.Text()
			turn.Output = out
			s.logTurn(turn)
			span.SetAttributes(attribute.Int("iterations", iter+1))
			return out, nil
		}

		parts = parts[:0]
		var names []string
		for _, fc := range calls {
			result, tlog := mealprep.RunToolCall(ctx, s.tools, tools.Call{Name: fc.Name, Input: fc.Args, ToolUseID: fc.ID})
			turn.ToolCalls = append(turn.ToolCalls, tlog)
			names = append(names, fc.Name)
			parts = append(parts, genai.Part{FunctionResponse: &genai.FunctionResponse{
				ID:       fc.ID,
				Name:     fc.Name,
				Response: result,
			}})
		}
		s.logTurn(turn)
		input = "function responses: " + strings.Join(names, ", ")
		span.AddEvent("tool calls", trace.WithAttributes(attribute.StringSlice("tools", names)))
	}

	span.SetStatus(codes.Error, "max iterations")
	return "", mealprep.ErrMaxToolIterations
}

func (s *Session) logTurn(turn mealprep.TurnLog) {
	if err := s.logger.LogTurn(turn); err != nil {
		slog.Warn("LLM_CLIENT: Failed to log turn", "error", err)
	}
}

// mapError attaches the HTTP status of Gemini API errors.
func mapError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return mealprep.NewModelError(mealprep.ProviderGemini, apiErr.Code, err)
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return mealprep.NewModelError(mealprep.ProviderGemini, apiErrPtr.Code, err)
	}
	return mealprep.NewModelError(mealprep.ProviderGemini, 0, err)
}
