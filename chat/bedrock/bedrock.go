// Package bedrock implements chat sessions over the AWS Bedrock Converse API.
package bedrock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/document"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"mealprep"
	"mealprep/tools"
)

const (
	// defaultModelID is an inference profile ID, not the foundation model's ID.
	// See https://docs.aws.amazon.com/bedrock/latest/userguide/inference-profiles.html.
	defaultModelID = "us.anthropic.claude-3-7-sonnet-20250219-v1:0"

	defaultMaxTokens     = 2048
	defaultTopP          = 0.9
	defaultMaxIterations = 10
)

type bedrockRuntimeClient interface {
	Converse(context.Context, *bedrockruntime.ConverseInput, ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
}

type Options struct {
	ModelID       string
	MaxTokens     int32
	TopP          float32
	MaxIterations int
	Logger        mealprep.ConversationLogger
}

// Interface compliance check.
var _ mealprep.ChatProvider = (*Provider)(nil)

type Provider struct {
	brc  bedrockRuntimeClient
	opts Options
}

func NewProvider(brc bedrockRuntimeClient, opts Options) *Provider {
	if opts.ModelID == "" {
		opts.ModelID = defaultModelID
	}
	if opts.MaxTokens == 0 {
		opts.MaxTokens = defaultMaxTokens
	}
	if opts.TopP == 0 {
		opts.TopP = defaultTopP
	}
	if opts.MaxIterations == 0 {
		opts.MaxIterations = defaultMaxIterations
	}
	if opts.Logger == nil {
		opts.Logger = mealprep.NewNoOpConversationLogger()
	}
	return &Provider{brc: brc, opts: opts}
}

func (p *Provider) Name() string { return mealprep.ProviderBedrock }

func (p *Provider) NewChat(ctx context.Context, cfg mealprep.ChatConfig) (mealprep.ChatSession, error) {
	if cfg.WebSearch {
		slog.Warn("CHAT_SESSION: Bedrock has no built-in web search; relying on model knowledge", "agent", cfg.AgentName)
	}

	specs, err := buildToolSpecs(cfg.Tools)
	if err != nil {
		return nil, err
	}

	system := cfg.SystemInstruction
	if cfg.JSONMode {
		system += "\n\nRespond with raw JSON only."
	}

	s := &Session{
		agent:  cfg.AgentName,
		brc:    p.brc,
		opts:   p.opts,
		tools:  cfg.Tools,
		specs:  specs,
		temp:   cfg.Temperature,
		tracer: otel.Tracer(mealprep.TracerNameBedrock),
	}
	if system != "" {
		s.system = []types.SystemContentBlock{&types.SystemContentBlockMemberText{Value: system}}
	}

	slog.Info("CHAT_SESSION: Bedrock chat created", "agent", cfg.AgentName, "model", p.opts.ModelID, "tools", len(specs))
	return s, nil
}

// Session keeps the Converse message history of one agent.
type Session struct {
	agent   string
	brc     bedrockRuntimeClient
	opts    Options
	tools   mealprep.ToolProvider
	specs   []types.Tool
	system  []types.SystemContentBlock
	temp    float32
	history []types.Message
	tracer  trace.Tracer
}

// Send appends text to the conversation and runs tool calls until the model
// ends its turn. A failed turn leaves the history as it was.
func (s *Session) Send(ctx context.Context, text string) (string, error) {
	ctx, span := s.tracer.Start(ctx, "BedrockSession.Send", trace.WithAttributes(attribute.String("agent", s.agent)))
	defer span.End()

	msgs := append(append([]types.Message(nil), s.history...), types.Message{
		Role:    types.ConversationRoleUser,
		Content: []types.ContentBlock{&types.ContentBlockMemberText{Value: text}},
	})
	input := text

	for iter := 0; iter < s.opts.MaxIterations; iter++ {
		turn := mealprep.TurnLog{Agent: s.agent, Iteration: iter + 1, Timestamp: time.Now(), Input: input}

		out, err := s.brc.Converse(ctx, s.converseInput(msgs))
		if err != nil {
			err = mapError(err)
			slog.Error("LLM_CLIENT: Bedrock converse failed", "agent", s.agent, "error", err)
			turn.Error = err.Error()
			s.logTurn(turn)
			span.SetStatus(codes.Error, "converse failed")
			span.RecordError(err)
			return "", err
		}

		logUsage(out)

		reply, ok := out.Output.(*types.ConverseOutputMemberMessage)
		if !ok || reply == nil {
			return "", fmt.Errorf("bedrock: response has no message")
		}
		msgs = append(msgs, reply.Value)

		switch out.StopReason {
		case types.StopReasonToolUse:
			calls := toolCallsFromMessage(reply.Value)
			results := make([]types.ContentBlock, 0, len(calls))
			names := make([]string, 0, len(calls))
			for _, call := range calls {
				result, tlog := mealprep.RunToolCall(ctx, s.tools, call)
				turn.ToolCalls = append(turn.ToolCalls, tlog)
				names = append(names, call.Name)

				status := types.ToolResultStatusSuccess
				if tlog.Error != "" {
					status = types.ToolResultStatusError
				}
				results = append(results, &types.ContentBlockMemberToolResult{Value: types.ToolResultBlock{
					ToolUseId: aws.String(call.ToolUseID),
					Status:    status,
					Content: []types.ToolResultContentBlock{
						&types.ToolResultContentBlockMemberJson{Value: document.NewLazyDocument(result)},
					},
				}})
			}
			s.logTurn(turn)
			msgs = append(msgs, types.Message{Role: types.ConversationRoleUser, Content: results})
			input = "tool results: " + strings.Join(names, ", ")

		case types.StopReasonMaxTokens:
			slog.Warn("LLM_CLIENT: Model hit MaxTokens limit; consider increasing MAX_TOKENS")
			return "", fmt.Errorf("bedrock: model hit MaxTokens limit")

		case types.StopReasonContentFiltered, types.StopReasonGuardrailIntervened:
			return "", fmt.Errorf("bedrock: response blocked by safety filters")

		default:
			final := textFromMessage(reply.Value)
			turn.Output = final
			s.logTurn(turn)
			s.history = msgs
			span.SetAttributes(attribute.Int("iterations", iter+1))
			return final, nil
		}
	}

	span.SetStatus(codes.Error, "max iterations")
	return "", mealprep.ErrMaxToolIterations
}

func (s *Session) converseInput(msgs []types.Message) *bedrockruntime.ConverseInput {
	in := &bedrockruntime.ConverseInput{
		ModelId:  aws.String(s.opts.ModelID),
		System:   s.system,
		Messages: msgs,
		InferenceConfig: &types.InferenceConfiguration{
			MaxTokens:   aws.Int32(s.opts.MaxTokens),
			Temperature: aws.Float32(s.temp),
			TopP:        aws.Float32(s.opts.TopP),
		},
	}
	if len(s.specs) > 0 {
		in.ToolConfig = &types.ToolConfiguration{Tools: s.specs, ToolChoice: &types.ToolChoiceMemberAuto{}}
	}
	return in
}

func (s *Session) logTurn(turn mealprep.TurnLog) {
	if err := s.opts.Logger.LogTurn(turn); err != nil {
		slog.Warn("LLM_CLIENT: Failed to log turn", "error", err)
	}
}

func logUsage(out *bedrockruntime.ConverseOutput) {
	var latency int64
	var inTokens, outTokens int32
	if out.Metrics != nil {
		latency = aws.ToInt64(out.Metrics.LatencyMs)
	}
	if out.Usage != nil {
		inTokens = aws.ToInt32(out.Usage.InputTokens)
		outTokens = aws.ToInt32(out.Usage.OutputTokens)
	}
	slog.Info("LLM_CLIENT: Bedrock converse succeeded",
		"stop_reason", out.StopReason,
		"latency_ms", latency,
		"input_tokens", inTokens,
		"output_tokens", outTokens,
	)
}

func buildToolSpecs(tp mealprep.ToolProvider) ([]types.Tool, error) {
	if tp == nil {
		return nil, nil
	}
	var specs []types.Tool
	for _, t := range tp.GetTools() {
		if t.Name() == "" {
			return nil, fmt.Errorf("bedrock: tool without a name")
		}
		specs = append(specs, &types.ToolMemberToolSpec{Value: types.ToolSpecification{
			Name:        aws.String(t.Name()),
			Description: aws.String(t.Description()),
			InputSchema: &types.ToolInputSchemaMemberJson{
				Value: document.NewLazyDocument(tools.SchemaMap(t.InputSchema())),
			},
		}})
	}
	return specs, nil
}

// textFromMessage joins the text blocks of an assistant message.
func textFromMessage(msg types.Message) string {
	var texts []string
	for _, cb := range msg.Content {
		if t, ok := cb.(*types.ContentBlockMemberText); ok && t != nil && t.Value != "" {
			texts = append(texts, t.Value)
		}
	}
	return strings.Join(texts, "\n")
}

// toolCallsFromMessage extracts tool uses emitted by the assistant.
func toolCallsFromMessage(msg types.Message) []tools.Call {
	var calls []tools.Call
	for _, cb := range msg.Content {
		tu, ok := cb.(*types.ContentBlockMemberToolUse)
		if !ok || tu == nil {
			continue
		}

		input, err := decodeToolInput(tu.Value.Input)
		if err != nil {
			slog.Warn("LLM_CLIENT: Could not decode tool input", "tool", aws.ToString(tu.Value.Name), "error", err)
		}

		calls = append(calls, tools.Call{
			Name:      aws.ToString(tu.Value.Name),
			Input:     input,
			ToolUseID: aws.ToString(tu.Value.ToolUseId),
		})
	}
	return calls
}

// decodeToolInput round-trips the document through JSON, which works for
// both documents built locally and documents decoded from the wire.
func decodeToolInput(doc document.Interface) (map[string]any, error) {
	input := map[string]any{}
	if doc == nil {
		return input, nil
	}
	raw, err := doc.MarshalSmithyDocument()
	if err != nil {
		return input, fmt.Errorf("marshal tool input: %w", err)
	}
	if err := json.Unmarshal(raw, &input); err != nil {
		return map[string]any{}, fmt.Errorf("unmarshal tool input: %w", err)
	}
	if input == nil {
		input = map[string]any{}
	}
	return input, nil
}

// mapError attaches the HTTP status AWS reported, if any.
func mapError(err error) error {
	var throttled *types.ThrottlingException
	if errors.As(err, &throttled) {
		return mealprep.NewModelError(mealprep.ProviderBedrock, http.StatusTooManyRequests, err)
	}
	var unavailable *types.ServiceUnavailableException
	if errors.As(err, &unavailable) {
		return mealprep.NewModelError(mealprep.ProviderBedrock, http.StatusServiceUnavailable, err)
	}
	var withStatus interface{ HTTPStatusCode() int }
	if errors.As(err, &withStatus) {
		return mealprep.NewModelError(mealprep.ProviderBedrock, withStatus.HTTPStatusCode(), err)
	}
	return mealprep.NewModelError(mealprep.ProviderBedrock, 0, err)
}
