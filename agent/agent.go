// Package agent wraps a stateful chat session with the retry policy and
// output cleanup every meal prep role shares.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"regexp"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"mealprep"
)

const DefaultMaxRetries = 5

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Agent is one conversation bound to a fixed instruction and tool set.
// Starting over means building a new Agent.
type Agent struct {
	name       string
	session    mealprep.ChatSession
	maxRetries int
	sleep      SleepFunc
	logger     mealprep.ConversationLogger
	tracer     trace.Tracer
	meter      metric.Meter
}

type Option func(*Agent)

// WithMaxRetries sets the number of attempts per message.
func WithMaxRetries(n int) Option {
	return func(a *Agent) {
		if n > 0 {
			a.maxRetries = n
		}
	}
}

// WithSleep replaces the backoff wait, mostly for tests.
func WithSleep(fn SleepFunc) Option {
	return func(a *Agent) { a.sleep = fn }
}

func WithLogger(l mealprep.ConversationLogger) Option {
	return func(a *Agent) {
		if l != nil {
			a.logger = l
		}
	}
}

// New opens a chat session for cfg through provider.
func New(ctx context.Context, provider mealprep.ChatProvider, cfg mealprep.ChatConfig, opts ...Option) (*Agent, error) {
	if provider == nil {
		return nil, errors.New("chat provider is required")
	}

	session, err := provider.NewChat(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to start %s session: %w", cfg.AgentName, err)
	}

	a := &Agent{
		name:       cfg.AgentName,
		session:    session,
		maxRetries: DefaultMaxRetries,
		sleep:      sleepContext,
		logger:     mealprep.NewNoOpConversationLogger(),
		tracer:     otel.Tracer(mealprep.TracerNameAgent),
		meter:      otel.Meter(mealprep.TracerNameAgent),
	}
	for _, opt := range opts {
		opt(a)
	}

	slog.Info("AGENT: Session started", "agent", a.name, "provider", provider.Name(), "tools", toolCount(cfg.Tools), "web_search", cfg.WebSearch, "json_mode", cfg.JSONMode)
	return a, nil
}

func (a *Agent) Name() string { return a.name }

// Send forwards text as the next turn. Failures come back inside the Reply.
func (a *Agent) Send(ctx context.Context, text string) mealprep.Reply {
	ctx, span := a.tracer.Start(ctx, "Agent.Send", trace.WithAttributes(attribute.String("agent", a.name)))
	defer span.End()

	messages, _ := a.meter.Int64Counter("agent_messages_total",
		metric.WithDescription("Total number of messages sent to agents"))
	retries, _ := a.meter.Int64Counter("agent_retries_total",
		metric.WithDescription("Total number of retried model calls"))
	failures, _ := a.meter.Int64Counter("agent_failures_total",
		metric.WithDescription("Total number of messages that ended in an error reply"))
	responseTime, _ := a.meter.Float64Histogram("agent_response_time_seconds",
		metric.WithDescription("Time taken to get a reply from an agent in seconds"))

	agentAttr := metric.WithAttributes(attribute.String("agent", a.name))
	messages.Add(ctx, 1, agentAttr)
	start := time.Now()

	var lastErr error
	attempt := 0
	for ; attempt < a.maxRetries; attempt++ {
		turn := mealprep.TurnLog{Agent: a.name, Iteration: attempt + 1, Timestamp: time.Now(), Input: text}

		out, err := a.session.Send(ctx, text)
		if err == nil {
			turn.Output = out
			a.logTurn(turn)

			responseTime.Record(ctx, time.Since(start).Seconds(), agentAttr)
			span.SetAttributes(attribute.Int("attempts", attempt+1), attribute.String("outcome", "success"))
			slog.Info("AGENT: Reply received", "agent", a.name, "attempt", attempt+1, "preview", mealprep.Preview(out, 80))
			return mealprep.Reply{Agent: a.name, Text: CleanFences(out)}
		}

		turn.Error = err.Error()
		a.logTurn(turn)
		lastErr = err

		if !IsTransient(err) {
			slog.Error("AGENT: Model call failed", "agent", a.name, "attempt", attempt+1, "error", err)
			return a.fail(ctx, span, failures, agentAttr, mealprep.FailureService, err, attempt+1)
		}
		if attempt == a.maxRetries-1 {
			break
		}

		wait := Backoff(attempt)
		slog.Warn("AGENT: Model busy, retrying", "agent", a.name, "attempt", attempt+1, "wait", wait, "error", err)
		retries.Add(ctx, 1, agentAttr)
		span.AddEvent("retry", trace.WithAttributes(attribute.Int("attempt", attempt+1), attribute.String("wait", wait.String())))

		if err := a.sleep(ctx, wait); err != nil {
			return a.fail(ctx, span, failures, agentAttr, mealprep.FailureService, err, attempt+1)
		}
	}

	slog.Error("AGENT: Retries exhausted", "agent", a.name, "attempts", a.maxRetries, "error", lastErr)
	return a.fail(ctx, span, failures, agentAttr, mealprep.FailureTransient, lastErr, a.maxRetries)
}

func (a *Agent) fail(ctx context.Context, span trace.Span, failures metric.Int64Counter, attr metric.AddOption, kind mealprep.FailureKind, err error, attempts int) mealprep.Reply {
	failures.Add(ctx, 1, attr)
	span.SetAttributes(attribute.Int("attempts", attempts), attribute.String("outcome", kind.String()))
	span.SetStatus(codes.Error, "agent reply failed")
	span.RecordError(err)
	return mealprep.Reply{Agent: a.name, Err: err, Kind: kind}
}

// SendMessage is Send flattened to text: the answer or an error message.
func (a *Agent) SendMessage(ctx context.Context, text string) string {
	return a.Send(ctx, text).String()
}

func (a *Agent) logTurn(turn mealprep.TurnLog) {
	if err := a.logger.LogTurn(turn); err != nil {
		slog.Warn("AGENT: Failed to log turn", "agent", a.name, "error", err)
	}
}

// IsTransient reports whether err means the service was rate limiting or
// overloaded and the call is worth repeating.
func IsTransient(err error) bool {
	if err == nil || errors.Is(err, mealprep.ErrIncompleteToolTurn) {
		return false
	}
	var me *mealprep.ModelError
	if errors.As(err, &me) && me.StatusCode != 0 {
		return me.Transient()
	}
	msg := err.Error()
	return strings.Contains(msg, "503") || strings.Contains(msg, "429")
}

// Backoff is the wait after the given zero-based attempt: 2^attempt + 1 seconds.
func Backoff(attempt int) time.Duration {
	return time.Duration(math.Pow(2, float64(attempt))+1) * time.Second
}

var fenceRe = regexp.MustCompile("```json\\s*|\\s*```")

// CleanFences strips markdown code fences around JSON output. Text without
// a fence is returned unchanged.
func CleanFences(text string) string {
	if !strings.Contains(text, "```") {
		return text
	}
	return strings.TrimSpace(fenceRe.ReplaceAllString(text, ""))
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func toolCount(tp mealprep.ToolProvider) int {
	if tp == nil {
		return 0
	}
	return len(tp.GetTools())
}
