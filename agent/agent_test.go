package agent

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mealprep"
	"mealprep/tools"
	"mealprep/tools/storage"
)

type scriptedSession struct {
	mu      sync.Mutex
	results []result
	inputs  []string
}

type result struct {
	text string
	err  error
}

func (s *scriptedSession) Send(ctx context.Context, text string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inputs = append(s.inputs, text)
	if len(s.results) == 0 {
		return "", errors.New("no scripted result")
	}
	r := s.results[0]
	s.results = s.results[1:]
	return r.text, r.err
}

type fakeProvider struct {
	session *scriptedSession
	configs []mealprep.ChatConfig
	err     error
}

func (p *fakeProvider) Name() string { return "fake" }

func (p *fakeProvider) NewChat(ctx context.Context, cfg mealprep.ChatConfig) (mealprep.ChatSession, error) {
	if p.err != nil {
		return nil, p.err
	}
	p.configs = append(p.configs, cfg)
	return p.session, nil
}

type recordingSleep struct {
	waits []time.Duration
}

func (r *recordingSleep) sleep(ctx context.Context, d time.Duration) error {
	r.waits = append(r.waits, d)
	return nil
}

func overloaded() error {
	return &mealprep.ModelError{Provider: "fake", StatusCode: 503, Err: errors.New("model overloaded")}
}

func newTestAgent(t *testing.T, results []result, opts ...Option) (*Agent, *scriptedSession, *recordingSleep) {
	t.Helper()
	session := &scriptedSession{results: results}
	rs := &recordingSleep{}
	opts = append([]Option{WithSleep(rs.sleep)}, opts...)
	a, err := New(context.Background(), &fakeProvider{session: session}, mealprep.ChatConfig{AgentName: "TestAgent"}, opts...)
	require.NoError(t, err)
	return a, session, rs
}

func TestAgent_Send_Success(t *testing.T) {
	a, session, rs := newTestAgent(t, []result{{text: "```json\n[{\"title\":\"Soup\"}]\n```"}})

	reply := a.Send(context.Background(), "Find soup")
	assert.False(t, reply.Failed())
	assert.Equal(t, `[{"title":"Soup"}]`, reply.Text)
	assert.Equal(t, "TestAgent", reply.Agent)
	assert.Equal(t, []string{"Find soup"}, session.inputs)
	assert.Empty(t, rs.waits)
}

func TestAgent_Send_Retry(t *testing.T) {
	const retries = 5

	t.Run("transient failures below the cap then success", func(t *testing.T) {
		var results []result
		for range retries - 1 {
			results = append(results, result{err: overloaded()})
		}
		results = append(results, result{text: "final answer"})

		a, session, rs := newTestAgent(t, results, WithMaxRetries(retries))
		reply := a.Send(context.Background(), "hello")

		assert.False(t, reply.Failed())
		assert.Equal(t, "final answer", reply.String())
		assert.Len(t, session.inputs, retries)
		assert.Equal(t, []time.Duration{2 * time.Second, 3 * time.Second, 5 * time.Second, 9 * time.Second}, rs.waits)
	})

	t.Run("transient failures on every attempt", func(t *testing.T) {
		var results []result
		for range retries {
			results = append(results, result{err: errors.New("429 RESOURCE_EXHAUSTED")})
		}

		a, session, _ := newTestAgent(t, results, WithMaxRetries(retries))
		reply := a.Send(context.Background(), "hello")

		assert.True(t, reply.Failed())
		assert.Equal(t, mealprep.FailureTransient, reply.Kind)
		assert.Equal(t, "Error in TestAgent: 429 RESOURCE_EXHAUSTED", reply.String())
		assert.Len(t, session.inputs, retries)
	})

	t.Run("non transient failure is not retried", func(t *testing.T) {
		a, session, rs := newTestAgent(t, []result{{err: &mealprep.ModelError{Provider: "fake", StatusCode: 400, Err: errors.New("bad request")}}})
		reply := a.Send(context.Background(), "hello")

		assert.Equal(t, mealprep.FailureService, reply.Kind)
		assert.Contains(t, reply.String(), "Error in TestAgent:")
		assert.Len(t, session.inputs, 1)
		assert.Empty(t, rs.waits)
	})

	t.Run("cancelled while backing off", func(t *testing.T) {
		session := &scriptedSession{results: []result{{err: overloaded()}, {text: "never"}}}
		a, err := New(context.Background(), &fakeProvider{session: session}, mealprep.ChatConfig{AgentName: "TestAgent"},
			WithSleep(func(ctx context.Context, d time.Duration) error { return context.Canceled }))
		require.NoError(t, err)

		reply := a.Send(context.Background(), "hello")
		assert.True(t, reply.Failed())
		assert.ErrorIs(t, reply.Err, context.Canceled)
		assert.Len(t, session.inputs, 1)
	})
}

func TestAgent_SendMessage(t *testing.T) {
	a, _, _ := newTestAgent(t, []result{{text: "plain"}, {err: errors.New("boom")}})

	assert.Equal(t, "plain", a.SendMessage(context.Background(), "one"))
	assert.Equal(t, "Error in TestAgent: boom", a.SendMessage(context.Background(), "two"))
}

func TestAgent_LogsTurns(t *testing.T) {
	var buf bytes.Buffer
	logger := mealprep.NewFileConversationLogger(&buf)
	a, _, _ := newTestAgent(t, []result{{err: overloaded()}, {text: "ok"}}, WithLogger(logger))

	a.Send(context.Background(), "hi")
	require.NoError(t, logger.Flush())
	assert.Contains(t, buf.String(), `"agent": "TestAgent"`)
	assert.Contains(t, buf.String(), `"iteration": 2`)
}

func TestNew_ProviderError(t *testing.T) {
	_, err := New(context.Background(), &fakeProvider{err: errors.New("no credentials")}, mealprep.ChatConfig{AgentName: "RecipeAgent"})
	assert.ErrorContains(t, err, "failed to start RecipeAgent session: no credentials")

	_, err = New(context.Background(), nil, mealprep.ChatConfig{})
	assert.Error(t, err)
}

func TestCleanFences(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "json fence", in: "```json\n[1, 2]\n```", want: "[1, 2]"},
		{name: "bare fence", in: "```\n{\"a\": 1}\n```", want: "{\"a\": 1}"},
		{name: "surrounding whitespace", in: "  ```json [\"x\"] ```  ", want: "[\"x\"]"},
		{name: "no fence is untouched", in: "  [1]\n", want: "  [1]\n"},
		{name: "empty", in: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CleanFences(tt.in)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, got, CleanFences(got))
		})
	}
}

func TestIsTransient(t *testing.T) {
	assert.True(t, IsTransient(overloaded()))
	assert.True(t, IsTransient(&mealprep.ModelError{StatusCode: 429, Err: errors.New("slow down")}))
	assert.True(t, IsTransient(errors.New("Error 503, Message: The model is overloaded")))
	assert.False(t, IsTransient(&mealprep.ModelError{StatusCode: 500, Err: errors.New("503 in body")}))
	assert.False(t, IsTransient(errors.New("invalid argument")))
	assert.False(t, IsTransient(nil))
	assert.False(t, IsTransient(fmt.Errorf("%w: %w", mealprep.ErrIncompleteToolTurn, &mealprep.ModelError{StatusCode: 429, Err: errors.New("slow down")})))
}

func TestRoles(t *testing.T) {
	provider := &fakeProvider{session: &scriptedSession{}}
	registry, err := tools.NewRegistry(storage.NewTestArtifactStore())
	require.NoError(t, err)

	_, err = NewRecipeAgent(context.Background(), provider, 0.7)
	require.NoError(t, err)
	_, err = NewNutritionAgent(context.Background(), provider, 0.7)
	require.NoError(t, err)
	_, err = NewShoppingAgent(context.Background(), provider, registry, 0.7)
	require.NoError(t, err)

	require.Len(t, provider.configs, 3)

	recipe := provider.configs[0]
	assert.Equal(t, RecipeAgentName, recipe.AgentName)
	assert.True(t, recipe.WebSearch)
	assert.True(t, recipe.JSONMode)
	assert.Nil(t, recipe.Tools)
	assert.Equal(t, float32(0.7), recipe.Temperature)

	nutrition := provider.configs[1]
	assert.False(t, nutrition.WebSearch)
	assert.False(t, nutrition.JSONMode)
	assert.Nil(t, nutrition.Tools)

	shopping := provider.configs[2]
	require.NotNil(t, shopping.Tools)
	var names []string
	for _, tool := range shopping.Tools.GetTools() {
		names = append(names, tool.Name())
	}
	assert.Equal(t, []string{tools.PantryStaplesToolName, tools.SaveFileToolName}, names)
	assert.Contains(t, shopping.SystemInstruction, "save_to_file")

	_, err = NewShoppingAgent(context.Background(), provider, nil, 0.7)
	assert.Error(t, err)
}

func TestBoundTools(t *testing.T) {
	for _, bound := range BoundTools() {
		assert.NotContains(t, bound, tools.CalculateMacrosToolName)
	}
}

func TestSend_IncompleteToolTurnIsNotRetried(t *testing.T) {
	err := fmt.Errorf("%w: %w", mealprep.ErrIncompleteToolTurn, overloaded())
	a, session, rs := newTestAgent(t, []result{{err: err}, {text: "should not be reached"}})

	reply := a.Send(context.Background(), "make a list")
	assert.Equal(t, mealprep.FailureService, reply.Kind)
	assert.ErrorIs(t, reply.Err, mealprep.ErrIncompleteToolTurn)
	assert.Len(t, session.inputs, 1)
	assert.Empty(t, rs.waits)
}
