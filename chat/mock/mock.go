// Package mock is a deterministic, offline chat provider. It plays each
// agent role well enough to drive the whole pipeline without a model
// service, and calls the shopping tools for real.
package mock

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"mealprep"
	"mealprep/agent"
	"mealprep/tools"
)

// Interface compliance check.
var _ mealprep.ChatProvider = (*Provider)(nil)

type Provider struct {
	logger mealprep.ConversationLogger
}

func NewProvider(logger mealprep.ConversationLogger) *Provider {
	if logger == nil {
		logger = mealprep.NewNoOpConversationLogger()
	}
	return &Provider{logger: logger}
}

func (p *Provider) Name() string { return mealprep.ProviderMock }

func (p *Provider) NewChat(ctx context.Context, cfg mealprep.ChatConfig) (mealprep.ChatSession, error) {
	slog.Info("CHAT_SESSION: Mock chat created", "agent", cfg.AgentName)
	return &Session{agent: cfg.AgentName, tools: cfg.Tools, logger: p.logger}, nil
}

// Session answers according to the role it was created for. It remembers
// the query of the recipe conversation so feedback rounds can refer to it.
type Session struct {
	agent  string
	tools  mealprep.ToolProvider
	logger mealprep.ConversationLogger

	query    string
	feedback []string
}

func (s *Session) Send(ctx context.Context, text string) (string, error) {
	slog.Info("LLM_CLIENT: Invoked", "agent", s.agent, "input_len", len(text))

	turn := mealprep.TurnLog{Agent: s.agent, Iteration: 1, Timestamp: time.Now(), Input: text}
	var out string
	var err error

	switch s.agent {
	case agent.RecipeAgentName:
		out, err = s.recipes(text)
	case agent.NutritionAgentName:
		out = nutrition(text)
	case agent.ShoppingAgentName:
		out, turn.ToolCalls, err = s.shopping(ctx, text)
	default:
		out = "Acknowledged: " + text
	}

	if err != nil {
		turn.Error = err.Error()
	}
	turn.Output = out
	_ = s.logger.LogTurn(turn)
	return out, err
}

const feedbackMarker = "The user has this feedback: '"

func (s *Session) recipes(text string) (string, error) {
	if i := strings.Index(text, feedbackMarker); i >= 0 {
		rest := text[i+len(feedbackMarker):]
		if j := strings.Index(rest, "'."); j >= 0 {
			rest = rest[:j]
		}
		s.feedback = append(s.feedback, rest)
	} else {
		s.query = afterColon(text)
		s.feedback = nil
	}

	subject := s.query
	if subject == "" {
		subject = "dinner"
	}

	items := []mealprep.RecipeItem{
		{
			Title:       "Classic " + titleCase(subject),
			Ingredients: []string{"2 cups " + subject, "1 onion", "2 carrots", "1 tbsp olive oil", "salt"},
			PrepTime:    "45 mins",
			SourceURL:   "https://example.com/recipes/classic",
		},
		{
			Title:       "Quick " + titleCase(subject),
			Ingredients: []string{"1 lb " + subject, "3 cloves garlic", "1 cup spinach", "pepper"},
			PrepTime:    "20 mins",
			SourceURL:   "https://example.com/recipes/quick",
		},
		{
			Title:       "Hearty " + titleCase(subject) + " Bowl",
			Ingredients: []string{"1 cup rice", "2 carrots", "1 cup " + subject, "1 tbsp butter"},
			PrepTime:    "35 mins",
			SourceURL:   "https://example.com/recipes/hearty",
		},
	}
	for i, fb := range s.feedback {
		items = append(items[:len(items)-1], mealprep.RecipeItem{
			Title:       fmt.Sprintf("%s (revision %d: %s)", titleCase(subject), i+1, fb),
			Ingredients: []string{"1 cup " + subject, "1 zucchini", "1 cup chickpeas"},
			PrepTime:    "30 mins",
			SourceURL:   "https://example.com/recipes/revised",
		})
	}

	b, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return "", err
	}
	// Real models like to fence their JSON.
	return "```json\n" + string(b) + "\n```", nil
}

func nutrition(text string) string {
	recipes := decodeRecipes(text)

	var sb strings.Builder
	sb.WriteString("## Nutrition Overview\n\n")
	sb.WriteString("| Recipe | Calories | Protein | Carbs | Fats |\n|---|---|---|---|---|\n")
	best := ""
	bestCal := 0
	for _, r := range recipes {
		est := tools.EstimateMacros(strings.Join(r.Ingredients, ", "))
		fmt.Fprintf(&sb, "| %s | %d | %s | %s | %s |\n", r.Title, est.Calories, est.Macros.Protein, est.Macros.Carbs, est.Macros.Fats)
		if best == "" || est.Calories < bestCal {
			best, bestCal = r.Title, est.Calories
		}
	}
	if best == "" {
		sb.WriteString("\nNo recipes could be read from the approved data.\n")
		return sb.String()
	}
	fmt.Fprintf(&sb, "\n**Healthiest choice:** %s, with the lowest estimated calories per serving.\n", best)
	return sb.String()
}

func (s *Session) shopping(ctx context.Context, text string) (string, []mealprep.ToolCallLog, error) {
	var logs []mealprep.ToolCallLog

	staplesOut, tlog := mealprep.RunToolCall(ctx, s.tools, tools.Call{Name: tools.PantryStaplesToolName, Input: map[string]any{}})
	logs = append(logs, tlog)

	var staples []string
	if raw, ok := staplesOut["staples"].([]any); ok {
		for _, v := range raw {
			if str, ok := v.(string); ok {
				staples = append(staples, str)
			}
		}
	}

	list := shoppingList(decodeRecipes(text), staples)

	saveOut, tlog := mealprep.RunToolCall(ctx, s.tools, tools.Call{
		Name:  tools.SaveFileToolName,
		Input: map[string]any{"content": list, "filename": tools.DefaultFilename},
	})
	logs = append(logs, tlog)

	status, _ := saveOut["status"].(string)
	if status == "" {
		status, _ = saveOut["error"].(string)
	}
	return list + "\n_" + status + "_\n", logs, nil
}

var categories = []struct {
	name     string
	keywords []string
}{
	{"Produce", []string{"onion", "carrot", "garlic", "spinach", "zucchini", "celery", "potato", "tomato", "lemon", "herb", "basil", "leek"}},
	{"Meat & Seafood", []string{"chicken", "beef", "pork", "fish", "salmon", "shrimp", "turkey"}},
	{"Dairy", []string{"milk", "cream", "cheese", "yogurt", "egg"}},
	{"Pantry", []string{"rice", "pasta", "noodle", "chickpea", "bean", "lentil", "stock", "broth"}},
}

func shoppingList(recipes []mealprep.RecipeItem, staples []string) string {
	grouped := map[string][]string{}
	seen := map[string]bool{}

	for _, r := range recipes {
		for _, ing := range r.Ingredients {
			lower := strings.ToLower(strings.TrimSpace(ing))
			if lower == "" || seen[lower] || isStaple(lower, staples) {
				continue
			}
			seen[lower] = true
			cat := "Other"
			for _, c := range categories {
				if containsAny(lower, c.keywords) {
					cat = c.name
					break
				}
			}
			grouped[cat] = append(grouped[cat], ing)
		}
	}

	var sb strings.Builder
	sb.WriteString("# Shopping List\n")
	for _, cat := range []string{"Produce", "Meat & Seafood", "Dairy", "Pantry", "Other"} {
		items := grouped[cat]
		if len(items) == 0 {
			continue
		}
		sort.Strings(items)
		fmt.Fprintf(&sb, "\n## %s\n", cat)
		for _, it := range items {
			fmt.Fprintf(&sb, "- [ ] %s\n", it)
		}
	}
	return sb.String()
}

func isStaple(ingredient string, staples []string) bool {
	for _, s := range staples {
		if strings.HasSuffix(ingredient, s) {
			return true
		}
	}
	return false
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

// decodeRecipes reads the JSON array embedded in a prompt.
func decodeRecipes(text string) []mealprep.RecipeItem {
	start := strings.Index(text, "[")
	end := strings.LastIndex(text, "]")
	if start < 0 || end <= start {
		return nil
	}
	var items []mealprep.RecipeItem
	if err := json.Unmarshal([]byte(text[start:end+1]), &items); err != nil {
		return nil
	}
	return items
}

func afterColon(text string) string {
	if i := strings.LastIndex(text, ":"); i >= 0 {
		return strings.TrimSpace(text[i+1:])
	}
	return strings.TrimSpace(text)
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
