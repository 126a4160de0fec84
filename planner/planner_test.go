package planner_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	should "github.com/stretchr/testify/assert"
	must "github.com/stretchr/testify/require"

	"mealprep"
	"mealprep/display"
	"mealprep/planner"
	"mealprep/session"
)

func TestMain(m *testing.M) {
	lipgloss.SetColorProfile(termenv.Ascii)
	os.Exit(m.Run())
}

// fakeAgent answers from a script and records every prompt.
type fakeAgent struct {
	mu      sync.Mutex
	name    string
	replies []mealprep.Reply
	prompts []string
	panicOn string
}

func (f *fakeAgent) Send(ctx context.Context, text string) mealprep.Reply {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, text)
	if f.panicOn != "" && strings.Contains(text, f.panicOn) {
		panic("agent exploded")
	}
	if len(f.replies) == 0 {
		return mealprep.Reply{Agent: f.name, Text: "ok"}
	}
	r := f.replies[0]
	if len(f.replies) > 1 {
		f.replies = f.replies[1:]
	}
	return r
}

func (f *fakeAgent) Prompts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.prompts...)
}

type lines struct {
	mu      sync.Mutex
	input   []string
	prompts []string
}

func (l *lines) ReadLine(ctx context.Context, prompt string) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.prompts = append(l.prompts, prompt)
	if len(l.input) == 0 {
		return "", mealprep.ErrInterrupted
	}
	next := l.input[0]
	l.input = l.input[1:]
	return next, nil
}

type recordingNotifier struct {
	records []mealprep.MealPlanRecord
	err     error
}

func (n *recordingNotifier) PostMealPlan(ctx context.Context, rec mealprep.MealPlanRecord) error {
	n.records = append(n.records, rec)
	return n.err
}

const draft = `[{"title": "Chicken Noodle Soup", "ingredients": ["chicken", "noodles", "carrots"], "prep_time": "40 mins", "source_url": "https://example.com"}]`

type fixture struct {
	planner     *planner.Planner
	recipes     []*fakeAgent
	nutrition   *fakeAgent
	shopping    *fakeAgent
	store       *session.Store
	out         *bytes.Buffer
	input       *lines
	notifier    *recordingNotifier
	factoryErrs []error
}

func newFixture(t *testing.T, reviewer planner.Reviewer, input ...string) *fixture {
	t.Helper()
	f := &fixture{
		nutrition: &fakeAgent{name: "NutritionAgent", replies: []mealprep.Reply{{Agent: "NutritionAgent", Text: "## Soup\nLow calorie."}}},
		shopping:  &fakeAgent{name: "ShoppingAgent", replies: []mealprep.Reply{{Agent: "ShoppingAgent", Text: "- [ ] chicken\n- [ ] noodles"}}},
		store:     session.NewStore(),
		out:       &bytes.Buffer{},
		input:     &lines{input: input},
		notifier:  &recordingNotifier{},
	}
	if reviewer == nil {
		reviewer = planner.NewConsoleReviewer(f.input)
	}

	factory := func(ctx context.Context) (planner.Messenger, error) {
		if len(f.factoryErrs) > 0 {
			err := f.factoryErrs[0]
			f.factoryErrs = f.factoryErrs[1:]
			if err != nil {
				return nil, err
			}
		}
		a := &fakeAgent{name: "RecipeAgent", replies: []mealprep.Reply{{Agent: "RecipeAgent", Text: draft}}}
		f.recipes = append(f.recipes, a)
		return a, nil
	}

	p, err := planner.New(context.Background(), planner.Config{
		NewRecipeAgent: factory,
		Nutrition:      f.nutrition,
		Shopping:       f.shopping,
		Store:          f.store,
		Reviewer:       reviewer,
		Input:          f.input,
		UI:             display.NewPrinter(f.out, 80),
		Status:         display.NewPlainStatus(io.Discard),
		Notifier:       f.notifier,
	})
	must.NoError(t, err)
	f.planner = p
	return f
}

func TestProcessQuery_ChickenSoup(t *testing.T) {
	f := newFixture(t, planner.AutoApprove{})

	plan, err := f.planner.ProcessQuery(context.Background(), "chicken soup")
	must.NoError(t, err)

	must.Len(t, f.recipes, 2, "a fresh recipe agent is created after the query")
	should.Equal(t, []string{"Find 3-4 high quality recipes for: chicken soup"}, f.recipes[0].Prompts())
	should.Empty(t, f.recipes[1].Prompts())

	should.Equal(t, []string{"Analyze the nutrition for this approved data: " + draft}, f.nutrition.Prompts())
	should.Equal(t, []string{"Create a consolidated shopping list for these recipes: " + draft}, f.shopping.Prompts())

	should.Equal(t, []mealprep.MealPlanRecord{{Query: "chicken soup", Result: "- [ ] chicken\n- [ ] noodles"}}, f.store.Records())
	should.Equal(t, f.store.Records(), f.notifier.records)

	should.Equal(t, draft, plan.Recipes)
	should.Equal(t, "## Soup\nLow calorie.", plan.Nutrition)

	out := f.out.String()
	should.Contains(t, out, "Chicken Noodle Soup")
	should.Contains(t, out, "✓ Menu Approved! Proceeding to analysis...")
	should.Contains(t, out, "Nutritional Intelligence")
	should.Contains(t, out, "FINAL OUTPUT: Shopping List")
	should.Contains(t, out, "✓ Plan persisted to session memory")
}

func TestApprove_Feedback(t *testing.T) {
	reviewer := planner.NewScriptedReviewer("make it vegetarian", " more spice", "   ")
	f := newFixture(t, reviewer)

	approved, err := f.planner.Approve(context.Background(), "soup")
	must.NoError(t, err)
	should.Equal(t, draft, approved)

	prompts := f.recipes[0].Prompts()
	must.Len(t, prompts, 3)
	should.Equal(t, "Find 3-4 high quality recipes for: soup", prompts[0])
	should.Equal(t, "The user has this feedback: 'make it vegetarian'. Please adjust the list and output a NEW, complete JSON array that replaces the previous one. Keep the same JSON format.", prompts[1])
	should.Contains(t, prompts[2], "' more spice'")
	should.Contains(t, prompts[2], "NEW, complete JSON array")

	should.Len(t, reviewer.Drafts(), 3)
	should.Contains(t, f.out.String(), "Feedback received: 'make it vegetarian'. Agent is updating...")
}

func TestApprove_ConsoleReviewer(t *testing.T) {
	f := newFixture(t, nil, "", "unused")

	approved, err := f.planner.Approve(context.Background(), "soup")
	must.NoError(t, err)
	should.Equal(t, draft, approved)
	should.Equal(t, []string{planner.CritiquePrompt}, f.input.prompts)
	should.Contains(t, f.out.String(), "Options: (Enter) to Approve, or type feedback to Refine.")
}

func TestApprove_FailedDraftShowsRawPanel(t *testing.T) {
	f := newFixture(t, planner.AutoApprove{})
	f.recipes[0].replies = []mealprep.Reply{{Agent: "RecipeAgent", Err: errors.New("quota exceeded"), Kind: mealprep.FailureService}}

	approved, err := f.planner.Approve(context.Background(), "soup")
	must.NoError(t, err)
	should.Equal(t, "Error in RecipeAgent: quota exceeded", approved)
	should.Contains(t, f.out.String(), "Recipe Output (Raw)")
}

func TestRun_Exit(t *testing.T) {
	for _, word := range []string{"exit", "EXIT", "Quit", "  quit  "} {
		t.Run(word, func(t *testing.T) {
			f := newFixture(t, planner.AutoApprove{}, word, "chicken soup")

			err := f.planner.Run(context.Background())
			must.NoError(t, err)
			should.Empty(t, f.recipes[0].Prompts())
			should.Equal(t, 0, f.store.Len())
			should.Contains(t, f.out.String(), "Goodbye!")
			should.Len(t, f.input.prompts, 1)
		})
	}
}

func TestRun_BlankInputAndQueries(t *testing.T) {
	f := newFixture(t, nil, "", "   ", "chicken soup", "", "tacos", "", "exit")

	err := f.planner.Run(context.Background())
	must.NoError(t, err)

	records := f.store.Records()
	must.Len(t, records, 2)
	should.Equal(t, "chicken soup", records[0].Query)
	should.Equal(t, "tacos", records[1].Query)
	should.Len(t, f.recipes, 3)
}

func TestRun_Interrupted(t *testing.T) {
	t.Run("input ends at the query prompt", func(t *testing.T) {
		f := newFixture(t, nil)
		should.ErrorIs(t, f.planner.Run(context.Background()), mealprep.ErrInterrupted)
	})

	t.Run("input ends at the critique prompt", func(t *testing.T) {
		f := newFixture(t, nil, "chicken soup")
		should.ErrorIs(t, f.planner.Run(context.Background()), mealprep.ErrInterrupted)
		should.Equal(t, 0, f.store.Len())
	})
}

func TestRun_RecoversFromFailures(t *testing.T) {
	f := newFixture(t, planner.AutoApprove{}, "chicken soup", "tacos", "exit")
	f.nutrition.panicOn = "Chicken Noodle Soup"
	f.nutrition.replies = nil

	// The first query panics inside the nutrition agent. The second one
	// panics too because the draft is the same, and the loop still exits cleanly.
	err := f.planner.Run(context.Background())
	must.NoError(t, err)
	should.Equal(t, 0, f.store.Len())
	should.Equal(t, 2, strings.Count(f.out.String(), "Error: unexpected failure while planning"))

	f2 := newFixture(t, planner.AutoApprove{}, "chicken soup", "exit")
	f2.factoryErrs = []error{errors.New("no credentials")}
	must.NoError(t, f2.planner.Run(context.Background()))
	should.Contains(t, f2.out.String(), "Error: failed to reset recipe agent: no credentials")
	should.Equal(t, 1, f2.store.Len())
}

func TestNew_Validation(t *testing.T) {
	_, err := planner.New(context.Background(), planner.Config{})
	should.Error(t, err)

	_, err = planner.New(context.Background(), planner.Config{
		NewRecipeAgent: func(ctx context.Context) (planner.Messenger, error) { return nil, errors.New("bad key") },
		Nutrition:      &fakeAgent{},
		Shopping:       &fakeAgent{},
		Reviewer:       planner.AutoApprove{},
	})
	should.ErrorContains(t, err, "bad key")
}

func TestNotifierFailureIsNotFatal(t *testing.T) {
	f := newFixture(t, planner.AutoApprove{})
	f.notifier.err = errors.New("webhook down")

	_, err := f.planner.ProcessQuery(context.Background(), "chicken soup")
	must.NoError(t, err)
	should.Equal(t, 1, f.store.Len())
}

// cancellingAgent cancels the run while it is working, the way Ctrl-C does.
type cancellingAgent struct {
	fakeAgent
	cancel context.CancelFunc
}

func (c *cancellingAgent) Send(ctx context.Context, text string) mealprep.Reply {
	c.fakeAgent.Send(ctx, text)
	c.cancel()
	<-ctx.Done()
	return mealprep.Reply{Agent: c.name, Err: ctx.Err(), Kind: mealprep.FailureService}
}

func TestRun_InterruptDuringPipeline(t *testing.T) {
	for _, stage := range []string{"recipe", "nutrition", "shopping"} {
		t.Run(stage, func(t *testing.T) {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			f := newFixture(t, planner.AutoApprove{}, "chicken soup", "exit")
			interrupting := &cancellingAgent{fakeAgent: fakeAgent{name: stage}, cancel: cancel}

			cfg := planner.Config{
				NewRecipeAgent: func(ctx context.Context) (planner.Messenger, error) {
					a := &fakeAgent{name: "RecipeAgent", replies: []mealprep.Reply{{Agent: "RecipeAgent", Text: draft}}}
					f.recipes = append(f.recipes, a)
					return a, nil
				},
				Nutrition: f.nutrition,
				Shopping:  f.shopping,
				Store:     f.store,
				Reviewer:  planner.AutoApprove{},
				Input:     f.input,
				UI:        display.NewPrinter(f.out, 80),
				Status:    display.NewPlainStatus(io.Discard),
				Notifier:  f.notifier,
			}
			switch stage {
			case "recipe":
				cfg.NewRecipeAgent = func(ctx context.Context) (planner.Messenger, error) { return interrupting, nil }
			case "nutrition":
				cfg.Nutrition = interrupting
			case "shopping":
				cfg.Shopping = interrupting
			}

			p, err := planner.New(context.Background(), cfg)
			must.NoError(t, err)

			err = p.Run(ctx)
			should.ErrorIs(t, err, mealprep.ErrInterrupted)
			should.Equal(t, 0, f.store.Len())
			should.Empty(t, f.notifier.records)
			should.Len(t, interrupting.Prompts(), 1)
			if stage != "shopping" {
				should.Empty(t, f.shopping.Prompts())
			}
			should.NotContains(t, f.out.String(), "Plan persisted to session memory")
		})
	}
}
