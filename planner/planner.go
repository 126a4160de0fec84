// Package planner runs the interactive meal prep session: the recipe
// approval loop followed by nutrition analysis and the shopping list.
package planner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"mealprep"
	"mealprep/display"
	"mealprep/session"
)

// Messenger is one agent conversation. *agent.Agent implements it.
type Messenger interface {
	Send(ctx context.Context, text string) mealprep.Reply
}

// MessengerFactory builds a fresh recipe conversation.
type MessengerFactory func(ctx context.Context) (Messenger, error)

// Notifier is told about every finished plan.
type Notifier interface {
	PostMealPlan(ctx context.Context, rec mealprep.MealPlanRecord) error
}

type Config struct {
	NewRecipeAgent MessengerFactory
	Nutrition      Messenger
	Shopping       Messenger
	Store          *session.Store
	Reviewer       Reviewer
	Input          LineReader
	UI             UI
	Status         display.Status
	Notifier       Notifier
}

// Plan is everything one query produced.
type Plan struct {
	Query        string
	Recipes      string
	Nutrition    string
	ShoppingList string
}

// Record is the part of the plan kept in the session store.
func (p Plan) Record() mealprep.MealPlanRecord {
	return mealprep.MealPlanRecord{Query: p.Query, Result: p.ShoppingList}
}

type Planner struct {
	recipe    Messenger
	factory   MessengerFactory
	nutrition Messenger
	shopping  Messenger
	store     *session.Store
	reviewer  Reviewer
	input     LineReader
	ui        UI
	status    display.Status
	notifier  Notifier
	tracer    trace.Tracer
}

// New checks cfg and starts the first recipe conversation.
func New(ctx context.Context, cfg Config) (*Planner, error) {
	switch {
	case cfg.NewRecipeAgent == nil:
		return nil, errors.New("recipe agent factory is required")
	case cfg.Nutrition == nil || cfg.Shopping == nil:
		return nil, errors.New("nutrition and shopping agents are required")
	case cfg.Reviewer == nil:
		return nil, errors.New("reviewer is required")
	}

	p := &Planner{
		factory:   cfg.NewRecipeAgent,
		nutrition: cfg.Nutrition,
		shopping:  cfg.Shopping,
		store:     cfg.Store,
		reviewer:  cfg.Reviewer,
		input:     cfg.Input,
		ui:        cfg.UI,
		status:    cfg.Status,
		notifier:  cfg.Notifier,
		tracer:    otel.Tracer(mealprep.TracerNamePlanner),
	}
	if p.store == nil {
		p.store = session.NewStore()
	}
	if p.ui == nil {
		p.ui = LogUI{}
	}
	if p.status == nil {
		p.status = quietStatus{}
	}

	recipe, err := p.factory(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create recipe agent: %w", err)
	}
	p.recipe = recipe
	return p, nil
}

func (p *Planner) Store() *session.Store { return p.store }

// Run reads queries until the user exits. It returns nil on "exit" or
// "quit" and mealprep.ErrInterrupted when input ends or ctx is cancelled.
// A failing query is reported and the loop goes on.
func (p *Planner) Run(ctx context.Context) error {
	if p.input == nil {
		return errors.New("planner has no input")
	}

	for {
		line, err := p.input.ReadLine(ctx, QueryPrompt)
		if err != nil {
			return err
		}

		query := strings.TrimSpace(line)
		if IsExit(query) {
			p.ui.Warn("Goodbye!")
			return nil
		}
		if query == "" {
			continue
		}

		if _, err := p.ProcessQuery(ctx, line); err != nil {
			if errors.Is(err, mealprep.ErrInterrupted) || ctx.Err() != nil {
				return mealprep.ErrInterrupted
			}
			slog.Error("PLANNER: Query failed", "query", query, "error", err)
			p.ui.Error(err.Error())
		}
	}
}

// IsExit reports whether input asks to leave the session.
func IsExit(input string) bool {
	return strings.EqualFold(input, "exit") || strings.EqualFold(input, "quit")
}

// ProcessQuery runs one query through approval, nutrition and shopping,
// saves the record and starts a fresh recipe conversation. If ctx is
// cancelled along the way it returns mealprep.ErrInterrupted and saves nothing.
func (p *Planner) ProcessQuery(ctx context.Context, query string) (plan Plan, err error) {
	ctx, span := p.tracer.Start(ctx, "Planner.ProcessQuery", trace.WithAttributes(attribute.String("query", query)))
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("unexpected failure while planning %q: %v", query, r)
			slog.Error("PLANNER: Recovered from panic", "query", query, "panic", r)
		}
		if err != nil {
			span.SetStatus(codes.Error, "query failed")
			span.RecordError(err)
		}
	}()

	plan.Query = query
	plan.Recipes, err = p.Approve(ctx, query)
	if err != nil {
		return plan, err
	}
	if ctx.Err() != nil {
		return plan, mealprep.ErrInterrupted
	}

	nutrition := p.ask(ctx, p.nutrition, "🥗 Nutrition Agent Analyzing...", NutritionPrompt(plan.Recipes))
	if ctx.Err() != nil {
		return plan, mealprep.ErrInterrupted
	}
	plan.Nutrition = nutrition.String()
	p.ui.Success("Analysis Complete")
	p.ui.MarkdownPanel("Nutritional Intelligence", plan.Nutrition, panelKind(nutrition, display.KindInfo))

	shopping := p.ask(ctx, p.shopping, "🛒 Shopping Agent Optimizing...", ShoppingPrompt(plan.Recipes))
	// A reply cut short by an interrupt is not a finished plan.
	if ctx.Err() != nil {
		return plan, mealprep.ErrInterrupted
	}
	plan.ShoppingList = shopping.String()
	p.ui.Success("List Generated")
	p.ui.MarkdownPanel("FINAL OUTPUT: Shopping List", plan.ShoppingList, panelKind(shopping, display.KindSuccess))

	p.store.Save(plan.Record())
	p.ui.Muted("✓ Plan persisted to session memory")

	if p.notifier != nil {
		if nerr := p.notifier.PostMealPlan(ctx, plan.Record()); nerr != nil {
			slog.Warn("PLANNER: Failed to send plan notification", "error", nerr)
		}
	}

	recipe, err := p.factory(ctx)
	if err != nil {
		return plan, fmt.Errorf("failed to reset recipe agent: %w", err)
	}
	p.recipe = recipe
	return plan, nil
}

// Approve drafts recipes for query until the reviewer approves one and
// returns the approved draft as text.
func (p *Planner) Approve(ctx context.Context, query string) (string, error) {
	prompt := RecipePrompt(query)
	for round := 1; ; round++ {
		reply := p.ask(ctx, p.recipe, "👩‍🍳 Recipe Agent is researching...", prompt)
		if ctx.Err() != nil {
			return "", mealprep.ErrInterrupted
		}
		draft := reply.String()

		if reply.Failed() {
			p.ui.Panel("Recipe Output (Raw)", draft, display.KindError)
		} else {
			p.ui.Menu(draft)
		}

		p.ui.Info("Options: (Enter) to Approve, or type feedback to Refine.")
		feedback, err := p.reviewer.Review(ctx, draft)
		if err != nil {
			return "", err
		}

		if strings.TrimSpace(feedback) == "" {
			slog.Info("PLANNER: Menu approved", "query", query, "rounds", round)
			p.ui.Success("Menu Approved! Proceeding to analysis...")
			return draft, nil
		}

		slog.Info("PLANNER: Feedback received", "round", round, "feedback", feedback)
		p.ui.Muted(fmt.Sprintf("Feedback received: '%s'. Agent is updating...", feedback))
		prompt = FeedbackPrompt(feedback)
	}
}

func (p *Planner) ask(ctx context.Context, m Messenger, label, prompt string) mealprep.Reply {
	var reply mealprep.Reply
	if err := p.status.Run(ctx, label, func(ctx context.Context) error {
		reply = m.Send(ctx, prompt)
		return nil
	}); err != nil {
		slog.Warn("PLANNER: Status display failed", "error", err)
	}
	return reply
}

func panelKind(r mealprep.Reply, ok display.Kind) display.Kind {
	if r.Failed() {
		return display.KindError
	}
	return ok
}

type quietStatus struct{}

func (quietStatus) Run(ctx context.Context, label string, fn func(context.Context) error) error {
	return fn(ctx)
}
