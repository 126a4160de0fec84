package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"mealprep"
	"mealprep/agent"
	"mealprep/chat/bedrock"
	"mealprep/chat/gemini"
	"mealprep/chat/mock"
	"mealprep/chat/ollama"
	"mealprep/planner"
	"mealprep/slack"
	"mealprep/tools"
	"mealprep/tools/storage"
)

type Params struct {
	Query    string   `json:"query"`
	Feedback []string `json:"feedback,omitempty"`
}

type Results struct {
	Query        string `json:"query"`
	Recipes      string `json:"recipes"`
	Nutrition    string `json:"nutrition"`
	ShoppingList string `json:"shopping_list"`
}

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))
	lambda.Start(handle)
}

func handle(ctx context.Context, params Params) (Results, error) {
	query := strings.TrimSpace(params.Query)
	if query == "" {
		return Results{}, errors.New("query is required")
	}

	mc, ac, err := mealprep.LoadConfig()
	if err != nil {
		return Results{}, err
	}
	if err := mc.Validate(); err != nil {
		return Results{}, err
	}

	if mealprep.OtelEnabled() {
		_, _, otelShutdown, err := mealprep.InitOtel(ctx)
		if err != nil {
			slog.Error("SETUP: Failed to initialize OpenTelemetry", "error", err)
			return Results{}, err
		}
		defer func() {
			if err := otelShutdown(context.WithoutCancel(ctx)); err != nil {
				slog.Error("SETUP: Failed to shutdown OpenTelemetry", "error", err)
			}
		}()
	}

	logger := mealprep.NewStdoutConversationLogger()

	store, err := newArtifactStore(ctx, ac)
	if err != nil {
		return Results{}, err
	}
	registry, err := tools.NewRegistry(store)
	if err != nil {
		slog.Error("SETUP: Failed to create tool registry", "error", err)
		return Results{}, err
	}

	provider, err := newProvider(ctx, mc, ac, logger)
	if err != nil {
		slog.Error("SETUP: Failed to create chat provider", "error", err)
		return Results{}, err
	}

	agentOpts := []agent.Option{agent.WithMaxRetries(ac.MaxRetries), agent.WithLogger(logger)}
	nutrition, err := agent.NewNutritionAgent(ctx, provider, mc.Temperature, agentOpts...)
	if err != nil {
		return Results{}, err
	}
	shopping, err := agent.NewShoppingAgent(ctx, provider, registry, mc.Temperature, agentOpts...)
	if err != nil {
		return Results{}, err
	}

	cfg := planner.Config{
		NewRecipeAgent: func(ctx context.Context) (planner.Messenger, error) {
			return agent.NewRecipeAgent(ctx, provider, mc.Temperature, agentOpts...)
		},
		Nutrition: nutrition,
		Shopping:  shopping,
		Reviewer:  planner.NewScriptedReviewer(params.Feedback...),
		UI:        planner.LogUI{},
	}
	if ac.SlackWebhookURL != "" {
		cfg.Notifier = slack.NewClient(ac.SlackWebhookURL, ac.SlackChannel, nil)
	}

	p, err := planner.New(ctx, cfg)
	if err != nil {
		return Results{}, err
	}

	plan, err := p.ProcessQuery(ctx, query)
	if err != nil {
		slog.Error("RESULT: Error handling query", "query", query, "error", err)
		return Results{}, err
	}

	return Results{
		Query:        plan.Query,
		Recipes:      plan.Recipes,
		Nutrition:    plan.Nutrition,
		ShoppingList: plan.ShoppingList,
	}, nil
}

func newArtifactStore(ctx context.Context, ac mealprep.AgentConfig) (storage.ArtifactStore, error) {
	if ac.S3Bucket == "" {
		return storage.NewFileArtifactStore(ac.OutputDir), nil
	}

	awsCfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return storage.NewS3ArtifactStore(s3.NewFromConfig(awsCfg), ac.S3Bucket, ac.S3Prefix), nil
}

func newProvider(ctx context.Context, mc mealprep.ModelConfig, ac mealprep.AgentConfig, logger mealprep.ConversationLogger) (mealprep.ChatProvider, error) {
	switch mc.Provider {
	case mealprep.ProviderGemini:
		p, err := gemini.New(ctx, mc.GoogleAPIKey,
			gemini.WithModel(mc.Model()),
			gemini.WithMaxTokens(mc.MaxTokens),
			gemini.WithMaxIterations(ac.MaxToolIterations),
			gemini.WithLogger(logger),
		)
		if err != nil {
			return nil, err
		}
		return p, nil
	case mealprep.ProviderBedrock:
		awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRetryMaxAttempts(1))
		if err != nil {
			return nil, fmt.Errorf("failed to load AWS config: %w", err)
		}
		return bedrock.NewProvider(bedrockruntime.NewFromConfig(awsCfg), bedrock.Options{
			ModelID:       mc.Model(),
			MaxTokens:     mc.MaxTokens,
			MaxIterations: ac.MaxToolIterations,
			Logger:        logger,
		}), nil
	case mealprep.ProviderOllama:
		return ollama.NewProvider(ollama.ProviderOpts{
			BaseEndpoint:  mc.OllamaEndpoint,
			ModelID:       mc.Model(),
			MaxTokens:     int(mc.MaxTokens),
			MaxIterations: ac.MaxToolIterations,
			Logger:        logger,
		}), nil
	case mealprep.ProviderMock:
		return mock.NewProvider(logger), nil
	default:
		return nil, fmt.Errorf("%w: %q", mealprep.ErrUnknownProvider, mc.Provider)
	}
}
