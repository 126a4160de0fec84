package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"mealprep"
	"mealprep/agent"
	"mealprep/chat/bedrock"
	"mealprep/chat/gemini"
	"mealprep/chat/mock"
	"mealprep/chat/ollama"
	"mealprep/display"
	"mealprep/planner"
	"mealprep/slack"
	"mealprep/tools"
	"mealprep/tools/storage"
)

type flags struct {
	provider        string
	model           string
	outputDir       string
	logFile         string
	conversationLog bool
	debug           bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var f flags

	cmd := &cobra.Command{
		Use:           "mealprep",
		Short:         "Interactive meal planning with a recipe, nutrition and shopping agent",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), f, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&f.provider, "provider", "", "chat provider: gemini, bedrock, ollama or mock (overrides MEALPREP_PROVIDER)")
	cmd.Flags().StringVar(&f.model, "model", "", "model name (overrides MODEL_NAME)")
	cmd.Flags().StringVar(&f.outputDir, "output-dir", "", "directory for saved artifacts (overrides ARTIFACTS_OUTPUT_DIR)")
	cmd.Flags().StringVar(&f.logFile, "log-file", "", "write structured logs to this file")
	cmd.Flags().BoolVar(&f.conversationLog, "conversation-log", false, "record every model turn under ./logs")
	cmd.Flags().BoolVar(&f.debug, "debug", false, "debug logging and a session dump on exit")

	cmd.AddCommand(newToolsCmd())
	return cmd
}

func newToolsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tools",
		Short: "List registered tools and the agents they are bound to",
		RunE: func(cmd *cobra.Command, args []string) error {
			registry, err := tools.NewRegistry(storage.NewTestArtifactStore())
			if err != nil {
				return err
			}

			owners := map[string][]string{}
			for role, names := range agent.BoundTools() {
				for _, name := range names {
					owners[name] = append(owners[name], role)
				}
			}

			out := cmd.OutOrStdout()
			for _, t := range registry.GetTools() {
				roles := owners[t.Name()]
				sort.Strings(roles)
				bound := "unbound"
				if len(roles) > 0 {
					bound = strings.Join(roles, ", ")
				}
				fmt.Fprintf(out, "%-20s %-16s %s\n", t.Name(), bound, t.Description())
			}
			return nil
		},
	}
}

func run(ctx context.Context, f flags, in io.Reader, out io.Writer) error {
	ui := display.NewPrinter(out, display.DefaultWidth)

	mc, ac, err := mealprep.LoadConfig()
	if err != nil {
		ui.Error(err.Error())
		return err
	}
	if f.provider != "" {
		mc.Provider = strings.ToLower(f.provider)
	}
	if f.model != "" {
		mc.ModelName = f.model
	}
	if f.outputDir != "" {
		ac.OutputDir = f.outputDir
	}
	if err := mc.Validate(); err != nil {
		if errors.Is(err, mealprep.ErrMissingAPIKey) {
			fmt.Fprintln(out, "CRITICAL ERROR: GOOGLE_API_KEY not found.")
		} else {
			ui.Error(err.Error())
		}
		return err
	}

	closeLog, err := setupLogging(f)
	if err != nil {
		return err
	}
	defer closeLog()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if mealprep.OtelEnabled() {
		_, _, otelShutdown, err := mealprep.InitOtel(ctx)
		if err != nil {
			slog.Error("SETUP: Failed to initialize OpenTelemetry", "error", err)
		} else {
			defer func() {
				if err := otelShutdown(context.WithoutCancel(ctx)); err != nil {
					slog.Error("SETUP: Failed to shutdown OpenTelemetry", "error", err)
				}
			}()
		}
	}

	ui.Banner("🍽️ Smart Meal Prep Agent", "Interactive Mode | Human-in-the-Loop Enabled")
	ui.Muted("Booting Agent Swarm...")

	logger, flush, err := newConversationLogger(f.conversationLog, mc)
	if err != nil {
		ui.Error(err.Error())
		return err
	}
	defer func() {
		if err := flush(); err != nil {
			slog.Error("Failed to flush conversation log", "error", err)
		}
	}()

	store, err := newArtifactStore(ctx, ac)
	if err != nil {
		ui.Error(err.Error())
		return err
	}

	registry, err := tools.NewRegistry(store)
	if err != nil {
		ui.Error(err.Error())
		return err
	}

	provider, err := newProvider(ctx, mc, ac, logger)
	if err != nil {
		ui.Error(err.Error())
		return err
	}
	slog.Info("SETUP: Chat provider ready", "provider", provider.Name(), "model", mc.Model())

	agentOpts := []agent.Option{agent.WithMaxRetries(ac.MaxRetries), agent.WithLogger(logger)}
	nutrition, err := agent.NewNutritionAgent(ctx, provider, mc.Temperature, agentOpts...)
	if err != nil {
		ui.Error(err.Error())
		return err
	}
	shopping, err := agent.NewShoppingAgent(ctx, provider, registry, mc.Temperature, agentOpts...)
	if err != nil {
		ui.Error(err.Error())
		return err
	}

	var status display.Status = display.NewPlainStatus(out)
	if file, ok := out.(*os.File); ok && isatty.IsTerminal(file.Fd()) {
		status = display.NewSpinnerStatus(out)
	}

	console := planner.NewConsole(in, ui)
	cfg := planner.Config{
		NewRecipeAgent: func(ctx context.Context) (planner.Messenger, error) {
			return agent.NewRecipeAgent(ctx, provider, mc.Temperature, agentOpts...)
		},
		Nutrition: nutrition,
		Shopping:  shopping,
		Reviewer:  planner.NewConsoleReviewer(console),
		Input:     console,
		UI:        ui,
		Status:    status,
	}
	if ac.SlackWebhookURL != "" {
		cfg.Notifier = slack.NewClient(ac.SlackWebhookURL, ac.SlackChannel, nil)
	}

	p, err := planner.New(ctx, cfg)
	if err != nil {
		ui.Error(err.Error())
		return err
	}
	ui.Success("System Ready")

	err = p.Run(ctx)
	if f.debug {
		mealprep.Dump(os.Stderr, p.Store().Records())
	}
	if errors.Is(err, mealprep.ErrInterrupted) {
		fmt.Fprintln(out)
		ui.Warn("Exiting...")
		return nil
	}
	return err
}

func setupLogging(f flags) (func(), error) {
	level := slog.LevelInfo
	if f.debug {
		level = slog.LevelDebug
	}

	if f.logFile == "" {
		slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))
		return func() {}, nil
	}

	file, err := os.OpenFile(f.logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(file, &slog.HandlerOptions{Level: level})))
	return func() { file.Close() }, nil
}

func newConversationLogger(enabled bool, mc mealprep.ModelConfig) (mealprep.ConversationLogger, func() error, error) {
	if !enabled {
		return mealprep.NewNoOpConversationLogger(), func() error { return nil }, nil
	}

	logFilePath := mealprep.NewConversationLogFilePath(mc.Provider, mc.Model())
	if err := os.MkdirAll(filepath.Dir(logFilePath), 0755); err != nil {
		return nil, nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	logFile, err := os.OpenFile(logFilePath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file: %w", err)
	}

	logger := mealprep.NewFileConversationLogger(logFile)
	cleanup := func() error {
		return errors.Join(logger.Flush(), logFile.Close())
	}
	return logger, cleanup, nil
}

func newArtifactStore(ctx context.Context, ac mealprep.AgentConfig) (storage.ArtifactStore, error) {
	if ac.S3Bucket == "" {
		return storage.NewFileArtifactStore(ac.OutputDir), nil
	}

	awsCfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	slog.Info("SETUP: Saving artifacts to S3", "bucket", ac.S3Bucket, "prefix", ac.S3Prefix)
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
		// Retries are handled by the agent.
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
