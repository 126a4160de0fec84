package mealprep

import (
	"errors"
	"fmt"
	"strings"

	"github.com/joeshaw/envdecode"
)

const (
	ProviderGemini  = "gemini"
	ProviderBedrock = "bedrock"
	ProviderOllama  = "ollama"
	ProviderMock    = "mock"

	// DefaultModelName is used when MODEL_NAME is not set.
	DefaultModelName = "gemini-2.0-flash-exp"
)

type ModelConfig struct {
	Provider       string  `env:"MEALPREP_PROVIDER,default=gemini"`
	ModelName      string  `env:"MODEL_NAME,default=gemini-2.0-flash-exp"`
	GoogleAPIKey   string  `env:"GOOGLE_API_KEY"`
	Temperature    float32 `env:"TEMPERATURE,default=0.7"`
	MaxTokens      int32   `env:"MAX_TOKENS,default=2048"`
	OllamaEndpoint string  `env:"BASE_OLLAMA_ENDPOINT,default=http://localhost:11434"`
}

type AgentConfig struct {
	MaxRetries        int    `env:"MAX_RETRIES,default=5"`
	MaxToolIterations int    `env:"MAX_TOOL_ITERATIONS,default=10"`
	OutputDir         string `env:"ARTIFACTS_OUTPUT_DIR,default=."`
	S3Bucket          string `env:"ARTIFACTS_S3_BUCKET"`
	S3Prefix          string `env:"ARTIFACTS_S3_PREFIX"`
	SlackWebhookURL   string `env:"SLACK_WEBHOOK_URL"`
	SlackChannel      string `env:"SLACK_CHANNEL,default=#general"`
}

// LoadConfig decodes both configuration structs from the environment.
func LoadConfig() (ModelConfig, AgentConfig, error) {
	var mc ModelConfig
	if err := decode(&mc); err != nil {
		return ModelConfig{}, AgentConfig{}, fmt.Errorf("decode model config: %w", err)
	}
	var ac AgentConfig
	if err := decode(&ac); err != nil {
		return ModelConfig{}, AgentConfig{}, fmt.Errorf("decode agent config: %w", err)
	}
	mc.Provider = strings.ToLower(strings.TrimSpace(mc.Provider))
	return mc, ac, nil
}

func decode(target any) error {
	err := envdecode.Decode(target)
	if errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return nil
	}
	return err
}

// Validate checks the provider-specific requirements.
func (c ModelConfig) Validate() error {
	switch c.Provider {
	case ProviderGemini:
		if c.GoogleAPIKey == "" {
			return ErrMissingAPIKey
		}
	case ProviderBedrock, ProviderOllama, ProviderMock:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownProvider, c.Provider)
	}
	return nil
}

// Model returns the model identifier to request from the provider. The
// Gemini default only makes sense for Gemini, so other providers fall back
// to their own default when MODEL_NAME was left unset.
func (c ModelConfig) Model() string {
	if c.Provider != ProviderGemini && c.ModelName == DefaultModelName {
		return ""
	}
	return c.ModelName
}
