// Package provider implements the vision-model backends a run classifies
// images against. All providers speak HTTP to a locally hosted server and
// share the same retry contract: transient failures (timeouts, connection
// errors, 5xx) are retried with backoff up to max_retries, everything else
// fails the single classification immediately.
package provider

import (
	"context"
	"fmt"

	"github.com/mitchellh/mapstructure"

	"github.com/jaa/vasort/internal/config"
)

type Provider interface {
	Name() string
	Model() string
	Endpoint() string

	// Classify sends the image and prompt and returns the model's response
	// text. An empty string with a non-nil error means the provider gave up.
	Classify(ctx context.Context, imagePath string, prompt string) (string, error)

	// CheckServer verifies the backing server is reachable and, where the
	// API allows it, that the configured model is actually loaded.
	CheckServer(ctx context.Context) error
}

// Settings is the typed view of the free-form provider.settings map.
// Unrecognized keys are collected in Extra and forwarded to backends that
// accept passthrough generation parameters.
type Settings struct {
	Model               string         `mapstructure:"model"`
	APIURL              string         `mapstructure:"api_url"`
	MaxRetries          int            `mapstructure:"max_retries"`
	TimeoutSeconds      int            `mapstructure:"timeout_seconds"`
	MaxTokens           int            `mapstructure:"max_tokens"`
	MaxImageSizeMB      float64        `mapstructure:"max_image_size_mb"`
	MaxImageDimensionPx int            `mapstructure:"max_image_dimension_px"`
	Extra               map[string]any `mapstructure:",remain"`
}

func decodeSettings(raw map[string]any) (Settings, error) {
	var settings Settings
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &settings,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return Settings{}, fmt.Errorf("build settings decoder: %w", err)
	}
	if err := decoder.Decode(raw); err != nil {
		return Settings{}, fmt.Errorf("decode provider settings: %w", err)
	}

	if settings.MaxRetries <= 0 {
		settings.MaxRetries = 3
	}
	if settings.MaxImageSizeMB == 0 {
		settings.MaxImageSizeMB = 50
	}
	if settings.MaxImageDimensionPx < 0 {
		settings.MaxImageDimensionPx = 0
	}
	return settings, nil
}

// Info describes one built-in provider type for listings.
type Info struct {
	Type        config.ProviderType
	Description string
	DefaultURL  string
}

func BuiltinProviders() []Info {
	return []Info{
		{Type: config.ProviderOllama, Description: "Ollama local AI server", DefaultURL: defaultOllamaURL},
		{Type: config.ProviderLMStudio, Description: "LM Studio with OpenAI-compatible API", DefaultURL: defaultLMStudioURL},
		{Type: config.ProviderMLXVLM, Description: "MLX vision language models for Apple Silicon", DefaultURL: defaultMLXVLMURL},
	}
}
