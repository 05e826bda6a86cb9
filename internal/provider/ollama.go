package provider

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	defaultOllamaURL     = "http://127.0.0.1:11434/api/generate"
	defaultOllamaModel   = "qwen2.5vl:3b"
	defaultOllamaTimeout = 30
)

// Ollama talks to a local Ollama server through its generate endpoint.
// Images travel base64-encoded inside the JSON payload.
type Ollama struct {
	settings Settings
	client   *http.Client
	log      *zap.Logger
	sleep    func(context.Context, time.Duration) error
}

func newOllama(settings Settings, log *zap.Logger) *Ollama {
	if settings.Model == "" {
		settings.Model = defaultOllamaModel
	}
	if settings.APIURL == "" {
		settings.APIURL = defaultOllamaURL
	}
	if settings.TimeoutSeconds <= 0 {
		settings.TimeoutSeconds = defaultOllamaTimeout
	}
	return &Ollama{
		settings: settings,
		client:   &http.Client{Timeout: time.Duration(settings.TimeoutSeconds) * time.Second},
		log:      log,
		sleep:    sleepContext,
	}
}

func (o *Ollama) Name() string     { return "ollama" }
func (o *Ollama) Model() string    { return o.settings.Model }
func (o *Ollama) Endpoint() string { return o.settings.APIURL }

func (o *Ollama) Classify(ctx context.Context, imagePath, prompt string) (string, error) {
	encoded, err := encodeImage(imagePath)
	if err != nil {
		return "", err
	}

	payload := map[string]any{
		"model":  o.settings.Model,
		"prompt": prompt,
		"images": []string{encoded},
		"stream": false,
	}
	for k, v := range o.settings.Extra {
		if _, reserved := payload[k]; reserved {
			continue
		}
		payload[k] = v
	}

	return classifyWithRetry(ctx, o.log, o.settings.MaxRetries, o.sleep, nil,
		func(ctx context.Context) (string, error) {
			var reply struct {
				Response string `json:"response"`
			}
			if err := httpJSON(ctx, o.client, o.settings.APIURL, payload, &reply); err != nil {
				return "", err
			}
			return reply.Response, nil
		})
}

// CheckServer confirms the server answers and has the configured model
// pulled. Ollama reports installed models on its tags endpoint.
func (o *Ollama) CheckServer(ctx context.Context) error {
	tagsURL := strings.Replace(o.settings.APIURL, "/api/generate", "/api/tags", 1)

	var reply struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := httpGetJSON(ctx, o.client, tagsURL, &reply); err != nil {
		return fmt.Errorf("ollama server not reachable at %s: %w", tagsURL, err)
	}

	available := make([]string, 0, len(reply.Models))
	for _, m := range reply.Models {
		if m.Name == o.settings.Model {
			return nil
		}
		available = append(available, m.Name)
	}
	return fmt.Errorf("model %q not found on ollama server (available: %s)",
		o.settings.Model, strings.Join(available, ", "))
}
