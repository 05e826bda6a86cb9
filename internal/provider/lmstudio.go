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
	defaultLMStudioURL       = "http://localhost:1234/v1/chat/completions"
	defaultLMStudioModel     = "qwen2.5-omni-3b"
	defaultLMStudioTimeout   = 45
	defaultLMStudioMaxTokens = 100
)

// LMStudio talks to an LM Studio server through its OpenAI-compatible chat
// endpoint. The image is inlined as a base64 data URL in the message body.
type LMStudio struct {
	settings Settings
	client   *http.Client
	log      *zap.Logger
	sleep    func(context.Context, time.Duration) error
}

func newLMStudio(settings Settings, log *zap.Logger) *LMStudio {
	if settings.Model == "" {
		settings.Model = defaultLMStudioModel
	}
	if settings.APIURL == "" {
		settings.APIURL = defaultLMStudioURL
	}
	if settings.TimeoutSeconds <= 0 {
		settings.TimeoutSeconds = defaultLMStudioTimeout
	}
	if settings.MaxTokens <= 0 {
		settings.MaxTokens = defaultLMStudioMaxTokens
	}
	return &LMStudio{
		settings: settings,
		client:   &http.Client{Timeout: time.Duration(settings.TimeoutSeconds) * time.Second},
		log:      log,
		sleep:    sleepContext,
	}
}

func (l *LMStudio) Name() string     { return "lmstudio" }
func (l *LMStudio) Model() string    { return l.settings.Model }
func (l *LMStudio) Endpoint() string { return l.settings.APIURL }

func (l *LMStudio) Classify(ctx context.Context, imagePath, prompt string) (string, error) {
	if err := validateImage(imagePath, l.settings.MaxImageSizeMB, l.settings.MaxImageDimensionPx); err != nil {
		return "", err
	}
	encoded, err := encodeImage(imagePath)
	if err != nil {
		return "", err
	}

	payload := map[string]any{
		"model": l.settings.Model,
		"messages": []map[string]any{
			{
				"role": "user",
				"content": []map[string]any{
					{"type": "text", "text": prompt},
					{
						"type": "image_url",
						"image_url": map[string]any{
							"url": "data:image/jpeg;base64," + encoded,
						},
					},
				},
			},
		},
		"max_tokens": l.settings.MaxTokens,
		"stream":     false,
	}

	// A 400 means the server rejected the request itself, usually an image
	// the loaded model cannot take. Retrying the same payload cannot help.
	shouldRetry := func(err error) bool {
		if status, ok := statusCode(err); ok && status == http.StatusBadRequest {
			return false
		}
		return retryableFailure(err)
	}

	return classifyWithRetry(ctx, l.log, l.settings.MaxRetries, l.sleep, shouldRetry,
		func(ctx context.Context) (string, error) {
			var reply struct {
				Choices []struct {
					Message struct {
						Content string `json:"content"`
					} `json:"message"`
				} `json:"choices"`
			}
			if err := httpJSON(ctx, l.client, l.settings.APIURL, payload, &reply); err != nil {
				return "", err
			}
			if len(reply.Choices) == 0 {
				return "", fmt.Errorf("response carried no choices")
			}
			return reply.Choices[0].Message.Content, nil
		})
}

// CheckServer confirms the server answers on its models endpoint.
func (l *LMStudio) CheckServer(ctx context.Context) error {
	modelsURL := strings.Replace(l.settings.APIURL, "/chat/completions", "/models", 1)
	if err := httpGetJSON(ctx, l.client, modelsURL, nil); err != nil {
		return fmt.Errorf("lmstudio server not reachable at %s: %w", modelsURL, err)
	}
	return nil
}
