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
	defaultMLXVLMURL       = "http://127.0.0.1:8000/generate"
	defaultMLXVLMModel     = "mlx-community/Phi-3-vision-128k-instruct-4bit"
	defaultMLXVLMTimeout   = 60
	defaultMLXVLMMaxTokens = 100
)

// MLXVLM talks to an mlx-vlm HTTP server. The server runs on the same
// machine and loads images itself, so the payload carries the file path
// rather than image bytes.
type MLXVLM struct {
	settings Settings
	client   *http.Client
	log      *zap.Logger
	sleep    func(context.Context, time.Duration) error
}

func newMLXVLM(settings Settings, log *zap.Logger) *MLXVLM {
	if settings.Model == "" {
		settings.Model = defaultMLXVLMModel
	}
	if settings.APIURL == "" {
		settings.APIURL = defaultMLXVLMURL
	}
	if settings.TimeoutSeconds <= 0 {
		settings.TimeoutSeconds = defaultMLXVLMTimeout
	}
	if settings.MaxTokens <= 0 {
		settings.MaxTokens = defaultMLXVLMMaxTokens
	}
	return &MLXVLM{
		settings: settings,
		client:   &http.Client{Timeout: time.Duration(settings.TimeoutSeconds) * time.Second},
		log:      log,
		sleep:    sleepContext,
	}
}

func (m *MLXVLM) Name() string     { return "mlxvlm" }
func (m *MLXVLM) Model() string    { return m.settings.Model }
func (m *MLXVLM) Endpoint() string { return m.settings.APIURL }

func (m *MLXVLM) Classify(ctx context.Context, imagePath, prompt string) (string, error) {
	payload := map[string]any{
		"model":      m.settings.Model,
		"prompt":     prompt,
		"image":      []string{imagePath},
		"max_tokens": m.settings.MaxTokens,
		"stream":     false,
	}
	for _, key := range []string{"temperature", "top_p"} {
		if v, ok := m.settings.Extra[key]; ok {
			payload[key] = v
		}
	}

	return classifyWithRetry(ctx, m.log, m.settings.MaxRetries, m.sleep, nil,
		func(ctx context.Context) (string, error) {
			var reply struct {
				Text string `json:"text"`
			}
			if err := httpJSON(ctx, m.client, m.settings.APIURL, payload, &reply); err != nil {
				return "", err
			}
			text := reply.Text
			if cut := strings.Index(text, "<|end|>"); cut >= 0 {
				text = text[:cut]
			}
			return text, nil
		})
}

// CheckServer confirms something answers at the server root. The mlx-vlm
// server routes no handler there, so a 404 still proves it is up.
func (m *MLXVLM) CheckServer(ctx context.Context) error {
	baseURL := strings.TrimSuffix(m.settings.APIURL, "/generate")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("mlxvlm server not reachable at %s: %w", baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNotFound {
		return fmt.Errorf("mlxvlm server at %s returned %d", baseURL, resp.StatusCode)
	}
	return nil
}
