package provider

import (
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/jaa/vasort/internal/config"
)

func TestNewBuildsEachProviderType(t *testing.T) {
	for _, info := range BuiltinProviders() {
		p, err := New(config.Provider{Type: info.Type, Settings: map[string]any{}}, zap.NewNop())
		if err != nil {
			t.Fatalf("New(%s): %v", info.Type, err)
		}
		if p.Name() != string(info.Type) {
			t.Errorf("Name() = %q, want %q", p.Name(), info.Type)
		}
		if p.Endpoint() != info.DefaultURL {
			t.Errorf("%s default endpoint = %q, want %q", info.Type, p.Endpoint(), info.DefaultURL)
		}
	}
}

func TestNewUnknownTypeListsValid(t *testing.T) {
	_, err := New(config.Provider{Type: "claude"}, zap.NewNop())
	if err == nil {
		t.Fatal("expected error for unknown provider type")
	}
	for _, want := range []string{"ollama", "lmstudio", "mlxvlm"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error should list %q, got: %v", want, err)
		}
	}
}

func TestNewDecodesWeaklyTypedSettings(t *testing.T) {
	p, err := New(config.Provider{
		Type: config.ProviderOllama,
		Settings: map[string]any{
			"model":           "llava:7b",
			"timeout_seconds": "45",
			"max_retries":     "5",
			"temperature":     0.7,
		},
	}, zap.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	o, ok := p.(*Ollama)
	if !ok {
		t.Fatalf("provider type = %T", p)
	}
	if o.settings.TimeoutSeconds != 45 {
		t.Errorf("TimeoutSeconds = %d, want 45", o.settings.TimeoutSeconds)
	}
	if o.settings.MaxRetries != 5 {
		t.Errorf("MaxRetries = %d, want 5", o.settings.MaxRetries)
	}
	if o.settings.Extra["temperature"] != 0.7 {
		t.Errorf("Extra = %v, want temperature kept", o.settings.Extra)
	}
}

func TestDecodeSettingsDefaults(t *testing.T) {
	settings, err := decodeSettings(map[string]any{})
	if err != nil {
		t.Fatalf("decodeSettings: %v", err)
	}
	if settings.MaxRetries != 3 {
		t.Errorf("MaxRetries = %d, want 3", settings.MaxRetries)
	}
	if settings.MaxImageSizeMB != 50 {
		t.Errorf("MaxImageSizeMB = %v, want 50", settings.MaxImageSizeMB)
	}
}
