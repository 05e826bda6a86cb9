package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadPrecedence(t *testing.T) {
	tmp := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(tmp, "xdg"))

	userConfigPath, err := UserConfigPath()
	if err != nil {
		t.Fatalf("user config path: %v", err)
	}
	if err := os.MkdirAll(filepath.Dir(userConfigPath), 0o755); err != nil {
		t.Fatalf("mkdir user config dir: %v", err)
	}

	userConfig := `version: 1
task:
  prompt: "user prompt"
album:
  name: "User Album"
processing:
  batch_size: 10
storage:
  library_dir: "/tmp/user-library"
`
	if err := os.WriteFile(userConfigPath, []byte(userConfig), 0o644); err != nil {
		t.Fatalf("write user config: %v", err)
	}

	projectDir := filepath.Join(tmp, "project")
	if err := os.MkdirAll(projectDir, 0o755); err != nil {
		t.Fatalf("mkdir project dir: %v", err)
	}
	projectConfigPath := filepath.Join(projectDir, "vasort.yaml")
	projectConfig := `version: 1
album:
  name: "Project Album"
`
	if err := os.WriteFile(projectConfigPath, []byte(projectConfig), 0o644); err != nil {
		t.Fatalf("write project config: %v", err)
	}

	cfg, err := Load(LoadOptions{
		WorkingDir: projectDir,
		Env: map[string]string{
			"VASORT_BATCH_SIZE": "7",
		},
	})
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	if cfg.Processing.BatchSize != 7 {
		t.Fatalf("expected env override batch_size=7, got %d", cfg.Processing.BatchSize)
	}
	if cfg.Album.Name != "Project Album" {
		t.Fatalf("expected project album to override user album, got %q", cfg.Album.Name)
	}
	if cfg.Task.Prompt != "user prompt" {
		t.Fatalf("expected user prompt to survive merge, got %q", cfg.Task.Prompt)
	}
	if cfg.Storage.LibraryDir != "/tmp/user-library" {
		t.Fatalf("expected user library dir to survive merge, got %q", cfg.Storage.LibraryDir)
	}
	if cfg.Processing.FlushThreshold != 5 {
		t.Fatalf("expected default flush threshold, got %d", cfg.Processing.FlushThreshold)
	}
}

func TestLoadExplicitPathRequired(t *testing.T) {
	_, err := Load(LoadOptions{ExplicitPath: "/path/does/not/exist.yaml"})
	if err == nil {
		t.Fatalf("expected error for missing explicit config path")
	}
}

func TestLoadNormalizesSkipTypesAndRuleType(t *testing.T) {
	tmp := t.TempDir()
	path := filepath.Join(tmp, "vasort.yaml")
	payload := `version: 1
task:
  prompt: "p"
processing:
  skip_types: [" heic", "gif "]
`
	if err := os.WriteFile(path, []byte(payload), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(LoadOptions{ExplicitPath: path, WorkingDir: tmp, Env: map[string]string{}})
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	if got := cfg.Processing.SkipTypes; len(got) != 2 || got[0] != "HEIC" || got[1] != "GIF" {
		t.Fatalf("expected normalized skip types, got %v", got)
	}
	if cfg.Task.Rules.Type != RuleAlwaysNo {
		t.Fatalf("expected default rules to survive when file omits them, got %q", cfg.Task.Rules.Type)
	}
}

func TestLoadProviderSettingsReplaceDefaults(t *testing.T) {
	tmp := t.TempDir()
	path := filepath.Join(tmp, "vasort.yaml")
	payload := `version: 1
provider:
  type: "lmstudio"
  settings:
    model: "llava-1.6"
    api_url: "http://127.0.0.1:1234/v1/chat/completions"
`
	if err := os.WriteFile(path, []byte(payload), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(LoadOptions{ExplicitPath: path, WorkingDir: tmp, Env: map[string]string{}})
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	if cfg.Provider.Type != ProviderLMStudio {
		t.Fatalf("expected lmstudio provider, got %q", cfg.Provider.Type)
	}
	if got := cfg.Provider.Settings["model"]; got != "llava-1.6" {
		t.Fatalf("expected settings to carry model, got %v", got)
	}
}
