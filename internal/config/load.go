package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type LoadOptions struct {
	ExplicitPath string
	WorkingDir   string
	Env          map[string]string
}

type fileConfig struct {
	Version    *int           `yaml:"version"`
	Task       fileTask       `yaml:"task"`
	Provider   fileProvider   `yaml:"provider"`
	Album      fileAlbum      `yaml:"album"`
	Processing fileProcessing `yaml:"processing"`
	Storage    fileStorage    `yaml:"storage"`
	Logging    fileLogging    `yaml:"logging"`
}

type fileTask struct {
	Name        *string   `yaml:"name"`
	Description *string   `yaml:"description"`
	Prompt      *string   `yaml:"prompt"`
	Rules       fileRules `yaml:"rules"`
}

type fileRules struct {
	Type     *RuleType  `yaml:"type"`
	MatchAll *bool      `yaml:"match_all"`
	Patterns *[]Pattern `yaml:"patterns"`
	Keywords *[]string  `yaml:"keywords"`
}

type fileProvider struct {
	Type     *ProviderType   `yaml:"type"`
	Settings *map[string]any `yaml:"settings"`
}

type fileAlbum struct {
	Name            *string `yaml:"name"`
	CreateIfMissing *bool   `yaml:"create_if_missing"`
}

type fileProcessing struct {
	BatchSize      *int      `yaml:"batch_size"`
	FlushThreshold *int      `yaml:"flush_threshold"`
	SkipTypes      *[]string `yaml:"skip_types"`
	SkipVideos     *bool     `yaml:"skip_videos"`
	BatchPauseMS   *int      `yaml:"batch_pause_ms"`
	DebugMode      *bool     `yaml:"debug_mode"`
	DebugLimit     *int      `yaml:"debug_limit"`
}

type fileStorage struct {
	LibraryDir *string `yaml:"library_dir"`
	StateDir   *string `yaml:"state_dir"`
	StateFile  *string `yaml:"state_file"`
	DoneFile   *string `yaml:"done_file"`
}

type fileLogging struct {
	Level *string `yaml:"level"`
	File  *bool   `yaml:"file"`
}

func Load(opts LoadOptions) (Config, error) {
	cfg := DefaultConfig()

	cwd := opts.WorkingDir
	if strings.TrimSpace(cwd) == "" {
		wd, err := os.Getwd()
		if err != nil {
			return Config{}, fmt.Errorf("resolve working directory: %w", err)
		}
		cwd = wd
	}

	env := opts.Env
	if env == nil {
		env = osEnvMap()
	}

	if explicit := strings.TrimSpace(opts.ExplicitPath); explicit != "" {
		if err := mergeFile(&cfg, explicit, true); err != nil {
			return Config{}, err
		}
	} else {
		userPath, err := UserConfigPath()
		if err != nil {
			return Config{}, err
		}
		if err := mergeFile(&cfg, userPath, false); err != nil {
			return Config{}, err
		}

		if err := mergeFile(&cfg, ProjectConfigPath(cwd), false); err != nil {
			return Config{}, err
		}
	}

	if err := applyEnvOverrides(&cfg, env); err != nil {
		return Config{}, err
	}

	normalize(&cfg)
	return cfg, nil
}

func mergeFile(cfg *Config, path string, required bool) error {
	payload, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !required {
			return nil
		}
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("config file does not exist: %s", path)
		}
		return fmt.Errorf("read config file %s: %w", path, err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(payload, &fc); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	if fc.Version != nil {
		cfg.Version = *fc.Version
	}

	if fc.Task.Name != nil {
		cfg.Task.Name = strings.TrimSpace(*fc.Task.Name)
	}
	if fc.Task.Description != nil {
		cfg.Task.Description = strings.TrimSpace(*fc.Task.Description)
	}
	if fc.Task.Prompt != nil {
		cfg.Task.Prompt = *fc.Task.Prompt
	}
	if fc.Task.Rules.Type != nil {
		cfg.Task.Rules.Type = *fc.Task.Rules.Type
	}
	if fc.Task.Rules.MatchAll != nil {
		cfg.Task.Rules.MatchAll = *fc.Task.Rules.MatchAll
	}
	if fc.Task.Rules.Patterns != nil {
		cfg.Task.Rules.Patterns = append([]Pattern{}, (*fc.Task.Rules.Patterns)...)
	}
	if fc.Task.Rules.Keywords != nil {
		cfg.Task.Rules.Keywords = append([]string{}, (*fc.Task.Rules.Keywords)...)
	}

	if fc.Provider.Type != nil {
		cfg.Provider.Type = *fc.Provider.Type
	}
	if fc.Provider.Settings != nil {
		settings := make(map[string]any, len(*fc.Provider.Settings))
		for key, value := range *fc.Provider.Settings {
			settings[key] = value
		}
		cfg.Provider.Settings = settings
	}

	if fc.Album.Name != nil {
		cfg.Album.Name = strings.TrimSpace(*fc.Album.Name)
	}
	if fc.Album.CreateIfMissing != nil {
		cfg.Album.CreateIfMissing = *fc.Album.CreateIfMissing
	}

	if fc.Processing.BatchSize != nil {
		cfg.Processing.BatchSize = *fc.Processing.BatchSize
	}
	if fc.Processing.FlushThreshold != nil {
		cfg.Processing.FlushThreshold = *fc.Processing.FlushThreshold
	}
	if fc.Processing.SkipTypes != nil {
		cfg.Processing.SkipTypes = append([]string{}, (*fc.Processing.SkipTypes)...)
	}
	if fc.Processing.SkipVideos != nil {
		cfg.Processing.SkipVideos = *fc.Processing.SkipVideos
	}
	if fc.Processing.BatchPauseMS != nil {
		cfg.Processing.BatchPauseMS = *fc.Processing.BatchPauseMS
	}
	if fc.Processing.DebugMode != nil {
		cfg.Processing.DebugMode = *fc.Processing.DebugMode
	}
	if fc.Processing.DebugLimit != nil {
		cfg.Processing.DebugLimit = *fc.Processing.DebugLimit
	}

	if fc.Storage.LibraryDir != nil {
		cfg.Storage.LibraryDir = strings.TrimSpace(*fc.Storage.LibraryDir)
	}
	if fc.Storage.StateDir != nil {
		cfg.Storage.StateDir = strings.TrimSpace(*fc.Storage.StateDir)
	}
	if fc.Storage.StateFile != nil {
		cfg.Storage.StateFile = strings.TrimSpace(*fc.Storage.StateFile)
	}
	if fc.Storage.DoneFile != nil {
		cfg.Storage.DoneFile = strings.TrimSpace(*fc.Storage.DoneFile)
	}

	if fc.Logging.Level != nil {
		cfg.Logging.Level = strings.TrimSpace(*fc.Logging.Level)
	}
	if fc.Logging.File != nil {
		cfg.Logging.File = *fc.Logging.File
	}

	return nil
}

func applyEnvOverrides(cfg *Config, env map[string]string) error {
	if value := strings.TrimSpace(env["VASORT_STATE_DIR"]); value != "" {
		cfg.Storage.StateDir = value
	}
	if value := strings.TrimSpace(env["VASORT_LIBRARY_DIR"]); value != "" {
		cfg.Storage.LibraryDir = value
	}
	if value := strings.TrimSpace(env["VASORT_PROVIDER"]); value != "" {
		cfg.Provider.Type = ProviderType(strings.ToLower(value))
	}
	if value := strings.TrimSpace(env["VASORT_BATCH_SIZE"]); value != "" {
		parsed, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid VASORT_BATCH_SIZE value %q: %w", value, err)
		}
		cfg.Processing.BatchSize = parsed
	}
	if value := strings.TrimSpace(env["VASORT_DEBUG"]); value != "" {
		parsed, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid VASORT_DEBUG value %q: %w", value, err)
		}
		cfg.Processing.DebugMode = parsed
	}
	return nil
}

func normalize(cfg *Config) {
	if strings.TrimSpace(string(cfg.Task.Rules.Type)) == "" {
		cfg.Task.Rules.Type = RuleRegexMatch
	}
	for i := range cfg.Processing.SkipTypes {
		cfg.Processing.SkipTypes[i] = strings.ToUpper(strings.TrimSpace(cfg.Processing.SkipTypes[i]))
	}
	if strings.TrimSpace(cfg.Storage.StateFile) == "" {
		cfg.Storage.StateFile = "state.json"
	}
	if strings.TrimSpace(cfg.Storage.DoneFile) == "" {
		cfg.Storage.DoneFile = "done.txt"
	}
}

func osEnvMap() map[string]string {
	result := map[string]string{}
	for _, pair := range os.Environ() {
		pieces := strings.SplitN(pair, "=", 2)
		if len(pieces) == 2 {
			result[pieces[0]] = pieces[1]
		}
	}
	return result
}

func EnsureConfigDir(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create config directory %s: %w", dir, err)
	}
	return nil
}
