package config

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	if len(e.Problems) == 0 {
		return "invalid config"
	}
	return fmt.Sprintf("invalid config: %s", strings.Join(e.Problems, "; "))
}

func Validate(cfg Config) error {
	problems := []string{}

	if cfg.Version != 1 {
		problems = append(problems, "version must be 1")
	}

	if strings.TrimSpace(cfg.Task.Prompt) == "" {
		problems = append(problems, "task.prompt must be set")
	}

	switch cfg.Task.Rules.Type {
	case RuleRegexMatch:
		for _, pattern := range cfg.Task.Rules.Patterns {
			if strings.TrimSpace(pattern.Pattern) == "" {
				problems = append(problems, "task.rules.patterns entries must have a pattern")
				continue
			}
			if _, err := regexp.Compile("(?i)" + pattern.Pattern); err != nil {
				problems = append(problems, fmt.Sprintf("task.rules pattern %q does not compile: %v", pattern.Pattern, err))
			}
			switch pattern.Field {
			case "", "response", "normalized_response":
			default:
				problems = append(problems, fmt.Sprintf("task.rules pattern %q has unsupported field %q", pattern.Pattern, pattern.Field))
			}
		}
	case RuleKeywordMatch:
		if len(cfg.Task.Rules.Keywords) == 0 {
			problems = append(problems, "task.rules.keywords must be set for keyword_match")
		}
	case RuleAlwaysYes, RuleAlwaysNo:
	default:
		problems = append(problems, fmt.Sprintf("task.rules.type %q is unsupported (use regex_match, keyword_match, always_yes or always_no)", cfg.Task.Rules.Type))
	}

	switch cfg.Provider.Type {
	case ProviderOllama, ProviderLMStudio, ProviderMLXVLM:
	default:
		problems = append(problems, fmt.Sprintf("provider.type %q is unsupported (use ollama, lmstudio or mlxvlm)", cfg.Provider.Type))
	}

	if strings.TrimSpace(cfg.Album.Name) == "" {
		problems = append(problems, "album.name must be set")
	}

	if cfg.Processing.BatchSize <= 0 {
		problems = append(problems, "processing.batch_size must be > 0")
	}
	if cfg.Processing.FlushThreshold <= 0 {
		problems = append(problems, "processing.flush_threshold must be > 0")
	}
	if cfg.Processing.BatchPauseMS < 0 {
		problems = append(problems, "processing.batch_pause_ms must be >= 0")
	}
	if cfg.Processing.DebugMode && cfg.Processing.DebugLimit <= 0 {
		problems = append(problems, "processing.debug_limit must be > 0 when debug_mode is on")
	}

	if strings.TrimSpace(cfg.Storage.LibraryDir) == "" {
		problems = append(problems, "storage.library_dir must be set")
	} else {
		libraryDir, err := ExpandPath(cfg.Storage.LibraryDir)
		if err != nil {
			problems = append(problems, "storage.library_dir must be a valid path")
		} else if !filepath.IsAbs(libraryDir) {
			problems = append(problems, "storage.library_dir must resolve to an absolute path")
		}
	}

	stateDir, err := ExpandPath(cfg.Storage.StateDir)
	if err != nil || strings.TrimSpace(stateDir) == "" {
		problems = append(problems, "storage.state_dir must be a valid path")
	} else if !filepath.IsAbs(stateDir) {
		problems = append(problems, "storage.state_dir must resolve to an absolute path")
	}

	if strings.TrimSpace(cfg.Storage.StateFile) == "" {
		problems = append(problems, "storage.state_file must be set")
	}
	if strings.TrimSpace(cfg.Storage.DoneFile) == "" {
		problems = append(problems, "storage.done_file must be set")
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Logging.Level)) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		problems = append(problems, fmt.Sprintf("logging.level %q is unsupported", cfg.Logging.Level))
	}

	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}
