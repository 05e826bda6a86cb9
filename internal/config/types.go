package config

type ProviderType string

const (
	ProviderOllama   ProviderType = "ollama"
	ProviderLMStudio ProviderType = "lmstudio"
	ProviderMLXVLM   ProviderType = "mlxvlm"
)

type RuleType string

const (
	RuleRegexMatch   RuleType = "regex_match"
	RuleKeywordMatch RuleType = "keyword_match"
	RuleAlwaysYes    RuleType = "always_yes"
	RuleAlwaysNo     RuleType = "always_no"
)

type Config struct {
	Version    int        `yaml:"version"`
	Task       Task       `yaml:"task"`
	Provider   Provider   `yaml:"provider"`
	Album      Album      `yaml:"album"`
	Processing Processing `yaml:"processing"`
	Storage    Storage    `yaml:"storage"`
	Logging    Logging    `yaml:"logging"`
}

type Task struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description,omitempty"`
	Prompt      string `yaml:"prompt"`
	Rules       Rules  `yaml:"rules"`
}

type Rules struct {
	Type     RuleType  `yaml:"type"`
	MatchAll bool      `yaml:"match_all"`
	Patterns []Pattern `yaml:"patterns,omitempty"`
	Keywords []string  `yaml:"keywords,omitempty"`
}

// Pattern is one regex rule. Field selects what the expression runs against:
// "response" (raw model output, the default) or "normalized_response".
type Pattern struct {
	Name    string `yaml:"name,omitempty"`
	Pattern string `yaml:"pattern"`
	Field   string `yaml:"field,omitempty"`
}

type Provider struct {
	Type     ProviderType   `yaml:"type"`
	Settings map[string]any `yaml:"settings,omitempty"`
}

type Album struct {
	Name            string `yaml:"name"`
	CreateIfMissing bool   `yaml:"create_if_missing"`
}

type Processing struct {
	BatchSize      int      `yaml:"batch_size"`
	FlushThreshold int      `yaml:"flush_threshold"`
	SkipTypes      []string `yaml:"skip_types"`
	SkipVideos     bool     `yaml:"skip_videos"`
	BatchPauseMS   int      `yaml:"batch_pause_ms"`
	DebugMode      bool     `yaml:"debug_mode"`
	DebugLimit     int      `yaml:"debug_limit"`
}

type Storage struct {
	LibraryDir string `yaml:"library_dir"`
	StateDir   string `yaml:"state_dir"`
	StateFile  string `yaml:"state_file"`
	DoneFile   string `yaml:"done_file"`
}

type Logging struct {
	Level string `yaml:"level"`
	File  bool   `yaml:"file"`
}

func DefaultConfig() Config {
	return Config{
		Version: 1,
		Task: Task{
			Name:   "Default Image Classification",
			Prompt: "Describe what you see in this image.",
			Rules: Rules{
				Type:     RuleAlwaysNo,
				MatchAll: true,
			},
		},
		Provider: Provider{
			Type: ProviderOllama,
		},
		Album: Album{
			Name:            "Sorted_Photos",
			CreateIfMissing: true,
		},
		Processing: Processing{
			BatchSize:      100,
			FlushThreshold: 5,
			SkipTypes:      []string{"HEIC", "GIF"},
			SkipVideos:     true,
			BatchPauseMS:   500,
			DebugMode:      false,
			DebugLimit:     1,
		},
		Storage: Storage{
			StateDir:  defaultStateDir(),
			StateFile: "state.json",
			DoneFile:  "done.txt",
		},
		Logging: Logging{
			Level: "info",
			File:  true,
		},
	}
}
