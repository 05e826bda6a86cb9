package config

import "fmt"

func DefaultTemplate() string {
	return fmt.Sprintf(`version: 1
task:
  name: "Dog photos"
  description: "Collect every photo showing a dog"
  prompt: "Is there a dog in this image? Answer yes or no."
  rules:
    type: "regex_match"
    match_all: false
    patterns:
      - name: "affirmative"
        pattern: '\byes\b'
        field: "normalized_response"
provider:
  type: "ollama"
  settings:
    model: "qwen2.5vl:3b"
    api_url: "http://127.0.0.1:11434/api/generate"
    max_retries: 3
    timeout_seconds: 30
album:
  name: "Dog Photos"
  create_if_missing: true
processing:
  batch_size: %d
  flush_threshold: %d
  skip_types: ["HEIC", "GIF"]
  skip_videos: true
  batch_pause_ms: %d
storage:
  library_dir: "~/Pictures/library"
  state_dir: %q
  state_file: "state.json"
  done_file: "done.txt"
logging:
  level: "info"
  file: true
`, 100, 5, 500, defaultStateDir())
}
