package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/jaa/vasort/internal/convert"
	"github.com/jaa/vasort/internal/exitcode"
	"github.com/jaa/vasort/internal/library/fslib"
)

// newOllamaStub serves just enough of the ollama API for a full run: a tag
// listing that knows the test model and a generate endpoint with a fixed
// reply.
func newOllamaStub(t *testing.T, response string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/tags", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"models":[{"name":"qwen-test"}]}`)
	})
	mux.HandleFunc("/api/generate", func(w http.ResponseWriter, r *http.Request) {
		payload, _ := json.Marshal(map[string]string{"response": response})
		w.Write(payload)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func writeRunConfig(t *testing.T, dir string, apiURL string) string {
	t.Helper()
	libDir := filepath.Join(dir, "library")
	stateDir := filepath.Join(dir, "state")
	if err := os.MkdirAll(libDir, 0o755); err != nil {
		t.Fatalf("mkdir library dir: %v", err)
	}
	for _, name := range []string{"a.jpg", "b.jpg", "c.jpg"} {
		if err := os.WriteFile(filepath.Join(libDir, name), []byte("img:"+name), 0o644); err != nil {
			t.Fatalf("write library file: %v", err)
		}
	}

	configPath := filepath.Join(dir, "config.yaml")
	payload := `version: 1
task:
  name: "Dog finder"
  prompt: "Is there a dog in this image? Answer yes or no."
  rules:
    type: "regex_match"
    match_all: false
    patterns:
      - name: "affirmative"
        pattern: "\\byes\\b"
        field: "normalized_response"
provider:
  type: "ollama"
  settings:
    model: "qwen-test"
    api_url: "` + apiURL + `"
    max_retries: 1
album:
  name: "Dogs"
  create_if_missing: true
processing:
  batch_size: 10
  flush_threshold: 2
  skip_types: []
  skip_videos: true
  batch_pause_ms: 0
storage:
  library_dir: "` + libDir + `"
  state_dir: "` + stateDir + `"
logging:
  level: "info"
  file: false
`
	if err := os.WriteFile(configPath, []byte(payload), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return configPath
}

func newTestApp() (*AppContext, *bytes.Buffer, *bytes.Buffer) {
	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	app := &AppContext{
		Build: BuildInfo{Version: "test"},
		IO:    IOStreams{In: strings.NewReader(""), Out: stdout, ErrOut: stderr},
	}
	return app, stdout, stderr
}

func execute(app *AppContext, args ...string) error {
	root := newRootCommand(app)
	root.SetArgs(args)
	return root.Execute()
}

func TestRunCommandProcessesLibrary(t *testing.T) {
	tmp := t.TempDir()
	server := newOllamaStub(t, "Yes, there is a dog.")
	configPath := writeRunConfig(t, tmp, server.URL+"/api/generate")

	app, stdout, _ := newTestApp()
	if err := execute(app, "run", "--config", configPath); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if !strings.Contains(stdout.String(), "run complete") {
		t.Fatalf("expected completion summary, got: %s", stdout.String())
	}

	statePayload, err := os.ReadFile(filepath.Join(tmp, "state", "state.json"))
	if err != nil {
		t.Fatalf("read state: %v", err)
	}
	record := map[string]any{}
	if err := json.Unmarshal(statePayload, &record); err != nil {
		t.Fatalf("unmarshal state: %v", err)
	}
	if record["last_index"] != float64(3) {
		t.Fatalf("last_index = %v, want 3", record["last_index"])
	}

	donePayload, err := os.ReadFile(filepath.Join(tmp, "state", "done.txt"))
	if err != nil {
		t.Fatalf("read done log: %v", err)
	}
	if lines := strings.Fields(string(donePayload)); len(lines) != 3 {
		t.Fatalf("done log entries = %d, want 3", len(lines))
	}

	lib := fslib.New(filepath.Join(tmp, "library"), convert.New(zap.NewNop()), zap.NewNop())
	size, err := lib.CollectionSize(context.Background(), "Dogs")
	if err != nil {
		t.Fatalf("album size: %v", err)
	}
	if size != 3 {
		t.Fatalf("album size = %d, want 3", size)
	}
}

func TestRunCommandJSONEvents(t *testing.T) {
	tmp := t.TempDir()
	server := newOllamaStub(t, "no dog here")
	configPath := writeRunConfig(t, tmp, server.URL+"/api/generate")

	app, stdout, _ := newTestApp()
	if err := execute(app, "run", "--config", configPath, "--json", "--no-diagnostics"); err != nil {
		t.Fatalf("run --json failed: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(stdout.String()), "\n")
	if len(lines) < 3 {
		t.Fatalf("expected multiple json events, got: %s", stdout.String())
	}
	last := map[string]any{}
	if err := json.Unmarshal([]byte(lines[len(lines)-1]), &last); err != nil {
		t.Fatalf("unmarshal last event: %v", err)
	}
	if last["event"] != "run_finished" {
		t.Fatalf("expected final event run_finished, got %v", last["event"])
	}
	details, _ := last["details"].(map[string]any)
	if details["status"] != "completed" {
		t.Fatalf("expected completed status, got %v", details["status"])
	}
	if details["matched"] != float64(0) {
		t.Fatalf("matched = %v, want 0", details["matched"])
	}
}

func TestRunCommandSecondRunUpToDate(t *testing.T) {
	tmp := t.TempDir()
	server := newOllamaStub(t, "yes")
	configPath := writeRunConfig(t, tmp, server.URL+"/api/generate")

	app, _, _ := newTestApp()
	if err := execute(app, "run", "--config", configPath); err != nil {
		t.Fatalf("first run failed: %v", err)
	}

	app2, stdout2, _ := newTestApp()
	if err := execute(app2, "run", "--config", configPath); err != nil {
		t.Fatalf("second run failed: %v", err)
	}
	if !strings.Contains(stdout2.String(), "already fully processed") {
		t.Fatalf("expected up-to-date message, got: %s", stdout2.String())
	}
}

func TestRunCommandProviderUnreachable(t *testing.T) {
	tmp := t.TempDir()
	server := httptest.NewServer(http.NotFoundHandler())
	deadURL := server.URL + "/api/generate"
	server.Close()
	configPath := writeRunConfig(t, tmp, deadURL)

	app, _, _ := newTestApp()
	err := execute(app, "run", "--config", configPath)
	if err == nil {
		t.Fatal("expected error for unreachable provider")
	}
	var coded *ExitError
	if !errors.As(err, &coded) || coded.Code != exitcode.MissingDependency {
		t.Fatalf("expected MissingDependency exit, got %v", err)
	}
}

func TestRunCommandRejectsUnknownProvider(t *testing.T) {
	tmp := t.TempDir()
	server := newOllamaStub(t, "yes")
	configPath := writeRunConfig(t, tmp, server.URL+"/api/generate")

	app, _, _ := newTestApp()
	err := execute(app, "run", "--config", configPath, "--provider", "nope")
	if err == nil {
		t.Fatal("expected error for unknown provider type")
	}
	var coded *ExitError
	if !errors.As(err, &coded) || coded.Code != exitcode.InvalidConfig {
		t.Fatalf("expected InvalidConfig exit, got %v", err)
	}
}

func TestRunCommandDebugLimitStopsEarly(t *testing.T) {
	tmp := t.TempDir()
	server := newOllamaStub(t, "yes")
	configPath := writeRunConfig(t, tmp, server.URL+"/api/generate")

	app, stdout, _ := newTestApp()
	if err := execute(app, "run", "--config", configPath, "--json", "--debug-limit", "1"); err != nil {
		t.Fatalf("debug run failed: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(stdout.String()), "\n")
	last := map[string]any{}
	if err := json.Unmarshal([]byte(lines[len(lines)-1]), &last); err != nil {
		t.Fatalf("unmarshal last event: %v", err)
	}
	details, _ := last["details"].(map[string]any)
	if details["matched"] != float64(1) {
		t.Fatalf("matched = %v, want 1", details["matched"])
	}
	if details["processed"] != float64(1) {
		t.Fatalf("processed = %v, want 1", details["processed"])
	}
}
