package provider

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
)

func writeTempImage(t *testing.T, name string, content []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("write image: %v", err)
	}
	return path
}

func recordedSleep(delays *[]time.Duration) func(context.Context, time.Duration) error {
	var mu sync.Mutex
	return func(_ context.Context, d time.Duration) error {
		mu.Lock()
		defer mu.Unlock()
		*delays = append(*delays, d)
		return nil
	}
}

func TestOllamaClassifySendsPayload(t *testing.T) {
	var (
		mu   sync.Mutex
		body map[string]any
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]any{"response": "yes, a dog"})
	}))
	defer server.Close()

	imgContent := []byte("not really a jpeg")
	imgPath := writeTempImage(t, "photo.jpg", imgContent)

	o := newOllama(Settings{
		Model:  "qwen2.5vl:3b",
		APIURL: server.URL + "/api/generate",
		Extra:  map[string]any{"temperature": 0.2},
	}, zap.NewNop())

	text, err := o.Classify(context.Background(), imgPath, "Is this a dog?")
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if text != "yes, a dog" {
		t.Fatalf("text = %q, want %q", text, "yes, a dog")
	}

	mu.Lock()
	defer mu.Unlock()
	if body["model"] != "qwen2.5vl:3b" {
		t.Errorf("model = %v", body["model"])
	}
	if body["prompt"] != "Is this a dog?" {
		t.Errorf("prompt = %v", body["prompt"])
	}
	if body["stream"] != false {
		t.Errorf("stream = %v, want false", body["stream"])
	}
	if body["temperature"] != 0.2 {
		t.Errorf("extra setting not merged, temperature = %v", body["temperature"])
	}
	images, ok := body["images"].([]any)
	if !ok || len(images) != 1 {
		t.Fatalf("images = %v, want one entry", body["images"])
	}
	if images[0] != base64.StdEncoding.EncodeToString(imgContent) {
		t.Errorf("image not base64 of file content")
	}
}

func TestOllamaClassifyRetriesTransientFailures(t *testing.T) {
	var (
		mu    sync.Mutex
		calls int
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls++
		n := calls
		mu.Unlock()
		if n <= 2 {
			http.Error(w, "model loading", http.StatusServiceUnavailable)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"response": "eventually"})
	}))
	defer server.Close()

	imgPath := writeTempImage(t, "photo.jpg", []byte("x"))

	var delays []time.Duration
	o := newOllama(Settings{APIURL: server.URL + "/api/generate", MaxRetries: 3}, zap.NewNop())
	o.sleep = recordedSleep(&delays)

	text, err := o.Classify(context.Background(), imgPath, "prompt")
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if text != "eventually" {
		t.Fatalf("text = %q", text)
	}
	if len(delays) != 2 || delays[0] != 2*time.Second || delays[1] != 4*time.Second {
		t.Fatalf("backoff delays = %v, want [2s 4s]", delays)
	}
}

func TestOllamaClassifyExhaustsRetries(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "broken", http.StatusInternalServerError)
	}))
	defer server.Close()

	imgPath := writeTempImage(t, "photo.jpg", []byte("x"))

	var delays []time.Duration
	o := newOllama(Settings{APIURL: server.URL + "/api/generate", MaxRetries: 3}, zap.NewNop())
	o.sleep = recordedSleep(&delays)

	text, err := o.Classify(context.Background(), imgPath, "prompt")
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if text != "" {
		t.Fatalf("text = %q, want empty", text)
	}
	if !strings.Contains(err.Error(), "retries exhausted") {
		t.Fatalf("error = %v, want retries exhausted", err)
	}
	if len(delays) != 2 {
		t.Fatalf("slept %d times, want 2", len(delays))
	}
}

func TestOllamaCheckServer(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tags" {
			t.Errorf("path = %s, want /api/tags", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"models": []map[string]any{
				{"name": "llava:7b"},
				{"name": "qwen2.5vl:3b"},
			},
		})
	}))
	defer server.Close()

	o := newOllama(Settings{Model: "qwen2.5vl:3b", APIURL: server.URL + "/api/generate"}, zap.NewNop())
	if err := o.CheckServer(context.Background()); err != nil {
		t.Fatalf("CheckServer: %v", err)
	}

	missing := newOllama(Settings{Model: "nope:1b", APIURL: server.URL + "/api/generate"}, zap.NewNop())
	err := missing.CheckServer(context.Background())
	if err == nil {
		t.Fatal("expected error for missing model")
	}
	if !strings.Contains(err.Error(), "llava:7b") {
		t.Fatalf("error should list available models, got: %v", err)
	}
}
