package output

import (
	"encoding/json"
	"os"
	"testing"
	"time"
)

func TestTrackerAggregatesCountersAndWritesSnapshot(t *testing.T) {
	dir := t.TempDir()
	fixed := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
	tracker := NewTracker(dir, "run-42", nil, func() time.Time { return fixed })

	events := []Event{
		{Timestamp: fixed, Level: LevelInfo, Event: EventRunStarted, Details: map[string]any{"total_items": 4}},
		{Timestamp: fixed, Level: LevelInfo, Event: EventItemProcessed, ItemID: "a", Details: map[string]any{"verdict": "match", "duration_ms": 100}},
		{Timestamp: fixed, Level: LevelInfo, Event: EventItemProcessed, ItemID: "b", Details: map[string]any{"verdict": "no_match", "duration_ms": 300}},
		{Timestamp: fixed, Level: LevelInfo, Event: EventItemSkipped, ItemID: "c", Details: map[string]any{"reason": "video_file"}},
		{Timestamp: fixed, Level: LevelError, Event: EventItemError, ItemID: "d", Details: map[string]any{"kind": "provider"}},
		{Timestamp: fixed, Level: LevelInfo, Event: EventBatchComplete, Batch: 1},
		{Timestamp: fixed, Level: LevelInfo, Event: EventRunFinished},
	}
	for _, event := range events {
		if err := tracker.Emit(event); err != nil {
			t.Fatalf("emit %s: %v", event.Event, err)
		}
	}

	stats := tracker.Snapshot()
	if stats.TotalItems != 4 {
		t.Fatalf("expected total 4, got %d", stats.TotalItems)
	}
	if stats.Processed != 2 || stats.Matched != 1 {
		t.Fatalf("unexpected processed/matched: %d/%d", stats.Processed, stats.Matched)
	}
	if stats.Skipped != 1 || stats.SkippedByReason["video_file"] != 1 {
		t.Fatalf("unexpected skip accounting: %+v", stats)
	}
	if stats.Errors != 1 || stats.ErrorsByKind["provider"] != 1 {
		t.Fatalf("unexpected error accounting: %+v", stats)
	}
	if stats.Batches != 1 {
		t.Fatalf("expected 1 batch, got %d", stats.Batches)
	}
	if stats.AvgItemMillis != 200 {
		t.Fatalf("expected avg 200ms, got %d", stats.AvgItemMillis)
	}

	payload, err := os.ReadFile(tracker.SnapshotPath())
	if err != nil {
		t.Fatalf("read snapshot: %v", err)
	}
	var snap struct {
		RunID  string  `json:"run_id"`
		Stats  Stats   `json:"stats"`
		Events []Event `json:"events"`
	}
	if err := json.Unmarshal(payload, &snap); err != nil {
		t.Fatalf("unmarshal snapshot: %v", err)
	}
	if snap.RunID != "run-42" {
		t.Fatalf("unexpected run id in snapshot: %q", snap.RunID)
	}
	if len(snap.Events) != len(events) {
		t.Fatalf("expected %d events in snapshot, got %d", len(events), len(snap.Events))
	}
	if snap.Stats.Processed != 2 {
		t.Fatalf("snapshot stats out of date: %+v", snap.Stats)
	}
}

func TestTrackerSnapshotFailureDoesNotError(t *testing.T) {
	dir := t.TempDir()
	blocked := dir + "/blocked"
	if err := os.WriteFile(blocked, []byte("not a dir"), 0o644); err != nil {
		t.Fatalf("write blocker: %v", err)
	}

	tracker := NewTracker(blocked+"/diag", "run-1", nil, nil)
	err := tracker.Emit(Event{Timestamp: time.Now(), Level: LevelInfo, Event: EventRunStarted})
	if err != nil {
		t.Fatalf("diagnostics write failure must not propagate, got %v", err)
	}
}
