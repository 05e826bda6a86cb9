package output

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Stats aggregates the counters a processing run accumulates. All fields are
// session-scoped; persisted run state lives elsewhere.
type Stats struct {
	TotalItems      int            `json:"total_items"`
	Processed       int            `json:"processed"`
	Matched         int            `json:"matched"`
	Skipped         int            `json:"skipped"`
	Errors          int            `json:"errors"`
	Batches         int            `json:"batches"`
	SkippedByReason map[string]int `json:"skipped_by_reason,omitempty"`
	ErrorsByKind    map[string]int `json:"errors_by_kind,omitempty"`
	StartedAt       time.Time      `json:"started_at,omitempty"`
	FinishedAt      time.Time      `json:"finished_at,omitempty"`
	AvgItemMillis   int64          `json:"avg_item_ms,omitempty"`
}

// Tracker observes the event stream and keeps a diagnostic record of the run:
// aggregate counters, the full event log, and a JSON snapshot file that is
// rewritten at run start, after every batch, and at run end. Snapshot write
// failures are logged and swallowed; diagnostics never fail a run.
type Tracker struct {
	mu     sync.Mutex
	log    *zap.Logger
	path   string
	runID  string
	now    func() time.Time
	stats  Stats
	events []Event

	itemMillis int64
}

func NewTracker(dir string, runID string, log *zap.Logger, now func() time.Time) *Tracker {
	if log == nil {
		log = zap.NewNop()
	}
	if now == nil {
		now = time.Now
	}
	name := fmt.Sprintf("diagnostic_%s.json", now().Format("20060102_150405"))
	return &Tracker{
		log:   log,
		path:  filepath.Join(dir, name),
		runID: runID,
		now:   now,
		stats: Stats{
			SkippedByReason: map[string]int{},
			ErrorsByKind:    map[string]int{},
		},
	}
}

// SnapshotPath reports where the diagnostic snapshot for this run is written.
func (t *Tracker) SnapshotPath() string {
	return t.path
}

func (t *Tracker) Emit(event Event) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.events = append(t.events, event)

	switch event.Event {
	case EventRunStarted:
		t.stats.StartedAt = event.Timestamp
		t.stats.TotalItems = detailInt(event.Details, "total_items")
		t.writeSnapshot()
	case EventItemProcessed:
		t.stats.Processed++
		if verdict, _ := event.Details["verdict"].(string); verdict == "match" {
			t.stats.Matched++
		}
		t.itemMillis += int64(detailInt(event.Details, "duration_ms"))
		if t.stats.Processed%10 == 0 {
			t.log.Info("processing progress",
				zap.Int("processed", t.stats.Processed),
				zap.Int("matched", t.stats.Matched),
				zap.Int("errors", t.stats.Errors),
				zap.Int("total", t.stats.TotalItems))
		}
	case EventItemSkipped:
		t.stats.Skipped++
		reason, _ := event.Details["reason"].(string)
		if reason == "" {
			reason = "unknown"
		}
		t.stats.SkippedByReason[reason]++
	case EventItemError:
		t.stats.Errors++
		kind, _ := event.Details["kind"].(string)
		if kind == "" {
			kind = "unknown"
		}
		t.stats.ErrorsByKind[kind]++
	case EventBatchComplete:
		t.stats.Batches++
		t.writeSnapshot()
	case EventRunFinished:
		t.stats.FinishedAt = event.Timestamp
		if t.stats.Processed > 0 {
			t.stats.AvgItemMillis = t.itemMillis / int64(t.stats.Processed)
		}
		t.writeSnapshot()
	}
	return nil
}

// Snapshot returns a copy of the current counters.
func (t *Tracker) Snapshot() Stats {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := t.stats
	out.SkippedByReason = copyCounts(t.stats.SkippedByReason)
	out.ErrorsByKind = copyCounts(t.stats.ErrorsByKind)
	if t.stats.Processed > 0 {
		out.AvgItemMillis = t.itemMillis / int64(t.stats.Processed)
	}
	return out
}

type diagnosticSnapshot struct {
	Timestamp time.Time `json:"timestamp"`
	RunID     string    `json:"run_id,omitempty"`
	Stats     Stats     `json:"stats"`
	Events    []Event   `json:"events"`
}

func (t *Tracker) writeSnapshot() {
	if err := os.MkdirAll(filepath.Dir(t.path), 0o755); err != nil {
		t.log.Warn("create diagnostics dir", zap.Error(err))
		return
	}
	snap := diagnosticSnapshot{
		Timestamp: t.now(),
		RunID:     t.runID,
		Stats:     t.stats,
		Events:    t.events,
	}
	if t.stats.Processed > 0 {
		snap.Stats.AvgItemMillis = t.itemMillis / int64(t.stats.Processed)
	}
	payload, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		t.log.Warn("encode diagnostic snapshot", zap.Error(err))
		return
	}
	if err := os.WriteFile(t.path, payload, 0o644); err != nil {
		t.log.Warn("write diagnostic snapshot", zap.String("path", t.path), zap.Error(err))
	}
}

func copyCounts(src map[string]int) map[string]int {
	out := make(map[string]int, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}

func detailInt(details map[string]any, key string) int {
	switch v := details[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}
