// Package output carries the run's event stream from the engine to whatever
// is watching: a terminal renderer, an NDJSON pipe, or the diagnostics
// tracker.
package output

import "time"

type Level string

const (
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

type EventName string

const (
	EventRunStarted    EventName = "run_started"
	EventItemProcessed EventName = "item_processed"
	EventItemSkipped   EventName = "item_skipped"
	EventItemError     EventName = "item_error"
	EventBatchComplete EventName = "batch_complete"
	EventAlbumUpdated  EventName = "album_updated"
	EventRunFinished   EventName = "run_finished"
)

// Event is a single timestamped occurrence during a run. RunID, ItemID and
// Batch are set where they apply; Details holds per-event extras such as the
// verdict or counter snapshots.
type Event struct {
	Timestamp time.Time      `json:"timestamp"`
	Level     Level          `json:"level"`
	Event     EventName      `json:"event"`
	RunID     string         `json:"run_id,omitempty"`
	ItemID    string         `json:"item_id,omitempty"`
	Batch     int            `json:"batch,omitempty"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
}
