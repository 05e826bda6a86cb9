// Package engine drives a classification run: it plans the remaining work,
// walks it in fixed-size batches, records every handled item in the done
// log and checkpoints positional progress after each batch so an
// interrupted run resumes without reprocessing.
package engine

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/jaa/vasort/internal/classify"
	"github.com/jaa/vasort/internal/library"
	"github.com/jaa/vasort/internal/output"
	"github.com/jaa/vasort/internal/state"
)

var ErrInterrupted = errors.New("run interrupted")

type Status string

const (
	StatusUpToDate    Status = "up_to_date"
	StatusCompleted   Status = "completed"
	StatusInterrupted Status = "interrupted"
)

// MatchSink receives matched identifiers in flush-sized groups.
// Implementations must tolerate identifiers repeating across calls.
type MatchSink interface {
	Add(ctx context.Context, ids []string) error
}

type Options struct {
	BatchSize      int
	FlushThreshold int
	SkipTypes      []string
	SkipVideos     bool
	BatchPause     time.Duration
	DebugMode      bool
	DebugLimit     int
}

// Summary is what one invocation accomplished. Counters are session-scoped;
// TotalMatches and LastIndex reflect cumulative persisted state.
type Summary struct {
	Status               Status
	RunID                string
	TotalItems           int
	AlreadyDone          int
	ProcessedThisSession int
	MatchedThisSession   int
	SkippedThisSession   int
	ErrorsThisSession    int
	BatchesProcessed     int
	TotalMatches         int
	LastIndex            int
}

type Engine struct {
	Gateway ItemGateway
	Store   *state.Store
	Sink    MatchSink
	Emitter output.EventEmitter
	Log     *zap.Logger
	Options Options
	RunID   string
	Now     func() time.Time
	Sleep   func(context.Context, time.Duration) error
}

func New(gateway ItemGateway, store *state.Store, sink MatchSink, emitter output.EventEmitter, log *zap.Logger, opts Options, runID string) *Engine {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 100
	}
	if opts.FlushThreshold <= 0 {
		opts.FlushThreshold = 5
	}
	if opts.BatchPause < 0 {
		opts.BatchPause = 0
	}
	if sink == nil {
		sink = discardSink{}
	}
	if emitter == nil {
		emitter = noOpEmitter{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{
		Gateway: gateway,
		Store:   store,
		Sink:    sink,
		Emitter: emitter,
		Log:     log,
		Options: opts,
		RunID:   runID,
		Now:     time.Now,
		Sleep:   sleepContext,
	}
}

type noOpEmitter struct{}

func (noOpEmitter) Emit(output.Event) error { return nil }

type discardSink struct{}

func (discardSink) Add(context.Context, []string) error { return nil }

// Run walks the plan. totalItems and alreadyDone come from the planner and
// feed reporting only. The returned Summary is valid even when the error is
// ErrInterrupted.
func (e *Engine) Run(ctx context.Context, plan []PlanItem, totalItems, alreadyDone int) (Summary, error) {
	progress := e.Store.Load()
	summary := Summary{
		Status:      StatusCompleted,
		RunID:       e.RunID,
		TotalItems:  totalItems,
		AlreadyDone: alreadyDone,
		LastIndex:   progress.LastIndex,
	}

	e.emit(output.Event{
		Level:   output.LevelInfo,
		Event:   output.EventRunStarted,
		Message: fmt.Sprintf("run started: %d item(s) in library, %d to process", totalItems, len(plan)),
		Details: map[string]any{
			"total_items":  totalItems,
			"remaining":    len(plan),
			"already_done": alreadyDone,
			"resume_index": progress.LastIndex,
		},
	})

	if len(plan) == 0 {
		summary.Status = StatusUpToDate
		summary.TotalMatches = len(progress.Matches)
		e.emit(output.Event{
			Level:   output.LevelInfo,
			Event:   output.EventRunFinished,
			Message: "library already fully processed",
			Details: map[string]any{"status": string(summary.Status)},
		})
		return summary, nil
	}

	var pending []string
	interrupted := false
	debugStop := false

	for start := 0; start < len(plan) && !interrupted && !debugStop; start += e.Options.BatchSize {
		end := min(start+e.Options.BatchSize, len(plan))
		batch := plan[start:end]
		batchNum := progress.BatchesProcessed + 1

		e.Log.Info("processing batch",
			zap.Int("batch", batchNum),
			zap.Int("first_index", batch[0].Index),
			zap.Int("last_index", batch[len(batch)-1].Index))

		var batchMatches []string
		batchErrors := 0
		lastCompleted := -1

		for _, planned := range batch {
			if ctx.Err() != nil {
				interrupted = true
				break
			}
			item := planned.Item

			if reason := e.Options.SkipReason(item); reason != "" {
				summary.SkippedThisSession++
				e.markDone(item.ID)
				lastCompleted = planned.Index
				e.emit(output.Event{
					Level:   output.LevelInfo,
					Event:   output.EventItemSkipped,
					ItemID:  item.ID,
					Batch:   batchNum,
					Message: fmt.Sprintf("%s skipped (%s)", item.Name, reason),
					Details: map[string]any{"reason": reason},
				})
				continue
			}

			started := e.Now()
			verdict, err := e.Gateway.Process(ctx, item)
			elapsed := e.Now().Sub(started)

			if err != nil && ctx.Err() != nil {
				// The in-flight call was cut short. The item is not handled,
				// so it must not enter the done log.
				interrupted = true
				break
			}

			summary.ProcessedThisSession++
			switch {
			case err != nil:
				batchErrors++
				summary.ErrorsThisSession++
				e.emit(output.Event{
					Level:   output.LevelWarn,
					Event:   output.EventItemError,
					ItemID:  item.ID,
					Batch:   batchNum,
					Message: fmt.Sprintf("%s: %v", item.Name, err),
					Details: map[string]any{
						"kind":        errorKind(err),
						"duration_ms": elapsed.Milliseconds(),
					},
				})
			case verdict == classify.VerdictMatch:
				batchMatches = append(batchMatches, item.ID)
				pending = append(pending, item.ID)
				summary.MatchedThisSession++
				e.emit(itemProcessedEvent(item, batchNum, verdict, elapsed))
			default:
				e.emit(itemProcessedEvent(item, batchNum, verdict, elapsed))
			}

			e.markDone(item.ID)
			lastCompleted = planned.Index

			if len(pending) >= e.Options.FlushThreshold {
				e.flush(ctx, &pending, batchNum)
			}
			if e.Options.DebugMode && summary.MatchedThisSession >= e.Options.DebugLimit {
				e.Log.Info("debug limit reached, stopping run",
					zap.Int("matches", summary.MatchedThisSession))
				debugStop = true
				break
			}
		}

		if lastCompleted < 0 {
			break
		}

		e.flush(ctx, &pending, batchNum)

		progress.LastIndex = lastCompleted + 1
		progress.BatchesProcessed++
		progress.Matches = append(progress.Matches, batchMatches...)
		progress.Errors += batchErrors
		summary.BatchesProcessed++
		if err := e.Store.Save(progress); err != nil {
			// Keep going: state is intact in memory and the next batch's
			// save retries the write.
			e.Log.Error("checkpoint save failed", zap.Error(err))
		}

		e.emit(output.Event{
			Level: output.LevelInfo,
			Event: output.EventBatchComplete,
			Batch: batchNum,
			Message: fmt.Sprintf("batch %d complete: %d matched, %d error(s), checkpoint at %d",
				batchNum, len(batchMatches), batchErrors, progress.LastIndex),
			Details: map[string]any{
				"batch_size": len(batch),
				"matched":    len(batchMatches),
				"errors":     batchErrors,
				"last_index": progress.LastIndex,
			},
		})

		if !interrupted && !debugStop && end < len(plan) && e.Options.BatchPause > 0 {
			if err := e.Sleep(ctx, e.Options.BatchPause); err != nil {
				interrupted = true
			}
		}
	}

	summary.LastIndex = progress.LastIndex
	summary.TotalMatches = len(progress.Matches)

	if interrupted {
		summary.Status = StatusInterrupted
		e.emit(output.Event{
			Level:   output.LevelWarn,
			Event:   output.EventRunFinished,
			Message: "run interrupted, progress saved",
			Details: summaryDetails(summary),
		})
		return summary, ErrInterrupted
	}

	e.emit(output.Event{
		Level: output.LevelInfo,
		Event: output.EventRunFinished,
		Message: fmt.Sprintf("run complete: %d processed, %d matched, %d skipped, %d error(s)",
			summary.ProcessedThisSession, summary.MatchedThisSession,
			summary.SkippedThisSession, summary.ErrorsThisSession),
		Details: summaryDetails(summary),
	})
	return summary, nil
}

// SkipReason reports why item would be bypassed without classification, or
// "" when it should be processed.
func (o Options) SkipReason(item library.Item) string {
	if o.SkipVideos && item.Kind == library.KindVideo {
		return "video_file"
	}
	if item.Ext != "" && slices.Contains(o.SkipTypes, item.Ext) {
		return "file_type"
	}
	if !item.Available() {
		return "file_missing"
	}
	return ""
}

// markDone appends to the done log immediately so a crash right after this
// item cannot cause it to be reprocessed. A failed append is logged and the
// run continues; the collection sink tolerates the resulting duplicates.
func (e *Engine) markDone(id string) {
	if err := e.Store.AppendDone(id); err != nil {
		e.Log.Error("done log append failed", zap.String("item_id", id), zap.Error(err))
	}
}

func (e *Engine) flush(ctx context.Context, pending *[]string, batchNum int) {
	if len(*pending) == 0 {
		return
	}
	ids := *pending
	*pending = nil

	if err := e.Sink.Add(ctx, ids); err != nil {
		e.Log.Warn("collection update failed, matches stay recorded in run state",
			zap.Int("count", len(ids)), zap.Error(err))
		return
	}
	e.emit(output.Event{
		Level:   output.LevelInfo,
		Event:   output.EventAlbumUpdated,
		Batch:   batchNum,
		Message: fmt.Sprintf("added %d match(es) to collection", len(ids)),
		Details: map[string]any{"count": len(ids)},
	})
}

func (e *Engine) emit(event output.Event) {
	event.Timestamp = e.Now()
	event.RunID = e.RunID
	_ = e.Emitter.Emit(event)
}

func itemProcessedEvent(item library.Item, batchNum int, verdict classify.Verdict, elapsed time.Duration) output.Event {
	return output.Event{
		Level:   output.LevelInfo,
		Event:   output.EventItemProcessed,
		ItemID:  item.ID,
		Batch:   batchNum,
		Message: fmt.Sprintf("%s: %s", item.Name, verdict),
		Details: map[string]any{
			"verdict":     string(verdict),
			"duration_ms": elapsed.Milliseconds(),
		},
	}
}

func errorKind(err error) string {
	var itemErr *ItemError
	if errors.As(err, &itemErr) {
		return itemErr.Kind
	}
	return "item"
}

func summaryDetails(s Summary) map[string]any {
	return map[string]any{
		"status":        string(s.Status),
		"total_items":   s.TotalItems,
		"already_done":  s.AlreadyDone,
		"processed":     s.ProcessedThisSession,
		"matched":       s.MatchedThisSession,
		"skipped":       s.SkippedThisSession,
		"errors":        s.ErrorsThisSession,
		"batches":       s.BatchesProcessed,
		"total_matches": s.TotalMatches,
		"last_index":    s.LastIndex,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
