package output

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"
)

type EventEmitter interface {
	Emit(event Event) error
}

// JSONEmitter writes one JSON object per line, suitable for piping into jq
// or a log collector. Safe for concurrent use.
type JSONEmitter struct {
	mu  sync.Mutex
	enc *json.Encoder
}

func NewJSONEmitter(w io.Writer) *JSONEmitter {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return &JSONEmitter{enc: enc}
}

func (e *JSONEmitter) Emit(event Event) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.enc.Encode(event)
}

// HumanEmitter renders events as plain terminal lines. Info goes to stdout,
// warnings and errors to stderr. Quiet keeps only errors and the final
// run summary; per-item lines need verbose.
type HumanEmitter struct {
	stdout  io.Writer
	stderr  io.Writer
	quiet   bool
	verbose bool
}

func NewHumanEmitter(stdout, stderr io.Writer, quiet, verbose bool) *HumanEmitter {
	return &HumanEmitter{stdout: stdout, stderr: stderr, quiet: quiet, verbose: verbose}
}

func (e *HumanEmitter) Emit(event Event) error {
	if !e.visible(event) {
		return nil
	}

	line := event.Message
	if line == "" {
		line = string(event.Event)
	}

	switch event.Level {
	case LevelError:
		_, err := fmt.Fprintln(e.stderr, "ERROR:", line)
		return err
	case LevelWarn:
		_, err := fmt.Fprintln(e.stderr, "WARN:", line)
		return err
	}

	if perItem(event.Event) {
		line = "  " + line
	}
	_, err := fmt.Fprintln(e.stdout, line)
	return err
}

func (e *HumanEmitter) visible(event Event) bool {
	switch event.Level {
	case LevelError:
		return true
	case LevelWarn:
		return !e.quiet
	}
	if e.quiet {
		return event.Event == EventRunFinished
	}
	if perItem(event.Event) {
		return e.verbose
	}
	return true
}

// perItem reports whether an event fires once per library item.
func perItem(name EventName) bool {
	return name == EventItemProcessed || name == EventItemSkipped
}

// MultiEmitter fans every event out to all wrapped emitters and stops at the
// first failure.
type MultiEmitter struct {
	emitters []EventEmitter
}

func NewMultiEmitter(emitters ...EventEmitter) *MultiEmitter {
	return &MultiEmitter{emitters: emitters}
}

func (e *MultiEmitter) Emit(event Event) error {
	for _, emitter := range e.emitters {
		if err := emitter.Emit(event); err != nil {
			return err
		}
	}
	return nil
}
