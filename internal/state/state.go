// Package state persists run progress: a JSON checkpoint record and an
// append-only done log holding one item identifier per line.
package state

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/jaa/vasort/internal/fileops"
)

// Progress is the positional checkpoint. LastIndex is the absolute library
// index processing resumes from; Matches accumulates matched identifiers
// across runs.
type Progress struct {
	LastIndex        int      `json:"last_index"`
	Matches          []string `json:"matches"`
	BatchesProcessed int      `json:"batch_processed"`
	Errors           int      `json:"errors"`
}

func emptyProgress() Progress {
	return Progress{Matches: []string{}}
}

type Store struct {
	statePath string
	donePath  string
	log       *zap.Logger
}

func NewStore(statePath string, donePath string, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{statePath: statePath, donePath: donePath, log: log}
}

func (s *Store) StatePath() string { return s.statePath }
func (s *Store) DonePath() string  { return s.donePath }

// Load reads the checkpoint record. A missing file yields the zero state; a
// file that cannot be parsed is preserved under a .corrupt name and also
// yields the zero state. Load never fails the caller.
func (s *Store) Load() Progress {
	payload, err := os.ReadFile(s.statePath)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.log.Warn("read state file", zap.String("path", s.statePath), zap.Error(err))
		}
		return emptyProgress()
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(payload, &raw); err != nil {
		s.log.Warn("state file is corrupted, starting over",
			zap.String("path", s.statePath), zap.Error(err))
		s.preserveCorrupt()
		return emptyProgress()
	}

	progress := emptyProgress()
	progress.LastIndex = intField(raw, "last_index", s.log)
	progress.BatchesProcessed = intField(raw, "batch_processed", s.log)
	progress.Errors = intField(raw, "errors", s.log)
	if msg, ok := raw["matches"]; ok {
		var matches []string
		if err := json.Unmarshal(msg, &matches); err != nil {
			s.log.Warn("state field has wrong type, using default", zap.String("field", "matches"))
		} else {
			progress.Matches = matches
		}
	}
	if progress.LastIndex < 0 {
		progress.LastIndex = 0
	}
	return progress
}

func intField(raw map[string]json.RawMessage, field string, log *zap.Logger) int {
	msg, ok := raw[field]
	if !ok {
		return 0
	}
	var asInt int
	if err := json.Unmarshal(msg, &asInt); err == nil {
		return asInt
	}
	var asFloat float64
	if err := json.Unmarshal(msg, &asFloat); err == nil {
		return int(asFloat)
	}
	log.Warn("state field has wrong type, using default", zap.String("field", field))
	return 0
}

func (s *Store) preserveCorrupt() {
	backup := s.statePath + ".corrupt"
	if err := os.Rename(s.statePath, backup); err != nil {
		s.log.Warn("preserve corrupted state file", zap.Error(err))
		return
	}
	s.log.Info("corrupted state preserved", zap.String("path", backup))
}

// Save overwrites the checkpoint record. The write is atomic: readers never
// observe a partially written file.
func (s *Store) Save(progress Progress) error {
	if progress.Matches == nil {
		progress.Matches = []string{}
	}
	if err := os.MkdirAll(filepath.Dir(s.statePath), 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}

	payload, err := json.MarshalIndent(progress, "", "  ")
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	if err := fileops.WriteFileAtomic(s.statePath, payload, 0o644); err != nil {
		return fmt.Errorf("write state file: %w", err)
	}
	return nil
}

// LoadDone reads the done log into a set, collapsing duplicate lines.
func (s *Store) LoadDone() (map[string]struct{}, error) {
	done := map[string]struct{}{}

	payload, err := os.ReadFile(s.donePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return done, nil
		}
		return done, fmt.Errorf("read done log: %w", err)
	}

	scanner := bufio.NewScanner(bytes.NewReader(payload))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		done[line] = struct{}{}
	}
	if err := scanner.Err(); err != nil {
		return done, fmt.Errorf("scan done log: %w", err)
	}
	return done, nil
}

// AppendDone records one identifier as handled. Each call opens, writes and
// closes the log so the entry survives an immediate crash; the done log is
// the authoritative skip record on resume.
func (s *Store) AppendDone(id string) error {
	trimmed := strings.TrimSpace(id)
	if trimmed == "" {
		return errors.New("done identifier must not be empty")
	}

	if err := os.MkdirAll(filepath.Dir(s.donePath), 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	file, err := os.OpenFile(s.donePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open done log: %w", err)
	}
	defer file.Close()

	if _, err := file.WriteString(trimmed + "\n"); err != nil {
		return fmt.Errorf("append done log: %w", err)
	}
	return file.Sync()
}

// Reset removes the checkpoint and done log. With keepBackup the files are
// renamed aside instead of deleted.
func (s *Store) Reset(keepBackup bool) error {
	for _, path := range []string{s.statePath, s.donePath} {
		if _, err := os.Stat(path); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return fmt.Errorf("stat %q: %w", path, err)
		}
		if keepBackup {
			if err := os.Rename(path, path+".bak"); err != nil {
				return fmt.Errorf("back up %q: %w", path, err)
			}
			continue
		}
		if err := os.Remove(path); err != nil {
			return fmt.Errorf("remove %q: %w", path, err)
		}
	}
	return nil
}
