package state

import (
	"os"
	"path/filepath"
	"testing"
)

func newTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	dir := t.TempDir()
	return NewStore(filepath.Join(dir, "state.json"), filepath.Join(dir, "done.txt"), nil), dir
}

func TestLoadMissingFileReturnsZeroState(t *testing.T) {
	store, _ := newTestStore(t)

	progress := store.Load()
	if progress.LastIndex != 0 || progress.BatchesProcessed != 0 || progress.Errors != 0 {
		t.Fatalf("expected zero state, got %+v", progress)
	}
	if progress.Matches == nil || len(progress.Matches) != 0 {
		t.Fatalf("expected empty matches slice, got %+v", progress.Matches)
	}
}

func TestLoadCorruptedFileFallsBackAndPreserves(t *testing.T) {
	store, _ := newTestStore(t)
	if err := os.WriteFile(store.StatePath(), []byte(`{invalid`), 0o644); err != nil {
		t.Fatalf("write corrupt state: %v", err)
	}

	progress := store.Load()
	if progress.LastIndex != 0 || len(progress.Matches) != 0 || progress.BatchesProcessed != 0 {
		t.Fatalf("expected zero state after corruption, got %+v", progress)
	}

	if _, err := os.Stat(store.StatePath() + ".corrupt"); err != nil {
		t.Fatalf("expected corrupted file to be preserved: %v", err)
	}
}

func TestLoadToleratesWrongFieldTypes(t *testing.T) {
	store, _ := newTestStore(t)
	payload := `{"last_index": "nonsense", "matches": 17, "batch_processed": 3.0, "errors": 2}`
	if err := os.WriteFile(store.StatePath(), []byte(payload), 0o644); err != nil {
		t.Fatalf("write state: %v", err)
	}

	progress := store.Load()
	if progress.LastIndex != 0 {
		t.Fatalf("expected defaulted last_index, got %d", progress.LastIndex)
	}
	if len(progress.Matches) != 0 {
		t.Fatalf("expected defaulted matches, got %+v", progress.Matches)
	}
	if progress.BatchesProcessed != 3 {
		t.Fatalf("expected coerced batch counter, got %d", progress.BatchesProcessed)
	}
	if progress.Errors != 2 {
		t.Fatalf("expected errors=2, got %d", progress.Errors)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	store, dir := newTestStore(t)

	saved := Progress{
		LastIndex:        180,
		Matches:          []string{"aaaa", "bbbb"},
		BatchesProcessed: 2,
		Errors:           1,
	}
	if err := store.Save(saved); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded := store.Load()
	if loaded.LastIndex != 180 || loaded.BatchesProcessed != 2 || loaded.Errors != 1 {
		t.Fatalf("round trip mismatch: %+v", loaded)
	}
	if len(loaded.Matches) != 2 || loaded.Matches[0] != "aaaa" {
		t.Fatalf("round trip matches mismatch: %+v", loaded.Matches)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	for _, entry := range entries {
		if entry.Name() != "state.json" {
			t.Fatalf("unexpected leftover file %q", entry.Name())
		}
	}
}

func TestLoadDoneDeduplicates(t *testing.T) {
	store, _ := newTestStore(t)
	payload := "id-one\nid-two\nid-one\n\nid-three\nid-two\n"
	if err := os.WriteFile(store.DonePath(), []byte(payload), 0o644); err != nil {
		t.Fatalf("write done log: %v", err)
	}

	done, err := store.LoadDone()
	if err != nil {
		t.Fatalf("load done: %v", err)
	}
	if len(done) != 3 {
		t.Fatalf("expected 3 distinct identifiers, got %d", len(done))
	}
	for _, id := range []string{"id-one", "id-two", "id-three"} {
		if _, ok := done[id]; !ok {
			t.Fatalf("missing identifier %q", id)
		}
	}
}

func TestAppendDoneAccumulates(t *testing.T) {
	store, _ := newTestStore(t)

	for _, id := range []string{"alpha", "beta", "alpha"} {
		if err := store.AppendDone(id); err != nil {
			t.Fatalf("append %q: %v", id, err)
		}
	}

	done, err := store.LoadDone()
	if err != nil {
		t.Fatalf("load done: %v", err)
	}
	if len(done) != 2 {
		t.Fatalf("expected deduplicated set of 2, got %d", len(done))
	}

	if err := store.AppendDone("  "); err == nil {
		t.Fatalf("expected error for blank identifier")
	}
}

func TestResetRemovesOrBacksUp(t *testing.T) {
	store, _ := newTestStore(t)
	if err := store.Save(Progress{LastIndex: 5}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := store.AppendDone("alpha"); err != nil {
		t.Fatalf("append: %v", err)
	}

	if err := store.Reset(true); err != nil {
		t.Fatalf("reset with backup: %v", err)
	}
	if _, err := os.Stat(store.StatePath() + ".bak"); err != nil {
		t.Fatalf("expected state backup: %v", err)
	}
	if _, err := os.Stat(store.StatePath()); !os.IsNotExist(err) {
		t.Fatalf("expected state file removed, stat err: %v", err)
	}

	if err := store.Save(Progress{LastIndex: 7}); err != nil {
		t.Fatalf("save again: %v", err)
	}
	if err := store.Reset(false); err != nil {
		t.Fatalf("reset without backup: %v", err)
	}
	if _, err := os.Stat(store.StatePath()); !os.IsNotExist(err) {
		t.Fatalf("expected state file gone, stat err: %v", err)
	}
}
