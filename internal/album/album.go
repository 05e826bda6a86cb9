// Package album adapts a collection backend into the match sink the run
// engine flushes to.
package album

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/jaa/vasort/internal/library"
)

// Sink accumulates matched items into one named collection. When the
// collection is missing and creation is disabled the sink switches to a
// hold mode: adds become no-ops and the identifiers stay recorded in run
// state for a later attempt.
type Sink struct {
	Backend         library.CollectionBackend
	Name            string
	CreateIfMissing bool
	Log             *zap.Logger

	mu       sync.Mutex
	ref      library.CollectionRef
	resolved bool
	disabled bool
}

func NewSink(backend library.CollectionBackend, name string, createIfMissing bool, log *zap.Logger) *Sink {
	if log == nil {
		log = zap.NewNop()
	}
	return &Sink{
		Backend:         backend,
		Name:            name,
		CreateIfMissing: createIfMissing,
		Log:             log,
	}
}

// Ensure resolves or creates the destination collection. Calling it again
// is a no-op. A missing collection with creation disabled is not an error;
// the sink holds instead.
func (s *Sink) Ensure(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.resolved || s.disabled {
		return nil
	}
	ref, err := s.Backend.EnsureCollection(ctx, s.Name, s.CreateIfMissing)
	if errors.Is(err, library.ErrCollectionMissing) {
		s.Log.Warn("collection missing and creation disabled, matches will not be added",
			zap.String("collection", s.Name))
		s.disabled = true
		return nil
	}
	if err != nil {
		return fmt.Errorf("ensure collection %q: %w", s.Name, err)
	}
	s.ref = ref
	s.resolved = true
	return nil
}

// Disabled reports whether the sink is holding adds instead of applying
// them.
func (s *Sink) Disabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.disabled
}

// Add resolves the identifiers and appends them to the collection.
// Identifiers that no longer resolve are dropped with a warning.
func (s *Sink) Add(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := s.Ensure(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	disabled, ref := s.disabled, s.ref
	s.mu.Unlock()
	if disabled {
		s.Log.Debug("collection sink disabled, holding identifiers", zap.Int("count", len(ids)))
		return nil
	}

	found, missing, err := s.Backend.ResolveItems(ctx, ids)
	if err != nil {
		return fmt.Errorf("resolve items: %w", err)
	}
	if len(missing) > 0 {
		s.Log.Warn("identifiers not found in library, dropping",
			zap.Strings("item_ids", missing))
	}
	if len(found) == 0 {
		return nil
	}

	if err := s.Backend.AddToCollection(ctx, ref, found); err != nil {
		return fmt.Errorf("add to collection %q: %w", s.Name, err)
	}
	s.Log.Info("collection updated",
		zap.String("collection", s.Name), zap.Int("added", len(found)))
	return nil
}
