// Package library defines the media-source model: the ordered item list a
// run walks, and the collection backend matches are added to.
package library

import (
	"context"
	"errors"
	"os"
)

type Kind string

const (
	KindStill Kind = "still"
	KindVideo Kind = "video"
)

// Item is one library entry. ID is stable across scans and is the identity
// recorded in run state; Ext is uppercase without the leading dot. An empty
// Path means the item has no file materialized on disk.
type Item struct {
	ID   string
	Name string
	Path string
	Ext  string
	Kind Kind
}

// Available reports whether the item's file can actually be opened for
// processing.
func (i Item) Available() bool {
	if i.Path == "" {
		return false
	}
	info, err := os.Stat(i.Path)
	return err == nil && !info.IsDir()
}

// Library enumerates items in a stable order and materializes their image
// payloads for classification.
type Library interface {
	// Items returns every item, ordered. The order must be identical across
	// calls while the underlying store is unchanged; run checkpoints index
	// into it.
	Items(ctx context.Context) ([]Item, error)

	// Export writes a decodable image rendition of item into destDir using
	// baseName (extension chosen by the backend) and returns the full path.
	Export(ctx context.Context, item Item, destDir string, baseName string) (string, error)
}

// ErrCollectionMissing is returned by EnsureCollection when the named
// collection does not exist and creation was not requested.
var ErrCollectionMissing = errors.New("collection does not exist")

type CollectionRef struct {
	ID   string
	Name string
}

// CollectionBackend owns collection membership. Adds are idempotent: adding
// an item already in the collection changes nothing.
type CollectionBackend interface {
	EnsureCollection(ctx context.Context, name string, createIfMissing bool) (CollectionRef, error)

	// ResolveItems maps identifiers back to live items. Identifiers that no
	// longer resolve are reported in missing, not as an error.
	ResolveItems(ctx context.Context, ids []string) (found []Item, missing []string, err error)

	AddToCollection(ctx context.Context, ref CollectionRef, items []Item) error
}
