package fslib

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/jaa/vasort/internal/library"
)

const albumHeader = "# vasort album v1"

func (l *Library) albumsDir() string {
	return filepath.Join(l.root, metaDirName, "albums")
}

func (l *Library) albumPath(name string) string {
	return filepath.Join(l.albumsDir(), sanitizeAlbumFileName(name)+".txt")
}

func (l *Library) EnsureCollection(ctx context.Context, name string, createIfMissing bool) (library.CollectionRef, error) {
	if strings.TrimSpace(name) == "" {
		return library.CollectionRef{}, errors.New("collection name must not be empty")
	}
	if err := ctx.Err(); err != nil {
		return library.CollectionRef{}, err
	}

	path := l.albumPath(name)
	ref := library.CollectionRef{ID: sanitizeAlbumFileName(name), Name: name}

	if _, err := os.Stat(path); err == nil {
		return ref, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return library.CollectionRef{}, fmt.Errorf("stat collection %q: %w", name, err)
	}

	if !createIfMissing {
		return library.CollectionRef{}, fmt.Errorf("collection %q: %w", name, library.ErrCollectionMissing)
	}

	if err := os.MkdirAll(l.albumsDir(), 0o755); err != nil {
		return library.CollectionRef{}, fmt.Errorf("create albums dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(albumHeader+"\n"), 0o644); err != nil {
		return library.CollectionRef{}, fmt.Errorf("create collection %q: %w", name, err)
	}
	l.log.Info("collection created", zap.String("name", name))
	return ref, nil
}

func (l *Library) ResolveItems(ctx context.Context, ids []string) ([]library.Item, []string, error) {
	if err := l.ensureScanned(ctx); err != nil {
		return nil, nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	var found []library.Item
	var missing []string
	for _, id := range ids {
		if item, ok := l.byID[id]; ok {
			found = append(found, item)
		} else {
			missing = append(missing, id)
		}
	}
	return found, missing, nil
}

func (l *Library) AddToCollection(ctx context.Context, ref library.CollectionRef, items []library.Item) error {
	if len(items) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	path := filepath.Join(l.albumsDir(), ref.ID+".txt")
	existing, err := readAlbumMembers(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("read collection %q: %w", ref.Name, err)
	}
	if err := os.MkdirAll(l.albumsDir(), 0o755); err != nil {
		return fmt.Errorf("create albums dir: %w", err)
	}

	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open collection %q: %w", ref.Name, err)
	}
	defer file.Close()

	added := 0
	for _, item := range items {
		if _, ok := existing[item.ID]; ok {
			continue
		}
		if _, err := file.WriteString(item.ID + "\n"); err != nil {
			return fmt.Errorf("append to collection %q: %w", ref.Name, err)
		}
		existing[item.ID] = struct{}{}
		added++
	}
	if added > 0 {
		l.log.Debug("collection extended", zap.String("name", ref.Name), zap.Int("added", added))
	}
	return nil
}

// CollectionSize reports current membership, for status reporting.
func (l *Library) CollectionSize(ctx context.Context, name string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	members, err := readAlbumMembers(l.albumPath(name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, fmt.Errorf("collection %q: %w", name, library.ErrCollectionMissing)
		}
		return 0, err
	}
	return len(members), nil
}

func readAlbumMembers(path string) (map[string]struct{}, error) {
	members := map[string]struct{}{}

	payload, err := os.ReadFile(path)
	if err != nil {
		return members, err
	}

	scanner := bufio.NewScanner(bytes.NewReader(payload))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		members[line] = struct{}{}
	}
	if err := scanner.Err(); err != nil {
		return members, err
	}
	return members, nil
}

func sanitizeAlbumFileName(name string) string {
	mapped := strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', 0:
			return '_'
		default:
			return r
		}
	}, strings.TrimSpace(name))
	if mapped == "" {
		mapped = "album"
	}
	return mapped
}
