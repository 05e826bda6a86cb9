// Package fslib is the filesystem-backed library: a directory tree of media
// files scanned into a stable, ordered item list. Collections live as ID
// list files under <root>/.vasort/albums.
package fslib

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/cespare/xxhash/v2"
	"go.uber.org/zap"

	"github.com/jaa/vasort/internal/library"
)

const metaDirName = ".vasort"

var mediaKinds = map[string]library.Kind{
	"JPG":  library.KindStill,
	"JPEG": library.KindStill,
	"PNG":  library.KindStill,
	"GIF":  library.KindStill,
	"HEIC": library.KindStill,
	"HEIF": library.KindStill,
	"TIF":  library.KindStill,
	"TIFF": library.KindStill,
	"BMP":  library.KindStill,
	"WEBP": library.KindStill,
	"MOV":  library.KindVideo,
	"MP4":  library.KindVideo,
	"M4V":  library.KindVideo,
	"AVI":  library.KindVideo,
	"MPG":  library.KindVideo,
	"MPEG": library.KindVideo,
	"MKV":  library.KindVideo,
	"WEBM": library.KindVideo,
	"3GP":  library.KindVideo,
}

// conversionExts cannot be decoded by the vision servers and go through the
// external converter on export.
var conversionExts = map[string]bool{
	"HEIC": true,
	"HEIF": true,
	"TIF":  true,
	"TIFF": true,
}

// ImageConverter produces a JPEG rendition of src at dst.
type ImageConverter interface {
	Convert(ctx context.Context, src string, dst string) error
}

type Library struct {
	root      string
	converter ImageConverter
	log       *zap.Logger

	mu    sync.Mutex
	items []library.Item
	byID  map[string]library.Item
}

func New(root string, converter ImageConverter, log *zap.Logger) *Library {
	if log == nil {
		log = zap.NewNop()
	}
	return &Library{root: root, converter: converter, log: log}
}

func (l *Library) Items(ctx context.Context) ([]library.Item, error) {
	if err := l.ensureScanned(ctx); err != nil {
		return nil, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]library.Item, len(l.items))
	copy(out, l.items)
	return out, nil
}

func (l *Library) ensureScanned(ctx context.Context) error {
	l.mu.Lock()
	if l.items != nil {
		l.mu.Unlock()
		return nil
	}
	l.mu.Unlock()

	items, err := l.scan(ctx)
	if err != nil {
		return err
	}

	byID := make(map[string]library.Item, len(items))
	for _, item := range items {
		byID[item.ID] = item
	}

	l.mu.Lock()
	l.items = items
	l.byID = byID
	l.mu.Unlock()
	return nil
}

func (l *Library) scan(ctx context.Context) ([]library.Item, error) {
	root, err := filepath.Abs(l.root)
	if err != nil {
		return nil, fmt.Errorf("resolve library root %q: %w", l.root, err)
	}
	if _, err := os.Stat(root); err != nil {
		return nil, fmt.Errorf("library root %q: %w", root, err)
	}

	type entry struct {
		rel  string
		item library.Item
	}
	var entries []entry

	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			l.log.Warn("library walk error", zap.String("path", path), zap.Error(err))
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		name := d.Name()
		if d.IsDir() {
			if path != root && (strings.HasPrefix(name, ".") || name == metaDirName) {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(name, ".") {
			return nil
		}

		ext := strings.ToUpper(strings.TrimPrefix(filepath.Ext(name), "."))
		kind, ok := mediaKinds[ext]
		if !ok {
			return nil
		}

		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return nil
		}
		entries = append(entries, entry{
			rel: rel,
			item: library.Item{
				ID:   itemID(rel),
				Name: name,
				Path: path,
				Ext:  ext,
				Kind: kind,
			},
		})
		return nil
	})
	if walkErr != nil {
		return nil, fmt.Errorf("scan library %q: %w", root, walkErr)
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].rel < entries[j].rel })

	items := make([]library.Item, 0, len(entries))
	for _, e := range entries {
		items = append(items, e.item)
	}
	l.log.Debug("library scanned", zap.String("root", root), zap.Int("items", len(items)))
	return items, nil
}

// itemID derives the stable identifier from the root-relative path, so IDs
// survive rescans and library moves but change when a file is relocated
// inside the library.
func itemID(rel string) string {
	return fmt.Sprintf("%016x", xxhash.Sum64String(filepath.ToSlash(rel)))
}

func (l *Library) Export(ctx context.Context, item library.Item, destDir string, baseName string) (string, error) {
	if item.Path == "" {
		return "", fmt.Errorf("item %s has no file to export", item.ID)
	}
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", fmt.Errorf("create export dir %q: %w", destDir, err)
	}

	if conversionExts[item.Ext] {
		if l.converter == nil {
			return "", fmt.Errorf("item %s requires conversion but no converter is configured", item.ID)
		}
		dst := filepath.Join(destDir, baseName+".jpg")
		if err := l.converter.Convert(ctx, item.Path, dst); err != nil {
			return "", err
		}
		return dst, nil
	}

	dst := filepath.Join(destDir, baseName+"."+strings.ToLower(item.Ext))
	if err := copyFile(item.Path, dst); err != nil {
		return "", err
	}
	return dst, nil
}

func copyFile(src string, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open %q: %w", src, err)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("create %q: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("copy %q: %w", src, err)
	}
	return out.Close()
}
