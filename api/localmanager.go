package api

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/aouyang1/demomode/content"
	"github.com/aouyang1/demomode/util"
)

const localCheckInterval = time.Minute

// LocalManager keeps the playlist in step with the photos and videos dropped into a content
// directory.
type LocalManager struct {
	path     string
	catalog  *content.Catalog
	interval time.Duration

	trackedFiles mapset.Set[string]

	Updated chan bool
}

func NewLocalManager(path string, catalog *content.Catalog) (*LocalManager, error) {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create content directory: %w", err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve content directory: %w", err)
	}

	return &LocalManager{
		path:         abs,
		catalog:      catalog,
		interval:     localCheckInterval,
		trackedFiles: mapset.NewSet[string](),
		Updated:      make(chan bool, 1),
	}, nil
}

func (l *LocalManager) Updates() <-chan bool {
	return l.Updated
}

func (l *LocalManager) getCurrentFiles() (mapset.Set[string], error) {
	return mediaFiles(l.path)
}

// mediaFiles lists the supported media files directly inside dir as absolute paths.
func mediaFiles(dir string) (mapset.Set[string], error) {
	dirs, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("unable to read directory, %s, %w", dir, err)
	}

	files := mapset.NewSet[string]()
	for _, d := range dirs {
		if d.IsDir() || !util.IsMedia(d.Name()) {
			continue
		}
		files.Add(filepath.Join(dir, d.Name()))
	}
	return files, nil
}

func (l *LocalManager) Run(ctx context.Context) {
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	// Initial scan
	l.scanAndRegister()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.scanAndRegister()
		}
	}
}

func (l *LocalManager) scanAndRegister() {
	currentFiles, err := l.getCurrentFiles()
	if err != nil {
		slog.Warn("error reading local directory", "path", l.path, "error", err)
		return
	}

	// only files that appeared since the last scan are added, so entries removed by hand stay
	// removed while their file is unchanged
	newFiles := currentFiles.Difference(l.trackedFiles)
	l.trackedFiles = currentFiles

	added := registerFiles(l.catalog, newFiles)
	removed := deregisterMissing(l.catalog, l.path, currentFiles)

	// Signal update if the playlist changed
	if added > 0 || removed > 0 {
		slog.Info("local content changed", "path", l.path, "added", added, "removed", removed)
		signal(l.Updated)
	}
}

// registerFiles adds every file not already in the catalog and returns the number added.
func registerFiles(catalog *content.Catalog, files mapset.Set[string]) int {
	known := catalog.Paths()

	var added int
	for _, path := range sortedSlice(files.Difference(known)) {
		kind := content.KindPhoto
		if util.IsVideo(path) {
			kind = content.KindVideo
		}
		name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		if _, err := catalog.Add(content.Entry{Kind: kind, Path: path, Name: name}); err != nil {
			slog.Warn("error while registering content", "path", path, "error", err)
			continue
		}
		added++
	}
	return added
}

// deregisterMissing removes media entries located directly in dir whose files are gone.
func deregisterMissing(catalog *content.Catalog, dir string, present mapset.Set[string]) int {
	removed, err := catalog.RemoveWhere(func(e content.Entry) bool {
		if e.Kind != content.KindPhoto && e.Kind != content.KindVideo {
			return false
		}
		return filepath.Dir(e.Path) == dir && !present.Contains(e.Path)
	})
	if err != nil {
		slog.Warn("error while deregistering content", "path", dir, "error", err)
		return 0
	}
	return removed
}

func sortedSlice(s mapset.Set[string]) []string {
	out := s.ToSlice()
	slices.Sort(out)
	return out
}

func signal(ch chan bool) {
	select {
	case ch <- true:
	default:
		// Channel is full, skip
	}
}
