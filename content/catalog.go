package content

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
)

// Store persists the catalog and supplies per-kind default durations.
type Store interface {
	DefaultDuration(k Kind) int
	SaveContent(entries []Entry) error
}

// Catalog is the ordered playlist. Every mutation is persisted before it becomes visible; a failed
// save leaves the catalog unchanged.
type Catalog struct {
	mu      sync.Mutex
	entries []Entry
	store   Store

	now func() time.Time
}

func NewCatalog(store Store, entries []Entry) *Catalog {
	return &Catalog{
		entries: append([]Entry(nil), entries...),
		store:   store,
		now:     time.Now,
	}
}

// Entries returns a copy of the playlist in playback order.
func (c *Catalog) Entries() []Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Entry(nil), c.entries...)
}

func (c *Catalog) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Paths returns the set of entry paths currently in the catalog.
func (c *Catalog) Paths() mapset.Set[string] {
	c.mu.Lock()
	defer c.mu.Unlock()

	paths := mapset.NewSet[string]()
	for _, e := range c.entries {
		paths.Add(e.Path)
	}
	return paths
}

// Normalize fills in defaults and validates e.
func (c *Catalog) Normalize(e Entry) (Entry, error) {
	kind, err := ParseKind(string(e.Kind))
	if err != nil {
		return e, err
	}
	e.Kind = kind

	e.Path = strings.TrimSpace(e.Path)
	if e.Path == "" {
		return e, fmt.Errorf("%w: path is required", ErrInvalidEntry)
	}
	if e.Name == "" {
		e.Name = filepath.Base(e.Path)
	}
	if e.Duration == 0 {
		e.Duration = c.store.DefaultDuration(e.Kind)
	}
	if e.Duration <= 0 {
		return e, fmt.Errorf("%w: duration must be positive, got %d", ErrInvalidEntry, e.Duration)
	}

	if e.Kind == KindApplication {
		if e.LaunchMode == "" {
			e.LaunchMode = LaunchDesktop
		}
		if e.LaunchMode, err = ParseLaunchMode(string(e.LaunchMode)); err != nil {
			return e, err
		}
	} else {
		e.LaunchMode = ""
	}

	if e.AddedDate == "" {
		e.AddedDate = c.now().Format(time.RFC3339)
	}
	return e, nil
}

// Add appends e to the end of the playlist.
func (c *Catalog) Add(e Entry) (Entry, error) {
	e, err := c.Normalize(e)
	if err != nil {
		return e, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	next := append(append([]Entry(nil), c.entries...), e)
	if err := c.commit(next); err != nil {
		return e, err
	}
	slog.Info("added content", "type", e.Kind, "name", e.Name, "duration", e.Duration)
	return e, nil
}

// Remove deletes the entry at the zero-based index.
func (c *Catalog) Remove(index int) (Entry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if index < 0 || index >= len(c.entries) {
		return Entry{}, fmt.Errorf("%w: %d not in [0, %d)", ErrIndexOutOfRange, index, len(c.entries))
	}
	removed := c.entries[index]

	next := make([]Entry, 0, len(c.entries)-1)
	next = append(next, c.entries[:index]...)
	next = append(next, c.entries[index+1:]...)
	if err := c.commit(next); err != nil {
		return Entry{}, err
	}
	slog.Info("removed content", "name", removed.Name)
	return removed, nil
}

// RemoveWhere deletes every entry matching fn and returns how many were removed.
func (c *Catalog) RemoveWhere(fn func(Entry) bool) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	next := make([]Entry, 0, len(c.entries))
	for _, e := range c.entries {
		if !fn(e) {
			next = append(next, e)
		}
	}
	removed := len(c.entries) - len(next)
	if removed == 0 {
		return 0, nil
	}
	if err := c.commit(next); err != nil {
		return 0, err
	}
	return removed, nil
}

// Reset empties the catalog.
func (c *Catalog) Reset() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.commit([]Entry{})
}

// Export writes the playlist as a JSON array.
func (c *Catalog) Export(w io.Writer) error {
	entries := c.Entries()
	if entries == nil {
		entries = []Entry{}
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(entries); err != nil {
		return fmt.Errorf("%w: encode export: %w", ErrIO, err)
	}
	return nil
}

// ExportFile writes the playlist to path.
func (c *Catalog) ExportFile(path string) error {
	var buf bytes.Buffer
	if err := c.Export(&buf); err != nil {
		return err
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("%w: write %s: %w", ErrIO, path, err)
	}
	slog.Info("exported content", "path", path)
	return nil
}

// Import replaces the playlist with the JSON array read from r. Nothing is applied unless every
// entry is valid and the result is persisted.
func (c *Catalog) Import(r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("%w: read import: %w", ErrIO, err)
	}

	var raw []Entry
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("%w: decode import: %w", ErrFormat, err)
	}

	next := make([]Entry, 0, len(raw))
	for i, e := range raw {
		normalized, err := c.Normalize(e)
		if err != nil {
			return fmt.Errorf("%w: entry %d: %w", ErrFormat, i+1, err)
		}
		next = append(next, normalized)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.commit(next)
}

// ImportFile replaces the playlist with the contents of path.
func (c *Catalog) ImportFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("%w: open %s: %w", ErrIO, path, err)
	}
	defer f.Close()

	if err := c.Import(f); err != nil {
		return err
	}
	slog.Info("imported content", "path", path, "count", c.Len())
	return nil
}

// commit must be called with c.mu held.
func (c *Catalog) commit(next []Entry) error {
	if err := c.store.SaveContent(next); err != nil {
		return fmt.Errorf("%w: persist content: %w", ErrIO, err)
	}
	c.entries = next
	return nil
}
