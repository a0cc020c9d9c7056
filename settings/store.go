package settings

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/aouyang1/demomode/content"
)

const minPasswordLen = 4

var (
	ErrUnknownKey   = errors.New("unknown settings key")
	ErrReadOnlyKey  = errors.New("settings key cannot be set directly")
	ErrWeakPassword = fmt.Errorf("password must be at least %d characters", minPasswordLen)
)

// Store owns the settings file. All writes go through a temp file and rename.
type Store struct {
	path string

	mu       sync.Mutex
	settings Settings
}

// Open loads path. A missing file yields defaults; an unreadable or corrupt one is logged and
// also yields defaults so startup never fails on bad settings.
func Open(path string) *Store {
	s := &Store{path: path, settings: Defaults()}

	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			slog.Warn("unable to read settings, using defaults", "path", path, "error", err)
		}
		return s
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return s
	}

	loaded := Defaults()
	if err := json.Unmarshal(data, &loaded); err != nil {
		slog.Warn("corrupt settings file, using defaults", "path", path, "error", err)
		return s
	}
	if loaded.DemoContent == nil {
		loaded.DemoContent = []content.Entry{}
	}
	s.settings = loaded
	return s
}

func (s *Store) Path() string {
	return s.path
}

// Settings returns a snapshot.
func (s *Store) Settings() Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings.clone()
}

// Update applies fn to a copy of the settings and persists it. The in-memory settings only change
// when the write succeeds.
func (s *Store) Update(fn func(*Settings)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.settings.clone()
	fn(&next)
	return s.commit(next)
}

// Get returns the value of a named option, or def when it is unset.
func (s *Store) Get(key string, def any) any {
	m, err := toMap(s.Settings())
	if err != nil {
		return def
	}
	v, ok := m[key]
	if !ok || v == nil {
		return def
	}
	if n, ok := v.(json.Number); ok {
		if i, err := n.Int64(); err == nil {
			return int(i)
		}
		if f, err := n.Float64(); err == nil {
			return f
		}
	}
	return v
}

// Set assigns a named option. The password hash and the content list have dedicated write paths.
func (s *Store) Set(key string, value any) error {
	if key == "master_password_hash" || key == "demo_content" {
		return fmt.Errorf("%w: %s", ErrReadOnlyKey, key)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := toMap(s.settings)
	if err != nil {
		return err
	}
	if _, ok := m[key]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
	m[key] = value

	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	next := s.settings.clone()
	if err := json.Unmarshal(data, &next); err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	return s.commit(next)
}

// DefaultDuration implements content.Store.
func (s *Store) DefaultDuration(k content.Kind) int {
	return s.Settings().DefaultDuration(k)
}

// SaveContent implements content.Store.
func (s *Store) SaveContent(entries []content.Entry) error {
	return s.Update(func(st *Settings) {
		st.DemoContent = append([]content.Entry{}, entries...)
	})
}

func (s *Store) Hash(password string) (string, error) {
	return HashPassword(password)
}

func (s *Store) Verify(password, hash string) bool {
	return VerifyPassword(password, hash)
}

// HashMasterPassword checks a candidate master password and returns its hash without storing it.
func (s *Store) HashMasterPassword(password string) (string, error) {
	if len(password) < minPasswordLen {
		return "", ErrWeakPassword
	}
	return s.Hash(password)
}

// SetMasterPassword hashes and stores a new master password.
func (s *Store) SetMasterPassword(password string) error {
	hash, err := s.HashMasterPassword(password)
	if err != nil {
		return err
	}
	return s.Update(func(st *Settings) { st.MasterPasswordHash = &hash })
}

func (s *Store) ClearMasterPassword() error {
	return s.Update(func(st *Settings) { st.MasterPasswordHash = nil })
}

// CheckMasterPassword reports whether password unlocks protected operations. With no master
// password configured everything is allowed.
func (s *Store) CheckMasterPassword(password string) bool {
	st := s.Settings()
	if !st.HasMasterPassword() {
		return true
	}
	return s.Verify(password, *st.MasterPasswordHash)
}

// Reset restores defaults, dropping content and the master password.
func (s *Store) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commit(Defaults())
}

// commit must be called with s.mu held.
func (s *Store) commit(next Settings) error {
	if err := save(s.path, next); err != nil {
		return err
	}
	s.settings = next
	return nil
}

func save(path string, st Settings) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("open tmp: %w", err)
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(&st); err != nil {
		f.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("encode settings: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("close tmp: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("rename tmp: %w", err)
	}
	return nil
}

func toMap(st Settings) (map[string]any, error) {
	data, err := json.Marshal(st)
	if err != nil {
		return nil, fmt.Errorf("encode settings: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var m map[string]any
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("decode settings: %w", err)
	}
	return m, nil
}
