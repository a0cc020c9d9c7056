package settings

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/aouyang1/demomode/content"
)

func TestOpenMissingFileUsesDefaults(t *testing.T) {
	s := Open(filepath.Join(t.TempDir(), "demo_settings.json"))

	st := s.Settings()
	if st.PhotoDuration != 5 || st.VideoDuration != 30 || st.AppDuration != 30 || st.InactivityTimeout != 30 {
		t.Errorf("unexpected defaults: %+v", st)
	}
	if st.HasMasterPassword() {
		t.Error("defaults must not have a master password")
	}
	if st.DemoContent == nil || len(st.DemoContent) != 0 {
		t.Errorf("expected empty content list, got %v", st.DemoContent)
	}
}

func TestOpenCorruptFileUsesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "demo_settings.json")
	if err := os.WriteFile(path, []byte(`{"photo_duration": 9,`), 0o644); err != nil {
		t.Fatal(err)
	}

	st := Open(path).Settings()
	if st.PhotoDuration != 5 {
		t.Errorf("expected default photo duration, got %d", st.PhotoDuration)
	}
}

func TestOpenPartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "demo_settings.json")
	data := `{"photo_duration": 9, "keyboard_lock_enabled": true, "demo_content": [{"type":"photo","path":"/a.jpg","name":"a","duration":9}]}`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	st := Open(path).Settings()
	if st.PhotoDuration != 9 || !st.KeyboardLockEnabled {
		t.Errorf("file values not loaded: %+v", st)
	}
	if st.VideoDuration != 30 || st.InactivityTimeout != 30 {
		t.Errorf("missing keys should keep defaults: %+v", st)
	}
	if len(st.DemoContent) != 1 || st.DemoContent[0].Kind != content.KindPhoto {
		t.Errorf("content not loaded: %v", st.DemoContent)
	}
}

func TestUpdatePersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "demo_settings.json")
	s := Open(path)

	if err := s.Update(func(st *Settings) { st.InactivityTimeout = 45 }); err != nil {
		t.Fatal(err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		t.Fatal(err)
	}
	if m["inactivity_timeout"] != float64(45) {
		t.Errorf("inactivity_timeout on disk = %v", m["inactivity_timeout"])
	}
	if v, ok := m["master_password_hash"]; !ok || v != nil {
		t.Errorf("master_password_hash should be persisted as null, got %v (present=%v)", v, ok)
	}

	if got := Open(path).Settings().InactivityTimeout; got != 45 {
		t.Errorf("reloaded inactivity timeout = %d", got)
	}
}

func TestGetSet(t *testing.T) {
	s := Open(filepath.Join(t.TempDir(), "demo_settings.json"))

	if got := s.Get("photo_duration", 0); got != 5 {
		t.Errorf("Get(photo_duration) = %v (%T)", got, got)
	}
	if got := s.Get("no_such_key", "fallback"); got != "fallback" {
		t.Errorf("Get(no_such_key) = %v", got)
	}
	if got := s.Get("master_password_hash", "none"); got != "none" {
		t.Errorf("Get on null value should return default, got %v", got)
	}

	if err := s.Set("keyboard_lock_enabled", true); err != nil {
		t.Fatal(err)
	}
	if !s.Settings().KeyboardLockEnabled {
		t.Error("Set did not apply")
	}

	if err := s.Set("photo_duration", "ten"); err == nil {
		t.Error("expected type error")
	}
	if s.Settings().PhotoDuration != 5 {
		t.Error("failed Set must not change settings")
	}

	if err := s.Set("bogus", 1); !errors.Is(err, ErrUnknownKey) {
		t.Errorf("expected ErrUnknownKey, got %v", err)
	}
	if err := s.Set("master_password_hash", "x"); !errors.Is(err, ErrReadOnlyKey) {
		t.Errorf("expected ErrReadOnlyKey, got %v", err)
	}
}

func TestDefaultDuration(t *testing.T) {
	s := Open(filepath.Join(t.TempDir(), "demo_settings.json"))
	if err := s.Update(func(st *Settings) {
		st.PhotoDuration = 7
		st.WebDuration = 0
	}); err != nil {
		t.Fatal(err)
	}

	tests := map[content.Kind]int{
		content.KindPhoto:       7,
		content.KindVideo:       30,
		content.KindApplication: 30,
		content.KindWeb:         30,
	}
	for kind, want := range tests {
		if got := s.DefaultDuration(kind); got != want {
			t.Errorf("DefaultDuration(%s) = %d, want %d", kind, got, want)
		}
	}
}

func TestMasterPassword(t *testing.T) {
	s := Open(filepath.Join(t.TempDir(), "demo_settings.json"))

	if !s.CheckMasterPassword("anything") {
		t.Error("no master password should allow everything")
	}
	if err := s.SetMasterPassword("abc"); !errors.Is(err, ErrWeakPassword) {
		t.Errorf("expected ErrWeakPassword, got %v", err)
	}
	if err := s.SetMasterPassword("s3cret"); err != nil {
		t.Fatal(err)
	}
	if !s.CheckMasterPassword("s3cret") {
		t.Error("correct password rejected")
	}
	if s.CheckMasterPassword("wrong") {
		t.Error("wrong password accepted")
	}

	if err := s.ClearMasterPassword(); err != nil {
		t.Fatal(err)
	}
	if s.Settings().HasMasterPassword() {
		t.Error("master password not cleared")
	}
}

func TestReset(t *testing.T) {
	s := Open(filepath.Join(t.TempDir(), "demo_settings.json"))
	if err := s.SaveContent([]content.Entry{{Kind: content.KindPhoto, Path: "/a.jpg", Name: "a", Duration: 5}}); err != nil {
		t.Fatal(err)
	}
	if err := s.Reset(); err != nil {
		t.Fatal(err)
	}
	if n := len(s.Settings().DemoContent); n != 0 {
		t.Errorf("expected empty content after reset, got %d", n)
	}
}
