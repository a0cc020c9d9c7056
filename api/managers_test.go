package api

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/aouyang1/demomode/content"
	"github.com/aouyang1/demomode/settings"
)

func newTestCatalog(t *testing.T) (*content.Catalog, *settings.Store) {
	t.Helper()
	st := settings.Open(filepath.Join(t.TempDir(), "settings.json"))
	return content.NewCatalog(st, nil), st
}

func touch(t *testing.T, path string) {
	t.Helper()
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
}

func drained(ch chan bool) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}

func TestLocalManagerScan(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "a.jpg"))
	touch(t, filepath.Join(dir, "b.MP4"))
	touch(t, filepath.Join(dir, "notes.txt"))
	if err := os.Mkdir(filepath.Join(dir, "remote.png"), 0o755); err != nil {
		t.Fatal(err)
	}

	catalog, _ := newTestCatalog(t)
	if _, err := catalog.Add(content.Entry{Kind: content.KindWeb, Path: "https://example.com", Name: "site"}); err != nil {
		t.Fatal(err)
	}
	l, err := NewLocalManager(dir, catalog)
	if err != nil {
		t.Fatal(err)
	}

	l.scanAndRegister()
	entries := catalog.Entries()
	if len(entries) != 3 {
		t.Fatalf("entries = %+v", entries)
	}
	if entries[1].Name != "a" || entries[1].Kind != content.KindPhoto || entries[1].Duration != 5 {
		t.Errorf("photo entry = %+v", entries[1])
	}
	if entries[2].Name != "b" || entries[2].Kind != content.KindVideo || entries[2].Duration != 30 {
		t.Errorf("video entry = %+v", entries[2])
	}
	if !drained(l.Updated) {
		t.Error("scan with new files did not signal")
	}

	// an entry removed by hand is not re-added while its file is unchanged
	if _, err := catalog.Remove(1); err != nil {
		t.Fatal(err)
	}
	l.scanAndRegister()
	if catalog.Len() != 2 {
		t.Errorf("removed entry came back: %+v", catalog.Entries())
	}
	if drained(l.Updated) {
		t.Error("scan without changes signaled")
	}

	if err := os.Remove(filepath.Join(dir, "b.MP4")); err != nil {
		t.Fatal(err)
	}
	touch(t, filepath.Join(dir, "c.png"))
	l.scanAndRegister()

	entries = catalog.Entries()
	if len(entries) != 2 || entries[0].Name != "site" || entries[1].Name != "c" {
		t.Errorf("entries after file changes = %+v", entries)
	}
	if !drained(l.Updated) {
		t.Error("scan with changes did not signal")
	}
}

type fakeS3 struct {
	mu   sync.Mutex
	keys []string
}

func (f *fakeS3) setKeys(keys ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.keys = keys
}

func (f *fakeS3) ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := &s3.ListObjectsV2Output{IsTruncated: aws.Bool(false)}
	for _, k := range f.keys {
		out.Contents = append(out.Contents, s3types.Object{Key: aws.String(k)})
	}
	return out, nil
}

type fakeDownloader struct {
	fail map[string]bool
}

func (f *fakeDownloader) Download(ctx context.Context, w io.WriterAt, input *s3.GetObjectInput, options ...func(*manager.Downloader)) (int64, error) {
	key := aws.ToString(input.Key)
	if f.fail[key] {
		return 0, errors.New("connection reset")
	}
	n, err := w.WriteAt([]byte("data:"+key), 0)
	return int64(n), err
}

func TestRemoteManagerSync(t *testing.T) {
	out := filepath.Join(t.TempDir(), "remote")
	catalog, _ := newTestCatalog(t)
	s3c := &fakeS3{}
	s3c.setKeys("a.jpg", "nested/b.jpg", "readme.txt", "c.mp4", "broken.png")
	dl := &fakeDownloader{fail: map[string]bool{"broken.png": true}}

	r, err := newRemoteManager(s3c, dl, "bucket", out, catalog)
	if err != nil {
		t.Fatal(err)
	}

	if err := r.SyncFolder(context.Background()); err != nil {
		t.Fatal(err)
	}
	names := map[string]bool{}
	for _, e := range catalog.Entries() {
		names[e.Name] = true
	}
	if len(names) != 2 || !names["a"] || !names["c"] {
		t.Fatalf("entries after sync = %+v", catalog.Entries())
	}
	if _, err := os.Stat(filepath.Join(out, "broken.png")); !os.IsNotExist(err) {
		t.Error("failed download left a file behind")
	}
	if b, err := os.ReadFile(filepath.Join(out, "a.jpg")); err != nil || string(b) != "data:a.jpg" {
		t.Errorf("downloaded content = %q, %v", b, err)
	}
	if !drained(r.Updated) {
		t.Error("sync with new objects did not signal")
	}

	s3c.setKeys("a.jpg")
	if err := r.SyncFolder(context.Background()); err != nil {
		t.Fatal(err)
	}
	entries := catalog.Entries()
	if len(entries) != 1 || entries[0].Name != "a" {
		t.Errorf("entries after object removal = %+v", entries)
	}
	if _, err := os.Stat(filepath.Join(out, "c.mp4")); !os.IsNotExist(err) {
		t.Error("removed object still mirrored locally")
	}
}

func TestRemoteManagerKeepsRemovedEntriesRemoved(t *testing.T) {
	out := filepath.Join(t.TempDir(), "remote")
	catalog, _ := newTestCatalog(t)
	s3c := &fakeS3{}
	s3c.setKeys("a.jpg", "b.jpg")

	r, err := newRemoteManager(s3c, &fakeDownloader{}, "bucket", out, catalog)
	if err != nil {
		t.Fatal(err)
	}
	if err := r.SyncFolder(context.Background()); err != nil {
		t.Fatal(err)
	}
	if catalog.Len() != 2 {
		t.Fatalf("entries after first sync = %+v", catalog.Entries())
	}
	drained(r.Updated)

	removed, err := catalog.Remove(0)
	if err != nil {
		t.Fatal(err)
	}

	if err := r.SyncFolder(context.Background()); err != nil {
		t.Fatal(err)
	}
	entries := catalog.Entries()
	if len(entries) != 1 || entries[0].Name == removed.Name {
		t.Fatalf("removed entry %q came back: %+v", removed.Name, entries)
	}
	if drained(r.Updated) {
		t.Error("unchanged mirror should not signal")
	}

	// a new object is still picked up
	s3c.setKeys("a.jpg", "b.jpg", "c.jpg")
	if err := r.SyncFolder(context.Background()); err != nil {
		t.Fatal(err)
	}
	if catalog.Len() != 2 {
		t.Errorf("entries after new object = %+v", catalog.Entries())
	}
}

func TestNewRemoteManagerDisabled(t *testing.T) {
	catalog, _ := newTestCatalog(t)
	if _, err := NewRemoteManager("", "bucket", t.TempDir(), catalog); !errors.Is(err, ErrRemoteDisabled) {
		t.Errorf("expected ErrRemoteDisabled, got %v", err)
	}
	if _, err := NewRemoteManager("profile", "", t.TempDir(), catalog); !errors.Is(err, ErrRemoteDisabled) {
		t.Errorf("expected ErrRemoteDisabled, got %v", err)
	}
}

func TestWithinWindow(t *testing.T) {
	at := func(h, m int) time.Time { return time.Date(2026, 5, 1, h, m, 0, 0, time.Local) }

	tests := []struct {
		name       string
		now        time.Time
		start, end string
		want       bool
	}{
		{"before day window", at(8, 59), "09:00", "21:00", false},
		{"at start", at(9, 0), "09:00", "21:00", true},
		{"inside", at(13, 30), "09:00", "21:00", true},
		{"at end", at(21, 0), "09:00", "21:00", false},
		{"overnight late", at(23, 0), "21:00", "06:00", true},
		{"overnight early", at(2, 0), "21:00", "06:00", true},
		{"overnight outside", at(12, 0), "21:00", "06:00", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := withinWindow(tt.now, tt.start, tt.end)
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("withinWindow = %v, want %v", got, tt.want)
			}
		})
	}

	if _, err := withinWindow(at(1, 0), "9am", "21:00"); err == nil {
		t.Error("expected error for bad format")
	}
}

type scheduledSession struct {
	active bool
	starts int
	stops  int
}

func (s *scheduledSession) StartSession() error { s.active = true; s.starts++; return nil }
func (s *scheduledSession) StopSession()        { s.active = false; s.stops++ }
func (s *scheduledSession) Active() bool        { return s.active }

type fakeDisplay struct {
	switches []bool
}

func (d *fakeDisplay) Enabled() (bool, error) {
	if len(d.switches) == 0 {
		return true, nil
	}
	return d.switches[len(d.switches)-1], nil
}

func (d *fakeDisplay) SetEnabled(on bool) error {
	d.switches = append(d.switches, on)
	return nil
}

func TestScheduleManagerCrossings(t *testing.T) {
	_, st := newTestCatalog(t)
	if err := st.Update(func(s *settings.Settings) {
		s.ScheduleEnabled = true
		s.ScheduleStart = "09:00"
		s.ScheduleEnd = "17:00"
	}); err != nil {
		t.Fatal(err)
	}

	sess := &scheduledSession{}
	disp := &fakeDisplay{}
	m := NewScheduleManager(st, sess, disp)
	now := time.Date(2026, 5, 1, 8, 0, 0, 0, time.Local)
	m.now = func() time.Time { return now }

	m.checkSchedule()
	if sess.starts != 0 || sess.stops != 0 {
		t.Fatalf("acted outside the window: %+v", sess)
	}
	if len(disp.switches) != 1 || disp.switches[0] {
		t.Fatalf("display not turned off outside the window: %v", disp.switches)
	}

	now = now.Add(time.Hour)
	m.checkSchedule()
	if !sess.active || sess.starts != 1 {
		t.Fatalf("did not start on entering the window: %+v", sess)
	}

	// staff stop inside the window is respected until the next boundary
	sess.StopSession()
	now = now.Add(time.Hour)
	m.checkSchedule()
	if sess.active {
		t.Fatal("restarted a session stopped by staff")
	}

	sess.StartSession()
	now = time.Date(2026, 5, 1, 17, 0, 0, 0, time.Local)
	m.checkSchedule()
	if sess.active {
		t.Fatal("did not stop on leaving the window")
	}
	if want := []bool{false, true, false}; !slices.Equal(disp.switches, want) {
		t.Errorf("display switches = %v, want %v", disp.switches, want)
	}
}

func TestScheduleManagerDisabled(t *testing.T) {
	_, st := newTestCatalog(t)
	sess := &scheduledSession{}
	m := NewScheduleManager(st, sess, nil)
	m.now = func() time.Time { return time.Date(2026, 5, 1, 12, 0, 0, 0, time.Local) }

	m.checkSchedule()
	if sess.starts != 0 {
		t.Error("disabled schedule started the session")
	}
}
