package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aouyang1/demomode/clock"
	"github.com/aouyang1/demomode/content"
	"github.com/aouyang1/demomode/input"
	"github.com/aouyang1/demomode/settings"
	"github.com/aouyang1/demomode/slideshow"
)

type fakeScheduler struct {
	mu         sync.Mutex
	startErr   error
	starts     int
	stops      int
	interrupts int
	resumes    int
	running    bool
	sessionID  string
}

func (f *fakeScheduler) Start(sessionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return f.startErr
	}
	f.starts++
	f.sessionID = sessionID
	f.running = true
	return nil
}

func (f *fakeScheduler) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops++
	f.running = false
}

func (f *fakeScheduler) Interrupt() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.interrupts++
	return true
}

func (f *fakeScheduler) Resume() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resumes++
	return true
}

func (f *fakeScheduler) Current() (int, content.Entry, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.running {
		return 0, content.Entry{}, false
	}
	return 0, content.Entry{Kind: content.KindPhoto, Name: "a", Path: "/a.jpg", Duration: 5}, true
}

type fakeSurface struct {
	mu      sync.Mutex
	visible bool
	hides   int
}

func (f *fakeSurface) ShowFullscreen() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.visible = true
	return nil
}

func (f *fakeSurface) HideFullscreen() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.visible = false
	f.hides++
	return nil
}

type fakeConfig struct {
	mu sync.Mutex
	st settings.Settings
}

func (f *fakeConfig) Settings() settings.Settings {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.st
}

func (f *fakeConfig) Verify(password, hash string) bool {
	return hash == "hash:"+password
}

func (f *fakeConfig) setPassword(pw string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	h := "hash:" + pw
	f.st.MasterPasswordHash = &h
}

// fakePrompter answers each prompt with the next queued reply.
type fakePrompter struct {
	mu      sync.Mutex
	calls   int
	replies chan string
}

func newFakePrompter() *fakePrompter {
	return &fakePrompter{replies: make(chan string, 4)}
}

func (f *fakePrompter) Prompt(ctx context.Context, message string) (string, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()

	select {
	case r := <-f.replies:
		return r, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (f *fakePrompter) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeGrabber struct {
	mu       sync.Mutex
	keyboard bool
	mouse    bool
}

func (f *fakeGrabber) GrabKeyboard(on bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.keyboard = on
	return nil
}

func (f *fakeGrabber) GrabMouse(on bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mouse = on
	return nil
}

func (f *fakeGrabber) state() (bool, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.keyboard, f.mouse
}

type harness struct {
	session   *Session
	clock     *clock.Fake
	scheduler *fakeScheduler
	surface   *fakeSurface
	config    *fakeConfig
	prompter  *fakePrompter
	grabber   *fakeGrabber
	attempts  chan ExitAttempt
}

func newHarness(t *testing.T, configure func(*settings.Settings)) *harness {
	t.Helper()
	st := settings.Defaults()
	if configure != nil {
		configure(&st)
	}
	h := &harness{
		clock:     clock.NewFake(time.Unix(1000, 0)),
		scheduler: &fakeScheduler{},
		surface:   &fakeSurface{},
		config:    &fakeConfig{st: st},
		prompter:  newFakePrompter(),
		grabber:   &fakeGrabber{},
		attempts:  make(chan ExitAttempt, 4),
	}
	h.session = New(h.scheduler, h.surface, h.config, h.prompter, h.clock,
		WithGrabber(h.grabber),
		WithExitAttemptHook(func(a ExitAttempt) { h.attempts <- a }),
		WithPromptTimeout(5*time.Second),
	)
	return h
}

func (h *harness) pressEscape() {
	for _, k := range input.EscapeCombination {
		h.session.OnKeyDown(k)
	}
}

func (h *harness) releaseEscape() {
	for _, k := range input.EscapeCombination {
		h.session.OnKeyUp(k)
	}
}

func (h *harness) waitAttempt(t *testing.T) ExitAttempt {
	t.Helper()
	select {
	case a := <-h.attempts:
		return a
	case <-time.After(5 * time.Second):
		t.Fatal("no exit attempt completed")
	}
	return ExitAttempt{}
}

func TestStartSessionEmptyPlaylist(t *testing.T) {
	h := newHarness(t, nil)
	h.scheduler.startErr = slideshow.ErrEmptyPlaylist

	if err := h.session.StartSession(); !errors.Is(err, slideshow.ErrEmptyPlaylist) {
		t.Fatalf("expected ErrEmptyPlaylist, got %v", err)
	}
	if h.session.Active() {
		t.Error("session should not be active")
	}
}

func TestStartStopSessionLocks(t *testing.T) {
	h := newHarness(t, func(s *settings.Settings) {
		s.KeyboardLockEnabled = true
		s.MouseLockEnabled = true
	})

	if err := h.session.StartSession(); err != nil {
		t.Fatal(err)
	}
	st := h.session.Status()
	if !st.Active || !st.Fullscreen || !st.KeyboardLocked || !st.MouseLocked || st.SessionID == "" {
		t.Fatalf("unexpected status after start: %+v", st)
	}
	if kbd, mouse := h.grabber.state(); !kbd || !mouse {
		t.Errorf("devices not grabbed: keyboard=%v mouse=%v", kbd, mouse)
	}

	h.session.StopSession()
	h.session.StopSession()

	st = h.session.Status()
	if st.Active || st.Fullscreen || st.KeyboardLocked || st.MouseLocked || st.Current != nil {
		t.Fatalf("unexpected status after stop: %+v", st)
	}
	if kbd, mouse := h.grabber.state(); kbd || mouse {
		t.Errorf("devices still grabbed: keyboard=%v mouse=%v", kbd, mouse)
	}
	if h.scheduler.stops != 1 {
		t.Errorf("scheduler stopped %d times, want 1", h.scheduler.stops)
	}
}

func TestStartSessionTwiceIsNoop(t *testing.T) {
	h := newHarness(t, nil)
	if err := h.session.StartSession(); err != nil {
		t.Fatal(err)
	}
	id := h.session.ID()
	if h.scheduler.sessionID != id {
		t.Errorf("scheduler started for %q, session is %q", h.scheduler.sessionID, id)
	}
	if err := h.session.StartSession(); err != nil {
		t.Fatal(err)
	}
	if h.scheduler.starts != 1 || h.session.ID() != id {
		t.Errorf("second start restarted the session: starts=%d", h.scheduler.starts)
	}
}

func TestLockRequiresActiveSession(t *testing.T) {
	h := newHarness(t, nil)
	if err := h.session.LockKeyboard(); !errors.Is(err, ErrNotActive) {
		t.Errorf("LockKeyboard: expected ErrNotActive, got %v", err)
	}
	if err := h.session.LockMouse(); !errors.Is(err, ErrNotActive) {
		t.Errorf("LockMouse: expected ErrNotActive, got %v", err)
	}
}

func TestEscapeWithoutPasswordExitsImmediately(t *testing.T) {
	h := newHarness(t, func(s *settings.Settings) { s.KeyboardLockEnabled = true })
	if err := h.session.StartSession(); err != nil {
		t.Fatal(err)
	}

	h.pressEscape()
	a := h.waitAttempt(t)

	if a.Outcome != OutcomeNoPassword || a.Err != nil {
		t.Errorf("attempt = %+v", a)
	}
	if h.prompter.Calls() != 0 {
		t.Errorf("prompted %d times without a master password", h.prompter.Calls())
	}
	if h.session.Active() {
		t.Error("session still active after exit")
	}
	if st := h.session.Status(); st.KeyboardLocked {
		t.Error("keyboard still locked after exit")
	}
}

func TestPartialEscapeDoesNotChallenge(t *testing.T) {
	h := newHarness(t, nil)
	if err := h.session.StartSession(); err != nil {
		t.Fatal(err)
	}

	h.session.OnKeyDown(input.KeyCtrl)
	h.session.OnKeyDown(input.KeyAlt)
	h.session.OnKeyDown(input.KeyShift)
	h.session.OnKeyUp(input.KeyShift)
	h.session.OnKeyDown(input.KeyEsc)

	if st := h.session.Status(); st.Challenging {
		t.Fatal("challenge started without the full combination held")
	}
	if !h.session.Active() {
		t.Fatal("session stopped")
	}
}

func TestEscapeChallengeOncePerAcquisition(t *testing.T) {
	h := newHarness(t, func(s *settings.Settings) { s.KeyboardLockEnabled = true })
	h.config.setPassword("secret")
	if err := h.session.StartSession(); err != nil {
		t.Fatal(err)
	}

	h.pressEscape()
	if !h.session.Status().Challenging {
		t.Fatal("full combination should start a challenge")
	}
	if kbd, _ := h.grabber.state(); kbd {
		t.Error("keyboard should be released while prompting")
	}

	// repeats of an already satisfied combination do not start another challenge
	h.session.OnKeyDown(input.KeyEsc)
	h.session.OnKeyDown(input.KeyCtrl)

	h.prompter.replies <- "wrong"
	a := h.waitAttempt(t)
	if a.Outcome != OutcomeDenied || !errors.Is(a.Err, ErrAccessDenied) {
		t.Fatalf("attempt = %+v", a)
	}
	if h.prompter.Calls() != 1 {
		t.Fatalf("prompted %d times, want 1", h.prompter.Calls())
	}
	if !h.session.Active() {
		t.Fatal("denied exit must not stop the session")
	}
	if kbd, _ := h.grabber.state(); !kbd {
		t.Error("keyboard should be grabbed again after a denied exit")
	}

	// pressed keys were cleared so a held key repeating does not complete the set
	h.session.OnKeyDown(input.KeyEsc)
	if h.session.Status().Challenging {
		t.Fatal("challenge retriggered without re-pressing the combination")
	}

	h.releaseEscape()
	h.pressEscape()
	h.prompter.replies <- "secret"
	a = h.waitAttempt(t)
	if a.Outcome != OutcomeGranted || a.Err != nil {
		t.Fatalf("attempt = %+v", a)
	}
	if h.session.Active() {
		t.Fatal("session still active after granted exit")
	}
	if h.prompter.Calls() != 2 {
		t.Errorf("prompted %d times, want 2", h.prompter.Calls())
	}
}

func TestEscapeWithBothSidesOfModifierHeld(t *testing.T) {
	h := newHarness(t, nil)
	h.config.setPassword("secret")
	if err := h.session.StartSession(); err != nil {
		t.Fatal(err)
	}

	h.session.OnKeyDown(input.KeyCtrl)
	h.session.OnKeyDown(input.KeyCtrlRight)
	// right ctrl is still held after the left one goes up
	h.session.OnKeyUp(input.KeyCtrl)
	h.session.OnKeyDown(input.KeyAlt)
	h.session.OnKeyDown(input.KeyShiftRight)
	h.session.OnKeyDown(input.KeyEsc)

	if !h.session.Status().Challenging {
		t.Fatal("combination held across both ctrl keys should start a challenge")
	}
	h.prompter.replies <- "secret"
	if a := h.waitAttempt(t); a.Outcome != OutcomeGranted {
		t.Fatalf("attempt = %+v", a)
	}
}

func TestEscapePromptTimeoutRelocks(t *testing.T) {
	h := newHarness(t, func(s *settings.Settings) { s.KeyboardLockEnabled = true })
	h.config.setPassword("secret")
	h.session.promptTimeout = 10 * time.Millisecond
	if err := h.session.StartSession(); err != nil {
		t.Fatal(err)
	}

	h.pressEscape()
	a := h.waitAttempt(t)
	if a.Outcome != OutcomeCanceled || !errors.Is(a.Err, ErrAccessDenied) || !errors.Is(a.Err, context.DeadlineExceeded) {
		t.Fatalf("attempt = %+v", a)
	}
	if !h.session.Active() {
		t.Fatal("an unanswered prompt must not stop the session")
	}
	if kbd, _ := h.grabber.state(); !kbd {
		t.Error("keyboard should be grabbed again after the prompt timed out")
	}
	if !h.session.OnKeyDown(input.KeyTab) {
		t.Error("locked keyboard should consume tab again after the prompt")
	}
}

func TestDefaultPromptTimeout(t *testing.T) {
	s := New(&fakeScheduler{}, &fakeSurface{}, &fakeConfig{st: settings.Defaults()}, nil, clock.NewFake(time.Unix(0, 0)))
	if s.promptTimeout > 30*time.Second {
		t.Errorf("prompt timeout %s leaves the keyboard ungrabbed too long", s.promptTimeout)
	}
}

func TestEscapeIgnoredWhenInactive(t *testing.T) {
	h := newHarness(t, nil)
	h.pressEscape()
	if h.session.Status().Challenging {
		t.Fatal("challenge started without a session")
	}
}

func TestKeyboardLockConsumesNonEscapeKeys(t *testing.T) {
	h := newHarness(t, func(s *settings.Settings) { s.KeyboardLockEnabled = true })
	if err := h.session.StartSession(); err != nil {
		t.Fatal(err)
	}

	if !h.session.OnKeyDown(input.Key("key30")) {
		t.Error("locked keyboard should consume ordinary keys")
	}
	if !h.session.OnKeyUp(input.Key("key30")) {
		t.Error("locked keyboard should consume ordinary key releases")
	}
	for _, k := range input.EscapeCombination {
		if h.session.OnKeyDown(k) {
			t.Errorf("escape key %q was consumed", k)
		}
		h.session.OnKeyUp(k)
	}

	if !h.session.Status().Fullscreen {
		t.Error("locked keystrokes should not count as activity")
	}

	h.session.UnlockKeyboard()
	if h.session.OnKeyDown(input.Key("key30")) {
		t.Error("unlocked keyboard should not consume keys")
	}
}

func TestActivityHidesAndInactivityRestores(t *testing.T) {
	h := newHarness(t, func(s *settings.Settings) { s.InactivityTimeout = 30 })
	if err := h.session.StartSession(); err != nil {
		t.Fatal(err)
	}

	h.session.OnKeyDown(input.KeySpace)
	h.session.OnKeyUp(input.KeySpace)

	st := h.session.Status()
	if st.Fullscreen || h.surface.visible {
		t.Fatal("activity should hide fullscreen")
	}
	if h.scheduler.interrupts != 1 {
		t.Errorf("interrupts = %d, want 1", h.scheduler.interrupts)
	}

	h.clock.Advance(10 * time.Second)
	for i := 0; i < 5; i++ {
		h.session.OnMouseActivity()
	}
	if n := h.clock.Pending(); n != 1 {
		t.Fatalf("expected one inactivity watch, got %d", n)
	}
	if h.surface.hides != 1 || h.scheduler.interrupts != 1 {
		t.Errorf("repeated activity re-hid the surface: hides=%d interrupts=%d", h.surface.hides, h.scheduler.interrupts)
	}

	h.clock.Advance(29 * time.Second)
	if h.session.Status().Fullscreen {
		t.Fatal("returned to fullscreen before the timeout measured from the last activity")
	}

	h.clock.Advance(time.Second)
	if !h.session.Status().Fullscreen || !h.surface.visible {
		t.Fatal("expected fullscreen after inactivity timeout")
	}
	if h.scheduler.resumes != 1 {
		t.Errorf("resumes = %d, want 1", h.scheduler.resumes)
	}
	if n := h.clock.Pending(); n != 0 {
		t.Errorf("watch still armed after returning to fullscreen: %d", n)
	}
}

func TestKeepPlayingOnActivity(t *testing.T) {
	h := newHarness(t, func(s *settings.Settings) { s.KeepPlayingOnActivity = true })
	if err := h.session.StartSession(); err != nil {
		t.Fatal(err)
	}

	h.session.RecordActivity()
	if h.session.Status().Fullscreen {
		t.Fatal("activity should hide fullscreen")
	}
	if h.scheduler.interrupts != 0 {
		t.Errorf("playback interrupted %d times", h.scheduler.interrupts)
	}
}

func TestMouseLockConsumesMouse(t *testing.T) {
	h := newHarness(t, func(s *settings.Settings) { s.MouseLockEnabled = true })
	if err := h.session.StartSession(); err != nil {
		t.Fatal(err)
	}

	if !h.session.OnMouseActivity() {
		t.Error("locked mouse activity should be consumed")
	}
	if !h.session.Status().Fullscreen {
		t.Error("locked mouse activity counted as activity")
	}

	h.session.UnlockMouse()
	if h.session.OnMouseActivity() {
		t.Error("unlocked mouse activity should pass through")
	}
	if h.session.Status().Fullscreen {
		t.Error("unlocked mouse activity should hide fullscreen")
	}
}

func TestStopCancelsInactivityWatch(t *testing.T) {
	h := newHarness(t, nil)
	if err := h.session.StartSession(); err != nil {
		t.Fatal(err)
	}
	h.session.RecordActivity()
	h.session.StopSession()

	if n := h.clock.Pending(); n != 0 {
		t.Fatalf("watch left armed after stop: %d", n)
	}
	h.clock.Advance(time.Minute)
	if h.surface.visible {
		t.Error("stopped session returned to fullscreen")
	}
}

func TestRestart(t *testing.T) {
	h := newHarness(t, nil)
	if err := h.session.Restart(); !errors.Is(err, ErrNotActive) {
		t.Fatalf("expected ErrNotActive, got %v", err)
	}

	if err := h.session.StartSession(); err != nil {
		t.Fatal(err)
	}
	if err := h.session.Restart(); err != nil {
		t.Fatal(err)
	}
	if h.scheduler.starts != 2 {
		t.Errorf("starts = %d", h.scheduler.starts)
	}

	h.scheduler.startErr = slideshow.ErrEmptyPlaylist
	if err := h.session.Restart(); !errors.Is(err, slideshow.ErrEmptyPlaylist) {
		t.Fatalf("expected ErrEmptyPlaylist, got %v", err)
	}
	if h.session.Active() {
		t.Error("emptied playlist should end the session")
	}
}

func TestStopHookRunsOnStop(t *testing.T) {
	h := newHarness(t, nil)
	stopped := 0
	h.session.onStop = func() { stopped++ }

	if err := h.session.StartSession(); err != nil {
		t.Fatal(err)
	}
	h.session.StopSession()
	h.session.StopSession()
	if stopped != 1 {
		t.Errorf("stop hook ran %d times", stopped)
	}
}

type recordingPresenter struct {
	mu    sync.Mutex
	shown []string
}

func (p *recordingPresenter) Show(e content.Entry) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.shown = append(p.shown, e.Name)
	return nil
}

func (p *recordingPresenter) Clear() error { return nil }

func (p *recordingPresenter) ShowFullscreen() error { return nil }

func (p *recordingPresenter) HideFullscreen() error { return nil }

type nopLauncher struct{}

func (nopLauncher) Launch(e content.Entry) (string, error) { return "h", nil }
func (nopLauncher) OpenURL(e content.Entry) error          { return nil }
func (nopLauncher) Terminate(handle string) error          { return nil }

type playlist []content.Entry

func (p playlist) Entries() []content.Entry { return p }

func TestSessionPlaysAndWraps(t *testing.T) {
	clk := clock.NewFake(time.Unix(0, 0))
	presenter := &recordingPresenter{}
	entries := playlist{
		{Kind: content.KindPhoto, Name: "A", Path: "/a.jpg", Duration: 5},
		{Kind: content.KindVideo, Name: "B", Path: "/b.mp4", Duration: 30},
	}
	sched := slideshow.NewScheduler(entries, presenter, nopLauncher{}, clk)
	cfg := &fakeConfig{st: settings.Defaults()}
	s := New(sched, presenter, cfg, nil, clk)

	if err := s.StartSession(); err != nil {
		t.Fatal(err)
	}
	clk.Advance(5 * time.Second)
	clk.Advance(30 * time.Second)

	want := []string{"A", "B", "A"}
	if len(presenter.shown) != len(want) {
		t.Fatalf("shown %v, want %v", presenter.shown, want)
	}
	for i := range want {
		if presenter.shown[i] != want[i] {
			t.Fatalf("shown %v, want %v", presenter.shown, want)
		}
	}
	if st := s.Status(); st.Position != 0 || st.Current == nil || st.Current.Name != "A" {
		t.Errorf("status = %+v", st)
	}

	s.StopSession()
	if sched.Phase() != slideshow.PhaseIdle {
		t.Errorf("scheduler phase %s after stop", sched.Phase())
	}
}
