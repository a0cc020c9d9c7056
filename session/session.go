// Package session ties playback, activity tracking and input lockout into one demo session
package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/google/uuid"

	"github.com/aouyang1/demomode/clock"
	"github.com/aouyang1/demomode/content"
	"github.com/aouyang1/demomode/input"
	"github.com/aouyang1/demomode/settings"
)

var (
	ErrAccessDenied = errors.New("access denied")
	ErrNotActive    = errors.New("demo session is not active")
)

const (
	inactivityCheckInterval = time.Second
	defaultPromptTimeout    = 30 * time.Second
)

// Scheduler is the playback side of a session.
type Scheduler interface {
	Start(sessionID string) error
	Stop()
	Interrupt() bool
	Resume() bool
	Current() (int, content.Entry, bool)
}

// Surface is the fullscreen presentation that activity hides and inactivity brings back.
type Surface interface {
	ShowFullscreen() error
	HideFullscreen() error
}

// ConfigStore supplies live settings and verifies the master password.
type ConfigStore interface {
	Settings() settings.Settings
	Verify(password, hash string) bool
}

// Prompter asks the operator for the master password. It may block until ctx is done.
type Prompter interface {
	Prompt(ctx context.Context, message string) (string, error)
}

type Option func(*Session)

func WithGrabber(g input.Grabber) Option {
	return func(s *Session) { s.grabber = g }
}

// WithExitAttemptHook observes every completed exit challenge.
func WithExitAttemptHook(fn func(ExitAttempt)) Option {
	return func(s *Session) { s.onExitAttempt = fn }
}

// WithStopHook runs after every session stop, outside the session lock.
func WithStopHook(fn func()) Option {
	return func(s *Session) { s.onStop = fn }
}

func WithPromptTimeout(d time.Duration) Option {
	return func(s *Session) { s.promptTimeout = d }
}

// Session is the single demo session of the process. One mutex guards the session state, the
// activity tracker and the lock controller so decisions spanning them are atomic.
type Session struct {
	scheduler Scheduler
	surface   Surface
	config    ConfigStore
	prompter  Prompter
	clock     clock.Clock
	grabber   input.Grabber

	onExitAttempt func(ExitAttempt)
	onStop        func()
	promptTimeout time.Duration

	// serializes start and stop so the lifecycle never interleaves
	opMu sync.Mutex

	mu             sync.Mutex
	id             string
	active         bool
	fullscreen     bool
	keyboardLocked bool
	mouseLocked    bool
	pressed        mapset.Set[input.Key]
	escape         mapset.Set[input.Key]
	escapeArmed    bool
	challenging    bool
	lastActivity   time.Time
	watch          clock.Timer
	watchGen       uint64
}

func New(scheduler Scheduler, surface Surface, config ConfigStore, prompter Prompter, clk clock.Clock, opts ...Option) *Session {
	s := &Session{
		scheduler:     scheduler,
		surface:       surface,
		config:        config,
		prompter:      prompter,
		clock:         clk,
		promptTimeout: defaultPromptTimeout,
		pressed:       mapset.NewThreadUnsafeSet[input.Key](),
		escape:        mapset.NewThreadUnsafeSet(input.EscapeCombination...),
		escapeArmed:   true,
		lastActivity:  clk.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// StartSession begins playback and applies the configured locks. Starting an active session is a
// no-op.
func (s *Session) StartSession() error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	cfg := s.config.Settings()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active {
		return nil
	}

	if err := s.surface.ShowFullscreen(); err != nil {
		slog.Warn("unable to show fullscreen surface", "error", err)
	}
	id := uuid.NewString()
	if err := s.scheduler.Start(id); err != nil {
		return err
	}

	s.id = id
	s.active = true
	s.fullscreen = true
	s.lastActivity = s.clock.Now()
	s.pressed.Clear()
	s.escapeArmed = true
	s.challenging = false

	if cfg.KeyboardLockEnabled {
		s.lockKeyboard()
	}
	if cfg.MouseLockEnabled {
		s.lockMouse()
	}

	slog.Info("started demo session", "session", s.id, "keyboard_locked", s.keyboardLocked, "mouse_locked", s.mouseLocked)
	return nil
}

// StopSession unwinds locks, timers and playback. It is idempotent and always completes.
func (s *Session) StopSession() {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return
	}
	id := s.id
	s.unlockKeyboard()
	s.unlockMouse()
	s.cancelWatch()
	s.scheduler.Stop()
	s.active = false
	s.fullscreen = false
	s.mu.Unlock()

	if s.onStop != nil {
		s.onStop()
	}
	slog.Info("stopped demo session", "session", id)
}

// Restart replays the playlist from the first entry when the session is active. An emptied
// playlist ends the session.
func (s *Session) Restart() error {
	s.opMu.Lock()
	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		s.opMu.Unlock()
		return ErrNotActive
	}
	err := s.scheduler.Start(s.id)
	if err == nil {
		if !s.fullscreen && !s.config.Settings().KeepPlayingOnActivity {
			s.scheduler.Interrupt()
		}
		s.mu.Unlock()
		s.opMu.Unlock()
		slog.Info("restarted demo session", "session", s.id)
		return nil
	}
	s.mu.Unlock()
	s.opMu.Unlock()

	slog.Warn("unable to restart demo session, stopping", "error", err)
	s.StopSession()
	return err
}

// Active reports whether a session is running.
func (s *Session) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// ID returns the identifier of the running session or "" when idle.
func (s *Session) ID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.active {
		return ""
	}
	return s.id
}

// Status is a point-in-time snapshot of the session.
type Status struct {
	SessionID      string
	Active         bool
	Fullscreen     bool
	KeyboardLocked bool
	MouseLocked    bool
	Challenging    bool
	LastActivity   time.Time
	Position       int
	Current        *content.Entry
}

func (s *Session) Status() Status {
	s.mu.Lock()
	st := Status{
		Active:         s.active,
		Fullscreen:     s.fullscreen,
		KeyboardLocked: s.keyboardLocked,
		MouseLocked:    s.mouseLocked,
		Challenging:    s.challenging,
		LastActivity:   s.lastActivity,
	}
	if s.active {
		st.SessionID = s.id
	}
	s.mu.Unlock()

	if pos, e, ok := s.scheduler.Current(); ok && st.Active {
		st.Position = pos
		st.Current = &e
	}
	return st
}
