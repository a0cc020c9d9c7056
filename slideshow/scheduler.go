// Package slideshow cycles the demo playlist and drives the fullscreen presenter
package slideshow

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/aouyang1/demomode/clock"
	"github.com/aouyang1/demomode/content"
)

var ErrEmptyPlaylist = errors.New("playlist is empty")

// Presenter renders photos and videos on the fullscreen surface.
type Presenter interface {
	Show(e content.Entry) error
	Clear() error
}

// Launcher runs application and web entries. It owns the processes it starts and bounds them by
// the entry duration; the scheduler only keeps the opaque handle so it can terminate on stop.
type Launcher interface {
	Launch(e content.Entry) (string, error)
	OpenURL(e content.Entry) error
	Terminate(handle string) error
}

// Playlist supplies the entries to cycle through.
type Playlist interface {
	Entries() []content.Entry
}

type Phase int

const (
	PhaseIdle Phase = iota
	PhasePresenting
	PhaseInterrupted
)

func (p Phase) String() string {
	switch p {
	case PhasePresenting:
		return "presenting"
	case PhaseInterrupted:
		return "interrupted"
	default:
		return "idle"
	}
}

// Dispatch describes one hand-off of an entry to a collaborator. SessionID is the run the dispatch
// belongs to, as given to Start.
type Dispatch struct {
	SessionID string
	Position  int
	Entry     content.Entry
	At        time.Time
	Err       error
}

type Option func(*Scheduler)

// WithDispatchHook registers fn to observe every dispatch. fn runs without the scheduler lock.
func WithDispatchHook(fn func(Dispatch)) Option {
	return func(s *Scheduler) { s.onDispatch = fn }
}

// Scheduler presents each entry for its duration and advances modulo the playlist length until
// stopped. Timer callbacks carry the generation they were armed with and are ignored once the
// generation moves on, so a callback racing Stop or Interrupt has no effect.
type Scheduler struct {
	playlist  Playlist
	presenter Presenter
	launcher  Launcher
	clock     clock.Clock

	onDispatch func(Dispatch)

	mu         sync.Mutex
	phase      Phase
	sessionID  string
	entries    []content.Entry
	index      int
	gen        uint64
	timer      clock.Timer
	lastHandle string
}

func NewScheduler(playlist Playlist, presenter Presenter, launcher Launcher, clk clock.Clock, opts ...Option) *Scheduler {
	s := &Scheduler{
		playlist:  playlist,
		presenter: presenter,
		launcher:  launcher,
		clock:     clk,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start begins presenting from the first entry and tags every dispatch with sessionID. Calling
// Start while running restarts the cycle with the current playlist.
func (s *Scheduler) Start(sessionID string) error {
	entries := s.playlist.Entries()
	if len(entries) == 0 {
		return ErrEmptyPlaylist
	}

	s.mu.Lock()
	if s.phase != PhaseIdle {
		s.halt()
	}
	s.sessionID = sessionID
	s.entries = entries
	s.index = 0
	s.phase = PhasePresenting
	d := s.present()
	s.mu.Unlock()

	slog.Info("slideshow started", "session", sessionID, "entries", len(entries))
	s.notify(d)
	return nil
}

// Interrupt cancels the pending advance without moving the index.
func (s *Scheduler) Interrupt() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != PhasePresenting {
		return false
	}
	s.cancelTimer()
	s.phase = PhaseInterrupted
	slog.Debug("slideshow interrupted", "position", s.index)
	return true
}

// Resume re-arms the full duration of the current entry after Interrupt.
func (s *Scheduler) Resume() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != PhaseInterrupted {
		return false
	}
	s.phase = PhasePresenting
	s.arm(s.entries[s.index])
	slog.Debug("slideshow resumed", "position", s.index)
	return true
}

// Stop cancels playback, clears the presenter and terminates launched content. It is a no-op when
// already idle.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase == PhaseIdle {
		return
	}
	s.halt()
	slog.Info("slideshow stopped")
}

func (s *Scheduler) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// Current returns the zero-based position and entry being presented.
func (s *Scheduler) Current() (int, content.Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase == PhaseIdle || len(s.entries) == 0 {
		return 0, content.Entry{}, false
	}
	return s.index, s.entries[s.index], true
}

func (s *Scheduler) elapsed(gen uint64) {
	s.mu.Lock()
	if gen != s.gen || s.phase != PhasePresenting {
		s.mu.Unlock()
		return
	}
	s.index = (s.index + 1) % len(s.entries)
	d := s.present()
	s.mu.Unlock()

	s.notify(d)
}

// present must be called with s.mu held.
func (s *Scheduler) present() Dispatch {
	e := s.entries[s.index]
	d := Dispatch{SessionID: s.sessionID, Position: s.index, Entry: e, At: s.clock.Now()}

	d.Err = s.dispatch(e)
	if d.Err != nil {
		slog.Warn("unable to present content", "name", e.Name, "type", e.Kind, "error", d.Err)
	} else {
		slog.Info("presenting content", "name", e.Name, "type", e.Kind, "duration", e.Duration)
	}

	// a failed entry still occupies its slot so the cycle keeps moving
	s.arm(e)
	return d
}

// dispatch must be called with s.mu held.
func (s *Scheduler) dispatch(e content.Entry) error {
	switch {
	case e.Kind == content.KindPhoto || e.Kind == content.KindVideo:
		return s.presenter.Show(e)
	case e.OpensInBrowser():
		s.clearPresenter()
		return s.launcher.OpenURL(e)
	default:
		s.clearPresenter()
		handle, err := s.launcher.Launch(e)
		if err != nil {
			return err
		}
		s.lastHandle = handle
		return nil
	}
}

// arm must be called with s.mu held.
func (s *Scheduler) arm(e content.Entry) {
	s.cancelTimer()
	gen := s.gen
	s.timer = s.clock.AfterFunc(e.Length(), func() { s.elapsed(gen) })
}

// cancelTimer must be called with s.mu held.
func (s *Scheduler) cancelTimer() {
	s.gen++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

// halt must be called with s.mu held.
func (s *Scheduler) halt() {
	s.cancelTimer()
	s.phase = PhaseIdle
	s.entries = nil
	s.index = 0

	s.clearPresenter()
	if s.lastHandle != "" {
		if err := s.launcher.Terminate(s.lastHandle); err != nil {
			slog.Debug("launched content already gone", "handle", s.lastHandle, "error", err)
		}
		s.lastHandle = ""
	}
}

func (s *Scheduler) clearPresenter() {
	if err := s.presenter.Clear(); err != nil {
		slog.Warn("unable to clear presenter", "error", err)
	}
}

func (s *Scheduler) notify(d Dispatch) {
	if s.onDispatch != nil {
		s.onDispatch(d)
	}
}
