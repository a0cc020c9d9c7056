package session

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/aouyang1/demomode/input"
)

type Outcome string

const (
	OutcomeGranted    Outcome = "granted"
	OutcomeNoPassword Outcome = "no_password"
	OutcomeDenied     Outcome = "denied"
	OutcomeCanceled   Outcome = "canceled"
)

// ExitAttempt records one escape combination challenge.
type ExitAttempt struct {
	SessionID string
	At        time.Time
	Outcome   Outcome
	Err       error
}

const promptMessage = "Enter the master password to exit demo mode"

// OnKeyDown tracks the pressed key and starts an exit challenge when the escape combination is
// freshly completed. While the keyboard is locked every key outside the combination is consumed.
func (s *Session) OnKeyDown(k input.Key) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pressed.Add(k)
	if !s.active {
		return false
	}

	if s.escapeArmed && !s.challenging && s.escapeHeld() {
		s.escapeArmed = false
		s.challenging = true
		if s.keyboardLocked {
			// the prompt needs the keyboard
			s.grabKeyboard(false)
		}
		slog.Info("escape combination detected", "session", s.id)
		go s.challenge(s.id)
	}

	if !s.keyboardLocked {
		s.recordActivity()
	}
	return s.consumed(k)
}

// OnKeyUp releases the key. Releasing any key of the combination re-arms escape detection.
func (s *Session) OnKeyUp(k input.Key) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pressed.Remove(k)
	if s.escape.Contains(k.Base()) {
		s.escapeArmed = true
	}
	if !s.active {
		return false
	}
	return s.consumed(k)
}

// escapeHeld reports whether every key of the combination is down on at least one side. It must be
// called with s.mu held.
func (s *Session) escapeHeld() bool {
	held := mapset.NewThreadUnsafeSetWithSize[input.Key](s.pressed.Cardinality())
	s.pressed.Each(func(k input.Key) bool {
		held.Add(k.Base())
		return false
	})
	return held.IsSuperset(s.escape)
}

// consumed must be called with s.mu held.
func (s *Session) consumed(k input.Key) bool {
	return s.keyboardLocked && !s.challenging && !s.escape.Contains(k.Base())
}

func (s *Session) LockKeyboard() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.active {
		return ErrNotActive
	}
	s.lockKeyboard()
	return nil
}

func (s *Session) UnlockKeyboard() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unlockKeyboard()
}

func (s *Session) LockMouse() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.active {
		return ErrNotActive
	}
	s.lockMouse()
	return nil
}

func (s *Session) UnlockMouse() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unlockMouse()
}

// lockKeyboard must be called with s.mu held.
func (s *Session) lockKeyboard() {
	if s.keyboardLocked {
		return
	}
	s.keyboardLocked = true
	if !s.challenging {
		s.grabKeyboard(true)
	}
	slog.Info("keyboard locked", "session", s.id)
}

// unlockKeyboard must be called with s.mu held.
func (s *Session) unlockKeyboard() {
	if !s.keyboardLocked {
		return
	}
	s.keyboardLocked = false
	s.pressed.Clear()
	s.grabKeyboard(false)
	slog.Info("keyboard unlocked", "session", s.id)
}

// lockMouse must be called with s.mu held.
func (s *Session) lockMouse() {
	if s.mouseLocked {
		return
	}
	s.mouseLocked = true
	if s.grabber != nil {
		if err := s.grabber.GrabMouse(true); err != nil {
			slog.Warn("unable to grab mouse", "error", err)
		}
	}
	slog.Info("mouse locked", "session", s.id)
}

// unlockMouse must be called with s.mu held.
func (s *Session) unlockMouse() {
	if !s.mouseLocked {
		return
	}
	s.mouseLocked = false
	if s.grabber != nil {
		if err := s.grabber.GrabMouse(false); err != nil {
			slog.Warn("unable to release mouse", "error", err)
		}
	}
	slog.Info("mouse unlocked", "session", s.id)
}

// grabKeyboard must be called with s.mu held.
func (s *Session) grabKeyboard(on bool) {
	if s.grabber == nil {
		return
	}
	if err := s.grabber.GrabKeyboard(on); err != nil {
		slog.Warn("unable to change keyboard grab", "grab", on, "error", err)
	}
}

// challenge runs off the input path since the prompt blocks.
func (s *Session) challenge(id string) {
	attempt := ExitAttempt{SessionID: id, At: s.clock.Now()}
	cfg := s.config.Settings()

	switch {
	case !cfg.HasMasterPassword():
		attempt.Outcome = OutcomeNoPassword
	case s.prompter == nil:
		attempt.Outcome = OutcomeCanceled
		attempt.Err = fmt.Errorf("%w: no password prompt available", ErrAccessDenied)
	default:
		ctx, cancel := context.WithTimeout(context.Background(), s.promptTimeout)
		password, err := s.prompter.Prompt(ctx, promptMessage)
		cancel()

		switch {
		case err != nil:
			attempt.Outcome = OutcomeCanceled
			attempt.Err = fmt.Errorf("%w: %w", ErrAccessDenied, err)
		case s.config.Verify(password, *cfg.MasterPasswordHash):
			attempt.Outcome = OutcomeGranted
		default:
			attempt.Outcome = OutcomeDenied
			attempt.Err = ErrAccessDenied
		}
	}

	s.finishChallenge(attempt)
}

func (s *Session) finishChallenge(attempt ExitAttempt) {
	granted := attempt.Err == nil

	s.mu.Lock()
	current := s.active && s.id == attempt.SessionID
	s.challenging = false
	if !granted || !current {
		// the full combination has to be pressed again before the next attempt
		s.pressed.Clear()
		s.escapeArmed = true
		if s.keyboardLocked {
			s.grabKeyboard(true)
		}
	}
	s.mu.Unlock()

	if granted && current {
		slog.Info("exit granted", "session", attempt.SessionID, "outcome", attempt.Outcome)
		s.StopSession()
	} else if !granted {
		slog.Warn("exit refused", "session", attempt.SessionID, "outcome", attempt.Outcome, "error", attempt.Err)
	}

	if s.onExitAttempt != nil {
		s.onExitAttempt(attempt)
	}
}
