package session

import "log/slog"

// RecordActivity marks user activity. An active fullscreen session leaves fullscreen and starts
// watching for inactivity.
func (s *Session) RecordActivity() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recordActivity()
}

// recordActivity must be called with s.mu held.
func (s *Session) recordActivity() {
	s.lastActivity = s.clock.Now()
	if !s.active {
		return
	}

	if s.fullscreen {
		s.fullscreen = false
		if err := s.surface.HideFullscreen(); err != nil {
			slog.Warn("unable to hide fullscreen surface", "error", err)
		}
		if !s.config.Settings().KeepPlayingOnActivity {
			s.scheduler.Interrupt()
		}
		slog.Info("user activity detected, leaving fullscreen", "session", s.id)
	}

	// later activity only moves lastActivity, the armed watch picks it up
	if s.watch == nil {
		s.armWatch()
	}
}

// armWatch must be called with s.mu held.
func (s *Session) armWatch() {
	gen := s.watchGen
	s.watch = s.clock.AfterFunc(inactivityCheckInterval, func() { s.checkInactivity(gen) })
}

// cancelWatch must be called with s.mu held.
func (s *Session) cancelWatch() {
	s.watchGen++
	if s.watch != nil {
		s.watch.Stop()
		s.watch = nil
	}
}

func (s *Session) checkInactivity(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.watchGen {
		return
	}
	s.watch = nil
	if !s.active || s.fullscreen {
		return
	}

	timeout := s.config.Settings().InactivityTimeoutDuration()
	idle := s.clock.Now().Sub(s.lastActivity)
	if idle < timeout {
		s.armWatch()
		return
	}

	s.fullscreen = true
	if err := s.surface.ShowFullscreen(); err != nil {
		slog.Warn("unable to show fullscreen surface", "error", err)
	}
	// no-op unless activity interrupted playback
	s.scheduler.Resume()
	slog.Info("inactivity timeout reached, returning to fullscreen", "session", s.id, "idle", idle)
}

// OnMouseActivity counts mouse input as activity unless the mouse is locked, in which case the
// event is consumed.
func (s *Session) OnMouseActivity() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active && s.mouseLocked {
		return true
	}
	s.recordActivity()
	return false
}
