package api

import (
	"context"
	"log/slog"
	"time"

	"github.com/aouyang1/demomode/settings"
)

const (
	scheduleInterval = time.Minute
	scheduleLayout   = "15:04"
)

type sessionController interface {
	StartSession() error
	StopSession()
	Active() bool
}

// Display powers the kiosk screen.
type Display interface {
	Enabled() (bool, error)
	SetEnabled(enabled bool) error
}

// ScheduleManager will periodically check the time to decide if the demo should start or stop,
// and turns the display on or off with it when one is configured. It only acts when crossing a
// window boundary so a session started or stopped by staff is left alone until the next boundary.
type ScheduleManager struct {
	settings *settings.Store
	session  sessionController
	display  Display
	now      func() time.Time

	checked  bool
	inWindow bool
}

// NewScheduleManager creates the manager; disp may be nil.
func NewScheduleManager(st *settings.Store, sess sessionController, disp Display) *ScheduleManager {
	return &ScheduleManager{
		settings: st,
		session:  sess,
		display:  disp,
		now:      time.Now,
	}
}

func (s *ScheduleManager) Updates() <-chan bool {
	return nil
}

// withinWindow reports whether now falls in [start, end). A window whose end precedes its start
// runs overnight.
func withinWindow(now time.Time, start, end string) (bool, error) {
	startTime, err := time.Parse(scheduleLayout, start)
	if err != nil {
		return false, err
	}
	endTime, err := time.Parse(scheduleLayout, end)
	if err != nil {
		return false, err
	}

	minute := now.Hour()*60 + now.Minute()
	startMinute := startTime.Hour()*60 + startTime.Minute()
	endMinute := endTime.Hour()*60 + endTime.Minute()

	if startMinute <= endMinute {
		return minute >= startMinute && minute < endMinute, nil
	}
	return minute >= startMinute || minute < endMinute, nil
}

func (s *ScheduleManager) checkSchedule() {
	st := s.settings.Settings()
	if !st.ScheduleEnabled {
		s.checked = false
		return
	}

	now := s.now()
	in, err := withinWindow(now, st.ScheduleStart, st.ScheduleEnd)
	if err != nil {
		slog.Warn("schedule with invalid format", "start", st.ScheduleStart, "end", st.ScheduleEnd, "error", err)
		return
	}

	crossed := !s.checked || in != s.inWindow
	s.checked = true
	s.inWindow = in
	if !crossed {
		return
	}

	if s.display != nil {
		if err := s.display.SetEnabled(in); err != nil {
			slog.Warn("issue while switching display for schedule", "on", in, "error", err)
		} else {
			slog.Info("switched display for schedule", "on", in, "time", now)
		}
	}

	// crossed into the schedule - start the demo
	if in && !s.session.Active() {
		if err := s.session.StartSession(); err != nil {
			slog.Warn("issue while starting demo for schedule", "error", err)
		} else {
			slog.Info("starting demo for schedule", "time", now)
		}
		return
	}

	// crossed out of the schedule - stop the demo
	if !in && s.session.Active() {
		s.session.StopSession()
		slog.Info("stopping demo for schedule", "time", now)
	}
}

func (s *ScheduleManager) Run(ctx context.Context) {
	ticker := time.NewTicker(scheduleInterval)
	defer ticker.Stop()

	s.checkSchedule()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.checkSchedule()
		}
	}
}
