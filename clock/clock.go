// Package clock provides the timer abstraction used by playback and inactivity tracking
package clock

import "time"

// Clock schedules one-shot callbacks.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, fn func()) Timer
}

// Timer is a handle to a scheduled callback.
//
// Stop reports true when the callback was canceled before it started. A false return means the
// callback already fired (or is firing concurrently), so callers must guard the callback body with
// their own state rather than trusting Stop alone.
type Timer interface {
	Stop() bool
}

type realClock struct{}

// New returns a Clock backed by the time package.
func New() Clock {
	return realClock{}
}

func (realClock) Now() time.Time {
	return time.Now()
}

func (realClock) AfterFunc(d time.Duration, fn func()) Timer {
	return time.AfterFunc(d, fn)
}
