// Package settings persists the demo configuration and the master password hash
package settings

import (
	"time"

	"github.com/aouyang1/demomode/content"
)

const (
	defaultPhotoDuration     = 5
	defaultVideoDuration     = 30
	defaultAppDuration       = 30
	defaultWebDuration       = 30
	defaultInactivityTimeout = 30
)

// Settings mirrors the JSON settings file.
type Settings struct {
	MasterPasswordHash    *string         `json:"master_password_hash"`
	AutoStartDemo         bool            `json:"auto_start_demo"`
	PhotoDuration         int             `json:"photo_duration"`
	VideoDuration         int             `json:"video_duration"`
	AppDuration           int             `json:"app_duration"`
	WebDuration           int             `json:"web_duration"`
	InactivityTimeout     int             `json:"inactivity_timeout"`
	KeyboardLockEnabled   bool            `json:"keyboard_lock_enabled"`
	MouseLockEnabled      bool            `json:"mouse_lock_enabled"`
	KeepPlayingOnActivity bool            `json:"keep_playing_on_activity"`
	ScheduleEnabled       bool            `json:"schedule_enabled"`
	ScheduleStart         string          `json:"schedule_start"`
	ScheduleEnd           string          `json:"schedule_end"`
	DemoContent           []content.Entry `json:"demo_content"`
}

// Defaults is the documented fallback used for a missing or corrupt settings file.
func Defaults() Settings {
	return Settings{
		PhotoDuration:     defaultPhotoDuration,
		VideoDuration:     defaultVideoDuration,
		AppDuration:       defaultAppDuration,
		WebDuration:       defaultWebDuration,
		InactivityTimeout: defaultInactivityTimeout,
		ScheduleStart:     "09:00",
		ScheduleEnd:       "21:00",
		DemoContent:       []content.Entry{},
	}
}

// HasMasterPassword reports whether exits must be password protected.
func (s Settings) HasMasterPassword() bool {
	return s.MasterPasswordHash != nil && *s.MasterPasswordHash != ""
}

func (s Settings) InactivityTimeoutDuration() time.Duration {
	secs := s.InactivityTimeout
	if secs <= 0 {
		secs = defaultInactivityTimeout
	}
	return time.Duration(secs) * time.Second
}

// DefaultDuration returns the duration in seconds used for entries added without one.
func (s Settings) DefaultDuration(k content.Kind) int {
	var secs, fallback int
	switch k {
	case content.KindPhoto:
		secs, fallback = s.PhotoDuration, defaultPhotoDuration
	case content.KindVideo:
		secs, fallback = s.VideoDuration, defaultVideoDuration
	case content.KindApplication:
		secs, fallback = s.AppDuration, defaultAppDuration
	case content.KindWeb:
		secs, fallback = s.WebDuration, defaultWebDuration
	default:
		return defaultAppDuration
	}
	if secs <= 0 {
		return fallback
	}
	return secs
}

func (s Settings) clone() Settings {
	c := s
	c.DemoContent = append([]content.Entry{}, s.DemoContent...)
	if s.MasterPasswordHash != nil {
		h := *s.MasterPasswordHash
		c.MasterPasswordHash = &h
	}
	return c
}
