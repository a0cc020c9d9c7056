// Package models tracks all api models for request and responses
package models

import (
	"time"

	"github.com/aouyang1/demomode/content"
	"github.com/aouyang1/demomode/store"
)

// MasterPasswordHeader carries the master password on protected requests.
const MasterPasswordHeader = "X-Master-Password"

type StatusResponse struct {
	SessionID      string         `json:"session_id,omitempty"`
	Active         bool           `json:"active"`
	Fullscreen     bool           `json:"fullscreen"`
	KeyboardLocked bool           `json:"keyboard_locked"`
	MouseLocked    bool           `json:"mouse_locked"`
	Challenging    bool           `json:"challenging"`
	LastActivity   time.Time      `json:"last_activity"`
	Position       int            `json:"position,omitempty"` // 1-based, 0 when idle
	Current        *content.Entry `json:"current,omitempty"`
	ContentCount   int            `json:"content_count"`
}

type ContentListResponse struct {
	Content []content.Entry `json:"content"`
	Total   int             `json:"total"`
}

type AddContentRequest struct {
	Type       string `json:"type"`
	Path       string `json:"path"`
	Name       string `json:"name"`
	Duration   int    `json:"duration"`
	LaunchMode string `json:"launch_mode"`
}

type AddContentResponse struct {
	Position int           `json:"position"`
	Entry    content.Entry `json:"entry"`
	Message  string        `json:"message"`
}

type RemoveContentResponse struct {
	Entry   content.Entry `json:"entry"`
	Message string        `json:"message"`
}

type ImportResponse struct {
	Total   int    `json:"total"`
	Message string `json:"message"`
}

type SettingsResponse struct {
	HasMasterPassword     bool   `json:"has_master_password"`
	AutoStartDemo         bool   `json:"auto_start_demo"`
	PhotoDuration         int    `json:"photo_duration"`
	VideoDuration         int    `json:"video_duration"`
	AppDuration           int    `json:"app_duration"`
	WebDuration           int    `json:"web_duration"`
	InactivityTimeout     int    `json:"inactivity_timeout"`
	KeyboardLockEnabled   bool   `json:"keyboard_lock_enabled"`
	MouseLockEnabled      bool   `json:"mouse_lock_enabled"`
	KeepPlayingOnActivity bool   `json:"keep_playing_on_activity"`
	ScheduleEnabled       bool   `json:"schedule_enabled"`
	ScheduleStart         string `json:"schedule_start"`
	ScheduleEnd           string `json:"schedule_end"`
}

// UpdateSettingsRequest is a partial update; nil fields are left unchanged.
type UpdateSettingsRequest struct {
	AutoStartDemo         *bool   `json:"auto_start_demo"`
	PhotoDuration         *int    `json:"photo_duration"`
	VideoDuration         *int    `json:"video_duration"`
	AppDuration           *int    `json:"app_duration"`
	WebDuration           *int    `json:"web_duration"`
	InactivityTimeout     *int    `json:"inactivity_timeout"`
	KeyboardLockEnabled   *bool   `json:"keyboard_lock_enabled"`
	MouseLockEnabled      *bool   `json:"mouse_lock_enabled"`
	KeepPlayingOnActivity *bool   `json:"keep_playing_on_activity"`
	ScheduleEnabled       *bool   `json:"schedule_enabled"`
	ScheduleStart         *string `json:"schedule_start"`
	ScheduleEnd           *string `json:"schedule_end"`
	MasterPassword        *string `json:"master_password"`
}

type HistoryResponse struct {
	Plays        []store.Play        `json:"plays"`
	Counts       []store.PlayCount   `json:"counts"`
	ExitAttempts []store.ExitAttempt `json:"exit_attempts"`
}

type DisplayStateResponse struct {
	Enabled bool `json:"enabled"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
