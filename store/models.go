package store

import "time"

// Play is one dispatch of a playlist entry.
type Play struct {
	ID        int64     `json:"id"`
	SessionID string    `json:"session_id"`
	Position  int       `json:"position"`
	Kind      string    `json:"type"`
	Name      string    `json:"name"`
	Path      string    `json:"path"`
	StartedAt time.Time `json:"started_at"`
	Error     string    `json:"error,omitempty"`
}

// ExitAttempt is one escape combination challenge.
type ExitAttempt struct {
	ID        int64     `json:"id"`
	SessionID string    `json:"session_id"`
	At        time.Time `json:"at"`
	Outcome   string    `json:"outcome"`
	Error     string    `json:"error,omitempty"`
}

// PlayCount aggregates plays per entry.
type PlayCount struct {
	Name     string    `json:"name"`
	Kind     string    `json:"type"`
	Plays    int       `json:"plays"`
	Failures int       `json:"failures"`
	LastPlay time.Time `json:"last_play"`
}
