// Package content holds the ordered demo playlist and its persistence
package content

import (
	"fmt"
	"strings"
	"time"
)

type Kind string

const (
	KindPhoto       Kind = "photo"
	KindVideo       Kind = "video"
	KindApplication Kind = "application"
	KindWeb         Kind = "web"
)

func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindPhoto, KindVideo, KindApplication, KindWeb:
		return k, nil
	}
	return "", fmt.Errorf("%w: unknown type %q", ErrInvalidEntry, s)
}

// LaunchMode only applies to application entries.
type LaunchMode string

const (
	LaunchDesktop LaunchMode = "desktop"
	LaunchWeb     LaunchMode = "web"
)

func ParseLaunchMode(s string) (LaunchMode, error) {
	switch m := LaunchMode(strings.ToLower(strings.TrimSpace(s))); m {
	case LaunchDesktop, LaunchWeb:
		return m, nil
	}
	return "", fmt.Errorf("%w: unknown launch mode %q", ErrInvalidEntry, s)
}

// Entry is one item of the demo playlist. The JSON layout is shared by the settings file and
// export files.
type Entry struct {
	Kind       Kind       `json:"type"`
	Path       string     `json:"path"`
	Name       string     `json:"name"`
	Duration   int        `json:"duration"`
	LaunchMode LaunchMode `json:"launch_mode,omitempty"`
	AddedDate  string     `json:"added_date,omitempty"`
}

// Length is the entry's configured presentation time.
func (e Entry) Length() time.Duration {
	return time.Duration(e.Duration) * time.Second
}

// OpensInBrowser reports whether the entry is handed to a browser rather than a presenter or a
// desktop process.
func (e Entry) OpensInBrowser() bool {
	return e.Kind == KindWeb || (e.Kind == KindApplication && e.LaunchMode == LaunchWeb)
}

func (e Entry) String() string {
	return fmt.Sprintf("%s (%s, %ds)", e.Name, e.Kind, e.Duration)
}
