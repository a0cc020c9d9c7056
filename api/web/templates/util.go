// Package templates renders the status page of the control api. The markup lives in status.templ;
// run templ generate after changing it.
package templates

import (
	"fmt"
	"time"

	"github.com/aouyang1/demomode/api/models"
	"github.com/aouyang1/demomode/content"
	"github.com/aouyang1/demomode/store"
)

type StatusView struct {
	Status  models.StatusResponse
	Content []content.Entry
	Plays   []store.Play
}

func deleteURL(position int) string {
	return fmt.Sprintf("/content/%d", position)
}

func durationLabel(e content.Entry) string {
	return (time.Duration(e.Duration) * time.Second).String()
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func timeLabel(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}

func nowPlaying(st models.StatusResponse) string {
	return fmt.Sprintf("%d. %s", st.Position, st.Current.Name)
}

// isPlaying reports whether the one-based position is the entry on screen.
func isPlaying(st models.StatusResponse, position int) bool {
	return st.Current != nil && st.Position == position
}
