package api

import (
	"context"
	"log/slog"
	"time"

	"github.com/aouyang1/demomode/slideshow"
	"github.com/aouyang1/demomode/store"
)

const (
	historyRetention     = 90 * 24 * time.Hour
	historyPruneInterval = 24 * time.Hour
	historyBuffer        = 64
)

// HistoryManager records every slideshow dispatch in the play history and prunes old rows.
// Dispatches are queued so the database is never written from the timer path. Each play is filed
// under the session carried by its dispatch.
type HistoryManager struct {
	db        *store.Database
	retention time.Duration

	plays chan slideshow.Dispatch
}

func NewHistoryManager(db *store.Database) *HistoryManager {
	return &HistoryManager{
		db:        db,
		retention: historyRetention,
		plays:     make(chan slideshow.Dispatch, historyBuffer),
	}
}

// Observe is the slideshow dispatch hook.
func (h *HistoryManager) Observe(d slideshow.Dispatch) {
	select {
	case h.plays <- d:
	default:
		slog.Warn("play history queue full, dropping play", "name", d.Entry.Name)
	}
}

func (h *HistoryManager) Updates() <-chan bool {
	return nil
}

func (h *HistoryManager) Run(ctx context.Context) {
	ticker := time.NewTicker(historyPruneInterval)
	defer ticker.Stop()

	h.prune(time.Now())

	for {
		select {
		case <-ctx.Done():
			return
		case d := <-h.plays:
			h.record(d)
		case now := <-ticker.C:
			h.prune(now)
		}
	}
}

func (h *HistoryManager) record(d slideshow.Dispatch) {
	p := store.Play{
		SessionID: d.SessionID,
		Position:  d.Position + 1,
		Kind:      string(d.Entry.Kind),
		Name:      d.Entry.Name,
		Path:      d.Entry.Path,
		StartedAt: d.At,
	}
	if d.Err != nil {
		p.Error = d.Err.Error()
	}
	if err := h.db.RecordPlay(p); err != nil {
		slog.Warn("unable to record play", "name", p.Name, "error", err)
	}
}

func (h *HistoryManager) prune(now time.Time) {
	n, err := h.db.Prune(now.Add(-h.retention))
	if err != nil {
		slog.Warn("unable to prune play history", "error", err)
		return
	}
	if n > 0 {
		slog.Info("pruned play history", "rows", n)
	}
}
