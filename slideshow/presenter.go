package slideshow

import (
	"fmt"
	"log/slog"
	"os/exec"
	"sync"

	"github.com/aouyang1/demomode/content"
)

const (
	DefaultViewer      = "/usr/bin/imv-wayland"
	DefaultVideoPlayer = "mpv"
)

// ViewerPresenter shows photos with imv and videos with mpv, one fullscreen process at a time.
// Hiding kills the process but remembers the entry so it can be shown again.
type ViewerPresenter struct {
	viewer string
	player string

	mu      sync.Mutex
	cmd     *exec.Cmd
	current *content.Entry
	hidden  bool
}

func NewViewerPresenter(viewer, player string) *ViewerPresenter {
	if viewer == "" {
		viewer = DefaultViewer
	}
	if player == "" {
		player = DefaultVideoPlayer
	}
	return &ViewerPresenter{viewer: viewer, player: player}
}

func (p *ViewerPresenter) Show(e content.Entry) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.kill()
	p.current = &e
	if p.hidden {
		return nil
	}
	return p.start(e)
}

func (p *ViewerPresenter) Clear() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.kill()
	p.current = nil
	return nil
}

// HideFullscreen takes the surface down while keeping the current entry.
func (p *ViewerPresenter) HideFullscreen() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.hidden = true
	p.kill()
	return nil
}

// ShowFullscreen brings the surface back with the last shown entry.
func (p *ViewerPresenter) ShowFullscreen() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.hidden = false
	if p.current == nil || p.cmd != nil {
		return nil
	}
	return p.start(*p.current)
}

func (p *ViewerPresenter) command(e content.Entry) (*exec.Cmd, error) {
	switch e.Kind {
	case content.KindPhoto:
		return exec.Command(p.viewer, "-f", "-s", "full", e.Path), nil
	case content.KindVideo:
		return exec.Command(p.player, "--fs", "--really-quiet", "--loop-file=inf", e.Path), nil
	}
	return nil, fmt.Errorf("presenter cannot show %s content", e.Kind)
}

// start must be called with p.mu held.
func (p *ViewerPresenter) start(e content.Entry) error {
	cmd, err := p.command(e)
	if err != nil {
		return err
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start %s: %w", cmd.Path, err)
	}
	p.cmd = cmd

	// reap the process whenever it exits
	go func() { _ = cmd.Wait() }()

	slog.Debug("started viewer", "cmd", cmd.Path, "path", e.Path)
	return nil
}

// kill must be called with p.mu held.
func (p *ViewerPresenter) kill() {
	if p.cmd == nil {
		return
	}
	if p.cmd.Process != nil {
		if err := p.cmd.Process.Kill(); err != nil {
			slog.Debug("viewer not running or already killed", "error", err)
		}
	}
	p.cmd = nil
}
