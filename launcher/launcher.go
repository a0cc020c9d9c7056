// Package launcher runs application and web playlist entries as external processes
package launcher

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/aouyang1/demomode/clock"
	"github.com/aouyang1/demomode/content"
)

const (
	DefaultOpener      = "xdg-open"
	DefaultGracePeriod = 5 * time.Second
)

var (
	ErrLaunchFailure = errors.New("launch failure")
	ErrUnknownHandle = errors.New("unknown launch handle")
)

var kioskBrowsers = []string{"chromium", "chromium-browser", "google-chrome", "google-chrome-stable"}

// FindKioskBrowser returns the first chromium-style browser on PATH, or "" if none is installed.
func FindKioskBrowser() string {
	for _, name := range kioskBrowsers {
		if p, err := exec.LookPath(name); err == nil {
			return p
		}
	}
	return ""
}

type process struct {
	handle string
	name   string
	cmd    *exec.Cmd
	done   chan struct{}
	timer  clock.Timer
}

type Option func(*Launcher)

// WithKioskBrowser opens web entries in a tracked fullscreen browser instead of the desktop
// default.
func WithKioskBrowser(path string) Option {
	return func(l *Launcher) { l.browser = path }
}

func WithOpener(cmd string) Option {
	return func(l *Launcher) { l.opener = cmd }
}

func WithGracePeriod(d time.Duration) Option {
	return func(l *Launcher) { l.grace = d }
}

// Launcher owns every process it starts. Each one is bounded by its entry duration: it gets
// SIGTERM when the duration elapses and is killed if still running after the grace period.
type Launcher struct {
	clock   clock.Clock
	browser string
	opener  string
	grace   time.Duration
	dataDir string

	mu    sync.Mutex
	procs map[string]*process
}

func New(clk clock.Clock, opts ...Option) *Launcher {
	l := &Launcher{
		clock:   clk,
		opener:  DefaultOpener,
		grace:   DefaultGracePeriod,
		dataDir: filepath.Join(os.TempDir(), "demomode-kiosk"),
		procs:   make(map[string]*process),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Launch starts a desktop application and returns its handle.
func (l *Launcher) Launch(e content.Entry) (string, error) {
	if e.Path == "" {
		return "", fmt.Errorf("%w: %s has no path", ErrLaunchFailure, e.Name)
	}
	path, err := exec.LookPath(e.Path)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrLaunchFailure, err)
	}
	return l.track(e, exec.Command(path))
}

// OpenURL shows a web entry. With a kiosk browser the window is tracked and closed after the
// entry duration. Otherwise the URL is handed to the desktop opener and nothing is tracked: a tab
// in the user's default browser cannot be closed reliably.
func (l *Launcher) OpenURL(e content.Entry) error {
	if e.Path == "" {
		return fmt.Errorf("%w: %s has no url", ErrLaunchFailure, e.Name)
	}

	if l.browser != "" {
		cmd := exec.Command(l.browser,
			"--kiosk",
			"--noerrdialogs",
			"--disable-infobars",
			"--no-first-run",
			"--user-data-dir="+l.dataDir,
			e.Path,
		)
		_, err := l.track(e, cmd)
		return err
	}

	cmd := exec.Command(l.opener, e.Path)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrLaunchFailure, l.opener, err)
	}
	go func() { _ = cmd.Wait() }()
	slog.Info("opened url", "url", e.Path, "opener", l.opener)
	return nil
}

// Terminate stops the process behind handle. The handle is invalid afterwards.
func (l *Launcher) Terminate(handle string) error {
	l.mu.Lock()
	p, ok := l.procs[handle]
	if ok {
		delete(l.procs, handle)
	}
	l.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownHandle, handle)
	}
	l.stop(p)
	return nil
}

// TerminateAll stops every tracked process.
func (l *Launcher) TerminateAll() {
	l.mu.Lock()
	procs := make([]*process, 0, len(l.procs))
	for h, p := range l.procs {
		procs = append(procs, p)
		delete(l.procs, h)
	}
	l.mu.Unlock()

	for _, p := range procs {
		l.stop(p)
	}
}

// Running returns the number of tracked processes.
func (l *Launcher) Running() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.procs)
}

func (l *Launcher) track(e content.Entry, cmd *exec.Cmd) (string, error) {
	if err := cmd.Start(); err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrLaunchFailure, cmd.Path, err)
	}

	p := &process{
		handle: uuid.NewString(),
		name:   e.Name,
		cmd:    cmd,
		done:   make(chan struct{}),
	}

	l.mu.Lock()
	l.procs[p.handle] = p
	if e.Duration > 0 {
		p.timer = l.clock.AfterFunc(e.Length(), func() {
			if err := l.Terminate(p.handle); err == nil {
				slog.Debug("content duration elapsed", "name", p.name, "handle", p.handle)
			}
		})
	}
	l.mu.Unlock()

	go l.reap(p)

	slog.Info("launched content", "name", e.Name, "cmd", cmd.Path, "pid", cmd.Process.Pid, "handle", p.handle)
	return p.handle, nil
}

func (l *Launcher) reap(p *process) {
	err := p.cmd.Wait()
	close(p.done)

	l.mu.Lock()
	if l.procs[p.handle] == p {
		delete(l.procs, p.handle)
	}
	timer := p.timer
	l.mu.Unlock()

	if timer != nil {
		timer.Stop()
	}
	slog.Debug("content process exited", "name", p.name, "handle", p.handle, "error", err)
}

// stop sends SIGTERM and arms a kill after the grace period.
func (l *Launcher) stop(p *process) {
	l.mu.Lock()
	timer := p.timer
	l.mu.Unlock()
	if timer != nil {
		timer.Stop()
	}

	select {
	case <-p.done:
		return
	default:
	}

	if err := p.cmd.Process.Signal(syscall.SIGTERM); err != nil {
		slog.Debug("unable to signal content process", "name", p.name, "error", err)
	}
	l.clock.AfterFunc(l.grace, func() {
		select {
		case <-p.done:
		default:
			slog.Warn("content process ignored SIGTERM, killing", "name", p.name, "handle", p.handle)
			if err := p.cmd.Process.Kill(); err != nil {
				slog.Debug("unable to kill content process", "name", p.name, "error", err)
			}
		}
	})
}
