//go:build linux

package input

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/sys/unix"
)

// _IOW('E', 0x90, int)
const eviocgrab = 0x40044590

// EvdevDriver reads /dev/input event devices. Suppression is coarse: a grabbed device delivers
// events to this process only, so lock state is enforced by grabbing rather than per event.
type EvdevDriver struct {
	keyboardPath string
	mousePath    string

	mu       sync.Mutex
	keyboard *os.File
	mouse    *os.File
	wg       sync.WaitGroup
}

// NewEvdevDriver creates a driver for the given devices. Empty paths are discovered from
// /dev/input/by-id and /proc/bus/input/devices.
func NewEvdevDriver(keyboardPath, mousePath string) *EvdevDriver {
	return &EvdevDriver{keyboardPath: keyboardPath, mousePath: mousePath}
}

func (d *EvdevDriver) Start(h Handler) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	kbdPath := d.keyboardPath
	if kbdPath == "" {
		var err error
		if kbdPath, err = findDevice("kbd", "keyboard"); err != nil {
			return fmt.Errorf("failed to find keyboard device: %w", err)
		}
	}
	kbd, err := os.Open(kbdPath)
	if err != nil {
		return fmt.Errorf("failed to open keyboard device %s: %w (try running as root or add user to 'input' group)", kbdPath, err)
	}
	d.keyboard = kbd
	d.read(kbd, func(ev inputEvent) { dispatchKeyboard(h, ev) })
	slog.Info("listening for keyboard events", "device", kbdPath)

	mousePath := d.mousePath
	if mousePath == "" {
		mousePath, _ = findDevice("mouse", "touchpad")
	}
	if mousePath == "" {
		slog.Warn("no mouse device found, mouse activity will not be tracked")
		return nil
	}
	mouse, err := os.Open(mousePath)
	if err != nil {
		slog.Warn("failed to open mouse device", "device", mousePath, "error", err)
		return nil
	}
	d.mouse = mouse
	d.read(mouse, func(ev inputEvent) { dispatchMouse(h, ev) })
	slog.Info("listening for mouse events", "device", mousePath)
	return nil
}

func (d *EvdevDriver) Stop() error {
	d.mu.Lock()
	var errs []error
	for _, f := range []*os.File{d.keyboard, d.mouse} {
		if f == nil {
			continue
		}
		_ = grab(f, false)
		if err := f.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	d.keyboard, d.mouse = nil, nil
	d.mu.Unlock()

	d.wg.Wait()
	return errors.Join(errs...)
}

func (d *EvdevDriver) GrabKeyboard(on bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.keyboard == nil {
		return nil
	}
	return grab(d.keyboard, on)
}

func (d *EvdevDriver) GrabMouse(on bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.mouse == nil {
		return nil
	}
	return grab(d.mouse, on)
}

func (d *EvdevDriver) read(f *os.File, fn func(inputEvent)) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()

		buf := make([]byte, eventSize)
		for {
			if _, err := io.ReadFull(f, buf); err != nil {
				if !errors.Is(err, os.ErrClosed) {
					slog.Warn("input device read failed", "device", f.Name(), "error", err)
				}
				return
			}
			ev, err := decodeEvent(buf)
			if err != nil {
				continue
			}
			fn(ev)
		}
	}()
}

func grab(f *os.File, on bool) error {
	v := 0
	if on {
		v = 1
	}
	if err := unix.IoctlSetInt(int(f.Fd()), eviocgrab, v); err != nil {
		return fmt.Errorf("EVIOCGRAB %s: %w", f.Name(), err)
	}
	return nil
}

// findDevice finds the first event device whose name contains one of the hints.
func findDevice(hints ...string) (string, error) {
	matches := func(name string) bool {
		name = strings.ToLower(name)
		for _, h := range hints {
			if strings.Contains(name, h) {
				return true
			}
		}
		return false
	}

	byIDPath := "/dev/input/by-id"
	if entries, err := os.ReadDir(byIDPath); err == nil {
		for _, entry := range entries {
			name := entry.Name()
			if strings.Contains(name, "event") && matches(name) {
				return filepath.Join(byIDPath, name), nil
			}
		}
	}

	devicesFile, err := os.Open("/proc/bus/input/devices")
	if err != nil {
		return "", err
	}
	defer devicesFile.Close()

	scanner := bufio.NewScanner(devicesFile)
	found := false
	for scanner.Scan() {
		line := scanner.Text()

		if strings.HasPrefix(line, "N: Name=") {
			found = matches(line)
		}
		if strings.HasPrefix(line, "H: Handlers=") && found {
			for _, part := range strings.Fields(line) {
				if strings.HasPrefix(part, "event") {
					return "/dev/input/" + part, nil
				}
			}
		}
		if line == "" {
			found = false
		}
	}
	return "", fmt.Errorf("no input device matching %v", hints)
}
