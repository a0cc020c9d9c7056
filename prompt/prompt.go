// Package prompt asks an operator for the master password
package prompt

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"

	"golang.org/x/term"
)

const DefaultTTY = "/dev/tty"

var ErrCanceled = errors.New("password prompt canceled")

type Prompter interface {
	Prompt(ctx context.Context, message string) (string, error)
}

// Terminal reads a hidden password from a controlling terminal.
type Terminal struct {
	Path string
}

func NewTerminal(path string) *Terminal {
	if path == "" {
		path = DefaultTTY
	}
	return &Terminal{Path: path}
}

// Prompt switches the terminal to raw mode for the duration of the read so nothing is echoed, and
// always restores the previous mode before returning, including when ctx ends first.
func (t *Terminal) Prompt(ctx context.Context, message string) (string, error) {
	tty, err := os.OpenFile(t.Path, os.O_RDWR, 0)
	if err != nil {
		return "", fmt.Errorf("failed to open terminal %s: %w", t.Path, err)
	}
	defer tty.Close()

	fd, err := descriptor(tty)
	if err != nil {
		return "", err
	}
	state, err := term.MakeRaw(fd)
	if err != nil {
		return "", fmt.Errorf("failed to prepare terminal %s: %w", t.Path, err)
	}
	defer func() {
		if err := term.Restore(fd, state); err != nil {
			slog.Warn("unable to restore terminal", "path", t.Path, "error", err)
		}
	}()

	fmt.Fprintf(tty, "%s: ", message)
	password, err := readSecret(ctx, tty)
	fmt.Fprint(tty, "\r\n")
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return password, nil
}

// descriptor returns the file descriptor without switching f to blocking mode, so reads keep going
// through the runtime poller and honor deadlines.
func descriptor(f *os.File) (int, error) {
	rc, err := f.SyscallConn()
	if err != nil {
		return 0, fmt.Errorf("failed to access %s: %w", f.Name(), err)
	}
	var fd uintptr
	if err := rc.Control(func(v uintptr) { fd = v }); err != nil {
		return 0, fmt.Errorf("failed to access %s: %w", f.Name(), err)
	}
	return int(fd), nil
}

// readSecret reads one line from f. When ctx ends first the pending read is cut short with an
// expired deadline and the reader is waited for, so no goroutine outlives the call.
func readSecret(ctx context.Context, f *os.File) (string, error) {
	type result struct {
		secret string
		err    error
	}
	done := make(chan result, 1)
	go func() {
		secret, err := readLine(f)
		done <- result{secret, err}
	}()

	select {
	case r := <-done:
		return r.secret, r.err
	case <-ctx.Done():
		if err := f.SetReadDeadline(time.Now()); err != nil {
			// not pollable, the read ends once f is closed
			return "", ctx.Err()
		}
		<-done
		return "", ctx.Err()
	}
}

const (
	keyInterrupt = 0x03
	keyEOT       = 0x04
	keyBackspace = 0x08
	keyDelete    = 0x7f
)

// readLine collects raw-mode input up to carriage return or newline, applying backspace.
// Interrupt and end-of-transmission cancel the prompt.
func readLine(r io.Reader) (string, error) {
	var line []byte
	buf := make([]byte, 1)
	for {
		n, err := r.Read(buf)
		if n == 1 {
			switch c := buf[0]; c {
			case '\r', '\n':
				return string(line), nil
			case keyInterrupt, keyEOT:
				return "", ErrCanceled
			case keyBackspace, keyDelete:
				if len(line) > 0 {
					line = line[:len(line)-1]
				}
			default:
				line = append(line, c)
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) && len(line) > 0 {
				return string(line), nil
			}
			return "", err
		}
	}
}

// Dialog asks through a zenity password dialog on the desktop.
type Dialog struct {
	Command string
	Title   string
}

func NewDialog(command string) *Dialog {
	if command == "" {
		command = "zenity"
	}
	return &Dialog{Command: command, Title: "Demo Mode"}
}

func (d *Dialog) Prompt(ctx context.Context, message string) (string, error) {
	cmd := exec.CommandContext(ctx, d.Command, "--password", "--title", d.Title+": "+message)
	var out bytes.Buffer
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return "", ErrCanceled
		}
		return "", fmt.Errorf("failed to run %s: %w", d.Command, err)
	}
	return strings.TrimRight(out.String(), "\r\n"), nil
}

// Auto picks the desktop dialog when a graphical session and zenity are available, otherwise
// the terminal.
func Auto() Prompter {
	if os.Getenv("WAYLAND_DISPLAY") != "" || os.Getenv("DISPLAY") != "" {
		if p, err := exec.LookPath("zenity"); err == nil {
			return NewDialog(p)
		}
	}
	return NewTerminal("")
}

// ReadPassword reads a hidden password from stdin, falling back to a plain line when stdin is not
// a terminal.
func ReadPassword(label string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		var line string
		if _, err := fmt.Fscanln(os.Stdin, &line); err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		return line, nil
	}

	fmt.Fprintf(os.Stderr, "%s: ", label)
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return string(b), nil
}
