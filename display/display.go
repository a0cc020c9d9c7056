// Package display switches a wayland output on and off through wlr-randr
package display

import (
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
)

const DefaultCommand = "wlr-randr"

var ErrOutputNotFound = errors.New("output not found")

type output struct {
	Name    string `json:"name"`
	Enabled bool   `json:"enabled"`
}

// Output controls one named output, e.g. HDMI-A-1.
type Output struct {
	Name    string
	Command string
}

func New(name string) *Output {
	return &Output{Name: name, Command: DefaultCommand}
}

// Enabled inspects the current state of the output. It returns true if the output is enabled,
// false if disabled.
func (o *Output) Enabled() (bool, error) {
	cmd := exec.Command(o.Command, "--output", o.Name, "--json")
	out, err := cmd.Output()
	if err != nil {
		return false, fmt.Errorf("failed to run %s: %w", o.Command, err)
	}
	return parseEnabled(out, o.Name)
}

// SetEnabled powers the output on or off.
func (o *Output) SetEnabled(enabled bool) error {
	arg := "--off"
	if enabled {
		arg = "--on"
	}
	cmd := exec.Command(o.Command, "--output", o.Name, arg)
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to run %s: %w", o.Command, err)
	}
	return nil
}

func parseEnabled(data []byte, name string) (bool, error) {
	var results []output
	if err := json.Unmarshal(data, &results); err != nil {
		return false, fmt.Errorf("failed to unmarshal wlr-randr output: %w", err)
	}

	for _, result := range results {
		if result.Name == name {
			return result.Enabled, nil
		}
	}
	return false, fmt.Errorf("%w: %s", ErrOutputNotFound, name)
}
