package display

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const sample = `[
  {"name": "eDP-1", "enabled": false, "modes": [{"width": 1920, "height": 1080, "refresh": 60.0, "current": true}]},
  {"name": "HDMI-A-1", "enabled": true, "scale": 1.0, "transform": "normal"}
]`

func TestParseEnabled(t *testing.T) {
	tests := []struct {
		name    string
		want    bool
		wantErr error
	}{
		{"HDMI-A-1", true, nil},
		{"eDP-1", false, nil},
		{"DP-2", false, ErrOutputNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseEnabled([]byte(sample), tt.name)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("enabled = %v, want %v", got, tt.want)
			}
		})
	}

	if _, err := parseEnabled([]byte("not json"), "HDMI-A-1"); err == nil {
		t.Error("expected error for malformed output")
	}
}

func fakeRandr(t *testing.T) (*Output, string) {
	t.Helper()
	if _, err := os.Stat("/bin/sh"); err != nil {
		t.Skip("no /bin/sh")
	}
	dir := t.TempDir()
	log := filepath.Join(dir, "args")
	script := filepath.Join(dir, "wlr-randr")
	body := "#!/bin/sh\necho \"$@\" >> " + log + "\nif [ \"$3\" = \"--json\" ]; then echo '" + strings.ReplaceAll(sample, "\n", " ") + "'; fi\n"
	if err := os.WriteFile(script, []byte(body), 0o755); err != nil {
		t.Fatal(err)
	}
	return &Output{Name: "HDMI-A-1", Command: script}, log
}

func TestOutputCommands(t *testing.T) {
	o, log := fakeRandr(t)

	enabled, err := o.Enabled()
	if err != nil {
		t.Fatal(err)
	}
	if !enabled {
		t.Error("expected output to be enabled")
	}
	if err := o.SetEnabled(false); err != nil {
		t.Fatal(err)
	}
	if err := o.SetEnabled(true); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(log)
	if err != nil {
		t.Fatal(err)
	}
	want := "--output HDMI-A-1 --json\n--output HDMI-A-1 --off\n--output HDMI-A-1 --on\n"
	if string(data) != want {
		t.Errorf("commands = %q, want %q", data, want)
	}
}

func TestOutputMissingCommand(t *testing.T) {
	o := &Output{Name: "HDMI-A-1", Command: filepath.Join(t.TempDir(), "missing")}
	if err := o.SetEnabled(true); err == nil {
		t.Error("expected error")
	}
	if _, err := o.Enabled(); err == nil {
		t.Error("expected error")
	}
}
