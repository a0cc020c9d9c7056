package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/aouyang1/demomode/config"
)

const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

var errUsage = errors.New("usage")

const usage = `usage: demomode [-config FILE] [command]

commands:
  run                                    run the demo daemon (default)
  list                                   list demo content
  add <type> <path> [name] [--duration N] [--launch-mode desktop|web]
                                         add photo, video, application or web content
  remove <position>                      remove content by 1-based position
  export <file>                          export the content list to JSON
  import <file>                          replace the content list from JSON
  passwd                                 set the master password
  status                                 show the daemon's session status
  start                                  start the demo session
  stop                                   stop the demo session
`

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("demomode", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() { fmt.Fprint(stderr, usage) }
	configFile := fs.String("config", "", "path to demomode.yaml")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}

	var (
		cfg config.Config
		err error
	)
	if *configFile != "" {
		cfg, err = config.LoadFile(*configFile)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		slog.Error("unable to load configuration", "error", err)
		return exitFailure
	}

	cmd, rest := "run", fs.Args()
	if len(rest) > 0 {
		cmd, rest = rest[0], rest[1:]
	}

	if cmd == "run" {
		if err := runDaemon(cfg); err != nil {
			slog.Error("demo daemon failed", "error", err)
			return exitFailure
		}
		return exitOK
	}

	c := newCLI(cfg, stdout)
	if err := c.exec(cmd, rest); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprintf(stderr, "%v\n\n%s", err, usage)
			return exitUsage
		}
		fmt.Fprintf(stderr, "error: %v\n", err)
		return exitFailure
	}
	return exitOK
}
