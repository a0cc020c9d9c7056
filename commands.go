package main

import (
	"bytes"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/aouyang1/demomode/api/client"
	"github.com/aouyang1/demomode/api/models"
	"github.com/aouyang1/demomode/config"
	"github.com/aouyang1/demomode/content"
	"github.com/aouyang1/demomode/prompt"
	"github.com/aouyang1/demomode/settings"
)

var errDaemonDown = errors.New("demo daemon is not running")

// playlist is where CLI edits go: the running daemon when it answers, the settings file
// otherwise, so a running daemon never has its playlist overwritten underneath it.
type playlist interface {
	List() ([]content.Entry, error)
	Add(e content.Entry) (content.Entry, error)
	Remove(position int) (content.Entry, error)
	Export(w io.Writer) error
	Import(r io.Reader) error
	SetMasterPassword(password string) error
}

type cli struct {
	cfg    config.Config
	stdout io.Writer

	baseURL      string
	readPassword func(label string) (string, error)
}

func newCLI(cfg config.Config, stdout io.Writer) *cli {
	return &cli{
		cfg:          cfg,
		stdout:       stdout,
		baseURL:      "http://" + cfg.ListenAddr,
		readPassword: prompt.ReadPassword,
	}
}

func (c *cli) exec(cmd string, args []string) error {
	switch cmd {
	case "list":
		return c.list(args)
	case "add":
		return c.add(args)
	case "remove":
		return c.remove(args)
	case "export":
		return c.export(args)
	case "import":
		return c.importFile(args)
	case "passwd":
		return c.passwd(args)
	case "status":
		return c.status(args)
	case "start":
		return c.start(args)
	case "stop":
		return c.stop(args)
	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, cmd)
	}
}

// daemon returns a client for the running daemon or nil when it does not answer.
func (c *cli) daemon() *daemonPlaylist {
	dc := client.NewDemoClient(c.baseURL, "")
	if _, err := dc.Status(); err != nil {
		return nil
	}
	return &daemonPlaylist{baseURL: c.baseURL, client: dc, readPassword: c.readPassword}
}

func (c *cli) playlist() playlist {
	if d := c.daemon(); d != nil {
		return d
	}
	st := settings.Open(c.cfg.SettingsFile)
	return &filePlaylist{settings: st, catalog: content.NewCatalog(st, st.Settings().DemoContent)}
}

func wantArgs(args []string, min, max int) error {
	if len(args) < min || len(args) > max {
		return fmt.Errorf("%w: expected %d to %d arguments, got %d", errUsage, min, max, len(args))
	}
	return nil
}

func (c *cli) list(args []string) error {
	if err := wantArgs(args, 0, 0); err != nil {
		return err
	}
	entries, err := c.playlist().List()
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Fprintln(c.stdout, "No demo content configured.")
		return nil
	}
	for i, e := range entries {
		fmt.Fprintf(c.stdout, "%d. %s\n", i+1, e.Name)
		fmt.Fprintf(c.stdout, "   Type: %s\n", e.Kind)
		fmt.Fprintf(c.stdout, "   Path: %s\n", e.Path)
		fmt.Fprintf(c.stdout, "   Duration: %ds\n", e.Duration)
		if e.LaunchMode != "" {
			fmt.Fprintf(c.stdout, "   Launch mode: %s\n", e.LaunchMode)
		}
	}
	return nil
}

// splitFlags separates --flag value pairs from positional arguments so flags may follow them.
func splitFlags(args []string) (flags, positional []string) {
	for i := 0; i < len(args); i++ {
		a := args[i]
		if len(a) < 2 || a[0] != '-' {
			positional = append(positional, a)
			continue
		}
		flags = append(flags, a)
		if !strings.Contains(a, "=") && i+1 < len(args) {
			i++
			flags = append(flags, args[i])
		}
	}
	return flags, positional
}

func (c *cli) add(args []string) error {
	fs := flag.NewFlagSet("add", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	duration := fs.Int("duration", 0, "duration in seconds")
	launchMode := fs.String("launch-mode", "", "desktop or web")

	flags, positional := splitFlags(args)
	if err := fs.Parse(flags); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	if err := wantArgs(positional, 2, 3); err != nil {
		return err
	}
	kind, err := content.ParseKind(positional[0])
	if err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}

	e := content.Entry{
		Kind:       kind,
		Path:       positional[1],
		Duration:   *duration,
		LaunchMode: content.LaunchMode(*launchMode),
	}
	if len(positional) == 3 {
		e.Name = positional[2]
	}

	added, err := c.playlist().Add(e)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.stdout, "Added %s: %s\n", added.Kind, added.Name)
	return nil
}

func (c *cli) remove(args []string) error {
	if err := wantArgs(args, 1, 1); err != nil {
		return err
	}
	position, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("%w: position must be a number, got %q", errUsage, args[0])
	}
	removed, err := c.playlist().Remove(position)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.stdout, "Removed: %s\n", removed.Name)
	return nil
}

func (c *cli) export(args []string) error {
	if err := wantArgs(args, 1, 1); err != nil {
		return err
	}
	var buf strings.Builder
	if err := c.playlist().Export(&buf); err != nil {
		return err
	}
	if err := os.WriteFile(args[0], []byte(buf.String()), 0o644); err != nil {
		return fmt.Errorf("%w: %w", content.ErrIO, err)
	}
	fmt.Fprintf(c.stdout, "Content exported to %s\n", args[0])
	return nil
}

func (c *cli) importFile(args []string) error {
	if err := wantArgs(args, 1, 1); err != nil {
		return err
	}
	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("%w: %w", content.ErrIO, err)
	}
	defer f.Close()

	if err := c.playlist().Import(f); err != nil {
		return err
	}
	fmt.Fprintf(c.stdout, "Imported content from %s\n", args[0])
	return nil
}

func (c *cli) passwd(args []string) error {
	if err := wantArgs(args, 0, 0); err != nil {
		return err
	}
	password, err := c.readPassword("New master password")
	if err != nil {
		return err
	}
	confirm, err := c.readPassword("Confirm master password")
	if err != nil {
		return err
	}
	if password != confirm {
		return errors.New("passwords do not match")
	}
	if err := c.playlist().SetMasterPassword(password); err != nil {
		return err
	}
	fmt.Fprintln(c.stdout, "Master password updated")
	return nil
}

func (c *cli) status(args []string) error {
	if err := wantArgs(args, 0, 0); err != nil {
		return err
	}
	d := c.daemon()
	if d == nil {
		return fmt.Errorf("%w at %s", errDaemonDown, c.cfg.ListenAddr)
	}
	st, err := d.client.Status()
	if err != nil {
		return err
	}
	c.printStatus(st)
	return nil
}

func (c *cli) start(args []string) error {
	if err := wantArgs(args, 0, 0); err != nil {
		return err
	}
	d := c.daemon()
	if d == nil {
		return fmt.Errorf("%w at %s", errDaemonDown, c.cfg.ListenAddr)
	}
	var st *models.StatusResponse
	err := d.protected(func(dc *client.DemoClient) (err error) {
		st, err = dc.StartSession()
		return err
	})
	if err != nil {
		return err
	}
	c.printStatus(st)
	return nil
}

func (c *cli) stop(args []string) error {
	if err := wantArgs(args, 0, 0); err != nil {
		return err
	}
	d := c.daemon()
	if d == nil {
		return fmt.Errorf("%w at %s", errDaemonDown, c.cfg.ListenAddr)
	}
	var st *models.StatusResponse
	err := d.protected(func(dc *client.DemoClient) (err error) {
		st, err = dc.StopSession()
		return err
	})
	if err != nil {
		return err
	}
	c.printStatus(st)
	return nil
}

func (c *cli) printStatus(st *models.StatusResponse) {
	if !st.Active {
		fmt.Fprintf(c.stdout, "Demo idle, %d entries\n", st.ContentCount)
		return
	}
	fmt.Fprintf(c.stdout, "Demo active (session %s), %d entries\n", st.SessionID, st.ContentCount)
	if st.Current != nil {
		fmt.Fprintf(c.stdout, "Playing %d. %s (%s)\n", st.Position, st.Current.Name, st.Current.Kind)
	}
	fmt.Fprintf(c.stdout, "Fullscreen: %v, keyboard locked: %v, mouse locked: %v\n", st.Fullscreen, st.KeyboardLocked, st.MouseLocked)
}

// filePlaylist edits the settings file directly.
type filePlaylist struct {
	settings *settings.Store
	catalog  *content.Catalog
}

func (p *filePlaylist) List() ([]content.Entry, error) {
	return p.catalog.Entries(), nil
}

func (p *filePlaylist) Add(e content.Entry) (content.Entry, error) {
	return p.catalog.Add(e)
}

func (p *filePlaylist) Remove(position int) (content.Entry, error) {
	return p.catalog.Remove(position - 1)
}

func (p *filePlaylist) Export(w io.Writer) error {
	return p.catalog.Export(w)
}

func (p *filePlaylist) Import(r io.Reader) error {
	return p.catalog.Import(r)
}

func (p *filePlaylist) SetMasterPassword(password string) error {
	return p.settings.SetMasterPassword(password)
}

// daemonPlaylist edits the running daemon's playlist, asking for the master password when the
// daemon requires one.
type daemonPlaylist struct {
	baseURL      string
	client       *client.DemoClient
	readPassword func(label string) (string, error)
}

func (p *daemonPlaylist) protected(fn func(dc *client.DemoClient) error) error {
	err := fn(p.client)
	var statusErr *client.StatusError
	if !errors.As(err, &statusErr) || statusErr.Code != http.StatusForbidden {
		return err
	}

	password, err := p.readPassword("Master password")
	if err != nil {
		return err
	}
	p.client = client.NewDemoClient(p.baseURL, password)
	return fn(p.client)
}

func (p *daemonPlaylist) List() ([]content.Entry, error) {
	return p.client.ListContent()
}

func (p *daemonPlaylist) Add(e content.Entry) (content.Entry, error) {
	var added content.Entry
	err := p.protected(func(dc *client.DemoClient) error {
		resp, err := dc.AddContent(models.AddContentRequest{
			Type:       string(e.Kind),
			Path:       e.Path,
			Name:       e.Name,
			Duration:   e.Duration,
			LaunchMode: string(e.LaunchMode),
		})
		if err != nil {
			return err
		}
		added = resp.Entry
		return nil
	})
	return added, err
}

func (p *daemonPlaylist) Remove(position int) (content.Entry, error) {
	var removed content.Entry
	err := p.protected(func(dc *client.DemoClient) error {
		resp, err := dc.RemoveContent(position)
		if err != nil {
			return err
		}
		removed = resp.Entry
		return nil
	})
	return removed, err
}

func (p *daemonPlaylist) Export(w io.Writer) error {
	return p.client.ExportContent(w)
}

func (p *daemonPlaylist) Import(r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("%w: %w", content.ErrIO, err)
	}
	return p.protected(func(dc *client.DemoClient) error {
		_, err := dc.ImportContent(bytes.NewReader(data))
		return err
	})
}

func (p *daemonPlaylist) SetMasterPassword(password string) error {
	return p.protected(func(dc *client.DemoClient) error {
		_, err := dc.UpdateSettings(models.UpdateSettingsRequest{MasterPassword: &password})
		return err
	})
}
