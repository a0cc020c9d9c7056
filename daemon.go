package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/aouyang1/demomode/api"
	"github.com/aouyang1/demomode/clock"
	"github.com/aouyang1/demomode/config"
	"github.com/aouyang1/demomode/content"
	"github.com/aouyang1/demomode/display"
	"github.com/aouyang1/demomode/input"
	"github.com/aouyang1/demomode/launcher"
	"github.com/aouyang1/demomode/prompt"
	"github.com/aouyang1/demomode/session"
	"github.com/aouyang1/demomode/settings"
	"github.com/aouyang1/demomode/slideshow"
	"github.com/aouyang1/demomode/store"
)

const autoStartDelay = 2 * time.Second

func newPrompter(kind string) prompt.Prompter {
	switch kind {
	case "terminal":
		return prompt.NewTerminal("")
	case "dialog":
		return prompt.NewDialog("")
	default:
		return prompt.Auto()
	}
}

func runDaemon(cfg config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st := settings.Open(cfg.SettingsFile)
	catalog := content.NewCatalog(st, st.Settings().DemoContent)

	db, err := store.NewDatabase(cfg.HistoryDB)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()

	clk := clock.New()
	presenter := slideshow.NewViewerPresenter(cfg.Viewer, cfg.VideoPlayer)

	browser := cfg.KioskBrowser
	if browser == "" {
		browser = launcher.FindKioskBrowser()
	}
	apps := launcher.New(clk, launcher.WithKioskBrowser(browser))

	history := api.NewHistoryManager(db)
	scheduler := slideshow.NewScheduler(catalog, presenter, apps, clk, slideshow.WithDispatchHook(history.Observe))

	driver := input.NewEvdevDriver(cfg.InputDevice, cfg.MouseDevice)
	sess := session.New(scheduler, presenter, st, newPrompter(cfg.Prompt), clk,
		session.WithGrabber(driver),
		session.WithStopHook(apps.TerminateAll),
		session.WithExitAttemptHook(func(a session.ExitAttempt) {
			rec := store.ExitAttempt{SessionID: a.SessionID, At: a.At, Outcome: string(a.Outcome)}
			if a.Err != nil {
				rec.Error = a.Err.Error()
			}
			if err := db.RecordExitAttempt(rec); err != nil {
				slog.Warn("unable to record exit attempt", "error", err)
			}
		}),
	)

	if err := driver.Start(sess); err != nil {
		// the demo still plays, it just cannot see input or enforce locks
		slog.Warn("input hook unavailable, activity tracking and locks are disabled", "error", err)
	}
	defer func() {
		if err := driver.Stop(); err != nil {
			slog.Warn("unable to stop input hook", "error", err)
		}
	}()
	defer sess.StopSession()

	managers := []api.Manager{history}

	localManager, err := api.NewLocalManager(cfg.ContentDir, catalog)
	if err != nil {
		return err
	}
	managers = append(managers, localManager)

	remoteManager, err := api.NewRemoteManager(cfg.AWSProfile, cfg.S3Bucket, cfg.RemoteDir(), catalog)
	switch {
	case errors.Is(err, api.ErrRemoteDisabled):
		slog.Info("remote content sync disabled")
	case err != nil:
		return fmt.Errorf("failed to initialize remote manager: %w", err)
	default:
		managers = append(managers, remoteManager)
	}

	var disp api.Display
	if cfg.DisplayOutput != "" {
		disp = display.New(cfg.DisplayOutput)
	}
	managers = append(managers, api.NewScheduleManager(st, sess, disp))

	gin.SetMode(gin.ReleaseMode)
	webServer := api.NewWebServer(db, st, catalog, sess, managers...)
	if disp != nil {
		webServer.SetDisplay(disp)
	}

	if st.Settings().AutoStartDemo {
		go func() {
			select {
			case <-ctx.Done():
				return
			case <-time.After(autoStartDelay):
			}
			if err := sess.StartSession(); err != nil {
				slog.Warn("unable to auto start demo", "error", err)
			}
		}()
	}

	if err := webServer.Start(ctx, cfg.ListenAddr); err != nil {
		return err
	}
	slog.Info("shutting down demo daemon")
	return nil
}
