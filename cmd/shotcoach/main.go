package main

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"os/exec"
	"os/signal"
	"runtime"
	"strings"
	"syscall"

	"github.com/ayusman/shotcoach/internal/app"
	"github.com/ayusman/shotcoach/internal/config"
	"github.com/ayusman/shotcoach/internal/detector"
	"github.com/ayusman/shotcoach/internal/log"
	"github.com/ayusman/shotcoach/internal/server"
	"github.com/ayusman/shotcoach/internal/session"
	"github.com/ayusman/shotcoach/internal/store"
	"github.com/ayusman/shotcoach/internal/tray"
)

func main() {
	if err := run(); err != nil {
		log.Error("shotcoach failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(os.Args[1:], os.Getenv)
	if err != nil {
		return err
	}
	log.Init(cfg.LogLevel)
	log.Info("starting shotcoach", "addr", cfg.Addr, "data", cfg.DataDir, "camera", cfg.CameraID)

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}

	st, err := store.New(cfg.DBPath())
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	detCfg := detector.DefaultConfig()
	detCfg.Model = cfg.Model

	application := app.New(app.Config{
		Store:     st,
		PluginDir: cfg.PluginDir,
		CameraID:  cfg.CameraID,
		Session:   session.DefaultConfig(),
		Detector:  detCfg,
	})
	if err := application.LoadSettings(); err != nil {
		return err
	}
	if err := application.DiscoverPlugins(); err != nil {
		log.Warn("plugin discovery failed", "dir", cfg.PluginDir, "error", err)
	}

	hub := server.NewHub(func() any {
		return map[string]any{"type": "status", "status": application.Status()}
	})
	application.Subscribe(func(ev session.Event) { hub.Broadcast(ev) })

	srv := server.New(server.Config{
		StaticDir:         cfg.WebDir,
		Store:             st,
		Analysis:          session.DefaultConfig().Analysis,
		Engines:           application.Engines(),
		OnAnalysisSaved:   application.PublishAnalysis,
		OnFeedbackChanged: application.SetEngine,
		Capture:           application,
		Events:            hub,
		Frames:            application,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := application.Start(ctx); err != nil {
		// The API stays up; /api/session reports the failure.
		log.Error("camera unavailable", "error", err)
	}
	defer application.Stop()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Run(ctx, cfg.Addr) }()

	if cfg.Tray {
		runTray(ctx, stop, application, cfg)
	}

	err = <-errCh
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info("shutting down")
	return nil
}

// runTray shows the tray menu until Quit is chosen or ctx ends.
func runTray(ctx context.Context, stop context.CancelFunc, application *app.App, cfg config.Config) {
	t := tray.New()
	t.OnStart(func() {
		if err := application.StartCapture(cfg.User); err != nil {
			log.Warn("tray start failed", "error", err)
		}
	})
	t.OnCancel(func() {
		if err := application.CancelCapture(); err != nil {
			log.Debug("tray cancel", "error", err)
		}
	})
	t.OnOpen(func() { openBrowser(historyURL(cfg.Addr, cfg.User)) })
	t.OnQuit(stop)

	application.Subscribe(func(session.Event) { t.Update(application.Status()) })

	go func() {
		<-ctx.Done()
		t.Quit()
	}()
	t.Run()
}

func historyURL(addr, user string) string {
	host := addr
	if strings.HasPrefix(host, ":") {
		host = "localhost" + host
	}
	u := "http://" + host + "/"
	if user != "" {
		u += "api/analyses?user=" + url.QueryEscape(user)
	}
	return u
}

func openBrowser(target string) {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", target)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", target)
	default:
		cmd = exec.Command("xdg-open", target)
	}
	if err := cmd.Start(); err != nil {
		log.Warn("open browser", "url", target, "error", err)
	}
}
