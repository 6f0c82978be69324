package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ayusman/signbridge/internal/app"
	"github.com/ayusman/signbridge/internal/capture"
	"github.com/ayusman/signbridge/internal/config"
	"github.com/ayusman/signbridge/internal/logging"
	"github.com/ayusman/signbridge/internal/metrics"
	"github.com/ayusman/signbridge/internal/publish"
	"github.com/ayusman/signbridge/internal/server"
	"github.com/ayusman/signbridge/internal/session"
	"github.com/ayusman/signbridge/internal/tray"
)

const shutdownTimeout = 5 * time.Second

func newRunCmd(opts *options) *cobra.Command {
	var startNow bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Serve the recognition API and display feed",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), opts.cfg, startNow)
		},
	}
	cmd.Flags().BoolVar(&startNow, "start", false, "start recognizing immediately")
	return cmd
}

func run(ctx context.Context, cfg *config.Config, startNow bool) error {
	logger, err := logging.New(cfg.Log.Level, cfg.Log.File)
	if err != nil {
		return err
	}
	defer logger.Sync()

	st, err := storeFor(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m, err := metrics.New(registry)
	if err != nil {
		return err
	}

	clf, err := app.NewClassifier(cfg, st, logger.Named("classifier"))
	if err != nil {
		return fmt.Errorf("failed to build classifier: %w", err)
	}

	var pub publish.Publisher
	if cfg.Redis.Enabled {
		r := publish.NewRedis(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB,
			publish.WithChannel(cfg.Redis.Channel),
			publish.WithPrefix(cfg.Redis.KeyPrefix))
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		if err := r.Ping(pingCtx); err != nil {
			logger.Warn("redis not reachable, transitions will not be published until it is",
				zap.String("addr", cfg.Redis.Addr), zap.Error(err))
		}
		cancel()
		pub = r
	}

	camCfg := capture.DefaultConfig()
	camCfg.Device = cfg.Camera.Device
	camCfg.FPS = cfg.Camera.FPS
	preview := capture.NewPreview()

	a, err := app.New(app.Config{
		Session:      cfg.SessionSettings(),
		Camera:       capture.NewCamera(camCfg),
		Detector:     app.NewDetector(cfg.Detector, logger.Named("detector")),
		Classifier:   clf,
		Store:        st,
		Publisher:    pub,
		Metrics:      m,
		Preview:      preview,
		Logger:       logger.Named("app"),
		MotionThresh: cfg.Motion.Threshold,
		ActiveFPS:    cfg.Camera.FPS,
		IdleFPS:      cfg.Camera.IdleFPS,
		IdleTimeout:  cfg.Camera.IdleTimeout,
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Warn("shutdown incomplete", zap.Error(err))
		}
	}()

	hub := server.NewDisplayHub(logger.Named("display"))
	a.OnDisplay(hub.PublishOutput)
	a.OnTransition(hub.PublishTransition)
	a.OnStatus(hub.PublishStatus)

	staticDir := cfg.Server.StaticDir
	if staticDir == "" {
		staticDir = findWebDir()
	}
	if staticDir != "" {
		logger.Info("serving static files", zap.String("dir", staticDir))
	}

	srv := server.New(server.Config{
		StaticDir:  staticDir,
		Store:      st,
		Recognizer: a,
		Display:    hub,
		Preview:    preview,
		Gatherer:   registry,
		Logger:     logger.Named("server"),
	})
	httpSrv := srv.HTTPServer(cfg.Server.Addr)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	var t *tray.Tray
	if cfg.Tray.Enabled {
		t = newTray(a, cfg.Server.Addr, stop, logger)
	}

	if startNow {
		if _, err := a.Start(); err != nil {
			return fmt.Errorf("failed to start recognition: %w", err)
		}
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("starting server", zap.String("addr", cfg.Server.Addr))
		serverErrors <- httpSrv.ListenAndServe()
	}()

	if t != nil {
		go func() {
			<-ctx.Done()
			t.Quit()
		}()
		// systray needs the main goroutine.
		t.Run()
		stop()
	}

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("graceful shutdown did not complete", zap.Error(err))
		return httpSrv.Close()
	}
	return nil
}

// newTray connects the tray menu to the app.
func newTray(a *app.App, addr string, quit func(), logger *zap.Logger) *tray.Tray {
	t := tray.New()
	t.OnToggle(func(running bool) {
		if !running {
			a.Stop()
			return
		}
		if _, err := a.Start(); err != nil {
			logger.Error("failed to start recognition", zap.Error(err))
		}
	})
	t.OnSettings(func() {
		fmt.Printf("Settings: http://localhost%s\n", addr)
	})
	t.OnQuit(quit)

	a.OnStatus(func(snap session.Snapshot) {
		t.SetRunning(snap.Status == session.StatusRunning)
	})
	a.OnDisplay(func(out session.Output) {
		if out.State.Stable {
			t.SetLabel(out.State.Label, out.State.Confidence)
		} else {
			t.SetLabel("", 0)
		}
	})
	return t
}

// findWebDir searches for the web directory in common locations.
// It checks: "web", "../web", "../../web", and ~/.signbridge/web.
// Returns the first existing directory or empty string if none found.
func findWebDir() string {
	for _, p := range []string{"web", "../web", "../../web"} {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			if abs, err := filepath.Abs(p); err == nil {
				return abs
			}
			return p
		}
	}

	homeWebDir := filepath.Join(config.DataDir(), "web")
	if info, err := os.Stat(homeWebDir); err == nil && info.IsDir() {
		return homeWebDir
	}
	return ""
}
