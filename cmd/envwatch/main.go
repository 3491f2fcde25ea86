package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/lmittmann/tint"

	"github.com/obsidianstack/envwatch/internal/alerts"
	"github.com/obsidianstack/envwatch/internal/api"
	"github.com/obsidianstack/envwatch/internal/auth"
	"github.com/obsidianstack/envwatch/internal/config"
	"github.com/obsidianstack/envwatch/internal/console"
	"github.com/obsidianstack/envwatch/internal/pipeline"
	"github.com/obsidianstack/envwatch/internal/reading"
	"github.com/obsidianstack/envwatch/internal/security"
	"github.com/obsidianstack/envwatch/internal/source"
	"github.com/obsidianstack/envwatch/internal/window"
	"github.com/obsidianstack/envwatch/internal/ws"
)

const (
	consoleWidth   = 60
	certCheckEvery = 12 * time.Hour
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	consoleOut := flag.Bool("console", false, "print a styled summary to stdout on every tick")
	flag.Parse()

	var level slog.LevelVar
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: &level})))

	slog.Info("envwatch starting", "config", *configPath)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}

	logOut := io.Writer(os.Stdout)
	if *consoleOut {
		logOut = os.Stderr
	}
	level.Set(cfg.Log.SlogLevel())
	slog.SetDefault(newLogger(cfg.Log, logOut, &level))

	slog.Info("config loaded",
		"source", cfg.Source,
		"window_capacity", cfg.Window.Capacity,
		"http_addr", cfg.HTTP.Addr,
		"temperature_max", cfg.Thresholds.TemperatureMax,
		"flame_threshold", cfg.Thresholds.FlameThreshold,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var thresholds atomic.Pointer[alerts.Thresholds]
	thresholds.Store(toThresholds(cfg.Thresholds))
	currentThresholds := func() alerts.Thresholds { return *thresholds.Load() }

	// Hot reload covers thresholds and log level; source settings need a restart.
	go func() {
		if err := config.Watch(ctx, *configPath, func(updated *config.Config) {
			thresholds.Store(toThresholds(updated.Thresholds))
			level.Set(updated.Log.SlogLevel())
			slog.Info("config hot-reloaded",
				"temperature_max", updated.Thresholds.TemperatureMax,
				"flame_threshold", updated.Thresholds.FlameThreshold,
				"log_level", updated.Log.Level,
			)
		}); err != nil {
			slog.Error("config watcher stopped", "err", err)
		}
	}()

	win := window.New(cfg.Window.Capacity)
	var opts []pipeline.Option
	var fb *source.Firebase
	if cfg.Source == config.SourceFirebase {
		fb, err = source.NewFirebase(cfg.Firebase)
		if err != nil {
			slog.Error("failed to build firebase source", "err", err)
			os.Exit(1)
		}
		opts = append(opts, pipeline.WithFetcher(fb))
	}
	ctrl := pipeline.New(win, opts...)
	go ctrl.Run(ctx)

	var push *source.MQTT
	switch cfg.Source {
	case config.SourceMQTT:
		push = source.NewMQTT(cfg.MQTT)
		handler := func(r reading.Reading) {
			if err := ctrl.IngestPush(ctx, r); err != nil && !errors.Is(err, context.Canceled) {
				slog.Warn("ingest failed", "err", err)
			}
		}
		if err := push.Connect(ctx, handler); err != nil {
			// No automatic retry: POST /api/v1/reconnect once the broker is back.
			slog.Error("mqtt connect failed", "broker", cfg.MQTT.Broker, "err", err)
		}
	case config.SourceFirebase:
		go pollLoop(ctx, ctrl, cfg.Firebase.PollInterval)
	}

	var cert atomic.Pointer[security.CertStatus]
	if cfg.Source == config.SourceFirebase {
		go certLoop(ctx, security.NewChecker(nil), cfg.Firebase, &cert)
	}

	notifier := alerts.NewNotifier(cfg.Alerts)

	apiOpts := api.Options{
		Source:     cfg.Source,
		Thresholds: currentThresholds,
		Notifier:   notifier,
	}
	if cfg.Source == config.SourceFirebase {
		apiOpts.Certificate = cert.Load
	}
	if push != nil {
		apiOpts.Push = push
	}

	snapshot := func() pipeline.Snapshot { return ctrl.Snapshot(currentThresholds()) }
	hub := ws.New(snapshot, cfg.HTTP.BroadcastInterval)
	go hub.Run(ctx)

	go tickLoop(ctx, cfg.HTTP.BroadcastInterval, snapshot, notifier, *consoleOut)

	httpMux := http.NewServeMux()
	apiHandler := auth.RequireAPIKey(cfg.HTTP.Auth, api.New(ctrl, apiOpts))
	httpMux.Handle("/api/", apiHandler)
	httpMux.Handle("/metrics", apiHandler)
	httpMux.Handle("/ws/stream", hub)

	httpSrv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           httpMux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		slog.Info("HTTP server listening", "addr", cfg.HTTP.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server stopped", "err", err)
		}
	}()

	<-ctx.Done()
	slog.Info("envwatch shutting down")
	if push != nil {
		if err := push.Disconnect(); err != nil {
			slog.Debug("mqtt disconnect", "err", err)
		}
	}
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	httpSrv.Shutdown(shutdownCtx) //nolint:errcheck
}

// newLogger builds the slog handler selected by cfg.
func newLogger(cfg config.LogConfig, w io.Writer, level slog.Leveler) *slog.Logger {
	if cfg.Format == "text" {
		return slog.New(tint.NewHandler(w, &tint.Options{Level: level, TimeFormat: time.TimeOnly}))
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}

func toThresholds(c config.ThresholdsConfig) *alerts.Thresholds {
	return &alerts.Thresholds{TemperatureMax: c.TemperatureMax, FlameThreshold: c.FlameThreshold}
}

// pollLoop refreshes the window from the pull source immediately and then
// every interval. A failed refresh keeps the previous window.
func pollLoop(ctx context.Context, ctrl *pipeline.Controller, interval time.Duration) {
	refresh := func() {
		if err := ctrl.RefreshPull(ctx); err != nil && ctx.Err() == nil {
			slog.Debug("poll refresh failed", "err", err)
		}
	}
	refresh()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			refresh()
		}
	}
}

// certLoop checks the database endpoint's certificate now and then every
// certCheckEvery, publishing the result through out.
func certLoop(ctx context.Context, c *security.Checker, fb config.FirebaseConfig, out *atomic.Pointer[security.CertStatus]) {
	check := func() {
		cs := c.Check(ctx, fb.DatabaseURL, fb.Auth.Mode)
		if cs == nil {
			return
		}
		out.Store(cs)
		if cs.Status != security.StatusValid {
			slog.Warn("database certificate check", "endpoint", cs.Endpoint, "status", cs.Status, "days_left", cs.DaysLeft, "err", cs.Error)
		}
	}
	check()

	ticker := time.NewTicker(certCheckEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			check()
		}
	}
}

// tickLoop feeds the alert notifier and, when enabled, redraws the console.
func tickLoop(ctx context.Context, interval time.Duration, snapshot ws.SnapshotFunc, n *alerts.Notifier, draw bool) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			snap := snapshot()
			if snap.Latest != nil && snap.Alerts != nil {
				n.Observe(*snap.Latest, *snap.Alerts)
			}
			if draw {
				fmt.Println(console.Render(snap, consoleWidth))
				fmt.Println()
			}
		}
	}
}
