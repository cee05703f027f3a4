// Command salutegw serves the Wyoming protocol and forwards speech
// recognition and synthesis to SaluteSpeech.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MrWong99/salutespeech-gateway/internal/app"
	"github.com/MrWong99/salutespeech-gateway/internal/config"
	"github.com/MrWong99/salutespeech-gateway/internal/observe"
	"github.com/MrWong99/salutespeech-gateway/pkg/provider/salute"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "", "path to the YAML configuration file (optional)")
	showVersion := flag.Bool("version", false, "print the version and exit")
	overrides := newFlagOverrides(flag.CommandLine)
	flag.Parse()

	if *showVersion {
		fmt.Println("salutegw", version)
		return 0
	}

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath, overrides.apply)
	if err != nil {
		fmt.Fprintf(os.Stderr, "salutegw: %v\n", err)
		return 2
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	level := new(slog.LevelVar)
	level.Set(app.SlogLevel(cfg.Server.LogLevel))
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	slog.Info("salutegw starting",
		"version", version,
		"config", *configPath,
		"listen_uri", cfg.Server.ListenURI,
		"language", cfg.Gateway.Language,
		"voice", cfg.Gateway.Voice,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	tel, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceVersion: version})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tel.Shutdown(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()
	metrics, err := observe.NewMetrics(tel.MeterProvider)
	if err != nil {
		slog.Error("failed to create metrics", "err", err)
		return 1
	}

	// ── Application ───────────────────────────────────────────────────────────
	application, err := app.New(ctx, cfg,
		app.WithVersion(version),
		app.WithMetrics(metrics),
		app.WithMetricsHandler(tel.MetricsHandler()),
		app.WithLevelVar(level),
	)
	if err != nil {
		if errors.Is(err, salute.ErrUntrusted) {
			slog.Error("cannot establish a trusted connection to the auth endpoint; set salute.ca_cert_file", "err", err)
		} else {
			slog.Error("failed to initialise application", "err", err)
		}
		return 1
	}

	// ── Config watcher ────────────────────────────────────────────────────────
	var watcher *config.Watcher
	if *configPath != "" {
		watcher, err = config.NewWatcher(*configPath, application.ApplyConfig, config.WithOverrides(overrides.apply))
		if err != nil {
			slog.Warn("config hot reload disabled", "err", err)
			watcher = nil
		}
	}

	if err := application.Run(ctx, watcher); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	slog.Info("shutdown signal received, stopping")
	if err := application.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}
