// Command voxhall is the main entry point for the Voxhall room server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/voxhall/voxhall/internal/agent"
	"github.com/voxhall/voxhall/internal/config"
	"github.com/voxhall/voxhall/internal/observe"
	"github.com/voxhall/voxhall/internal/recorder"
	"github.com/voxhall/voxhall/internal/room"
	"github.com/voxhall/voxhall/internal/server"
)

// Version is stamped at build time via -ldflags.
var Version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "voxhall.yaml", "path to the YAML configuration file")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "voxhall: %v\n", err)
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logger, closeLog, err := newLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "voxhall: %v\n", err)
		return 1
	}
	defer closeLog()
	slog.SetDefault(logger)

	addr := net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port))
	slog.Info("voxhall starting",
		"version", Version,
		"config", *configPath,
		"addr", addr,
		"env", cfg.App.Env,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	shutdownTelemetry, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName:    cfg.App.Name,
		ServiceVersion: Version,
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	// ── Room fabric ───────────────────────────────────────────────────────────
	managerOpts := []room.ManagerOption{
		room.WithAgentQueueDepth(cfg.Agents.QueueDepth),
	}

	var rec *recorder.Recorder
	if cfg.Recorder.Dir != "" {
		rec, err = recorder.New(cfg.Recorder.Dir)
		if err != nil {
			slog.Error("failed to initialise recorder", "err", err)
			return 1
		}
		defer rec.Close()
		managerOpts = append(managerOpts, room.WithRecorder(rec))
	}

	manager := room.NewManager(ctx, managerOpts...)

	registry := agent.NewRegistry(cfg.Agents.DefaultProvider, agent.Credentials{
		OpenAIAPIKey:     cfg.Providers.OpenAIAPIKey,
		DeepgramAPIKey:   cfg.Providers.DeepgramAPIKey,
		ElevenLabsAPIKey: cfg.Providers.ElevenLabsAPIKey,
		GeminiAPIKey:     cfg.Providers.GeminiAPIKey,
	})
	manager.SetLauncher(agent.NewRunner(manager, registry,
		agent.WithWatchdogTimeout(cfg.Agents.WatchdogTimeout)))

	// ── HTTP server ───────────────────────────────────────────────────────────
	srv := server.New(cfg, manager, observe.DefaultMetrics())
	httpSrv := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server ready — press Ctrl+C to shut down", "addr", addr)
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "err", err)
			return 1
		}
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	slog.Info("shutdown signal received, stopping…")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("http shutdown error", "err", err)
	}
	manager.Shutdown(shutdownCtx)

	slog.Info("goodbye")
	return 0
}

// newLogger builds the process logger: text handler on stderr, debug level
// when configured, optionally mirrored to a log file.
func newLogger(cfg *config.Config) (*slog.Logger, func(), error) {
	level := slog.LevelInfo
	if cfg.App.Debug {
		level = slog.LevelDebug
	}

	var w io.Writer = os.Stderr
	closeLog := func() {}
	if cfg.App.LogFile != "" {
		f, err := os.OpenFile(cfg.App.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file %q: %w", cfg.App.LogFile, err)
		}
		w = io.MultiWriter(os.Stderr, f)
		closeLog = func() { _ = f.Close() }
	}

	handler := slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	return slog.New(handler), closeLog, nil
}
