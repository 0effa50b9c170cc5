// lcuwatch watches the local client lockfile and keeps an event session open
// against whichever client API it points at.
// Usage: go run ./cmd/lcuwatch --config config.yaml
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rickgao/lcuwatch/internal/config"
	"github.com/rickgao/lcuwatch/internal/connection"
	"github.com/rickgao/lcuwatch/internal/database"
	"github.com/rickgao/lcuwatch/internal/lockfile"
	"github.com/rickgao/lcuwatch/internal/logging"
	"github.com/rickgao/lcuwatch/internal/metrics"
	"github.com/rickgao/lcuwatch/internal/version"
	"github.com/rickgao/lcuwatch/internal/writer"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file (created with defaults if missing)")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}

	os.Exit(run(*configPath))
}

func run(configPath string) int {
	cfg, created, err := config.LoadOrCreate(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		return 1
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		return 1
	}

	logs, err := logging.New(logging.Options{
		Dir:        cfg.Log.Dir,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
		Compress:   cfg.Log.Compress,
		Debug:      cfg.Debug,
		Console:    os.Stderr,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "open log: %v\n", err)
		return 1
	}
	defer logs.Close()

	logger := logs.Logger
	slog.SetDefault(logger)

	logger.Info("starting lcuwatch",
		"version", version.Version,
		"commit", version.Commit,
		"config", configPath,
		"log_file", logs.Path(),
	)
	if created {
		logger.Info("wrote default config", "path", configPath)
	}

	if !cfg.EnableWebSocket {
		logger.Info("websocket disabled in configuration")
		return 0
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	observers := connection.Observers{m}

	var history *writer.HistoryWriter
	if cfg.History.Enabled {
		db := cfg.History.Database
		logger.Info("connecting to database", "host", db.Host, "port", db.Port, "database", db.Name)

		pool, err := database.Connect(ctx, db)
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			return 1
		}
		defer pool.Close()

		history = writer.NewHistoryWriter(writer.WriterConfig{
			BatchSize:     cfg.History.BatchSize,
			FlushInterval: cfg.History.FlushInterval,
			BufferSize:    cfg.History.BufferSize,
		}, pool, logger.With("component", "history"))

		if err := history.EnsureSchema(ctx); err != nil {
			logger.Error("failed to prepare history table", "error", err)
			return 1
		}
		if err := history.Start(ctx); err != nil {
			logger.Error("failed to start history writer", "error", err)
			return 1
		}
		observers = append(observers, history)
	}

	sup := connection.NewSupervisor(
		connection.ConfigFrom(cfg.Session, cfg.Debug, os.Stdout),
		logger.With("component", "session"),
		connection.WithObserver(observers),
	)

	watcher := lockfile.NewWatcher(cfg.CandidatePaths(), cfg.Lockfile.PollInterval, logger.With("component", "lockfile"))
	if err := watcher.Start(ctx); err != nil {
		logger.Error("failed to start lockfile watcher", "error", err)
		return 1
	}

	var healthServer *http.Server
	if cfg.Metrics.Port > 0 {
		healthServer = &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Metrics.Port),
			Handler:           newHealthHandler(sup, m, cfg.Metrics.Path),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			logger.Info("starting health server", "port", cfg.Metrics.Port)
			if err := healthServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				logger.Error("health server error", "error", err)
			}
		}()
	}

	if !cfg.WebSocketAutoStart {
		logger.Info("websocket auto-start disabled, sessions will not be opened")
	}

	logger.Info("lcuwatch running", "candidates", cfg.CandidatePaths())

loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case change, ok := <-watcher.Changes():
			if !ok {
				break loop
			}
			applyChange(sup, change, cfg.WebSocketAutoStart, logger)
		}
	}

	logger.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := watcher.Stop(shutdownCtx); err != nil {
		logger.Warn("lockfile watcher stop", "error", err)
	}
	sup.Stop()
	if history != nil {
		if err := history.Stop(shutdownCtx); err != nil {
			logger.Warn("history writer stop", "error", err)
		}
	}
	if healthServer != nil {
		healthServer.Shutdown(shutdownCtx)
	}

	logger.Info("lcuwatch stopped")
	return 0
}

// applyChange tears down the current session and, when the lockfile is
// present, starts a new one against the new credential.
func applyChange(sup *connection.Supervisor, change lockfile.Change, autoStart bool, logger *slog.Logger) {
	if sup.Running() {
		sup.Stop()
	}

	if !change.Present {
		logger.Info("lockfile gone, session closed")
		return
	}
	if !autoStart {
		return
	}

	sup.Start(change.Credential)
}
