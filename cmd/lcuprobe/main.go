// lcuprobe reads the lockfile once, opens a session, prints the session loop
// state, waits, prints it again and stops.
// Usage: go run ./cmd/lcuprobe --config config.yaml --wait 5s
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rickgao/lcuwatch/internal/config"
	"github.com/rickgao/lcuwatch/internal/connection"
	"github.com/rickgao/lcuwatch/internal/lockfile"
	"github.com/rickgao/lcuwatch/internal/logging"
	"github.com/rickgao/lcuwatch/internal/version"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file (created with defaults if missing)")
	wait := flag.Duration("wait", 5*time.Second, "how long to observe events before stopping")
	flag.Parse()

	os.Exit(run(*configPath, *wait))
}

func run(configPath string, wait time.Duration) int {
	cfg, _, err := config.LoadOrCreate(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
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

	fmt.Printf("lcuprobe %s\n", version.String())
	fmt.Printf("Debug mode: %s\n", onOff(cfg.Debug))
	fmt.Printf("WebSocket enabled: %s\n", onOff(cfg.EnableWebSocket))
	fmt.Printf("Log file: %s\n\n", logs.Path())

	cred, err := lockfile.Read(cfg.CandidatePaths())
	if err != nil {
		fmt.Println("Failed to read lockfile. Make sure the Riot Client is running.")
		logger.Error("lockfile not found", "candidates", cfg.CandidatePaths())
		return 1
	}

	fmt.Println("Lockfile loaded")
	fmt.Printf("  Name:     %s\n", cred.Name)
	fmt.Printf("  PID:      %d\n", cred.PID)
	fmt.Printf("  Port:     %d\n", cred.Port)
	fmt.Printf("  Protocol: %s\n", cred.Protocol)
	fmt.Printf("  Path:     %s\n\n", cred.Path)

	if !cfg.EnableWebSocket {
		fmt.Println("WebSocket functionality disabled in configuration.")
		return 0
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sup := connection.NewSupervisor(connection.ConfigFrom(cfg.Session, cfg.Debug, os.Stdout), logger)
	if !sup.Start(cred) {
		fmt.Println("Failed to start WebSocket session.")
		return 1
	}
	defer sup.Stop()

	fmt.Printf("Current session loop state: %s\n", sup.LoopState())

	select {
	case <-ctx.Done():
	case <-time.After(wait):
	}

	fmt.Printf("Connected: %t\n", sup.IsConnected())
	fmt.Printf("Updated session loop state: %s\n", sup.LoopState())
	fmt.Println("Stopping WebSocket session...")
	return 0
}

func onOff(b bool) string {
	if b {
		return "ON"
	}
	return "OFF"
}
