// Command termalive-hostd runs a session host until interrupted. It is
// deliberately not a CLI: no subcommands, no flag-driven session management.
// That shell (termalive start/list/attach/…) is a separate, external
// collaborator this repository does not implement.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/ehrlich-b/termalive/internal/config"
	"github.com/ehrlich-b/termalive/internal/host"
	"github.com/ehrlich-b/termalive/internal/logger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "termalive-hostd:", err)
		os.Exit(1)
	}
}

func run() error {
	path, err := config.DefaultConfigPath()
	if err != nil {
		return fmt.Errorf("resolve config path: %w", err)
	}
	cfg, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if err := logger.Init(cfg.LogLevel, "", "termalive-hostd"); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	h := host.New(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	logger.Info("starting session host", "config", path, "ws_addr", cfg.WebSocketAddr, "pipe_path", cfg.PipePath)
	return h.Run(ctx)
}
