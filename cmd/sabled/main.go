// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/sablerun/sable/internal/config"
	"github.com/sablerun/sable/internal/daemon"
	"github.com/sablerun/sable/internal/log"
)

// Version information (injected via ldflags at build time)
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	var (
		configPath  = flag.String("config", "", "Path to YAML configuration file")
		listenAddr  = flag.String("listen", "", "TCP address to listen on (host:port)")
		dbPath      = flag.String("db", "", "SQLite database file path")
		noWAL       = flag.Bool("no-wal", false, "Disable SQLite write-ahead logging")
		tracing     = flag.Bool("tracing", false, "Enable trace export to stdout")
		showVersion = flag.Bool("version", false, "Show version information")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("sabled %s (commit: %s, built: %s)\n", version, commit, buildDate)
		os.Exit(0)
	}

	// Initialize structured logging from environment
	logger := log.New(log.FromEnv())
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("Failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	// Apply CLI flag overrides
	if *listenAddr != "" {
		cfg.Server.Addr = *listenAddr
	}
	if *dbPath != "" {
		cfg.Store.Path = *dbPath
	}
	if *noWAL {
		cfg.Store.WAL = false
	}
	if *tracing {
		cfg.Tracing.Enabled = true
	}

	d, err := daemon.New(cfg, daemon.Options{
		Version:   version,
		Commit:    commit,
		BuildDate: buildDate,
	})
	if err != nil {
		logger.Error("Failed to create daemon", slog.Any("error", err))
		os.Exit(1)
	}

	// Setup signal handling for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		errCh <- d.Start(ctx)
	}()

	select {
	case sig := <-sigCh:
		logger.Info("received signal, shutting down", slog.String("signal", sig.String()))
		cancel()
		if err := d.Shutdown(context.Background()); err != nil {
			logger.Error("Error during shutdown", slog.Any("error", err))
		}
	case err := <-errCh:
		if err != nil {
			logger.Error("Daemon error", slog.Any("error", err))
			os.Exit(1)
		}
	}
}
