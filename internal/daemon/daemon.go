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

// Package daemon wires the store, engine, and HTTP API into the sabled
// process and owns its lifecycle.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sablerun/sable/internal/config"
	"github.com/sablerun/sable/internal/daemon/api"
	"github.com/sablerun/sable/internal/engine"
	"github.com/sablerun/sable/internal/log"
	"github.com/sablerun/sable/internal/store"
	"github.com/sablerun/sable/internal/store/sqlite"
	"github.com/sablerun/sable/internal/tracing"
)

// Options carries build metadata into the daemon.
type Options struct {
	Version   string
	Commit    string
	BuildDate string
}

// Daemon is the main sabled daemon.
type Daemon struct {
	cfg    *config.Config
	opts   Options
	logger *slog.Logger

	store  store.Store
	engine *engine.Engine
	server *http.Server

	shutdownTracing func(context.Context) error
}

// New creates a daemon from configuration. The store is opened here so
// configuration errors surface before Start.
func New(cfg *config.Config, opts Options) (*Daemon, error) {
	logger := log.WithComponent(log.New(log.FromEnv()), "daemon")

	st, err := sqlite.New(sqlite.Config{
		Path: cfg.Store.Path,
		WAL:  cfg.Store.WAL,
	})
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	eng := engine.New(st, logger)

	return &Daemon{
		cfg:    cfg,
		opts:   opts,
		logger: logger,
		store:  st,
		engine: eng,
	}, nil
}

// Engine returns the daemon's engine. Tests use this to drive operations
// directly.
func (d *Daemon) Engine() *engine.Engine {
	return d.engine
}

// Start runs crash recovery and then serves HTTP until ctx is cancelled or
// the listener fails. Recovery completes before the listener opens so no
// request can observe a lost run.
func (d *Daemon) Start(ctx context.Context) error {
	shutdownTracing, err := tracing.Init(d.cfg.Tracing.Enabled)
	if err != nil {
		return fmt.Errorf("initializing tracing: %w", err)
	}
	d.shutdownTracing = shutdownTracing

	recovered, err := d.engine.Recover(ctx)
	if err != nil {
		return fmt.Errorf("recovering interrupted runs: %w", err)
	}
	if recovered > 0 {
		d.logger.Info("recovery complete", slog.Int("resumed_runs", recovered))
	}

	router := api.NewRouter(api.RouterConfig{
		Version:   d.opts.Version,
		Commit:    d.opts.Commit,
		BuildDate: d.opts.BuildDate,
		RateLimit: d.cfg.Server.RateLimit,
		RateBurst: d.cfg.Server.RateBurst,
	})
	router.SetMetricsHandler(promhttp.Handler())
	router.SetWorkerProvider(d.engine)

	api.NewWorkflowsHandler(d.engine).RegisterRoutes(router.Mux())
	api.NewRunsHandler(d.engine).RegisterRoutes(router.Mux())
	api.NewOrdersHandler(d.engine).RegisterRoutes(router.Mux())
	if snapshotter, ok := d.store.(store.Snapshotter); ok {
		api.NewSnapshotHandler(snapshotter).RegisterRoutes(router.Mux())
	}

	listener, err := net.Listen("tcp", d.cfg.Server.Addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", d.cfg.Server.Addr, err)
	}

	d.server = &http.Server{
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	d.logger.Info("daemon started",
		slog.String("addr", listener.Addr().String()),
		slog.String("db", d.cfg.Store.Path),
	)

	errCh := make(chan error, 1)
	go func() {
		errCh <- d.server.Serve(listener)
	}()

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// Shutdown stops the HTTP server, waits for live run workers to finish,
// and closes the store.
func (d *Daemon) Shutdown(ctx context.Context) error {
	d.logger.Info("shutting down")

	if d.server != nil {
		shutdownCtx, cancel := context.WithTimeout(ctx, d.cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := d.server.Shutdown(shutdownCtx); err != nil {
			d.logger.Error("HTTP shutdown error", log.Error(err))
		}
	}

	// Workers run detached; give them a chance to reach a durable state.
	// Interrupted runs are picked up by recovery on the next start.
	done := make(chan struct{})
	go func() {
		d.engine.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(d.cfg.Server.ShutdownTimeout):
		d.logger.Warn("timed out waiting for run workers; interrupted runs will be recovered on restart")
	}

	if d.shutdownTracing != nil {
		if err := d.shutdownTracing(context.Background()); err != nil {
			d.logger.Error("tracing shutdown error", log.Error(err))
		}
	}

	return d.store.Close()
}
