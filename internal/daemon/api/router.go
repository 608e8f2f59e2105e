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

// Package api provides the HTTP API for the daemon.
package api

import (
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/sablerun/sable/internal/daemon/httputil"
	"github.com/sablerun/sable/internal/log"
)

// RouterConfig holds configuration for the API router.
type RouterConfig struct {
	Version   string
	Commit    string
	BuildDate string

	// RateLimit and RateBurst throttle mutating requests. A zero RateLimit
	// disables throttling.
	RateLimit float64
	RateBurst int
}

// WorkerStatusProvider reports live worker counts for health checks.
type WorkerStatusProvider interface {
	ActiveWorkers() int
}

// MetricsHandler provides a Prometheus metrics endpoint.
type MetricsHandler interface {
	ServeHTTP(w http.ResponseWriter, r *http.Request)
}

// Router wraps an http.ServeMux with logging and rate-limit middleware.
type Router struct {
	mux            *http.ServeMux
	config         RouterConfig
	workerProvider WorkerStatusProvider
	limiter        *rate.Limiter
	logger         *slog.Logger
}

// NewRouter creates a new HTTP router with the base endpoints registered.
func NewRouter(cfg RouterConfig) *Router {
	r := &Router{
		mux:    http.NewServeMux(),
		config: cfg,
		logger: log.New(log.FromEnv()),
	}
	if cfg.RateLimit > 0 {
		r.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst)
	}

	r.mux.HandleFunc("GET /v1/health", r.handleHealth)
	r.mux.HandleFunc("GET /v1/version", r.handleVersion)

	// Root endpoint for basic connectivity check
	r.mux.HandleFunc("GET /", r.handleRoot)

	return r
}

// SetWorkerProvider sets the worker status provider for health checks.
func (r *Router) SetWorkerProvider(provider WorkerStatusProvider) {
	r.workerProvider = provider
}

// SetMetricsHandler sets the Prometheus metrics handler.
func (r *Router) SetMetricsHandler(handler MetricsHandler) {
	if handler != nil {
		r.mux.HandleFunc("GET /metrics", handler.ServeHTTP)
	}
}

// Mux returns the underlying ServeMux for registering additional routes.
func (r *Router) Mux() *http.ServeMux {
	return r.mux
}

// ServeHTTP implements http.Handler.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	// Mutating requests go through the shared limiter; reads are free.
	if r.limiter != nil && req.Method != http.MethodGet && req.Method != http.MethodHead {
		if !r.limiter.Allow() {
			w.Header().Set("Retry-After", "1")
			httputil.WriteError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
	}

	start := time.Now()
	defer func() {
		r.logger.Info("request completed",
			slog.String("method", req.Method),
			slog.String("path", req.URL.Path),
			slog.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
	}()

	r.mux.ServeHTTP(w, req)
}

// handleRoot handles GET / for basic connectivity.
func (r *Router) handleRoot(w http.ResponseWriter, req *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{
		"name":    "sabled",
		"version": r.config.Version,
	})
}

// handleHealth handles GET /v1/health.
func (r *Router) handleHealth(w http.ResponseWriter, req *http.Request) {
	resp := map[string]any{
		"status": "ok",
	}
	if r.workerProvider != nil {
		resp["active_workers"] = r.workerProvider.ActiveWorkers()
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

// handleVersion handles GET /v1/version.
func (r *Router) handleVersion(w http.ResponseWriter, req *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{
		"version":    r.config.Version,
		"commit":     r.config.Commit,
		"build_date": r.config.BuildDate,
	})
}
