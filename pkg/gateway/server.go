// Copyright 2026 Talksy Authors
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

// Package gateway exposes the conversational service over HTTP and
// WebSocket: session lifecycle, chat streaming, tool execution, and the
// operational endpoints (health, metrics).
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/emadnahed/talksy/pkg/auth"
	"github.com/emadnahed/talksy/pkg/config"
	"github.com/emadnahed/talksy/pkg/llms"
	"github.com/emadnahed/talksy/pkg/observability"
	"github.com/emadnahed/talksy/pkg/ratelimit"
	"github.com/emadnahed/talksy/pkg/session"
	"github.com/emadnahed/talksy/pkg/storage"
	"github.com/emadnahed/talksy/pkg/tool"
)

// Server ties the gateway's components to an HTTP listener.
type Server struct {
	cfg       config.Config
	sessions  *session.Manager
	executor  *tool.Executor
	tools     *tool.Registry
	provider  llms.Provider
	limiter   *ratelimit.Limiter
	store     *storage.FailoverCoordinator
	validator *auth.JWTValidator
	metrics   observability.Metrics

	httpServer *http.Server
}

// Deps are the constructed components the server serves.
type Deps struct {
	Sessions  *session.Manager
	Executor  *tool.Executor
	Tools     *tool.Registry
	Provider  llms.Provider
	Limiter   *ratelimit.Limiter
	Store     *storage.FailoverCoordinator
	Validator *auth.JWTValidator
	Metrics   observability.Metrics
}

func NewServer(cfg config.Config, deps Deps) *Server {
	s := &Server{
		cfg:       cfg,
		sessions:  deps.Sessions,
		executor:  deps.Executor,
		tools:     deps.Tools,
		provider:  deps.Provider,
		limiter:   deps.Limiter,
		store:     deps.Store,
		validator: deps.Validator,
		metrics:   deps.Metrics,
	}
	if s.metrics == nil {
		s.metrics = observability.GetGlobalMetrics()
	}

	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	if s.cfg.Metrics.IsEnabled() {
		r.Handle("/metrics", promhttp.Handler())
	}

	r.Route("/v1", func(r chi.Router) {
		if s.validator != nil {
			r.Use(s.validator.HTTPMiddleware)
		}
		r.Use(ratelimit.Middleware(s.limiter, nil))

		r.Get("/tools", s.handleListTools)
		r.Post("/tools/{name}/execute", s.handleExecuteTool)
		r.Get("/sessions/{id}", s.handleGetSession)
		r.Delete("/sessions/{id}", s.handleDeleteSession)
		r.Post("/storage/reconnect", s.handleStorageReconnect)
		r.Get("/storage", s.handleStorageState)
	})

	// WebSocket clients authenticate via query parameter; the limiter
	// applies per message inside the connection, not per upgrade.
	if s.validator != nil {
		r.With(s.validator.HTTPMiddleware).Get("/ws", s.handleWebSocket)
	} else {
		r.Get("/ws", s.handleWebSocket)
	}

	return r
}

// Start serves until the context is cancelled, then drains connections
// within the configured shutdown timeout.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		slog.Info("Gateway listening", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("Shutting down gateway")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
	defer cancel()

	err := s.httpServer.Shutdown(shutdownCtx)
	s.sessions.Shutdown()
	s.limiter.Close()
	if s.store != nil {
		if closeErr := s.store.Close(); closeErr != nil {
			slog.Warn("Storage close failed", "error", closeErr)
		}
	}
	return err
}
