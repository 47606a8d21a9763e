// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

// Package server exposes the resolver and chat sessions over HTTP.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/sigil-dev/supportbot/internal/resolver"
	"github.com/sigil-dev/supportbot/internal/session"
	boterr "github.com/sigil-dev/supportbot/pkg/errors"
	"github.com/sigil-dev/supportbot/pkg/health"
)

const shutdownTimeout = 10 * time.Second

// Config holds HTTP server configuration.
type Config struct {
	ListenAddr   string
	CORSOrigins  []string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	RateLimit    RateLimitConfig
	Version      string
}

// Resolver is the read-only view of the knowledge base the API needs.
type Resolver interface {
	Resolve(ctx context.Context, query string) resolver.Outcome
	Model() string
	Dim() int
	Len() int
}

// Services are the dependencies behind the routes. Health is optional.
type Services struct {
	Resolver  Resolver
	Presenter *session.Presenter
	Health    func() health.Metrics
}

// Server wraps a chi router with huma API and HTTP server.
type Server struct {
	router   chi.Router
	api      huma.API
	cfg      Config
	services Services
}

// New creates a Server with all routes registered.
func New(cfg Config, svc Services) (*Server, error) {
	if cfg.ListenAddr == "" {
		return nil, boterr.New(boterr.CodeServerStartFailure, "listen address is required")
	}
	if svc.Resolver == nil || svc.Presenter == nil {
		return nil, boterr.New(boterr.CodeServerStartFailure, "server needs a resolver and a session presenter")
	}
	if err := cfg.RateLimit.Validate(); err != nil {
		return nil, err
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 30 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 60 * time.Second
	}
	if cfg.Version == "" {
		cfg.Version = "dev"
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(corsMiddleware(cfg.CORSOrigins))
	r.Use(rateLimitMiddleware(cfg.RateLimit))

	humaConfig := huma.DefaultConfig("Supportbot API", cfg.Version)
	humaConfig.Info.Description = "Semantic-search customer support assistant"
	api := humachi.New(r, humaConfig)

	srv := &Server{
		router:   r,
		api:      api,
		cfg:      cfg,
		services: svc,
	}
	srv.registerRoutes()

	return srv, nil
}

// Handler returns the underlying http.Handler for testing.
func (s *Server) Handler() http.Handler {
	return s.router
}

// API returns the huma API.
func (s *Server) API() huma.API {
	return s.api
}

// Start runs the HTTP server and blocks until the context is cancelled,
// then performs graceful shutdown.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return boterr.Wrapf(err, boterr.CodeServerStartFailure, "listening on %s", s.cfg.ListenAddr)
	}
	return s.Serve(ctx, ln)
}

// Serve is Start on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	slog.Info("http server listening", "addr", ln.Addr().String())

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return boterr.Wrap(err, boterr.CodeServerStartFailure, "serving http")
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return boterr.Wrap(err, boterr.CodeServerShutdownFailure, "shutting down")
	}
	slog.Info("http server stopped")

	return <-errCh
}

func corsMiddleware(origins []string) func(http.Handler) http.Handler {
	if len(origins) == 0 {
		origins = []string{"http://localhost:5173"}
	}

	return cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	})
}
