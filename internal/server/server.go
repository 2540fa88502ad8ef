// Package server sets up the HTTP server, router, and all route definitions.
//
// SERVER ARCHITECTURE:
// This package is the "wiring" layer — it connects repositories, services,
// handlers, and middleware. It is the composition root: every dependency in
// the application is assembled here, in one place, rather than scattered
// across the codebase.
//
// WHY SEPARATE FROM main.go?
// Keeping server setup in its own package makes it:
//   - Testable (a test can create a server without running main)
//   - Reusable (multiple entry points can share the same wiring)
//   - Clean (main.go stays minimal: load config, start server)
//
// DEPENDENCY INJECTION FLOW:
//
//	sqlite.DB → repository interfaces → services → handlers → routes
//
// Each layer only receives what it needs: services get repository
// interfaces (not the concrete sqlite.DB), handlers get services (not
// repositories), and routes get handlers.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/nafis/campus-hub/internal/auth"
	"github.com/nafis/campus-hub/internal/config"
	"github.com/nafis/campus-hub/internal/handler"
	"github.com/nafis/campus-hub/internal/metrics"
	"github.com/nafis/campus-hub/internal/middleware"
	sqliteRepo "github.com/nafis/campus-hub/internal/repository/sqlite"
	"github.com/nafis/campus-hub/internal/service"
)

// Server represents the HTTP server and all its dependencies.
//
// RESOURCE MANAGEMENT:
// The Server owns the database connection. When the server shuts down, the
// connection must be closed to flush the WAL and release the file lock;
// Start() handles this during graceful shutdown.
type Server struct {
	router  *chi.Mux
	config  *config.Config
	logger  *slog.Logger
	db      *sqliteRepo.DB
	limiter *middleware.RateLimiter
}

// New creates a Server with the whole dependency chain assembled:
//
//  1. Open the database (sqlite.New runs migrations)
//  2. Build the service layer over the repository interfaces
//  3. Build handlers over the services
//  4. Wire handlers to routes with their middleware
func New(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		db:     db,
	}

	if err := s.setupRoutes(); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting up routes: %w", err)
	}

	return s, nil
}

// setupRoutes configures all middleware and route handlers.
//
// ROUTE STRUCTURE:
//
//	POST /api/auth/register        → create a password account
//	POST /api/auth/login           → password login
//	POST /api/auth/logout          → clear the session cookie
//	GET  /api/me                   → current user (auth required)
//	GET  /api/users/{userID}/score → aggregate and return totals
//	GET  /api/leaderboard          → ranked views (scope=global|top|around)
//	POST /api/authorize            → capability gate query
//	POST /api/activities           → append a ledger entry (capability-gated)
//	GET  /auth/github/login        → OAuth redirect
//	GET  /auth/github/callback     → OAuth completion
//	GET  /metrics                  → Prometheus metrics
//	GET  /healthz                  → liveness probe
//
// MIDDLEWARE ORDER MATTERS — middleware runs in the order it's added:
//  1. RequestID / RealIP — tracing and client identity
//  2. Recoverer — catches panics, returns 500 instead of crashing
//  3. Logger — logs each request with timing
//  4. ResolveIdentity — credential → user snapshot in the context
//  5. RateLimiter — per-user (or per-IP) budgets, AFTER identity so
//     authenticated clients are limited by who they are, not where from
func (s *Server) setupRoutes() error {
	tokens, err := auth.NewTokenService(s.config.JWTSecret)
	if err != nil {
		return fmt.Errorf("creating token service: %w", err)
	}

	// === Metrics ===
	collector := metrics.NewCollector(prometheus.DefaultRegisterer)

	// === Services ===
	identitySvc := service.NewIdentityService(tokens, s.db, s.logger)
	reader := service.NewLedgerReader(s.db, collector, s.logger)
	scoreSvc := service.NewScoreService(reader, s.db, s.db, s.config.PointWeights, collector, s.logger)
	boardSvc := service.NewLeaderboardService(s.db, collector, s.logger)
	authSvc := service.NewAuthService(s.db, tokens, auth.NewPasswordService(s.config.BcryptCost), s.logger)

	// GitHub OAuth is optional: without credentials the routes 404 and
	// password auth carries the login flow alone.
	var github *auth.GitHubProvider
	if s.config.GitHubClientID != "" && s.config.GitHubClientSecret != "" {
		github = auth.NewGitHubProvider(
			s.config.GitHubClientID,
			s.config.GitHubClientSecret,
			s.config.GitHubCallbackURL,
		)
	} else {
		s.logger.Warn("GitHub OAuth not configured — only password login available")
	}

	// === Handlers ===
	authHandler := handler.NewAuthHandler(authSvc, github, s.logger)
	scoreHandler := handler.NewScoreHandler(scoreSvc, collector, s.logger)
	boardHandler := handler.NewLeaderboardHandler(boardSvc, s.config.AroundRadius, s.logger)
	authzHandler := handler.NewAuthorizeHandler(collector, s.logger)
	userHandler := handler.NewUserHandler(s.db, collector, s.logger)

	// === Global middleware ===
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.Logger(s.logger))

	// === Operational endpoints (no identity, no rate limit) ===
	s.router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	s.router.Handle("/metrics", metrics.Handler(prometheus.DefaultGatherer))

	// === OAuth flow (browser redirects, outside the JSON API) ===
	s.router.Get("/auth/github/login", authHandler.HandleGitHubLogin)
	s.router.Get("/auth/github/callback", authHandler.HandleGitHubCallback)

	// === API routes ===
	s.limiter = middleware.NewRateLimiter(s.config.RateLimit, s.config.RateLimitBurst)

	s.router.Route("/api", func(r chi.Router) {
		r.Use(auth.ResolveIdentity(identitySvc))
		r.Use(s.limiter.Handler)

		r.Post("/auth/register", authHandler.HandleRegister)
		r.Post("/auth/login", authHandler.HandleLogin)
		r.Post("/auth/logout", authHandler.HandleLogout)

		r.Get("/users/{userID}/score", scoreHandler.HandleGetScore)
		r.Get("/leaderboard", boardHandler.HandleLeaderboard)
		r.Post("/authorize", authzHandler.HandleAuthorize)

		// Routes that require a logged-in user. Capability checks happen
		// inside the handlers — which capability depends on the payload.
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireUser)
			r.Get("/me", authHandler.HandleMe)
			r.Post("/activities", scoreHandler.HandleRecordActivity)
			r.Put("/users/{userID}/upload-project", userHandler.HandleSetUploadProject)
		})
	})

	return nil
}

// Start runs the HTTP server until a shutdown signal arrives.
//
// GRACEFUL SHUTDOWN:
//  1. Stop accepting new connections
//  2. Wait for in-flight requests to finish (bounded by ShutdownTimeout)
//  3. Stop background housekeeping and close the database (flushes the
//     WAL, releases the file lock)
func (s *Server) Start() error {
	defer s.db.Close()
	defer s.limiter.Close()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("database", s.config.DBPath),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
