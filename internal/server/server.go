// Package server sets up the HTTP server, router, and all route definitions.
//
// This package is the "wiring" layer: it connects services, handlers,
// middleware, and routes. main.go opens the store and loads config, then
// hands both to New. Tests do the same with an in-memory SQLite store and
// drive the router through Handler().
//
// DEPENDENCY INJECTION FLOW:
//
//	config + store → Policy, TokenService, PasswordService
//	              → AuthService, UserService, LocationService
//	              → handlers → routes
//
// This is the "composition root": everything is built here and nowhere else.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sakif/teamterrain/internal/auth"
	"github.com/sakif/teamterrain/internal/authz"
	"github.com/sakif/teamterrain/internal/config"
	"github.com/sakif/teamterrain/internal/handler"
	"github.com/sakif/teamterrain/internal/middleware"
	"github.com/sakif/teamterrain/internal/model"
	"github.com/sakif/teamterrain/internal/repository"
	"github.com/sakif/teamterrain/internal/service"
)

// shutdownTimeout is how long in-flight requests get after SIGINT/SIGTERM.
const shutdownTimeout = 30 * time.Second

// Server represents the HTTP server and all its dependencies.
//
// The Server owns the store: Start closes it after the HTTP server has
// drained, so no request ever sees a closed database.
type Server struct {
	router *chi.Mux
	config *config.Config
	logger *slog.Logger
	store  repository.Store

	authService *service.AuthService
}

// New wires services and routes around an open store.
func New(cfg *config.Config, logger *slog.Logger, store repository.Store) (*Server, error) {
	tokens, err := auth.NewTokenService(cfg.JWTSecret, cfg.JWTExpiresIn)
	if err != nil {
		return nil, fmt.Errorf("creating token service: %w", err)
	}
	passwords := auth.NewPasswordService(cfg.BcryptCost)
	policy := authz.NewPolicy(cfg.AdminEmails)

	if len(cfg.AdminEmails) == 0 && cfg.APIAuthToken == "" {
		logger.Warn("no ADMIN_EMAILS or API_AUTH_TOKEN configured; users can only change their own pins")
	}

	s := &Server{
		router:      chi.NewRouter(),
		config:      cfg,
		logger:      logger,
		store:       store,
		authService: service.NewAuthService(store, tokens, passwords, policy, logger),
	}

	// API key first, then session token.
	authn := auth.NewAuthenticator(
		auth.NewAPIKeyStrategy(cfg.APIAuthToken),
		auth.NewTokenStrategy(tokens).WithUsers(store),
	)

	s.setupRoutes(
		authn,
		service.NewUserService(store, store, policy, logger),
		service.NewLocationService(store, store, policy, logger),
	)

	return s, nil
}

// setupRoutes configures middleware and routes.
//
// ROUTE STRUCTURE:
//
//	GET    /health                      → store ping
//	GET    /metrics                     → Prometheus exposition
//	POST   /auth/register               → create account     (rate limited)
//	POST   /auth/login                  → get a token        (rate limited)
//	GET    /auth/verify                 → check a token
//	GET    /users                       → list users         (auth)
//	GET    /users/{id}                  → one user           (auth)
//	PUT    /users/{id}                  → edit profile       (auth)
//	DELETE /users/{id}                  → delete user        (auth)
//	GET    /users/{id}/locations        → full history       (auth)
//	POST   /location/update             → pin/move/clear     (auth)
//	GET    /location/history/{userId}   → paged history      (auth)
//	DELETE /location/history/{userId}   → clear history      (auth)
//	GET    /location/all                → recent, all users  (auth)
//
// MIDDLEWARE ORDER MATTERS:
// RequestID runs first so every later log line can carry the id; Recoverer
// sits inside Logger and Metrics so a panic is still logged and counted as
// a 500.
func (s *Server) setupRoutes(authn *auth.Authenticator, users *service.UserService, locations *service.LocationService) {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(middleware.Metrics)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.CORS(s.config.CORSAllowedOrigins))

	errs := handler.NewErrorWriter(s.logger, !s.config.IsProduction())
	authHandler := handler.NewAuthHandler(s.authService, errs)
	userHandler := handler.NewUserHandler(users, errs)
	locationHandler := handler.NewLocationHandler(locations, errs)
	healthHandler := handler.NewHealthHandler(s.store, s.logger)

	s.router.Get("/health", healthHandler.HandleHealth)
	s.router.Handle("/metrics", promhttp.Handler())

	s.router.Route("/auth", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(middleware.RateLimitByIP(s.config.AuthRateLimit, time.Minute))
			r.Post("/register", authHandler.HandleRegister)
			r.Post("/login", authHandler.HandleLogin)
		})
		r.Get("/verify", authHandler.HandleVerify)
	})

	s.router.Group(func(r chi.Router) {
		r.Use(auth.RequireAuth(authn))

		r.Route("/users", func(r chi.Router) {
			r.Get("/", userHandler.HandleList)
			r.Get("/{id}", userHandler.HandleGet)
			r.Put("/{id}", userHandler.HandleUpdate)
			r.Delete("/{id}", userHandler.HandleDelete)
			r.Get("/{id}/locations", userHandler.HandleLocations)
		})

		r.Route("/location", func(r chi.Router) {
			r.Post("/update", locationHandler.HandleUpdate)
			r.Get("/history/{userId}", locationHandler.HandleHistory)
			r.Delete("/history/{userId}", locationHandler.HandleClearHistory)
			r.Get("/all", locationHandler.HandleRecent)
		})
	})
}

// Handler exposes the router, mainly for httptest.
func (s *Server) Handler() http.Handler {
	return s.router
}

// BootstrapAdmin creates the configured admin account if it does not exist
// yet. With no BOOTSTRAP_ADMIN_EMAIL set it does nothing.
func (s *Server) BootstrapAdmin(ctx context.Context) error {
	admin := s.config.BootstrapAdmin
	if admin.Email == "" {
		return nil
	}

	user, created, err := s.authService.EnsureUser(ctx, service.RegisterInput{
		Name:     admin.Name,
		Email:    admin.Email,
		Password: admin.Password,
	})
	if err != nil {
		return fmt.Errorf("bootstrapping admin %s: %w", admin.Email, err)
	}

	if created {
		s.logger.Info("admin account created", slog.String("userID", user.ID), slog.String("email", user.Email))
	}
	if !authz.NewPolicy(s.config.AdminEmails).IsAdmin(model.Principal{UserID: user.ID, Email: user.Email}) {
		s.logger.Warn("bootstrap admin is not listed in ADMIN_EMAILS and has no admin rights",
			slog.String("email", admin.Email),
		)
	}
	return nil
}

// Start starts the HTTP server and handles graceful shutdown.
//
// GRACEFUL SHUTDOWN:
//  1. Stop accepting new connections
//  2. Wait up to 30s for in-flight requests
//  3. Close the store
func (s *Server) Start() error {
	defer func() {
		if err := s.store.Close(); err != nil {
			s.logger.Error("closing store", slog.String("error", err.Error()))
		}
	}()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.config.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("env", s.config.Env),
			slog.String("driver", s.config.DB.Driver),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
