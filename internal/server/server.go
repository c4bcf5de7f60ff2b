// Package server is the composition root: it builds every service from
// config, mounts the handlers on a chi router, and runs the HTTP server.
//
// DEPENDENCY FLOW:
//
//	cmd/elibrary  → config.Load, sqldb.Open, logger.New
//	server.New    → TokenService, services, handlers, routes
//	Server.Start  → ListenAndServe until SIGINT/SIGTERM, then drain and close
//
// Tests build a full Server around a temporary database and drive it
// through Handler.
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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/sakif/elibrary/internal/auth"
	"github.com/sakif/elibrary/internal/config"
	"github.com/sakif/elibrary/internal/handler"
	"github.com/sakif/elibrary/internal/metrics"
	"github.com/sakif/elibrary/internal/middleware"
	"github.com/sakif/elibrary/internal/repository/sqldb"
	"github.com/sakif/elibrary/internal/service"
)

// Server owns the router and, from New onwards, the database: Start and
// Close both close it.
type Server struct {
	router   *chi.Mux
	config   *config.Config
	logger   *slog.Logger
	db       *sqldb.DB
	limiter  *middleware.RateLimiter
	registry *prometheus.Registry
}

// New wires the application. It fails if the token service cannot be
// configured (missing or short JWT_SECRET); the error wraps the
// *auth.ConfigError so callers can report which setting is wrong.
func New(cfg *config.Config, db *sqldb.DB, logger *slog.Logger) (*Server, error) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	recorder := metrics.NewCollector(registry)

	tokens, err := auth.NewTokenService(auth.TokenConfig{
		Secret: cfg.JWTSecret,
		TTL:    cfg.TokenTTL,
	}, db)
	if err != nil {
		return nil, fmt.Errorf("configuring tokens: %w", err)
	}
	passwords := auth.NewPasswordService(cfg.BcryptCost)

	s := &Server{
		router:   chi.NewRouter(),
		config:   cfg,
		logger:   logger,
		db:       db,
		limiter:  middleware.NewRateLimiter(middleware.PerMinute(cfg.AuthRatePerMinute, cfg.AuthRateBurst), logger),
		registry: registry,
	}

	authService := service.NewAuthService(db, tokens, passwords, service.LogNotifier{Logger: logger}, recorder, logger)
	userService := service.NewUserService(db, passwords, logger)
	bookService := service.NewBookService(db, logger)
	borrowService := service.NewBorrowService(db, recorder, logger)
	reactionService := service.NewReactionService(db, logger)

	s.setupRoutes(
		tokens,
		recorder,
		handler.NewAuthHandler(authService, logger),
		handler.NewBookHandler(bookService, borrowService, logger),
		handler.NewUserHandler(userService, reactionService, logger),
	)
	return s, nil
}

// setupRoutes mounts every endpoint.
//
// MIDDLEWARE ORDER (outermost first):
//  1. RequestID, RealIP   → chi built-ins; RealIP feeds the rate limiter
//  2. Logger, Metrics     → see the final status, including a recovered panic
//  3. Recoverer           → turns a panic into a 500
//  4. CORS                → answers preflights before routing
//
// ROUTES:
//
//	GET    /metrics                          public
//	POST   /auth/register|login|forgot-password  public, rate limited
//	POST   /auth/logout                      bearer
//	GET    /books/all                        public
//	POST   /books/borrow                     bearer
//	PUT    /books/return/{book_id}           bearer
//	GET    /borrowing_history                bearer
//	PUT    /user/update/{user_id}            bearer (self)
//	DELETE /user/delete[/{user_id_delete}]   bearer (admin + password, checked in service)
//	POST   /user/like, /user/favorite        bearer, DELETE to undo
//	GET    /user/{user_id}/favorites         bearer (self or admin)
//	POST   /books/add, PUT /books/update/{book_id}, DELETE /books/delete/{book_id}  admin
//	GET    /user/all, POST /user/add         admin
func (s *Server) setupRoutes(
	tokens *auth.TokenService,
	recorder metrics.Recorder,
	authHandler *handler.AuthHandler,
	bookHandler *handler.BookHandler,
	userHandler *handler.UserHandler,
) {
	r := s.router
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logger(s.logger))
	r.Use(middleware.Metrics(recorder))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(s.config.CORSAllowedOrigin))

	r.Handle("/metrics", metrics.Handler(s.registry))

	requireAuth := auth.RequireAuth(tokens, s.logger)

	r.Route("/auth", func(r chi.Router) {
		r.With(s.limiter.Middleware).Post("/register", authHandler.HandleRegister)
		r.With(s.limiter.Middleware).Post("/login", authHandler.HandleLogin)
		r.With(s.limiter.Middleware).Post("/forgot-password", authHandler.HandleForgotPassword)
		r.With(requireAuth).Post("/logout", authHandler.HandleLogout)
	})

	r.Get("/books/all", bookHandler.HandleList)

	r.Group(func(r chi.Router) {
		r.Use(requireAuth)

		r.Post("/books/borrow", bookHandler.HandleBorrow)
		r.Put("/books/return/{book_id}", bookHandler.HandleReturn)
		r.Get("/borrowing_history", bookHandler.HandleHistory)

		r.Put("/user/update/{user_id}", userHandler.HandleUpdate)
		r.Delete("/user/delete", userHandler.HandleDelete)
		r.Delete("/user/delete/{user_id_delete}", userHandler.HandleDelete)

		r.Post("/user/like", userHandler.HandleLike())
		r.Delete("/user/like", userHandler.HandleUnlike())
		r.Post("/user/favorite", userHandler.HandleFavorite())
		r.Delete("/user/favorite", userHandler.HandleUnfavorite())
		r.Get("/user/{user_id}/favorites", userHandler.HandleFavorites)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAdmin)

			r.Post("/books/add", bookHandler.HandleAdd)
			r.Put("/books/update/{book_id}", bookHandler.HandleUpdate)
			r.Delete("/books/delete/{book_id}", bookHandler.HandleDelete)

			r.Get("/user/all", userHandler.HandleList)
			r.Post("/user/add", userHandler.HandleAdd)
		})
	})
}

// Handler exposes the router, for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Close releases what New acquired. Start calls it on the way out.
func (s *Server) Close() error {
	s.limiter.Stop()
	return s.db.Close()
}

// Start serves until SIGINT or SIGTERM, then gives in-flight requests up to
// 30 seconds to finish before closing the database.
func (s *Server) Start() error {
	defer s.Close()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("driver", s.db.Driver()),
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

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
