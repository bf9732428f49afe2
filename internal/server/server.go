// Package server wires the application together: database, services,
// handlers, middleware, and routes, plus graceful startup and shutdown.
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

	"github.com/sakif/knowledgebase/internal/auth"
	"github.com/sakif/knowledgebase/internal/handler"
	"github.com/sakif/knowledgebase/internal/mail"
	"github.com/sakif/knowledgebase/internal/middleware"
	sqliteRepo "github.com/sakif/knowledgebase/internal/repository/sqlite"
	"github.com/sakif/knowledgebase/internal/service"
)

// Config holds everything the server needs to start.
type Config struct {
	Port           int
	DBPath         string
	SessionSecret  string
	SessionTTL     time.Duration
	TokenTTL       time.Duration
	ResendCooldown time.Duration
	SiteURL        string

	// SMTP settings; when Host is empty, outgoing mail is logged
	// instead of delivered.
	SMTPHost     string
	SMTPPort     int
	SMTPFrom     string
	SMTPUsername string
	SMTPPassword string
}

// Server owns the router and the database connection. The connection is
// closed during graceful shutdown.
type Server struct {
	router *chi.Mux
	config Config
	logger *slog.Logger
	db     *sqliteRepo.DB
}

// New assembles the dependency chain: database, auth services, domain
// services, handlers, routes. Each layer receives only the interfaces it
// needs.
func New(cfg Config, logger *slog.Logger) (*Server, error) {
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

func (s *Server) mailer() mail.Sender {
	if s.config.SMTPHost == "" {
		s.logger.Warn("SMTP not configured; verification emails will be logged, not sent")
		return mail.NewLogSender(s.logger)
	}
	return mail.NewSMTPSender(
		s.config.SMTPHost,
		s.config.SMTPPort,
		s.config.SMTPFrom,
		s.config.SMTPUsername,
		s.config.SMTPPassword,
	)
}

func (s *Server) setupRoutes() error {
	sessions, err := auth.NewSessionService(s.config.SessionSecret, s.config.SessionTTL)
	if err != nil {
		return fmt.Errorf("creating session service: %w", err)
	}
	verification, err := auth.NewVerificationService(s.config.SessionSecret, s.config.TokenTTL)
	if err != nil {
		return fmt.Errorf("creating verification service: %w", err)
	}
	passwords := auth.NewPasswordService()

	accountService := service.NewAccountService(
		s.db, passwords, verification, s.mailer(),
		s.config.SiteURL, s.config.ResendCooldown, s.logger,
	)
	articleService := service.NewArticleService(s.db, s.db, s.db, s.logger)
	adminService := service.NewAdminService(s.db, s.db, s.db, s.logger)

	authHandler := handler.NewAuthHandler(accountService, sessions, s.logger)
	accountHandler := handler.NewAccountHandler(accountService, s.logger)
	articleHandler := handler.NewArticleHandler(articleService, s.logger)
	adminHandler := handler.NewAdminHandler(adminService, s.logger)

	r := s.router

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.Logger(s.logger))
	r.Use(auth.CSRF)
	// Every request resolves its user fresh from the database, so admin
	// demotions and deletions take effect on the next request.
	r.Use(auth.WithUser(sessions, s.db))

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
	})

	// Public routes: anyone can reach these, signed in or not. The
	// verification link must work without a session, because the user
	// may open it in a different browser.
	r.Get("/sign-up", authHandler.HandleShowSignUp)
	r.Post("/sign-up", authHandler.HandleSignUp)
	r.Get("/sign-in", authHandler.HandleShowSignIn)
	r.Post("/sign-in", authHandler.HandleSignIn)
	r.Get("/verify/{token}", authHandler.HandleVerify)

	// Signed-in routes that must stay reachable while unverified, or the
	// user could never complete (or escape) the verification flow.
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireUser)
		r.Post("/sign-out", authHandler.HandleSignOut)
		r.Get("/re-verify", authHandler.HandleShowReVerify)
		r.Post("/re-verify", authHandler.HandleReVerify)
	})

	// The application proper: signed-in AND verified.
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireUser)
		r.Use(auth.RequireVerified("/verify", "/re-verify", "/sign-out"))

		r.Get("/dashboard", articleHandler.HandleDashboard)

		r.Get("/articles/new", articleHandler.HandleShowNew)
		r.Post("/articles", articleHandler.HandleCreate)
		r.Get("/articles/{slug}", articleHandler.HandleGet)
		r.Get("/articles/{slug}/edit", articleHandler.HandleShowEdit)
		r.Post("/articles/{slug}/edit", articleHandler.HandleUpdate)
		r.Post("/articles/{slug}/delete", articleHandler.HandleDelete)

		r.Get("/account", accountHandler.HandleShowAccount)
		r.Post("/account", accountHandler.HandleUpdateAccount)
		r.Post("/account/password", accountHandler.HandleChangePassword)
	})

	// Admin console: verified admins only.
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireUser)
		r.Use(auth.RequireVerified("/verify", "/re-verify", "/sign-out"))
		r.Use(auth.RequireAdmin)

		r.Get("/admin", adminHandler.HandleDashboard)
		r.Get("/admin/users", adminHandler.HandleListUsers)
		r.Get("/admin/users/{id}", adminHandler.HandleGetUser)
		r.Post("/admin/users/{id}/delete", adminHandler.HandleDeleteUser)
		r.Post("/admin/users/{id}/toggle-admin", adminHandler.HandleToggleAdmin)
		r.Get("/admin/groups", adminHandler.HandleListGroups)
		r.Post("/admin/groups", adminHandler.HandleCreateGroup)
		r.Get("/admin/groups/{id}", adminHandler.HandleGetGroup)
		r.Post("/admin/groups/{id}", adminHandler.HandleUpdateGroup)
		r.Post("/admin/groups/{id}/delete", adminHandler.HandleDeleteGroup)
	})

	return nil
}

// Handler exposes the assembled router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start runs the HTTP server until SIGINT/SIGTERM, then shuts down
// gracefully: stop accepting connections, drain in-flight requests, and
// close the database so the WAL is flushed.
func (s *Server) Start() error {
	defer s.db.Close()

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

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
