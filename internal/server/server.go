// Package server sets up the HTTP server, router, and all route definitions.
//
// SERVER ARCHITECTURE:
// This package is the "wiring" layer — it connects handlers, middleware, and routes.
// It decides:
// - Which storage backend the catalog runs on
// - Which URL patterns map to which handler functions
// - What middleware runs on which routes
// - How the server starts and stops gracefully
//
// DEPENDENCY INJECTION FLOW:
// cmd/server loads config.Config and a logger, then
//
//	Server.New() creates: storage (sqlite or postgres) → BookService → handlers
//
// This is the "composition root" pattern — all dependencies are wired
// in one place (New/setupRoutes), rather than scattered across the codebase.
// Nothing is a package-level singleton, so tests can build as many servers
// as they like.
package server

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sakif/library-catalog/internal/config"
	"github.com/sakif/library-catalog/internal/handler"
	"github.com/sakif/library-catalog/internal/middleware"
	"github.com/sakif/library-catalog/internal/repository"
	"github.com/sakif/library-catalog/internal/repository/postgres"
	"github.com/sakif/library-catalog/internal/repository/sqlite"
	"github.com/sakif/library-catalog/internal/service"
	"github.com/sakif/library-catalog/web"
)

// Storage is a BookRepository the server owns and must close on shutdown.
type Storage interface {
	repository.BookRepository
	Close() error
}

// Server represents the HTTP server and all its dependencies.
//
// RESOURCE MANAGEMENT:
// The Server owns the storage connection. When the server shuts down it is
// closed after in-flight requests finish, so pending writes are flushed and
// the sqlite file lock (or the postgres pool) is released.
type Server struct {
	router *chi.Mux
	config config.Config
	logger *slog.Logger
	store  Storage
	books  *service.BookService
	views  *handler.Renderer
}

// OpenStorage connects to the backend selected by cfg.DB.Driver.
func OpenStorage(ctx context.Context, cfg config.DBConfig, logger *slog.Logger) (Storage, error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		logger.Info("connecting to postgres", slog.String("dsn", postgres.RedactDSN(cfg.DSN)))
		return postgres.New(ctx, cfg.DSN)

	case config.DriverSQLite:
		if cfg.Path != sqlite.MemoryPath {
			// os.MkdirAll creates all parent directories if needed (like `mkdir -p`).
			if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
				return nil, fmt.Errorf("creating database directory: %w", err)
			}
		}
		logger.Info("opening sqlite database", slog.String("path", cfg.Path))
		return sqlite.New(cfg.Path)

	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

// New opens the storage named in cfg and builds a Server on it.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Server, error) {
	store, err := OpenStorage(ctx, cfg.DB, logger)
	if err != nil {
		return nil, fmt.Errorf("opening storage: %w", err)
	}

	s, err := NewWithStorage(cfg, store, logger)
	if err != nil {
		store.Close() // Clean up storage if route setup fails
		return nil, err
	}
	return s, nil
}

// NewWithStorage builds a Server on an already opened store. The server
// takes ownership of store.
func NewWithStorage(cfg config.Config, store Storage, logger *slog.Logger) (*Server, error) {
	templates := web.Templates()
	if cfg.TemplatesDir != "" {
		templates = os.DirFS(cfg.TemplatesDir)
	}
	views, err := handler.NewRenderer(templates, logger)
	if err != nil {
		return nil, fmt.Errorf("loading templates: %w", err)
	}

	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		store:  store,
		books:  service.NewBookService(store, logger),
		views:  views,
	}
	s.setupRoutes()
	return s, nil
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupRoutes configures all middleware and route handlers.
//
// ROUTE STRUCTURE:
// GET       /                     → redirect to /books/page/1
// GET       /health               → "ok"
// GET       /version              → version string
// GET       /ready                → storage reachability
// GET       /static/*             → CSS
// GET       /books                → redirect to /books/page/1
// POST      /books                → search (searchInput)
// GET       /books/page/{page}    → listing page
// GET,POST  /books/new            → create form / submit
// GET       /books/{id}           → details
// GET,POST  /books/{id}/edit      → update form / submit
// GET,POST  /books/{id}/delete    → confirm / delete
//
// MIDDLEWARE ORDER MATTERS:
// 1. RequestID — assigns unique ID to each request (for tracing)
// 2. RealIP — only with trust_proxy: takes the client IP from proxy headers
// 3. Logger — logs each request with timing info and the request id
// 4. Recoverer — turns a panic into the 500 error page
// 5. RateLimiter — per-client token bucket (when enabled); the probes are
//    exempt so an orchestrator is never refused
// 6. RequestSize — caps form bodies; reading past it fails with
//    *http.MaxBytesError, which the error page turns into a 413
func (s *Server) setupRoutes() {
	errs := handler.NewErrorResponder(s.views, s.logger)

	s.router.Use(chimiddleware.RequestID)
	if s.config.TrustProxy {
		// Forwarded headers are client-controlled unless a proxy overwrites them.
		s.router.Use(chimiddleware.RealIP)
	}
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(middleware.Recoverer(s.logger, errs.RenderError))
	if s.config.RateLimit.RPS > 0 {
		limiter := middleware.NewRateLimiter(s.config.RateLimit.RPS, s.config.RateLimit.Burst, errs.RenderError)
		s.router.Use(limiter.Except("/health", "/version", "/ready"))
	}
	s.router.Use(chimiddleware.RequestSize(s.config.MaxFormBytes))

	s.router.NotFound(errs.NotFound)
	s.router.MethodNotAllowed(errs.MethodNotAllowed)

	// === Static Files ===
	// GET /static/css/style.css → serves css/style.css from the asset tree
	var static fs.FS = web.Static()
	if s.config.StaticDir != "" {
		static = os.DirFS(s.config.StaticDir)
	}
	s.router.Handle("/static/*", http.StripPrefix("/static/", http.FileServerFS(static)))

	// === Probes ===
	health := handler.NewHealthHandler(s.config.Version, s.books, s.logger)
	s.router.Get("/health", health.HandleHealth)
	s.router.Get("/version", health.HandleVersion)
	s.router.Get("/ready", health.HandleReady)

	// === Catalog ===
	books := handler.NewBookHandler(s.books, s.views, s.logger)

	s.router.Get("/", handler.RedirectToFirstPage)
	s.router.Route("/books", func(r chi.Router) {
		r.Get("/", handler.RedirectToFirstPage)
		r.Post("/", errs.Wrap(books.HandleSearch))
		r.Get("/page/{page}", errs.Wrap(books.HandlePage))
		r.Get("/new", errs.Wrap(books.HandleNew))
		r.Post("/new", errs.Wrap(books.HandleCreate))
		r.Get("/{id}", errs.Wrap(books.HandleShow))
		r.Get("/{id}/edit", errs.Wrap(books.HandleEdit))
		r.Post("/{id}/edit", errs.Wrap(books.HandleUpdate))
		r.Get("/{id}/delete", errs.Wrap(books.HandleConfirmDelete))
		r.Post("/{id}/delete", errs.Wrap(books.HandleDelete))
	})
}

// Close releases the storage connection.
func (s *Server) Close() error {
	return s.store.Close()
}

// Start starts the HTTP server and handles graceful shutdown.
//
// GRACEFUL SHUTDOWN:
// 1. Stop accepting new HTTP connections
// 2. Wait for in-flight requests to finish (30s timeout)
// 3. Stop the template watcher, if running
// 4. Close the storage connection
func (s *Server) Start() error {
	// Ensure storage is closed when the server stops.
	// This runs AFTER everything else in this function finishes.
	defer s.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if s.config.Dev {
		go func() {
			if err := s.views.WatchDir(ctx, s.config.TemplatesDir); err != nil {
				s.logger.Error("template watcher stopped", slog.String("error", err.Error()))
			}
		}()
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", s.config.Port)),
			slog.String("storage", s.config.DB.Driver),
			slog.String("version", s.config.Version),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	// Block until we receive a signal or server error
	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case <-ctx.Done():
		s.logger.Info("shutdown signal received")

		// Give in-flight requests 30 seconds to complete
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
