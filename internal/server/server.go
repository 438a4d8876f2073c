// Package server exposes the training status API.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/aristath/orium/internal/database"
	"github.com/aristath/orium/internal/runs"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"
)

// RunReader is the read side of the runs repository
type RunReader interface {
	GetRun(ctx context.Context, runID string) (*runs.Run, error)
	ListRuns(ctx context.Context, limit int) ([]runs.Run, error)
	ListEpisodes(ctx context.Context, runID string) ([]runs.Episode, error)
	Summary(ctx context.Context, runID string) (*runs.Summary, error)
}

// Config holds server configuration
type Config struct {
	Log     zerolog.Logger
	Port    int
	RunsDB  *database.DB
	Runs    RunReader
	Tracker *Tracker
}

// Server represents the HTTP server
type Server struct {
	router  *chi.Mux
	server  *http.Server
	log     zerolog.Logger
	port    int
	runsDB  *database.DB
	runs    RunReader
	tracker *Tracker
	system  *SystemHandlers
}

// New creates a new HTTP server
func New(cfg Config) *Server {
	tracker := cfg.Tracker
	if tracker == nil {
		tracker = NewTracker()
	}

	s := &Server{
		router:  chi.NewRouter(),
		log:     cfg.Log.With().Str("component", "server").Logger(),
		port:    cfg.Port,
		runsDB:  cfg.RunsDB,
		runs:    cfg.Runs,
		tracker: tracker,
	}
	s.system = NewSystemHandlers(s.log, cfg.RunsDB)

	s.setupMiddleware()
	s.setupRoutes()

	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	return s
}

// setupMiddleware configures middleware
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(middleware.Timeout(15 * time.Second))

	// Read-only API, any origin may poll it
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))
}

// setupRoutes configures all routes
func (s *Server) setupRoutes() {
	s.router.Get("/", s.handleRoot)
	s.router.Get("/health", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/training/status", s.handleTrainingStatus)
		r.Get("/system", s.system.HandleSystemStatus)

		r.Route("/runs", func(r chi.Router) {
			r.Get("/", s.handleListRuns)
			r.Get("/{id}", s.handleGetRun)
			r.Get("/{id}/episodes", s.handleListEpisodes)
		})
	})
}

// Handler returns the root handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// Tracker returns the live training tracker
func (s *Server) Tracker() *Tracker {
	return s.tracker
}

// Start starts the HTTP server and blocks until it stops
func (s *Server) Start() error {
	s.log.Info().Int("port", s.port).Msg("Starting HTTP server")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration_ms", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}
