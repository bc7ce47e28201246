// Package server provides the HTTP server and routing for Coffer.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"coffer/internal/database"
	"coffer/internal/modules/ledger"
	ledgerhandlers "coffer/internal/modules/ledger/handlers"
	"coffer/internal/modules/pool"
	poolhandlers "coffer/internal/modules/pool/handlers"
	"coffer/internal/modules/settings"
	settingshandlers "coffer/internal/modules/settings/handlers"
	"coffer/internal/modules/snapshots"
	snapshotshandlers "coffer/internal/modules/snapshots/handlers"
)

// Config holds server configuration
type Config struct {
	Log             zerolog.Logger
	Pool            *pool.Pool
	StrategyFactory poolhandlers.StrategyFactory
	LedgerRepo      *ledger.Repository
	SettingsRepo    *settings.Repository
	SnapshotsRepo   *snapshots.Repository
	ConfigDB        *database.DB
	LedgerDB        *database.DB
	SnapshotsDB     *database.DB
	Port            int
	DevMode         bool
}

// Server represents the HTTP server
type Server struct {
	router      *chi.Mux
	server      *http.Server
	log         zerolog.Logger
	pool        *pool.Pool
	factory     poolhandlers.StrategyFactory
	ledgerRepo  *ledger.Repository
	settings    *settings.Repository
	snapshots   *snapshots.Repository
	configDB    *database.DB
	ledgerDB    *database.DB
	snapshotsDB *database.DB
}

// New creates a new HTTP server
func New(cfg Config) *Server {
	s := &Server{
		router:      chi.NewRouter(),
		log:         cfg.Log.With().Str("component", "server").Logger(),
		pool:        cfg.Pool,
		factory:     cfg.StrategyFactory,
		ledgerRepo:  cfg.LedgerRepo,
		settings:    cfg.SettingsRepo,
		snapshots:   cfg.SnapshotsRepo,
		configDB:    cfg.ConfigDB,
		ledgerDB:    cfg.LedgerDB,
		snapshotsDB: cfg.SnapshotsDB,
	}

	s.setupMiddleware(cfg.DevMode)
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// setupMiddleware configures middleware
func (s *Server) setupMiddleware(devMode bool) {
	// Recovery from panics
	s.router.Use(middleware.Recoverer)

	// Request ID
	s.router.Use(middleware.RequestID)

	// Real IP
	s.router.Use(middleware.RealIP)

	// Logging
	s.router.Use(s.loggingMiddleware)

	// Timeout
	s.router.Use(middleware.Timeout(60 * time.Second))

	// CORS
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Compress responses
	if !devMode {
		s.router.Use(middleware.Compress(5))
	}
}

// setupRoutes configures all routes
func (s *Server) setupRoutes() {
	// Health check
	s.router.Get("/health", s.handleHealth)

	// API routes
	s.router.Route("/api", func(r chi.Router) {
		// Database statistics
		r.Get("/system/stats", s.handleStats)

		// Pool module: deposits, withdrawals, keeper operations, emergency path
		poolHandler := poolhandlers.NewHandler(s.pool, s.factory, s.log)
		poolHandler.RegisterRoutes(r)

		// Ledger module: audit trail of every capital movement
		ledgerHandler := ledgerhandlers.NewHandler(s.ledgerRepo, s.log)
		ledgerHandler.RegisterRoutes(r)

		// Settings module: persisted overrides pushed into the live pool
		settingsHandler := settingshandlers.NewHandler(s.settings, s.pool, s.log)
		settingsHandler.RegisterRoutes(r)

		// Snapshots module: periodic pool state captures
		snapshotsHandler := snapshotshandlers.NewHandler(s.snapshots, s.pool, s.log)
		snapshotsHandler.RegisterRoutes(r)
	})
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.server.Addr).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
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

		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration_ms", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}
