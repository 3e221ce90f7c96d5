package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/xtradermorph/traders-journal-sub000/internal/achievement"
	"github.com/xtradermorph/traders-journal-sub000/internal/database"
	"github.com/xtradermorph/traders-journal-sub000/internal/metrics"
)

// Config holds server dependencies.
type Config struct {
	Port           int
	AllowedOrigins []string
	Logger         *zap.Logger
	Store          *database.Store
	Service        *achievement.Service
	Metrics        *metrics.Metrics
}

// Server is the journal HTTP API.
type Server struct {
	router  *chi.Mux
	server  *http.Server
	logger  *zap.Logger
	store   *database.Store
	service *achievement.Service
	metrics *metrics.Metrics
	now     func() time.Time
}

// New creates a new HTTP server.
func New(cfg Config) *Server {
	s := &Server{
		router:  chi.NewRouter(),
		logger:  cfg.Logger.Named("api-server"),
		store:   cfg.Store,
		service: cfg.Service,
		metrics: cfg.Metrics,
		now:     time.Now,
	}

	s.setupMiddleware(cfg.AllowedOrigins)
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

func (s *Server) setupMiddleware(allowedOrigins []string) {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(middleware.Timeout(30 * time.Second))

	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))
}

func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)
	s.router.Handle("/metrics", s.metrics.Handler())

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/medal", s.handleClassifyWinRate)
		r.Get("/medals/tiers", s.handleTiers)

		r.Route("/traders", func(r chi.Router) {
			r.Get("/", s.handleListTraders)
			r.Post("/", s.handleCreateTrader)

			r.Route("/{traderID}", func(r chi.Router) {
				r.Get("/", s.handleGetTrader)
				r.Get("/trades", s.handleListTrades)
				r.Post("/trades", s.handleCreateTrade)
				r.Get("/statistics", s.handleStatistics)
				r.Get("/medal", s.handleMedal)
			})
		})
	})
}

// loggingMiddleware logs each request and records request metrics.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		elapsed := time.Since(start)
		s.metrics.ObserveRequest(route, strconv.Itoa(status), elapsed.Seconds())

		s.logger.Debug("HTTP request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", status),
			zap.Duration("duration", elapsed),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start runs the HTTP server in a new goroutine.
func (s *Server) Start() {
	s.logger.Info("Starting API server", zap.String("address", s.server.Addr))
	go func() {
		if err := s.server.ListenAndServe(); err != http.ErrServerClosed {
			s.logger.Error("API server failed", zap.Error(err))
		}
	}()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping API server...")
	return s.server.Shutdown(ctx)
}
