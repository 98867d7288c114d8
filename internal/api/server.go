package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/xeipuuv/gojsonschema"
	"go.uber.org/zap"

	"github.com/FairForge/scoutline/internal/analysis"
	"github.com/FairForge/scoutline/internal/config"
	"github.com/FairForge/scoutline/internal/database"
	"github.com/FairForge/scoutline/internal/metrics"
	"github.com/FairForge/scoutline/internal/ratelimit"
)

const version = "0.3.0"

// Index is the optional Postgres-backed listing and history store.
type Index interface {
	ListByOwner(ctx context.Context, owner string, limit int) ([]database.AnalysisRecord, error)
	RecordValuation(ctx context.Context, rec *database.ValuationRecord) error
}

// HealthCheck reports whether a dependency is usable.
type HealthCheck func(ctx context.Context) error

// Deps are the collaborators the HTTP layer delegates to. Analyzer is required.
type Deps struct {
	Analyzer *analysis.Analyzer
	Metrics  *metrics.Collector
	Limiter  *ratelimit.ClientLimiter
	Verifier *TokenVerifier
	Index    Index
	Checks   map[string]HealthCheck
}

type Server struct {
	logger     *zap.Logger
	router     chi.Router
	httpServer *http.Server

	analyzer  *analysis.Analyzer
	metrics   *metrics.Collector
	limiter   *ratelimit.ClientLimiter
	verifier  *TokenVerifier
	index     Index
	checks    map[string]HealthCheck
	schema    *gojsonschema.Schema
	maxUpload int64

	startTime time.Time
}

func NewServer(cfg *config.Config, logger *zap.Logger, deps Deps) (*Server, error) {
	if deps.Analyzer == nil {
		return nil, errors.New("api: analyzer is required")
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.NewCollector()
	}
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(valuationSchema))
	if err != nil {
		return nil, fmt.Errorf("compile valuation schema: %w", err)
	}

	s := &Server{
		logger:    logger,
		analyzer:  deps.Analyzer,
		metrics:   deps.Metrics,
		limiter:   deps.Limiter,
		verifier:  deps.Verifier,
		index:     deps.Index,
		checks:    deps.Checks,
		schema:    schema,
		maxUpload: cfg.Server.MaxUploadBytes,
		startTime: time.Now(),
	}

	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      5 * time.Minute,
		IdleTimeout:       120 * time.Second,
	}

	return s, nil
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(s.requestIDMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(s.loggingMiddleware)

	r.Get("/health", s.handleHealth)
	r.Get("/version", s.handleVersion)
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.authMiddleware)
		r.Use(s.limiter.Middleware(clientKey, requestCost, s.rejectRateLimited))

		r.Post("/analyses", s.handleCreateAnalysis)
		r.Get("/analyses", s.handleListAnalyses)
		r.Get("/analyses/*", s.handleGetAnalysis)
		r.Post("/valuations", s.handleCreateValuation)
		r.Get("/compare", s.handleCompare)
	})

	s.router = r
}

// Handler exposes the router for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("starting server", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down server")
	return s.httpServer.Shutdown(ctx)
}
