package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"caringest/internal/config"
	"caringest/internal/domain"
	"caringest/internal/monitoring"

	"go.uber.org/zap"
)

// ScrapeRunner is the ingestion pipeline as the API sees it.
type ScrapeRunner interface {
	Run(ctx context.Context, req domain.ScrapeRequest) (domain.ScrapeSummary, error)
	RunSite(ctx context.Context, siteKey string, limit int) (domain.ScrapeSummary, error)
}

// RefreshRunner is the image refresh job as the API sees it.
type RefreshRunner interface {
	Run(ctx context.Context, limit int, deterministic bool) (domain.RefreshSummary, error)
}

// Pinger is a health-checkable dependency.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server holds the dependencies for the HTTP server.
type Server struct {
	config     *config.Config
	router     http.Handler
	httpServer *http.Server
	pipeline   ScrapeRunner
	refresher  RefreshRunner
	pgStore    Pinger
	redisStore Pinger // nil when Redis is not configured
	metrics    *monitoring.Metrics
	logger     *zap.Logger
}

func NewServer(cfg *config.Config, pipeline ScrapeRunner, refresher RefreshRunner,
	pg, redis Pinger, m *monitoring.Metrics, l *zap.Logger) *Server {
	s := &Server{
		config:     cfg,
		pipeline:   pipeline,
		refresher:  refresher,
		pgStore:    pg,
		redisStore: redis,
		metrics:    m,
		logger:     l,
	}
	s.router = s.setupRouter()
	return s
}

func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:        fmt.Sprintf(":%s", s.config.ServerPort),
		Handler:     s.router,
		ReadTimeout: 10 * time.Second,
		// Scrape runs hold the connection open for the whole pipeline.
		WriteTimeout: 5 * time.Minute,
	}
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
