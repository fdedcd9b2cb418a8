package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"caringest/internal/api"
	"caringest/internal/config"
	"caringest/internal/extract"
	"caringest/internal/monitoring"
	"caringest/internal/normalize"
	"caringest/internal/refresh"
	"caringest/internal/scraper"
	"caringest/internal/storage"

	"go.uber.org/zap"
)

func main() {
	// Initialize structured logger
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("could not load config", zap.Error(err))
	}
	if cfg.FirecrawlAPIKey == "" {
		logger.Warn("FIRECRAWL_API_KEY is not set; scrape endpoints will refuse to run")
	}

	// Initialize Storage Layer
	pgStore, err := storage.NewPostgresStore(context.Background(), cfg.PostgresURL,
		cfg.InsertBatchSize, cfg.UpsertBatchSize, logger)
	if err != nil {
		logger.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer pgStore.Close()

	var redisStore *storage.RedisStore
	if cfg.RedisAddr != "" {
		ttl := time.Duration(cfg.RecentURLTTLDays) * 24 * time.Hour
		redisStore = storage.NewRedisStore(cfg.RedisAddr, ttl)
	}

	// Initialize Monitoring
	metrics := monitoring.NewMetrics()

	// Initialize Core Pipeline
	brands := normalize.NewBrandClassifier()
	normalizer := normalize.NewNormalizer(normalize.Policy{
		Location:  cfg.DefaultLocation,
		Country:   cfg.DefaultCountry,
		Synthetic: cfg.SyntheticFill,
	}, brands)

	client := extract.NewClient(cfg.FirecrawlBaseURL, cfg.FirecrawlAPIKey, cfg.ScrapeWaitMs, logger)
	registry := scraper.DefaultRegistry()

	var cache scraper.RecentURLCache
	if redisStore != nil {
		cache = redisStore
	}
	pipeline := scraper.NewPipeline(registry, client, pgStore, cache, normalizer, metrics, logger,
		scraper.Options{
			DefaultTotal:  cfg.ScrapeTotalLimit,
			SiteOverhead:  cfg.ScrapeSiteOverhead,
			MaxConcurrent: cfg.MaxConcurrentSites,
			SyntheticFill: cfg.SyntheticFill,
		})

	// Initialize Image Refresher
	var browser refresh.PageFetcher
	if cfg.BrowserImageFetch {
		browser = extract.NewBrowserImageFetcher(time.Duration(cfg.ScrapeWaitMs)*time.Millisecond + 30*time.Second)
	}
	refresher := refresh.NewRefresher(pgStore, client, extract.NewPageImageFetcher(), browser,
		metrics, logger, cfg.RefreshLimit)

	// Initialize API Server
	var redisPinger api.Pinger
	if redisStore != nil {
		redisPinger = redisStore
	}
	server := api.NewServer(cfg, pipeline, refresher, pgStore, redisPinger, metrics, logger)

	// Graceful Shutdown
	go func() {
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("could not start server", zap.Error(err))
		}
	}()

	logger.Info("server started", zap.String("port", cfg.ServerPort))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Fatal("server forced to shutdown", zap.Error(err))
	}

	logger.Info("server exiting")
}
