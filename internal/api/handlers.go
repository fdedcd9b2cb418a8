package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"caringest/internal/domain"
	"caringest/internal/scraper"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// envelope is the JSON response shape shared by every job endpoint. Logical
// outcomes, including "nothing inserted", are HTTP 200 with success true;
// only setup failures are 500.
type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// decodeScrapeRequest tolerates an absent or malformed body: callers that
// send nothing get the defaults.
func decodeScrapeRequest(r *http.Request) domain.ScrapeRequest {
	var req domain.ScrapeRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}
	return req
}

// requireAPIKey rejects the request before any work starts when the
// extraction credential is missing.
func (s *Server) requireAPIKey(w http.ResponseWriter) bool {
	if s.config.FirecrawlAPIKey == "" {
		s.respondWithError(w, http.StatusInternalServerError, "Firecrawl API key not configured")
		return false
	}
	return true
}

func (s *Server) handleScrape(w http.ResponseWriter, r *http.Request) {
	if !s.requireAPIKey(w) {
		return
	}
	req := decodeScrapeRequest(r)

	summary, err := s.pipeline.Run(r.Context(), req)
	if err != nil {
		s.logger.Error("scrape pipeline failed", zap.Error(err))
		s.respondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondWithJSON(w, http.StatusOK, envelope{Success: true, Data: summary})
}

func (s *Server) handleScrapeSite(w http.ResponseWriter, r *http.Request) {
	if !s.requireAPIKey(w) {
		return
	}
	req := decodeScrapeRequest(r)
	siteKey := chi.URLParam(r, "site")

	summary, err := s.pipeline.RunSite(r.Context(), siteKey, req.Limit)
	if err != nil {
		if errors.Is(err, scraper.ErrUnknownSite) {
			s.respondWithError(w, http.StatusBadRequest, "Invalid site specified")
			return
		}
		s.logger.Error("site scrape failed", zap.String("site", siteKey), zap.Error(err))
		s.respondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondWithJSON(w, http.StatusOK, envelope{Success: true, Data: summary})
}

func (s *Server) handleRefreshImages(w http.ResponseWriter, r *http.Request) {
	req := decodeScrapeRequest(r)
	// The deterministic variant needs no extraction credential.
	if !req.Fallback && !s.requireAPIKey(w) {
		return
	}

	summary, err := s.refresher.Run(r.Context(), req.Limit, req.Fallback)
	if err != nil {
		s.logger.Error("image refresh failed", zap.Error(err))
		s.respondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondWithJSON(w, http.StatusOK, envelope{Success: true, Data: summary})
}

func (s *Server) handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	healthStatus := make(map[string]string)

	if err := s.pgStore.Ping(ctx); err != nil {
		healthStatus["postgres"] = "unhealthy"
		s.logger.Error("health check failed for postgres", zap.Error(err))
	} else {
		healthStatus["postgres"] = "healthy"
	}

	if s.redisStore == nil {
		healthStatus["redis"] = "disabled"
	} else if err := s.redisStore.Ping(ctx); err != nil {
		healthStatus["redis"] = "unhealthy"
		s.logger.Error("health check failed for redis", zap.Error(err))
	} else {
		healthStatus["redis"] = "healthy"
	}

	if healthStatus["postgres"] != "healthy" || healthStatus["redis"] == "unhealthy" {
		s.respondWithJSON(w, http.StatusServiceUnavailable, healthStatus)
		return
	}
	s.respondWithJSON(w, http.StatusOK, healthStatus)
}

// --- Helper Functions ---

func (s *Server) respondWithError(w http.ResponseWriter, code int, message string) {
	s.respondWithJSON(w, code, envelope{Success: false, Error: message})
}

func (s *Server) respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, _ := json.Marshal(payload)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}
