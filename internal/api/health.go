package api

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"
)

const (
	statusHealthy   = "healthy"
	statusUnhealthy = "unhealthy"
	statusDegraded  = "degraded"
	statusDisabled  = "disabled"
)

// handleHealth reports Redis and Postgres as critical and the LLM as
// degraded-only
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	resp := HealthResponse{
		Status:    statusHealthy,
		Timestamp: time.Now().UTC(),
		Version:   Version,
		Checks:    make(map[string]HealthCheck, 3),
	}

	if err := s.deps.Tokens.Ping(ctx); err != nil {
		s.logger.Error("Redis health check failed", zap.Error(err))
		resp.Checks["redis"] = HealthCheck{Status: statusUnhealthy, Error: err.Error()}
		resp.Status = statusUnhealthy
	} else {
		resp.Checks["redis"] = HealthCheck{Status: statusHealthy}
	}

	switch {
	case s.deps.Keys == nil:
		resp.Checks["postgres"] = HealthCheck{Status: statusDisabled}
	default:
		if err := s.deps.Keys.Ping(ctx); err != nil {
			s.logger.Error("PostgreSQL health check failed", zap.Error(err))
			resp.Checks["postgres"] = HealthCheck{Status: statusUnhealthy, Error: err.Error()}
			resp.Status = statusUnhealthy
		} else {
			resp.Checks["postgres"] = HealthCheck{Status: statusHealthy}
		}
	}

	if s.deps.LLM != nil {
		llmCtx, llmCancel := context.WithTimeout(ctx, 2*time.Second)
		err := s.deps.LLM.Healthy(llmCtx)
		llmCancel()
		if err != nil {
			resp.Checks["ollama"] = HealthCheck{Status: statusDegraded, Note: "LLM unavailable"}
		} else {
			resp.Checks["ollama"] = HealthCheck{Status: statusHealthy}
		}
	}

	status := http.StatusOK
	if resp.Status == statusUnhealthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

func (s *Server) handleLiveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

func (s *Server) handleReadiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	err := s.deps.Tokens.Ping(ctx)
	if err == nil && s.deps.Keys != nil {
		err = s.deps.Keys.Ping(ctx)
	}
	if err != nil {
		s.logger.Error("Readiness check failed", zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not_ready", "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// handleStats reports token store occupancy and live feed counters
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	var resp StatsResponse
	if statter, ok := s.deps.Tokens.(TokenStatter); ok {
		stats, err := statter.GetStats(ctx)
		if err != nil {
			s.logger.Error("Failed to read token store stats", zap.Error(err))
			writeError(w, http.StatusServiceUnavailable, "Token store unavailable")
			return
		}
		resp.TokenStore = stats
	}
	if s.deps.Hub != nil {
		hubStats := s.deps.Hub.GetStats()
		resp.WebSocket = &hubStats
	}
	writeJSON(w, http.StatusOK, resp)
}
