package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"codepath-guard/internal/middleware"
	"codepath-guard/internal/ratelimit"
	"codepath-guard/internal/validation"
)

// HealthChecker is implemented by optional backends (Redis, Kafka) the
// health endpoint probes.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// GuardHandler exposes the validation endpoints and the operator
// surfaces (health, stats). Business logic behind the validated
// endpoints is out of scope here: they acknowledge with the sanitized
// payload so callers can see exactly what survived validation.
type GuardHandler struct {
	registry *validation.Registry
	limiter  ratelimit.Limiter
	checks   map[string]HealthChecker
	logger   *zap.Logger
}

func NewGuardHandler(registry *validation.Registry, limiter ratelimit.Limiter, checks map[string]HealthChecker, logger *zap.Logger) *GuardHandler {
	return &GuardHandler{
		registry: registry,
		limiter:  limiter,
		checks:   checks,
		logger:   logger,
	}
}

// Response mirrors the middleware envelope for success payloads.
type Response struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// Accept acknowledges a validated request, echoing the sanitized body.
func (h *GuardHandler) Accept(message string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, Response{
			Success: true,
			Message: message,
			Data:    middleware.Sanitized(r.Context()),
		})
	}
}

// StatsResponse is the read-only snapshot served to operator
// dashboards.
type StatsResponse struct {
	RateLimiter ratelimit.Stats `json:"rateLimiter"`
	Schemas     []string        `json:"schemas"`
	Timestamp   string          `json:"timestamp"`
}

// ValidationStats gathers the limiter snapshot and backend health in
// parallel; a failing optional backend only logs.
func (h *GuardHandler) ValidationStats(w http.ResponseWriter, r *http.Request) {
	var stats ratelimit.Stats

	group, ctx := errgroup.WithContext(r.Context())
	group.Go(func() error {
		var err error
		stats, err = h.limiter.Stats(ctx)
		return err
	})
	for name, check := range h.checks {
		name, check := name, check
		group.Go(func() error {
			if err := check.HealthCheck(ctx); err != nil {
				h.logger.Warn("backend unhealthy during stats snapshot",
					zap.String("backend", name),
					zap.Error(err))
			}
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		h.logger.Error("failed to collect rate limiter stats", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, Response{
			Success: false,
			Message: "Erro interno do servidor",
		})
		return
	}

	writeJSON(w, http.StatusOK, StatsResponse{
		RateLimiter: stats,
		Schemas:     h.registry.Names(),
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
	})
}

// Health probes every registered backend concurrently.
func (h *GuardHandler) Health(w http.ResponseWriter, r *http.Request) {
	group, ctx := errgroup.WithContext(r.Context())
	for name, check := range h.checks {
		name, check := name, check
		group.Go(func() error {
			if err := check.HealthCheck(ctx); err != nil {
				h.logger.Error("health check failed",
					zap.String("backend", name),
					zap.Error(err))
				return err
			}
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, Response{
			Success: false,
			Message: "degraded",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "codepath-guard",
	})
}
