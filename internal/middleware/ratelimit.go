package middleware

import (
	"net/http"

	"go.uber.org/zap"

	"codepath-guard/internal/auditlog"
	"codepath-guard/internal/ratelimit"
)

const throttledMessage = "Muitas requisições. Tente novamente em alguns minutos."

// RateLimit rejects clients that exceed their request quota with a 429.
// Store errors (Redis backend only) fail open: this limiter deters
// abuse, it is not a strict quota, and availability wins.
func RateLimit(limiter ratelimit.Limiter, auditor *auditlog.Logger, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity := ClientIdentity(r)

			allowed, err := limiter.Allow(r.Context(), identity)
			if err != nil {
				logger.Warn("rate limit check failed, allowing request",
					zap.String("identity", identity),
					zap.Error(err))
				next.ServeHTTP(w, r)
				return
			}

			if !allowed {
				auditor.LogRejection(identity, r.URL.Path,
					[]string{"rate limit exceeded"},
					map[string]any{"userAgent": r.UserAgent()})
				writeJSON(w, http.StatusTooManyRequests, Response{
					Success: false,
					Message: throttledMessage,
					Error:   ErrCodeRateLimited,
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
