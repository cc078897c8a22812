package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"codepath-guard/internal/auditlog"
	"codepath-guard/internal/middleware"
	"codepath-guard/internal/util"
	"codepath-guard/internal/validation"
)

// NewRouter assembles the middleware chain in the order the request
// pipeline requires: identity resolution before rate limiting, blanket
// sanitization before schema validation.
func NewRouter(h *GuardHandler, auditor *auditlog.Logger, registry *validation.Registry, logger *zap.Logger) chi.Router {
	router := chi.NewRouter()

	router.Use(chimw.RequestID)
	router.Use(chimw.RealIP)
	router.Use(LoggerMiddleware(logger))
	router.Use(chimw.Recoverer)
	router.Use(chimw.Timeout(60 * time.Second))

	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	router.Use(middleware.SecurityHeaders)
	router.Use(middleware.SanitizeInput)
	router.Use(middleware.RateLimit(h.limiter, auditor, logger))

	router.Get("/health", h.Health)

	router.Route("/api/v1", func(r chi.Router) {
		validate := func(schema string) func(http.Handler) http.Handler {
			return middleware.Validate(registry, schema, auditor, logger)
		}

		r.Route("/auth", func(r chi.Router) {
			r.With(validate("login")).Post("/login", h.Accept("Login validado"))
			r.With(validate("register")).Post("/register", h.Accept("Cadastro validado"))
		})
		r.With(validate("quiz")).Post("/quizzes/submit", h.Accept("Quiz recebido"))
		r.With(validate("notification")).Post("/notifications", h.Accept("Notificação recebida"))

		r.Get("/validation/stats", h.ValidationStats)
	})

	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, Response{Success: false, Error: "endpoint not found"})
	})

	router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, Response{Success: false, Error: "method not allowed"})
	})

	return router
}

// LoggerMiddleware logs every HTTP request with its final status.
func LoggerMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			defer func() {
				logger.Info("HTTP request",
					util.String("method", r.Method),
					util.String("path", r.URL.Path),
					util.String("remote_addr", r.RemoteAddr),
					util.Int("status", ww.Status()),
					util.Duration("duration", time.Since(start)),
					util.String("user_agent", r.UserAgent()),
				)
			}()
			next.ServeHTTP(ww, r)
		})
	}
}
