package app

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/luki-ev/synod-bug-report/internal/apperrors"
	"github.com/luki-ev/synod-bug-report/internal/config"
	"github.com/luki-ev/synod-bug-report/internal/handler"
	"github.com/luki-ev/synod-bug-report/internal/ingest"
	"github.com/luki-ev/synod-bug-report/internal/report"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ReadyFunc reports whether the service's dependencies are reachable.
type ReadyFunc func(ctx context.Context) error

// NewRouter creates and configures the Chi router with all middleware and routes
func NewRouter(cfg *config.Config, factory *report.Factory, h handler.Handler, limiter ingest.Limiter, ready ReadyFunc) *chi.Mux {
	r := chi.NewRouter()

	// Middleware stack
	r.Use(RealIPMiddleware(cfg.TrustProxyHeaders)) // Set RemoteAddr to real IP behind a trusted proxy
	r.Use(apperrors.RequestIDMiddleware)           // Add request ID to context
	r.Use(LoggingMiddleware)                       // Structured request logging
	r.Use(RecoveryMiddleware)                      // Recover from panics
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID", "Retry-After"},
		MaxAge:         300,
	}))

	// Unknown routes and methods both answer 404
	r.NotFound(handleNotFound)
	r.MethodNotAllowed(handleNotFound)

	// Health check routes
	r.Get("/healthz", handleHealthz)
	r.Get("/readyz", handleReadyz(ready))

	// Prometheus metrics
	r.Handle("/metrics", promhttp.Handler())

	// API routes - Bug report intake
	r.Route("/api/v1", func(r chi.Router) {
		uploadLimits := ingest.NewUploadLimits(cfg.MaxUploadBytes)

		r.With(
			BurstRateLimitMiddleware(cfg.BurstRPM),
			ingest.RateLimit(limiter),
		).Post("/reports", ingest.HandleReportUpload(factory, h, uploadLimits))
	})

	return r
}

func handleNotFound(w http.ResponseWriter, r *http.Request) {
	apperrors.WriteNotFound(w, r, "Not Found")
}

// handleHealthz returns a simple liveness check
// Always returns 200 OK if the service is running
func handleHealthz(w http.ResponseWriter, r *http.Request) {
	apperrors.WriteSuccess(w, r, http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// handleReadyz returns a readiness check that includes the rate limit store
// Returns 200 OK if service is ready to accept traffic, 503 if not
func handleReadyz(ready ReadyFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if ready != nil {
			if err := ready(r.Context()); err != nil {
				apperrors.WriteServiceUnavailable(w, r, "Rate limit store unavailable")
				return
			}
		}

		apperrors.WriteSuccess(w, r, http.StatusOK, map[string]string{
			"status": "ready",
		})
	}
}
