package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/iho/ledgerclose/internal/adapter/http/handler"
	"github.com/iho/ledgerclose/internal/adapter/http/middleware"
	"github.com/iho/ledgerclose/internal/infrastructure/metrics"
	"github.com/iho/ledgerclose/internal/usecase"
)

// RouterConfig holds dependencies for the router.
type RouterConfig struct {
	SnapshotHandler   *handler.SnapshotHandler
	ComparisonHandler *handler.ComparisonHandler
	CloseHandler      *handler.CloseHandler
	PaymentHandler    *handler.PaymentHandler
	LedgerHandler     *handler.LedgerHandler
	HealthHandler     *handler.HealthHandler

	Logger  zerolog.Logger
	Metrics *metrics.Metrics
	// Gatherer backs /metrics. Nil serves the default registry.
	Gatherer         prometheus.Gatherer
	RateLimiter      *middleware.RateLimiter
	IdempotencyStore usecase.IdempotencyStore
	IdempotencyTTL   time.Duration
}

// NewRouter creates a new HTTP router.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(middleware.NewLoggingMiddleware(cfg.Logger).Wrap)
	if cfg.Metrics != nil {
		r.Use(middleware.NewMetricsMiddleware(cfg.Metrics).Wrap)
	}
	if cfg.RateLimiter != nil {
		r.Use(cfg.RateLimiter.Limit)
	}

	// Health endpoints
	r.Get("/health", cfg.HealthHandler.Liveness)
	r.Get("/ready", cfg.HealthHandler.Readiness)

	if cfg.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	} else {
		r.Handle("/metrics", promhttp.Handler())
	}

	// API v1
	r.Route("/api/v1", func(r chi.Router) {
		// Idempotency middleware for mutating requests
		if cfg.IdempotencyStore != nil {
			idempotency := middleware.NewIdempotencyMiddleware(cfg.IdempotencyStore, cfg.Logger).WithTTL(cfg.IdempotencyTTL)
			r.Use(idempotency.Wrap)
		}

		// Snapshots
		r.Route("/snapshots", func(r chi.Router) {
			r.Post("/", cfg.SnapshotHandler.Generate)
			r.Get("/", cfg.SnapshotHandler.List)
			r.Get("/{id}", cfg.SnapshotHandler.Get)
			r.Delete("/{id}", cfg.SnapshotHandler.Delete)
			r.Post("/{id}/finalize", cfg.SnapshotHandler.Finalize)
			r.Post("/{id}/notes", cfg.SnapshotHandler.AddNote)
			r.Delete("/{id}/notes/{number}", cfg.SnapshotHandler.DeleteNote)
		})

		r.Post("/comparisons", cfg.ComparisonHandler.Compare)
		r.Post("/closes", cfg.CloseHandler.Close)
		r.Post("/payments", cfg.PaymentHandler.Allocate)
		r.Get("/ledger/trial-balance", cfg.LedgerHandler.TrialBalance)
	})

	return r
}
