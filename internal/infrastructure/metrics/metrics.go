package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// Snapshot metrics
	SnapshotsGenerated *prometheus.CounterVec
	SnapshotsFinalized prometheus.Counter
	SnapshotsDeleted   prometheus.Counter
	SnapshotDuration   prometheus.Histogram

	// Comparison metrics
	ComparisonsServed *prometheus.CounterVec

	// Close metrics
	PeriodsClosed prometheus.Counter
	CloseDuration prometheus.Histogram

	// Allocation metrics
	PaymentsAllocated *prometheus.CounterVec
	AllocatedAmount   prometheus.Histogram
	OnAccountCredits  prometheus.Counter

	// Errors by operation and domain error kind
	OperationErrors *prometheus.CounterVec

	// API metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec
	HTTPInFlight prometheus.Gauge

	// Database metrics
	DBConnections *prometheus.GaugeVec

	// Redis metrics
	RedisOperations *prometheus.CounterVec
	RedisErrors     *prometheus.CounterVec

	// Rate limiting metrics
	RateLimitHits *prometheus.CounterVec

	// Outbox metrics
	OutboxPublished prometheus.Counter
	OutboxFailures  prometheus.Counter
}

// New creates all metrics and registers them with reg.
// A nil reg registers with the global default registry.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &Metrics{
		// Snapshot metrics
		SnapshotsGenerated: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledgerclose_snapshots_generated_total",
				Help: "Total number of snapshots generated by balance outcome",
			},
			[]string{"balanced"},
		),
		SnapshotsFinalized: f.NewCounter(prometheus.CounterOpts{
			Name: "ledgerclose_snapshots_finalized_total",
			Help: "Total number of snapshots finalized",
		}),
		SnapshotsDeleted: f.NewCounter(prometheus.CounterOpts{
			Name: "ledgerclose_snapshots_deleted_total",
			Help: "Total number of draft snapshots deleted",
		}),
		SnapshotDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "ledgerclose_snapshot_duration_seconds",
			Help:    "Duration of snapshot generation",
			Buckets: prometheus.DefBuckets,
		}),

		// Comparison metrics
		ComparisonsServed: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledgerclose_comparisons_total",
				Help: "Total comparisons served by source",
			},
			[]string{"source"},
		),

		// Close metrics
		PeriodsClosed: f.NewCounter(prometheus.CounterOpts{
			Name: "ledgerclose_periods_closed_total",
			Help: "Total number of financial years closed",
		}),
		CloseDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "ledgerclose_close_duration_seconds",
			Help:    "Duration of year-end close operations",
			Buckets: prometheus.DefBuckets,
		}),

		// Allocation metrics
		PaymentsAllocated: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledgerclose_payments_allocated_total",
				Help: "Total payments allocated by direction",
			},
			[]string{"direction"},
		),
		AllocatedAmount: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "ledgerclose_allocated_amount",
			Help:    "Payment amounts allocated",
			Buckets: []float64{1, 10, 100, 1000, 10000, 100000, 1000000},
		}),
		OnAccountCredits: f.NewCounter(prometheus.CounterOpts{
			Name: "ledgerclose_on_account_credits_total",
			Help: "Total on-account credits recorded from unallocated remainders",
		}),

		OperationErrors: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledgerclose_operation_errors_total",
				Help: "Total operation errors by operation and kind",
			},
			[]string{"operation", "kind"},
		),

		// API metrics
		HTTPRequests: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledgerclose_http_requests_total",
				Help: "Total HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ledgerclose_http_duration_seconds",
				Help:    "HTTP request duration",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		HTTPInFlight: f.NewGauge(prometheus.GaugeOpts{
			Name: "ledgerclose_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		}),

		// Database metrics
		DBConnections: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "ledgerclose_db_connections",
				Help: "Current number of database connections by state",
			},
			[]string{"state"},
		),

		// Redis metrics
		RedisOperations: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledgerclose_redis_operations_total",
				Help: "Total Redis operations",
			},
			[]string{"operation"},
		),
		RedisErrors: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledgerclose_redis_errors_total",
				Help: "Total Redis errors",
			},
			[]string{"operation"},
		),

		// Rate limiting metrics
		RateLimitHits: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledgerclose_rate_limit_hits_total",
				Help: "Total rate limit hits",
			},
			[]string{"ip"},
		),

		// Outbox metrics
		OutboxPublished: f.NewCounter(prometheus.CounterOpts{
			Name: "ledgerclose_outbox_published_total",
			Help: "Total outbox events published",
		}),
		OutboxFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "ledgerclose_outbox_failures_total",
			Help: "Total outbox publish failures",
		}),
	}
}
