package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ResolutionsTotal tracks settled walks by outcome
	ResolutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "avatar_resolutions_total",
			Help: "Total number of settled avatar resolutions",
		},
		[]string{"outcome"},
	)

	// SourceFailuresTotal tracks candidates marked as failed
	SourceFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "avatar_source_failures_total",
			Help: "Total number of avatar sources marked as failed",
		},
		[]string{"source", "reason"},
	)

	// SourcesSkippedTotal tracks candidates skipped because they failed before
	SourcesSkippedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "avatar_sources_skipped_total",
			Help: "Total number of candidates skipped by the failure registry",
		},
		[]string{"source"},
	)

	// FetchTotal tracks upstream fetches by result
	FetchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "avatar_fetch_total",
			Help: "Total number of upstream avatar fetches",
		},
		[]string{"host", "result"},
	)

	// FetchLatency tracks upstream fetch latency
	FetchLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "avatar_fetch_latency_seconds",
			Help:    "Upstream avatar fetch latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"host"},
	)

	// FetchDiscardedTotal tracks fetch completions dropped after teardown or reconfiguration
	FetchDiscardedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "avatar_fetch_discarded_total",
			Help: "Total number of fetch results discarded because the session moved on",
		},
	)

	// ProbeTotal tracks rendering surface probes
	ProbeTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "avatar_probe_total",
			Help: "Total number of image probes",
		},
		[]string{"result"},
	)

	// ActiveSessions tracks open resolution sessions
	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "avatar_active_sessions",
			Help: "Number of open avatar resolution sessions",
		},
	)

	// FailedSources tracks the size of the failure registry
	FailedSources = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "avatar_failed_sources",
			Help: "Number of sources currently in the failure registry",
		},
	)
)

// DBConnectionPoolUsage tracks the share of open registry database connections
var DBConnectionPoolUsage = promauto.NewGauge(
	prometheus.GaugeOpts{
		Name: "avatar_db_connection_pool_usage_percent",
		Help: "Registry database connection pool usage in percent",
	},
)
