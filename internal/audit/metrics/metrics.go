package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for the audit pipeline.
type Metrics struct {
	Recorded        *prometheus.CounterVec
	Rejected        *prometheus.CounterVec
	AppendFailures  prometheus.Counter
	QueriesTotal    prometheus.Counter
	QueryDuration   prometheus.Histogram
	CacheHits       prometheus.Counter
	CacheMisses     prometheus.Counter
	MirrorPublished prometheus.Counter
	MirrorDropped   prometheus.Counter
}

// New creates a new Metrics instance with all audit metrics registered.
func New() *Metrics {
	return &Metrics{
		Recorded: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "ecoaudit_events_recorded_total",
			Help: "Total number of audit events durably recorded, by result",
		}, []string{"result"}),
		Rejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "ecoaudit_events_rejected_total",
			Help: "Total number of record calls rejected before persistence, by reason",
		}, []string{"reason"}),
		AppendFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "ecoaudit_append_failures_total",
			Help: "Total number of ledger append failures",
		}),
		QueriesTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "ecoaudit_queries_total",
			Help: "Total number of audit queries served",
		}),
		QueryDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "ecoaudit_query_duration_seconds",
			Help:    "Audit query latency",
			Buckets: prometheus.DefBuckets,
		}),
		CacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Name: "ecoaudit_recent_cache_hits_total",
			Help: "Total number of dashboard first-page cache hits",
		}),
		CacheMisses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "ecoaudit_recent_cache_misses_total",
			Help: "Total number of dashboard first-page cache misses",
		}),
		MirrorPublished: promauto.NewCounter(prometheus.CounterOpts{
			Name: "ecoaudit_mirror_published_total",
			Help: "Total number of events handed to the Kafka mirror",
		}),
		MirrorDropped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "ecoaudit_mirror_dropped_total",
			Help: "Total number of events dropped because the mirror inbox was full",
		}),
	}
}

// IncRecorded increments the recorded counter for a result.
func (m *Metrics) IncRecorded(result string) {
	m.Recorded.WithLabelValues(result).Inc()
}

// IncRejected increments the rejected counter for a validation reason.
func (m *Metrics) IncRejected(reason string) {
	m.Rejected.WithLabelValues(reason).Inc()
}
