// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	QueriesProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audit_queries_processed_total",
			Help: "Total number of orchestrated queries by intent and outcome",
		},
		[]string{"intent", "outcome"},
	)

	QueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "audit_query_duration_seconds",
			Help:    "End-to-end orchestration duration in seconds",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 40, 80, 160},
		},
		[]string{"intent"},
	)

	QueriesInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "audit_queries_in_flight",
			Help: "Number of queries currently being orchestrated",
		},
	)

	HandlerInvocations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audit_handler_invocations_total",
			Help: "Knowledge handler invocations by handler and status",
		},
		[]string{"handler", "status"},
	)

	HandlerDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "audit_handler_duration_seconds",
			Help:    "Knowledge handler latency in seconds",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 9),
		},
		[]string{"handler"},
	)

	Correlations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audit_correlations_total",
			Help: "Cross-handler correlation runs by name and status",
		},
		[]string{"correlation", "status"},
	)

	SynthesisFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audit_synthesis_failures_total",
			Help: "Response synthesis failures by intent",
		},
		[]string{"intent"},
	)

	KnowledgeCache = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audit_knowledge_cache_total",
			Help: "Knowledge search cache lookups by result",
		},
		[]string{"result"},
	)

	RoutingFallbacks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "audit_routing_fallbacks_total",
			Help: "LLM routing attempts that fell back to deterministic selection",
		},
	)

	WorkerJobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_completed_total",
			Help: "Total number of jobs completed by worker",
		},
		[]string{"task_type"},
	)

	WorkerJobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_failed_total",
			Help: "Total number of jobs failed by worker",
		},
		[]string{"task_type", "error_code"},
	)

	WorkerJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "worker_job_duration_seconds",
			Help: "Duration of job processing in seconds",
		},
		[]string{"task_type"},
	)

	WorkerJobsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "worker_jobs_active",
			Help: "Number of active jobs per worker",
		},
		[]string{"task_type"},
	)
)
