package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Redaction path
	TotalRedactions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "total_redactions",
			Help: "Number of redaction requests served",
		},
	)

	ModelConfidenceScores = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "model_confidence_scores",
			Help:    "Confidence of applied PII detections",
			Buckets: []float64{0, 0.5, 0.7, 0.8, 0.9, 1.0},
		},
	)

	EntitiesRedacted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "entities_redacted_total",
			Help: "Redacted entities by type and policy context",
		},
		[]string{"entity_type", "context"},
	)

	// Audit path
	AuditorLeakDetections = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "auditor_leaks_found_total",
			Help: "Number of PII leaks caught by the LLM auditor",
		},
	)

	AuditorKeysPurged = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "auditor_keys_purged_total",
			Help: "Token store keys deleted after a detected leak",
		},
	)

	AuditJobsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "audit_jobs_dropped_total",
			Help: "Audit jobs dropped because the queue was full",
		},
	)

	AuditTaskFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "audit_task_failures_total",
			Help: "Audit jobs that failed or panicked",
		},
	)

	AuditQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "audit_queue_depth",
			Help: "Audit jobs waiting for a worker",
		},
	)

	// LLM calls
	LLMRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "llm_request_duration_seconds",
			Help:    "Latency of LLM inference calls",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"outcome"},
	)

	// Restoration path
	Restorations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "restorations_total",
			Help: "Restore requests by outcome",
		},
		[]string{"outcome"},
	)

	PolicyRecommendations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "policy_recommendations_total",
			Help: "Policy suggestions by source",
		},
		[]string{"source"},
	)

	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests by route and status code",
		},
		[]string{"route", "code"},
	)

	RateLimited = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "http_rate_limited_total",
			Help: "Requests rejected by the rate limiter",
		},
	)
)

// Restoration outcomes
const (
	OutcomeSuccess   = "success"
	OutcomeForbidden = "forbidden"
	OutcomeError     = "error"
)
