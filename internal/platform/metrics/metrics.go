package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application
type Metrics struct {
	ActiveSessions  prometheus.Gauge
	TokenIssued     prometheus.Counter
	TokenRefreshed  prometheus.Counter
	AuthFailures    prometheus.Counter
	LockoutsTripped prometheus.Counter
	TheftResponses  prometheus.Counter
	EndpointLatency *prometheus.HistogramVec

	RateLimitDenials *prometheus.CounterVec

	BreakerTransitions *prometheus.CounterVec
	OutboundRetries    *prometheus.CounterVec

	AuditAppends      prometheus.Counter
	AuditAppendErrors prometheus.Counter

	VersionConflicts prometheus.Counter
}

// New creates and registers all Prometheus metrics
func New() *Metrics {
	return &Metrics{
		ActiveSessions: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "trustcore_active_sessions",
			Help: "Current number of active sessions",
		}),
		TokenIssued: promauto.NewCounter(prometheus.CounterOpts{
			Name: "trustcore_tokens_issued_total",
			Help: "Total number of credential pairs issued",
		}),
		TokenRefreshed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "trustcore_tokens_refreshed_total",
			Help: "Total number of successful refresh rotations",
		}),
		AuthFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "trustcore_auth_failures_total",
			Help: "Total number of authentication failures",
		}),
		LockoutsTripped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "trustcore_lockouts_tripped_total",
			Help: "Total number of failed-login lockouts triggered",
		}),
		TheftResponses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "trustcore_refresh_theft_responses_total",
			Help: "Total number of refresh token reuse detections",
		}),
		EndpointLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "trustcore_endpoint_latency_seconds",
			Help:    "Latency of endpoints in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint"}),
		RateLimitDenials: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "trustcore_rate_limit_denials_total",
			Help: "Total number of rate limited requests, labeled by endpoint class",
		}, []string{"class"}),
		BreakerTransitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "trustcore_breaker_transitions_total",
			Help: "Circuit breaker state transitions, labeled by dependency and new state",
		}, []string{"dependency", "state"}),
		OutboundRetries: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "trustcore_outbound_retries_total",
			Help: "Outbound call retries, labeled by dependency",
		}, []string{"dependency"}),
		AuditAppends: promauto.NewCounter(prometheus.CounterOpts{
			Name: "trustcore_audit_appends_total",
			Help: "Total number of audit entries appended",
		}),
		AuditAppendErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "trustcore_audit_append_errors_total",
			Help: "Total number of failed audit appends",
		}),
		VersionConflicts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "trustcore_version_conflicts_total",
			Help: "Total number of optimistic concurrency conflicts",
		}),
	}
}

func (m *Metrics) IncrementActiveSessions(count int) {
	m.ActiveSessions.Add(float64(count))
}

func (m *Metrics) DecrementActiveSessions(count int) {
	m.ActiveSessions.Sub(float64(count))
}

func (m *Metrics) IncrementTokenIssued() {
	m.TokenIssued.Inc()
}

func (m *Metrics) IncrementTokenRefreshed() {
	m.TokenRefreshed.Inc()
}

func (m *Metrics) IncrementAuthFailures() {
	m.AuthFailures.Inc()
}

// ObserveEndpointLatency records the latency for a given endpoint
func (m *Metrics) ObserveEndpointLatency(endpoint string, durationSeconds float64) {
	m.EndpointLatency.WithLabelValues(endpoint).Observe(durationSeconds)
}
