package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "http_requests_total", Help: "Count of HTTP requests"},
		[]string{"path", "method", "status"},
	)
	HTTPLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Latency of HTTP requests",
			Buckets: prometheus.DefBuckets,
		}, []string{"path", "method"},
	)
	WorkflowTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "workflow_transitions_total", Help: "Dictation and transcription state changes"},
		[]string{"entity", "to"},
	)
	// source: opa | fallback
	AuthzDecisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "authz_decisions_total", Help: "Authorization decisions by source"},
		[]string{"source", "result"},
	)
)

func init() {
	prometheus.MustRegister(HTTPRequests, HTTPLatency, WorkflowTransitions, AuthzDecisions)
}

func Transition(entity, to string) { WorkflowTransitions.WithLabelValues(entity, to).Inc() }

func Handler() http.Handler { return promhttp.Handler() }
