// Package observability provides Prometheus metrics and OpenTelemetry tracing
// for summit's upstream calls, proxy routes, uploads and chat queries.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Namespace prefixes every summit metric.
const Namespace = "summit"

// Metrics holds all Prometheus metrics for summit.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	// Upstream service calls
	UpstreamRequestsTotal *prometheus.CounterVec
	UpstreamSeconds       *prometheus.HistogramVec

	// Same-origin proxy
	ProxyRequestsTotal *prometheus.CounterVec

	// Upload lifecycle
	UploadTransitionsTotal *prometheus.CounterVec
	UploadsInFlight        prometheus.Gauge

	// Chat
	ChatQueriesTotal *prometheus.CounterVec
}

// DefaultMetrics creates metrics registered with the default registry.
func DefaultMetrics() *Metrics {
	return NewMetrics(prometheus.DefaultRegisterer)
}

// NewMetrics creates a new set of metrics registered with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		UpstreamRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "upstream_requests_total",
				Help:      "Total requests sent to external services",
			},
			[]string{"service", "operation", "status"},
		),
		UpstreamSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Name:      "upstream_request_seconds",
				Help:      "Latency of external service requests",
				Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"service", "operation"},
		),
		ProxyRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "proxy_requests_total",
				Help:      "Total same-origin proxy requests by route and response code",
			},
			[]string{"route", "code"},
		),
		UploadTransitionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "upload_transitions_total",
				Help:      "Upload lifecycle transitions by stage entered",
			},
			[]string{"stage"},
		),
		UploadsInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: Namespace,
				Name:      "uploads_in_flight",
				Help:      "1 while an upload is between the uploading and analyzing stages",
			},
		),
		ChatQueriesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "chat_queries_total",
				Help:      "Chat queries by outcome",
			},
			[]string{"status"},
		),
	}
}

// RecordUpstream records one external service call.
func (m *Metrics) RecordUpstream(service, operation, status string, seconds float64) {
	if m == nil {
		return
	}
	m.UpstreamRequestsTotal.WithLabelValues(service, operation, status).Inc()
	m.UpstreamSeconds.WithLabelValues(service, operation).Observe(seconds)
}

// RecordProxy records a proxied request.
func (m *Metrics) RecordProxy(route, code string) {
	if m == nil {
		return
	}
	m.ProxyRequestsTotal.WithLabelValues(route, code).Inc()
}

// RecordUploadTransition records entry into an upload stage.
func (m *Metrics) RecordUploadTransition(stage string, inFlight bool) {
	if m == nil {
		return
	}
	m.UploadTransitionsTotal.WithLabelValues(stage).Inc()
	if inFlight {
		m.UploadsInFlight.Set(1)
	} else {
		m.UploadsInFlight.Set(0)
	}
}

// RecordChatQuery records a chat query outcome ("ok" or "error").
func (m *Metrics) RecordChatQuery(status string) {
	if m == nil {
		return
	}
	m.ChatQueriesTotal.WithLabelValues(status).Inc()
}
