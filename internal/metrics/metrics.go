package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Webhook outcome labels.
const (
	StatusStored    = "stored"
	StatusDuplicate = "duplicate"
	StatusIgnored   = "ignored"
	StatusRejected  = "rejected"
	StatusFailed    = "failed"
)

// Metrics holds the server's Prometheus collectors on a private registry so
// tests can create as many instances as they like.
type Metrics struct {
	registry *prometheus.Registry

	webhooks     *prometheus.CounterVec
	storedEvents *prometheus.CounterVec
	reqDuration  *prometheus.HistogramVec
}

// New creates and registers the hookwatch collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		webhooks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hookwatch",
			Name:      "webhooks_total",
			Help:      "Webhook deliveries received, by GitHub event and outcome",
		}, []string{"event", "status"}),
		storedEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hookwatch",
			Name:      "events_stored_total",
			Help:      "Events written to the store, by event type",
		}, []string{"type"}),
		reqDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "hookwatch",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP API request latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method", "code"}),
	}

	m.registry.MustRegister(
		m.webhooks,
		m.storedEvents,
		m.reqDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveWebhook counts one delivery outcome. A nil receiver is a no-op.
func (m *Metrics) ObserveWebhook(event, status string) {
	if m == nil {
		return
	}
	if event == "" {
		event = "unknown"
	}
	m.webhooks.WithLabelValues(event, status).Inc()
}

// ObserveStored counts one newly stored event.
func (m *Metrics) ObserveStored(eventType string) {
	if m == nil {
		return
	}
	m.storedEvents.WithLabelValues(eventType).Inc()
}

// ObserveRequest records one API request's latency.
func (m *Metrics) ObserveRequest(route, method, code string, took time.Duration) {
	if m == nil {
		return
	}
	m.reqDuration.WithLabelValues(route, method, code).Observe(took.Seconds())
}

// Registry exposes the underlying registry (for tests and gatherers).
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
