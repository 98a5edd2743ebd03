// Package metrics exposes the Prometheus collectors of the clinic backend.
//
// All metrics are namespaced "clinicq":
//
//	http_requests_total{method,route,status}      counter
//	http_request_duration_seconds{method,route}   histogram
//	tokens_issued_total{channel}                  counter (patient, walk_in, ivr)
//	token_status_changes_total{status}            counter
//	sms_sent_total{kind,result}                   counter
//	reminders_dispatched_total{result}            counter
//	outbox_processed_total{result}                counter
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "clinicq"

// Metrics bundles every collector registered on one registry
type Metrics struct {
	registry *prometheus.Registry

	httpRequests   *prometheus.CounterVec
	httpDuration   *prometheus.HistogramVec
	tokensIssued   *prometheus.CounterVec
	statusChanges  *prometheus.CounterVec
	smsSent        *prometheus.CounterVec
	remindersSent  *prometheus.CounterVec
	outboxOutcomes *prometheus.CounterVec
}

// New creates the collectors on a private registry, plus Go runtime and process collectors
func New() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route template and status code",
		}, []string{"method", "route", "status"}),
		httpDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		tokensIssued: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tokens_issued_total",
			Help:      "Queue tokens issued by booking channel",
		}, []string{"channel"}),
		statusChanges: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "token_status_changes_total",
			Help:      "Token status transitions by target status",
		}, []string{"status"}),
		smsSent: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sms_sent_total",
			Help:      "SMS delivery attempts by message kind and result",
		}, []string{"kind", "result"}),
		remindersSent: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reminders_dispatched_total",
			Help:      "Prescription reminders handled by the dispatcher",
		}, []string{"result"}),
		outboxOutcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbox_processed_total",
			Help:      "Outbox events by processing result",
		}, []string{"result"}),
	}
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry returns the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveHTTP records one finished request
func (m *Metrics) ObserveHTTP(method, route, status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, status).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// TokenIssued counts a new token
func (m *Metrics) TokenIssued(channel string) {
	if m == nil {
		return
	}
	m.tokensIssued.WithLabelValues(channel).Inc()
}

// StatusChanged counts a token transition
func (m *Metrics) StatusChanged(status string) {
	if m == nil {
		return
	}
	m.statusChanges.WithLabelValues(status).Inc()
}

// SMSSent counts a delivery attempt
func (m *Metrics) SMSSent(kind string, err error) {
	if m == nil {
		return
	}
	m.smsSent.WithLabelValues(kind, result(err)).Inc()
}

// ReminderDispatched counts a reminder outcome (sent, retry, failed)
func (m *Metrics) ReminderDispatched(outcome string) {
	if m == nil {
		return
	}
	m.remindersSent.WithLabelValues(outcome).Inc()
}

// OutboxProcessed counts an outbox outcome (processed, retry, failed)
func (m *Metrics) OutboxProcessed(outcome string) {
	if m == nil {
		return
	}
	m.outboxOutcomes.WithLabelValues(outcome).Inc()
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
