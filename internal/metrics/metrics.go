// Package metrics holds the bridge's Prometheus collectors. A nil *Metrics
// is valid and records nothing, so callers never need to check.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "miraibridge"

// Call outcomes used as the result label
const (
	ResultOK           = "ok"
	ResultActionFailed = "action_failed"
	ResultTimeout      = "timeout"
	ResultUnavailable  = "unavailable"
	ResultError        = "error"
)

type Metrics struct {
	registry *prometheus.Registry

	connectionsActive *prometheus.GaugeVec
	reconnectAttempts *prometheus.CounterVec
	handshakeFailures *prometheus.CounterVec
	apiCalls          *prometheus.CounterVec
	apiCallDuration   *prometheus.HistogramVec
	eventsReceived    *prometheus.CounterVec
	eventsDegraded    *prometheus.CounterVec
}

// New creates the collectors and registers them on a fresh registry
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		connectionsActive: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections_active",
			Help:      "Open mirai-api-http connections",
		}, []string{"mode"}),

		reconnectAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconnect_attempts_total",
			Help:      "Client-mode reconnection attempts",
		}, []string{"account"}),

		handshakeFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "handshake_failures_total",
			Help:      "Rejected connection handshakes",
		}, []string{"mode", "reason"}),

		apiCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "api_calls_total",
			Help:      "Outbound API calls by command and result",
		}, []string{"command", "result"}),

		apiCallDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "api_call_duration_seconds",
			Help:      "Time from sending a call to receiving its response",
			Buckets:   prometheus.DefBuckets,
		}, []string{"command"}),

		eventsReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_received_total",
			Help:      "Push events by wire type",
		}, []string{"type"}),

		eventsDegraded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_degraded_total",
			Help:      "Push events decoded as an ancestor of their wire type",
		}, []string{"type"}),
	}

	m.registry.MustRegister(
		m.connectionsActive,
		m.reconnectAttempts,
		m.handshakeFailures,
		m.apiCalls,
		m.apiCallDuration,
		m.eventsReceived,
		m.eventsDegraded,
	)
	return m
}

// Registry exposes the underlying registry for gathering
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) ConnectionOpened(mode string) {
	if m == nil {
		return
	}
	m.connectionsActive.WithLabelValues(mode).Inc()
}

func (m *Metrics) ConnectionClosed(mode string) {
	if m == nil {
		return
	}
	m.connectionsActive.WithLabelValues(mode).Dec()
}

func (m *Metrics) Reconnect(account string) {
	if m == nil {
		return
	}
	m.reconnectAttempts.WithLabelValues(account).Inc()
}

func (m *Metrics) HandshakeFailed(mode, reason string) {
	if m == nil {
		return
	}
	m.handshakeFailures.WithLabelValues(mode, reason).Inc()
}

// APICall records one finished call
func (m *Metrics) APICall(command, result string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.apiCalls.WithLabelValues(command, result).Inc()
	m.apiCallDuration.WithLabelValues(command).Observe(elapsed.Seconds())
}

func (m *Metrics) EventReceived(eventType string, degraded bool) {
	if m == nil {
		return
	}
	m.eventsReceived.WithLabelValues(eventType).Inc()
	if degraded {
		m.eventsDegraded.WithLabelValues(eventType).Inc()
	}
}
