package devrealm

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const metricsNamespace = "lively_devrealm"

// Metrics holds the dev realm's Prometheus collectors on a private registry.
type Metrics struct {
	ActiveSessions prometheus.Gauge
	Handshakes     *prometheus.CounterVec // label: result
	Events         *prometheus.CounterVec // label: namespace
	Acks           prometheus.Counter

	registry *prometheus.Registry
}

func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		ActiveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "active_sessions",
			Help:      "Number of open Engine.IO sessions.",
		}),
		Handshakes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "handshakes_total",
			Help:      "Handshake attempts by result.",
		}, []string{"result"}),
		Events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "events_total",
			Help:      "Socket.IO events received by namespace.",
		}, []string{"namespace"}),
		Acks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "acks_total",
			Help:      "Acknowledgements sent to clients.",
		}),
		registry: reg,
	}

	reg.MustRegister(m.ActiveSessions, m.Handshakes, m.Events, m.Acks)
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
