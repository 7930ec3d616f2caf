package internal

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the relay's Prometheus collectors.
type Metrics struct {
	registry *prometheus.Registry

	accepted   prometheus.Counter
	members    prometheus.Gauge
	received   *prometheus.CounterVec
	delivered  prometheus.Counter
	failed     prometheus.Counter
	terminated *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		accepted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "relay",
			Name:      "connections_accepted_total",
			Help:      "Number of accepted TCP connections.",
		}),
		members: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "relay",
			Name:      "members",
			Help:      "Number of connections currently registered for broadcasts.",
		}),
		received: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "relay",
			Name:      "messages_received_total",
			Help:      "Messages received from peers, by type.",
		}, []string{"type"}),
		delivered: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "relay",
			Name:      "deliveries_total",
			Help:      "Messages successfully written to peers.",
		}),
		failed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "relay",
			Name:      "delivery_failures_total",
			Help:      "Writes to peers that failed and closed the peer.",
		}),
		terminated: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "relay",
			Name:      "connections_terminated_total",
			Help:      "Terminated connections, by reason.",
		}, []string{"reason"}),
	}
}

// Handler serves the collected metrics in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Gatherer exposes the underlying registry, mostly for tests.
func (m *Metrics) Gatherer() prometheus.Gatherer {
	return m.registry
}
