// Package metrics exports transport and dispatch counters in the
// Prometheus format.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/peronio/realmnet/protocol"
)

const namespace = "realmnet"

// Collector implements websocket.Metrics on its own registry.
type Collector struct {
	registry *prometheus.Registry

	connections prometheus.Gauge
	opened      prometheus.Counter
	rateLimited prometheus.Counter
	messages    *prometheus.CounterVec
	latency     *prometheus.HistogramVec
}

// New registers the realmnet metrics plus the Go and process collectors.
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections",
			Help:      "Currently open WebSocket connections.",
		}),
		opened: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connections_opened_total",
			Help:      "WebSocket connections accepted.",
		}),
		rateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_total",
			Help:      "Connections closed for exceeding the message rate.",
		}),
		messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_total",
			Help:      "Inbound messages by kind and dispatch outcome.",
		}, []string{"kind", "outcome"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "handler_duration_seconds",
			Help:      "Time spent in message handlers.",
			Buckets:   []float64{.0005, .001, .005, .01, .05, .1, .5, 1},
		}, []string{"kind"}),
	}

	c.registry.MustRegister(
		c.connections, c.opened, c.rateLimited, c.messages, c.latency,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

func (c *Collector) ObserveDispatch(kind protocol.Kind, outcome string, elapsed time.Duration) {
	c.messages.WithLabelValues(string(kind), outcome).Inc()
	if elapsed > 0 {
		c.latency.WithLabelValues(string(kind)).Observe(elapsed.Seconds())
	}
}

func (c *Collector) ConnectionOpened() {
	c.opened.Inc()
	c.connections.Inc()
}

func (c *Collector) ConnectionClosed() {
	c.connections.Dec()
}

func (c *Collector) RateLimited() {
	c.rateLimited.Inc()
}

// Registry exposes the underlying registry for tests and extra collectors.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the text exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}
