// internal/bridge/metrics.go
package bridge

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	serialhelper "github.com/rusminto/serial.helper"
)

// Metrics exposes connection and console counters on /metrics.
type Metrics struct {
	registry *prometheus.Registry

	Records prometheus.Counter
	Opens   prometheus.Counter
	Closes  prometheus.Counter
	Errors  prometheus.Counter
}

// NewMetrics builds a registry bound to one connection and one hub. Byte
// counters and the client gauge read live values instead of tracking their
// own.
func NewMetrics(conn *serialhelper.Conn, hub *Hub) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Records: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "serialhelper",
			Name:      "records_total",
			Help:      "Records emitted by the framing feed.",
		}),
		Opens: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "serialhelper",
			Name:      "opens_total",
			Help:      "Times the serial port was opened.",
		}),
		Closes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "serialhelper",
			Name:      "closes_total",
			Help:      "Times the serial port was closed.",
		}),
		Errors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "serialhelper",
			Name:      "errors_total",
			Help:      "Connection errors reported.",
		}),
	}

	bytesSent := prometheus.NewCounterFunc(prometheus.CounterOpts{
		Namespace: "serialhelper",
		Name:      "bytes_sent_total",
		Help:      "Bytes written to the serial port.",
	}, func() float64 {
		return float64(conn.BytesSent())
	})
	bytesReceived := prometheus.NewCounterFunc(prometheus.CounterOpts{
		Namespace: "serialhelper",
		Name:      "bytes_received_total",
		Help:      "Bytes read from the serial port.",
	}, func() float64 {
		return float64(conn.BytesReceived())
	})
	clients := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "serialhelper",
		Name:      "console_clients",
		Help:      "Connected console clients.",
	}, func() float64 {
		return float64(hub.Count())
	})

	m.registry.MustRegister(m.Records, m.Opens, m.Closes, m.Errors, bytesSent, bytesReceived, clients)
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler returns the scrape endpoint for the registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
