// Package metrics exposes prometheus metrics of the proxy.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	dto "github.com/prometheus/client_model/go"
)

var (
	registerOnce sync.Once

	packets = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lumen",
			Subsystem: "protocol",
			Name:      "packets_total",
			Help:      "Packets read and written by state and direction.",
		},
		[]string{"state", "direction", "op"},
	)
	frameBytes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lumen",
			Subsystem: "protocol",
			Name:      "frame_bytes_total",
			Help:      "Frame payload bytes read and written, before decompression.",
		},
		[]string{"op"},
	)
	compressed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lumen",
			Subsystem: "compression",
			Name:      "operations_total",
			Help:      "Packets deflated and inflated.",
		},
		[]string{"op", "offloaded"},
	)
	protocolErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lumen",
			Subsystem: "protocol",
			Name:      "errors_total",
			Help:      "Connections closed because of a protocol error.",
		},
		[]string{"state"},
	)
	sessions = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "lumen",
			Subsystem: "session",
			Name:      "active",
			Help:      "Connections currently open by state.",
		},
		[]string{"state"},
	)
	logins = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lumen",
			Subsystem: "session",
			Name:      "logins_total",
			Help:      "Login attempts by result.",
		},
		[]string{"result"},
	)
)

// Register registers every metric with the default registry. It may be called multiple times.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(packets, frameBytes, compressed, protocolErrors, sessions, logins)
	})
}

// Handler returns the HTTP handler serving the registered metrics.
func Handler() http.Handler {
	Register()
	return promhttp.Handler()
}

// RecordPacket counts a packet read ("read") or written ("write") in the state and direction
// passed.
func RecordPacket(state, direction, op string) {
	Register()
	packets.WithLabelValues(state, direction, op).Inc()
}

// RecordFrame counts the bytes of a frame read or written.
func RecordFrame(op string, size int) {
	Register()
	frameBytes.WithLabelValues(op).Add(float64(size))
}

// RecordCompression counts a packet deflated or inflated, and whether the work ran on the worker
// pool.
func RecordCompression(op string, offloaded bool) {
	Register()
	label := "false"
	if offloaded {
		label = "true"
	}
	compressed.WithLabelValues(op, label).Inc()
}

// RecordProtocolError counts a connection closed because of a protocol error in the state passed.
func RecordProtocolError(state string) {
	Register()
	protocolErrors.WithLabelValues(state).Inc()
}

// SessionOpened increments the amount of open connections in the state passed.
func SessionOpened(state string) {
	Register()
	sessions.WithLabelValues(state).Inc()
}

// SessionClosed decrements the amount of open connections in the state passed.
func SessionClosed(state string) {
	Register()
	sessions.WithLabelValues(state).Dec()
}

// ActiveSessions returns the amount of connections currently open in the state passed.
func ActiveSessions(state string) float64 {
	Register()
	var m dto.Metric
	if err := sessions.WithLabelValues(state).Write(&m); err != nil {
		return 0
	}
	return m.GetGauge().GetValue()
}

// RecordLogin counts a login attempt ending with the result passed, such as "success" or
// "disconnected".
func RecordLogin(result string) {
	Register()
	logins.WithLabelValues(result).Inc()
}
