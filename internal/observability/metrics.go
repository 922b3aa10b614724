package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the collectors for the realtime relay. A nil *Metrics is
// valid and records nothing, which keeps tests free of registry setup.
type Metrics struct {
	registry *prometheus.Registry

	ConnectionsOpen    *prometheus.GaugeVec
	LocationsRelayed   prometheus.Counter
	HandshakesRejected *prometheus.CounterVec
	LocationsDiscarded prometheus.Counter
}

// NewMetrics creates and registers the relay collectors on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		registry: reg,
		ConnectionsOpen: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "fleetbeam_connections_open",
			Help: "Currently registered realtime sessions by role.",
		}, []string{"role"}),
		LocationsRelayed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fleetbeam_locations_relayed_total",
			Help: "Location updates broadcast to connected clients.",
		}),
		HandshakesRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fleetbeam_handshakes_rejected_total",
			Help: "Realtime handshakes rejected during authentication.",
		}, []string{"reason"}),
		LocationsDiscarded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fleetbeam_locations_discarded_total",
			Help: "Location submissions dropped for authorization or decoding reasons.",
		}),
	}
	reg.MustRegister(m.ConnectionsOpen, m.LocationsRelayed, m.HandshakesRejected, m.LocationsDiscarded)
	return m
}

// Handler returns the HTTP handler exposing the registry, or a 404 handler
// when metrics are disabled.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// SessionOpened records a registered session with the given role label.
func (m *Metrics) SessionOpened(role string) {
	if m != nil {
		m.ConnectionsOpen.WithLabelValues(role).Inc()
	}
}

// SessionClosed records an unregistered session with the given role label.
func (m *Metrics) SessionClosed(role string) {
	if m != nil {
		m.ConnectionsOpen.WithLabelValues(role).Dec()
	}
}

// LocationRelayed records one successful fan-out.
func (m *Metrics) LocationRelayed() {
	if m != nil {
		m.LocationsRelayed.Inc()
	}
}

// HandshakeRejected records a failed handshake with its rejection reason.
func (m *Metrics) HandshakeRejected(reason string) {
	if m != nil {
		m.HandshakesRejected.WithLabelValues(reason).Inc()
	}
}

// LocationDiscarded records a dropped location submission.
func (m *Metrics) LocationDiscarded() {
	if m != nil {
		m.LocationsDiscarded.Inc()
	}
}
