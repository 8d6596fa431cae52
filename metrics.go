package main

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the relay's Prometheus collectors on a private registry.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	reg *prometheus.Registry

	messagesRouted    prometheus.Counter
	deliveries        prometheus.Counter
	deliveriesDropped prometheus.Counter
	notifications     prometheus.Counter
	protocolErrors    *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		reg: reg,
		messagesRouted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "relay_messages_routed_total",
			Help: "Text updates accepted for fan-out.",
		}),
		deliveries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "relay_deliveries_total",
			Help: "Text frames enqueued to recipients.",
		}),
		deliveriesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "relay_deliveries_dropped_total",
			Help: "Frames dropped because the recipient queue was full or closed.",
		}),
		notifications: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "relay_occupancy_notifications_total",
			Help: "room-users-count broadcasts emitted.",
		}),
		protocolErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "relay_protocol_errors_total",
			Help: "Requests rejected with an error event, by kind.",
		}, []string{"kind"}),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.messagesRouted,
		m.deliveries,
		m.deliveriesDropped,
		m.notifications,
		m.protocolErrors,
	)
	return m
}

// observeHub exposes live room and connection counts.
func (m *Metrics) observeHub(h *Hub) {
	if m == nil {
		return
	}
	m.reg.MustRegister(
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "relay_rooms",
			Help: "Rooms with at least one member.",
		}, func() float64 { return float64(h.RoomCount()) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "relay_connections",
			Help: "Open client connections.",
		}, func() float64 { return float64(h.ConnCount()) }),
	)
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}

func (m *Metrics) routed(delivered int) {
	if m == nil {
		return
	}
	m.messagesRouted.Inc()
	m.deliveries.Add(float64(delivered))
}

func (m *Metrics) deliveryDropped() {
	if m == nil {
		return
	}
	m.deliveriesDropped.Inc()
}

func (m *Metrics) occupancyNotified() {
	if m == nil {
		return
	}
	m.notifications.Inc()
}

func (m *Metrics) protocolError(kind string) {
	if m == nil {
		return
	}
	m.protocolErrors.WithLabelValues(kind).Inc()
}
