package metrics

import "github.com/prometheus/client_golang/prometheus"

// StreamMetrics holds Prometheus metrics for the client registry and its sinks.
type StreamMetrics struct {
	ActiveClients prometheus.Gauge
	Deliveries    *prometheus.CounterVec
	Rejected      *prometheus.CounterVec
}

// NewStreamMetrics creates and registers stream metrics on the given registry.
func NewStreamMetrics(reg prometheus.Registerer) *StreamMetrics {
	m := &StreamMetrics{
		ActiveClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "active_clients",
			Help:      "Number of registered stream clients.",
		}),
		Deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "deliveries_total",
			Help:      "Total number of chunk deliveries to client sinks, by result.",
		}, []string{"result"}),
		Rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "rejected_connections_total",
			Help:      "Total number of stream connections rejected by connection limits, by reason.",
		}, []string{"reason"}),
	}

	reg.MustRegister(m.ActiveClients, m.Deliveries, m.Rejected)
	return m
}
