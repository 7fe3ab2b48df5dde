package metrics

import "github.com/prometheus/client_golang/prometheus"

// RelayMetrics holds Prometheus metrics for the notification relay.
type RelayMetrics struct {
	NotificationsReceived prometheus.Counter
	DecodeFailures        prometheus.Counter
	BroadcastDuration     prometheus.Histogram
	Running               prometheus.Gauge
}

// NewRelayMetrics creates and registers relay metrics on the given registry.
func NewRelayMetrics(reg prometheus.Registerer) *RelayMetrics {
	m := &RelayMetrics{
		NotificationsReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "notifications_received_total",
			Help:      "Total number of notifications received from the bus.",
		}),
		DecodeFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "decode_failures_total",
			Help:      "Total number of bus messages that failed to decode.",
		}),
		BroadcastDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "broadcast_duration_seconds",
			Help:      "Duration of one broadcast pass over all registered clients.",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1},
		}),
		Running: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "running",
			Help:      "1 while the relay loop is consuming the bus, 0 otherwise.",
		}),
	}

	reg.MustRegister(m.NotificationsReceived, m.DecodeFailures, m.BroadcastDuration, m.Running)
	return m
}
