package metrics

import "github.com/prometheus/client_golang/prometheus"

// StreamMetrics holds Prometheus metrics for WebSocket selection streams.
type StreamMetrics struct {
	ActiveStreams *prometheus.GaugeVec
	MessagesSent  prometheus.Counter
}

func NewStreamMetrics(reg prometheus.Registerer) *StreamMetrics {
	m := &StreamMetrics{
		ActiveStreams: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "active_connections",
			Help:      "Number of open selection streams, by destination.",
		}, []string{"destination"}),
		MessagesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "messages_sent_total",
			Help:      "Total number of selection state messages written to streams.",
		}),
	}

	reg.MustRegister(m.ActiveStreams, m.MessagesSent)
	return m
}
