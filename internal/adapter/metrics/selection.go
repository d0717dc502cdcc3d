package metrics

import "github.com/prometheus/client_golang/prometheus"

// SelectionMetrics covers wallpaper selection, undo, and snapshot pruning.
type SelectionMetrics struct {
	Selections        *prometheus.CounterVec
	SelectionDuration *prometheus.HistogramVec
	Undos             *prometheus.CounterVec
	SnapshotsPruned   prometheus.Counter
}

func NewSelectionMetrics(reg prometheus.Registerer) *SelectionMetrics {
	m := &SelectionMetrics{
		Selections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "selection",
			Name:      "total",
			Help:      "Total number of wallpaper selections, by destination and result.",
		}, []string{"destination", "result"}),
		SelectionDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "selection",
			Name:      "duration_seconds",
			Help:      "Duration of wallpaper selections including the snapshot write.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"destination"}),
		Undos: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "selection",
			Name:      "undo_total",
			Help:      "Total number of undo requests, by result.",
		}, []string{"result"}),
		SnapshotsPruned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "snapshot",
			Name:      "pruned_total",
			Help:      "Total number of snapshots removed by the pruner.",
		}),
	}

	reg.MustRegister(m.Selections, m.SelectionDuration, m.Undos, m.SnapshotsPruned)
	return m
}

// ObserveSelection records one selection attempt.
func (m *SelectionMetrics) ObserveSelection(destination string, seconds float64, err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	m.Selections.WithLabelValues(destination, result).Inc()
	m.SelectionDuration.WithLabelValues(destination).Observe(seconds)
}
