package metrics

import "github.com/prometheus/client_golang/prometheus"

// ThumbnailMetrics tracks thumbnail loads.
type ThumbnailMetrics struct {
	Loads       *prometheus.CounterVec
	SharedLoads prometheus.Counter
}

func NewThumbnailMetrics(reg prometheus.Registerer) *ThumbnailMetrics {
	m := &ThumbnailMetrics{
		Loads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "thumbnail",
			Name:      "loads_total",
			Help:      "Total number of thumbnail loads, by result (hit, miss, error).",
		}, []string{"result"}),
		SharedLoads: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "thumbnail",
			Name:      "shared_loads_total",
			Help:      "Thumbnail loads answered by an in-flight load of the same wallpaper.",
		}),
	}

	reg.MustRegister(m.Loads, m.SharedLoads)
	return m
}
