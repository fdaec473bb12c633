package differ

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the differ's instrumentation.
type Metrics struct {
	diffDuration *prometheus.HistogramVec
}

// NewMetrics builds and registers the differ metrics. A nil registerer gets
// a private registry, which keeps tests and embedded uses quiet.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	m := &Metrics{
		diffDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "differ_diff_duration_seconds",
				Help:    "Time taken to compute a full route state diff.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{},
		),
	}

	registry.MustRegister(m.diffDuration)
	return m
}
