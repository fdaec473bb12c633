package router

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the router's instrumentation. Registration failures panic:
// registering the same metrics twice on one registry is a wiring defect.
type Metrics struct {
	swapsTotal   *prometheus.CounterVec
	swapDuration *prometheus.HistogramVec
	routeUpdates *prometheus.CounterVec
}

// NewMetrics builds and registers the router metrics. A nil registerer gets
// a private registry, which keeps tests and embedded uses quiet.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	m := &Metrics{
		swapsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "router_swaps_total",
				Help: "Swap executions by backend and result.",
			},
			[]string{"backend", "result"},
		),
		swapDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "router_swap_duration_seconds",
				Help:    "End-to-end swap execution time by backend.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"backend"},
		),
		routeUpdates: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "router_route_updates_total",
				Help: "Committed routing table updates by backend.",
			},
			[]string{"backend"},
		),
	}

	registry.MustRegister(m.swapsTotal, m.swapDuration, m.routeUpdates)
	return m
}
