package lifecycle

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "downtimekeeper"

var (
	transitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "lifecycle",
			Name:      "transitions_total",
			Help:      "Total lifecycle transition attempts by operation and result",
		},
		[]string{"operation", "result"},
	)

	inflightRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "lifecycle",
			Name:      "inflight_requests",
			Help:      "Requests currently tracked between creation and closure",
		},
	)

	activeDowntimes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "lifecycle",
			Name:      "active_downtimes",
			Help:      "Lines currently marked as blocked",
		},
	)
)

func recordTransition(operation, result string) {
	transitions.WithLabelValues(operation, result).Inc()
}

func recordInflight(n int) {
	inflightRequests.Set(float64(n))
}

func recordActiveDowntimes(n int) {
	activeDowntimes.Set(float64(n))
}
