package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "downtimekeeper"

var (
	cacheRefreshes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "refreshes_total",
			Help:      "Total cache refresh attempts by result",
		},
		[]string{"result"},
	)

	cachedRows = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "rows",
			Help:      "Number of record rows in the current snapshot",
		},
	)
)

func recordRefresh(result string) {
	cacheRefreshes.WithLabelValues(result).Inc()
}

func recordRows(n int) {
	cachedRows.Set(float64(n))
}
