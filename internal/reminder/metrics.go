package reminder

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "downtimekeeper"

var remindersTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "reminder",
		Name:      "sent_total",
		Help:      "Reminder delivery attempts by kind and outcome",
	},
	[]string{"kind", "result"},
)

func recordReminder(kind, result string) {
	remindersTotal.WithLabelValues(kind, result).Inc()
}
