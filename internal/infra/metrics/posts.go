package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(postTransitionsTotal, postConflictsTotal) }

var (
	postTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "post_transitions_total",
			Help: "Persisted post status transitions.",
		},
		[]string{"from", "to"},
	)

	postConflictsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "post_conflicts_total",
			Help: "Stale post transitions rejected by the store.",
		},
		[]string{"operation"},
	)
)

func IncPostTransition(from, to string) {
	postTransitionsTotal.WithLabelValues(norm(from), norm(to)).Inc()
}

func IncPostConflict(operation string) {
	postConflictsTotal.WithLabelValues(norm(operation)).Inc()
}
