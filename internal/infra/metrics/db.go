package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() { register(storeOpLatencyMs) }

var storeOpLatencyMs = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "store_op_latency_ms",
		Help:    "Post store operation latency in milliseconds.",
		Buckets: []float64{1, 2, 5, 10, 25, 50, 100, 250, 1000},
	},
	[]string{"driver", "op", "result"},
)

// ObserveStoreOp records one store call. Usage: defer metrics.ObserveStoreOp("postgres", "update", time.Now(), &err)
func ObserveStoreOp(driver, op string, start time.Time, errp *error) {
	ok := errp == nil || *errp == nil
	storeOpLatencyMs.WithLabelValues(norm(driver), norm(op), boolLabel(ok)).Observe(float64(time.Since(start).Milliseconds()))
}
