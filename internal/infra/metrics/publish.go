package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() { register(publishAttemptsTotal, publishLatencyMs) }

var (
	publishAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "publish_attempts_total",
			Help: "Platform publish results per platform and outcome.",
		},
		[]string{"platform", "outcome"}, // outcome: success|failed|not_configured
	)

	publishLatencyMs = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "publish_latency_ms",
			Help:    "Platform publish latency in milliseconds, retries included.",
			Buckets: []float64{100, 250, 500, 1000, 2500, 5000, 10000, 30000},
		},
		[]string{"platform"},
	)
)

func IncPublish(platform, outcome string) {
	publishAttemptsTotal.WithLabelValues(norm(platform), norm(outcome)).Inc()
}

func ObservePublishLatency(platform string, d time.Duration) {
	publishLatencyMs.WithLabelValues(norm(platform)).Observe(float64(d.Milliseconds()))
}
