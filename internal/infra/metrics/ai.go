package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		generationCallsTotal,
		generationLatencyMs,
		aiTokensTotal,
	)
}

var (
	generationCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "generation_calls_total",
			Help: "Content generation calls per provider and result.",
		},
		[]string{"provider", "result"},
	)

	generationLatencyMs = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "generation_latency_ms",
			Help:    "Content generation latency distribution in milliseconds.",
			Buckets: []float64{250, 500, 1000, 2500, 5000, 10000, 20000, 40000, 80000},
		},
		[]string{"provider", "result"},
	)

	aiTokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ai_tokens_total",
			Help: "Tokens consumed per provider/model and kind (prompt|completion).",
		},
		[]string{"provider", "model", "kind"},
	)
)

func ObserveGeneration(provider string, d time.Duration, success bool) {
	res := boolLabel(success)
	generationCallsTotal.WithLabelValues(norm(provider), res).Inc()
	generationLatencyMs.WithLabelValues(norm(provider), res).Observe(float64(d.Milliseconds()))
}

func AddTokens(provider, model string, prompt, completion int) {
	if prompt > 0 {
		aiTokensTotal.WithLabelValues(norm(provider), norm(model), "prompt").Add(float64(prompt))
	}
	if completion > 0 {
		aiTokensTotal.WithLabelValues(norm(provider), norm(model), "completion").Add(float64(completion))
	}
}
