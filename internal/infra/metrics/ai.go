package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		providerTokensTotal,
		providerCallsLatencyMs,
		providerPrecheckBlocks,
	)
}

var (
	providerTokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "provider_tokens_total",
			Help: "Tokens reported by text providers, by provider/model/kind (prompt/completion).",
		},
		[]string{"provider", "model", "kind"},
	)

	providerCallsLatencyMs = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "provider_calls_latency_ms",
			Help:    "Third-party provider call latency distribution in milliseconds.",
			Buckets: []float64{50, 100, 200, 400, 800, 1600, 3000, 5000, 10000, 20000},
		},
		[]string{"provider", "success"},
	)

	providerPrecheckBlocks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "provider_precheck_blocks",
			Help: "Requests rejected before reaching the provider (prompt too large).",
		},
		[]string{"provider", "model"},
	)
)

func PrecheckBlocked(provider, model string) {
	providerPrecheckBlocks.WithLabelValues(norm(provider), norm(model)).Inc()
}

func ObserveProviderCall(provider string, latencyMs int64, success bool) {
	providerCallsLatencyMs.WithLabelValues(norm(provider), strconv.FormatBool(success)).
		Observe(float64(latencyMs))
}

func AddProviderTokens(provider, model string, prompt, completion int) {
	if prompt > 0 {
		providerTokensTotal.WithLabelValues(norm(provider), norm(model), "prompt").Add(float64(prompt))
	}
	if completion > 0 {
		providerTokensTotal.WithLabelValues(norm(provider), norm(model), "completion").Add(float64(completion))
	}
}
