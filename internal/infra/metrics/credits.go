package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		consumeTotal,
		creditsDrawnTotal,
		creditsGrantedTotal,
		entitlementDecisionsTotal,
	)
}

var (
	consumeTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "credit_consume_total",
			Help: "Credit consumption calls by action and result (success/insufficient/error).",
		},
		[]string{"action", "result"},
	)

	creditsDrawnTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "credits_drawn_total",
			Help: "Credits drawn from lots, by lot type.",
		},
		[]string{"type"},
	)

	creditsGrantedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "credits_granted_total",
			Help: "Credits granted in new lots, by lot type.",
		},
		[]string{"type"},
	)

	entitlementDecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "entitlement_decisions_total",
			Help: "Entitlement resolutions by decision (subscription/trial/denied/error).",
		},
		[]string{"decision"},
	)
)

func IncConsume(action, result string) {
	consumeTotal.WithLabelValues(norm(action), norm(result)).Inc()
}

func AddCreditsDrawn(lotType string, n int64) {
	creditsDrawnTotal.WithLabelValues(norm(lotType)).Add(float64(n))
}

func AddCreditsGranted(lotType string, n int64) {
	creditsGrantedTotal.WithLabelValues(norm(lotType)).Add(float64(n))
}

func IncEntitlementDecision(decision string) {
	entitlementDecisionsTotal.WithLabelValues(norm(decision)).Inc()
}
