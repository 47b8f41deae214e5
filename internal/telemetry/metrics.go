package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	sessionsFinalized = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "omniops",
		Subsystem: "telemetry",
		Name:      "sessions_finalized_total",
		Help:      "Chat sessions finalized and priced.",
	})

	sessionTokens = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "omniops",
		Subsystem: "telemetry",
		Name:      "session_tokens_total",
		Help:      "Tokens accounted across finalized sessions, by direction.",
	}, []string{"direction"})

	sessionCostUSD = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "omniops",
		Subsystem: "telemetry",
		Name:      "session_cost_usd_total",
		Help:      "Accumulated USD cost across finalized sessions.",
	})

	summariesDropped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "omniops",
		Subsystem: "telemetry",
		Name:      "summaries_dropped_total",
		Help:      "Usage summaries dropped because the retry queue was full.",
	})
)

func recordSessionFinalized(summary Summary) {
	sessionsFinalized.Inc()
	sessionTokens.WithLabelValues("input").Add(float64(summary.InputTokens))
	sessionTokens.WithLabelValues("output").Add(float64(summary.OutputTokens))
	sessionCostUSD.Add(summary.CostUSD)
}

func recordSummaryDropped() {
	summariesDropped.Inc()
}
