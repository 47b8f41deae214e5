package orchestrator

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	iterationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "omniops",
		Subsystem: "orchestrator",
		Name:      "iterations_total",
		Help:      "LLM iterations by outcome.",
	}, []string{"outcome"})

	iterationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "omniops",
		Subsystem: "orchestrator",
		Name:      "iteration_duration_seconds",
		Help:      "Wall time of one LLM iteration.",
		Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 30, 60},
	})

	toolCallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "omniops",
		Subsystem: "orchestrator",
		Name:      "tool_calls_total",
		Help:      "Tool invocations by tool name and outcome.",
	}, []string{"tool", "outcome"})

	toolCallDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "omniops",
		Subsystem: "orchestrator",
		Name:      "tool_call_duration_seconds",
		Help:      "Wall time of one tool invocation.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"tool"})
)

func recordIteration(elapsed time.Duration, success bool) {
	outcome := "success"
	if !success {
		outcome = "error"
	}
	iterationsTotal.WithLabelValues(outcome).Inc()
	iterationDuration.Observe(elapsed.Seconds())
}

func recordToolCall(tool string, elapsed time.Duration, success bool) {
	outcome := "success"
	if !success {
		outcome = "error"
	}
	toolCallsTotal.WithLabelValues(tool, outcome).Inc()
	toolCallDuration.WithLabelValues(tool).Observe(elapsed.Seconds())
}
