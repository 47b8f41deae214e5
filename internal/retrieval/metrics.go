package retrieval

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	searchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "omniops",
		Subsystem: "retrieval",
		Name:      "searches_total",
		Help:      "Searches by route taken and degraded flag.",
	}, []string{"route", "degraded"})

	searchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "omniops",
		Subsystem: "retrieval",
		Name:      "search_duration_seconds",
		Help:      "Search latency by route taken.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route"})
)

func recordSearch(route string, degraded bool, elapsed time.Duration) {
	flag := "false"
	if degraded {
		flag = "true"
	}
	searchesTotal.WithLabelValues(route, flag).Inc()
	searchDuration.WithLabelValues(route).Observe(elapsed.Seconds())
}
