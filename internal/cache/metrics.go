package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "omniops",
		Subsystem: "cache",
		Name:      "hits_total",
		Help:      "Cache hits by entry kind and tier.",
	}, []string{"kind", "tier"})

	cacheMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "omniops",
		Subsystem: "cache",
		Name:      "misses_total",
		Help:      "Cache misses by entry kind.",
	}, []string{"kind"})

	cacheStores = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "omniops",
		Subsystem: "cache",
		Name:      "stores_total",
		Help:      "Cache writes by entry kind.",
	}, []string{"kind"})

	cacheSweepEvictions = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "omniops",
		Subsystem: "cache",
		Name:      "sweep_evictions_total",
		Help:      "Entries removed by the background expiry sweep.",
	})
)

func recordHit(kind, tier string) { cacheHits.WithLabelValues(kind, tier).Inc() }
func recordMiss(kind string)      { cacheMisses.WithLabelValues(kind).Inc() }
func recordStore(kind string)     { cacheStores.WithLabelValues(kind).Inc() }
func recordSweep(n int)           { cacheSweepEvictions.Add(float64(n)) }
