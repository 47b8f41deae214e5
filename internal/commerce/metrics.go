package commerce

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var providerResolutions = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "omniops",
	Subsystem: "commerce",
	Name:      "provider_resolutions_total",
	Help:      "Provider constructions by detected platform kind.",
}, []string{"kind"})

func recordResolution(kind Kind) {
	providerResolutions.WithLabelValues(string(kind)).Inc()
}
