package transporthttp

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var publishedTotal = sync.OnceValue(func() *prometheus.CounterVec {
	return promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "crm",
		Subsystem: "api",
		Name:      "published_total",
		Help:      "Envelopes published by the request API.",
	}, []string{"topic", "kind", "result"})
})
