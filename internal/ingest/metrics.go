package ingest

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type metrics struct {
	messagesTotal *prometheus.CounterVec
	droppedTotal  *prometheus.CounterVec
	handleLatency *prometheus.HistogramVec
	delivered     *prometheus.CounterVec
}

var metricsSingleton = sync.OnceValue(func() *metrics {
	return &metrics{
		messagesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "crm",
			Subsystem: "ingest",
			Name:      "messages_total",
			Help:      "Envelopes handled by ingestion workers, by outcome.",
		}, []string{"worker", "kind", "result"}),
		droppedTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "crm",
			Subsystem: "ingest",
			Name:      "dropped_total",
			Help:      "Envelopes dropped because the worker queue was full.",
		}, []string{"worker"}),
		handleLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "crm",
			Subsystem: "ingest",
			Name:      "handle_seconds",
			Help:      "Time spent handling one envelope.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"worker", "kind"}),
		delivered: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "crm",
			Subsystem: "delivery",
			Name:      "targets_total",
			Help:      "Campaign targets labelled by the delivery sampler.",
		}, []string{"status"}),
	}
})

func getMetrics() *metrics {
	return metricsSingleton()
}
