package kafka

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	eventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "giftcart",
			Name:      "events_published_total",
			Help:      "Domain events handed to Kafka, by topic and outcome (ok, error).",
		},
		[]string{"topic", "outcome"},
	)

	publishLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "giftcart",
			Name:      "event_publish_duration_seconds",
			Help:      "Time spent in a synchronous Kafka write.",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{"topic"},
	)
)
