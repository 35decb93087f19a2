package cartclient

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	outcomeOK             = "ok"
	outcomeTransportError = "transport_error"
	outcomeUnauthorized   = "unauthorized"
	outcomeClientError    = "client_error"
	outcomeServerError    = "server_error"
)

var (
	requestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_cart_requests_total",
			Help: "Total number of cart API calls by operation and outcome",
		},
		[]string{"operation", "outcome"},
	)

	requestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "storefront_cart_request_duration_seconds",
			Help:    "Cart API call latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)
)

func init() {
	prometheus.MustRegister(requestsTotal, requestDuration)
}

func observe(op, outcome string, elapsed time.Duration) {
	requestsTotal.WithLabelValues(op, outcome).Inc()
	requestDuration.WithLabelValues(op).Observe(elapsed.Seconds())
}

func outcomeFor(status int) string {
	switch {
	case status == http.StatusUnauthorized:
		return outcomeUnauthorized
	case status >= 500:
		return outcomeServerError
	default:
		return outcomeClientError
	}
}
