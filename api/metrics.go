package api

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var transportRequestDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "blogdeck_transport_request_duration_seconds",
		Help:    "Latency of round trips to the blog API",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"method", "status"},
)

func observeRequest(method, status string, start time.Time) {
	transportRequestDuration.WithLabelValues(method, status).Observe(time.Since(start).Seconds())
}
