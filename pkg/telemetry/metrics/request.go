package metrics

import (
	"strconv"
	"time"

	"policyguard/gateway/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// RequestMetrics tracks HTTP requests served by the gateway.
//
// Metrics:
//   - policyguard_http_requests_total{endpoint,status}
//   - policyguard_http_request_duration_seconds{endpoint}
type RequestMetrics struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

// NewRequestMetrics creates and registers request metrics.
func NewRequestMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *RequestMetrics {
	rm := &RequestMetrics{
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests by endpoint and status code",
			},
			[]string{"endpoint", "status"},
		),

		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Name:      "http_request_duration_seconds",
				Help:      "Duration of HTTP requests in seconds, upstream time included",
				// Proxied LLM calls dominate: 10ms to 60s.
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"endpoint"},
		),
	}

	registry.MustRegister(rm.requestsTotal, rm.requestDuration)
	return rm
}

// Record records one request. endpoint must be a route pattern, never a raw
// path.
func (rm *RequestMetrics) Record(endpoint string, status int, duration time.Duration) {
	rm.requestsTotal.WithLabelValues(endpoint, strconv.Itoa(status)).Inc()
	rm.requestDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}
