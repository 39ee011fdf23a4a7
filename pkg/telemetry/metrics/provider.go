package metrics

import (
	"context"
	"errors"
	"time"

	"policyguard/gateway/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// ProviderMetrics tracks calls to upstream LLM providers.
//
// Metrics:
//   - policyguard_upstream_requests_total{provider,model}
//   - policyguard_upstream_latency_seconds{provider,model}
//   - policyguard_upstream_errors_total{provider,error_type}
type ProviderMetrics struct {
	requestsTotal *prometheus.CounterVec
	latency       *prometheus.HistogramVec
	errorsTotal   *prometheus.CounterVec
}

// NewProviderMetrics creates and registers upstream metrics.
func NewProviderMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *ProviderMetrics {
	pm := &ProviderMetrics{
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "upstream_requests_total",
				Help:      "Total number of upstream provider calls",
			},
			[]string{"provider", "model"},
		),

		latency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Name:      "upstream_latency_seconds",
				Help:      "Upstream provider latency in seconds",
				Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"provider", "model"},
		),

		errorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "upstream_errors_total",
				Help:      "Upstream provider failures by type",
			},
			[]string{"provider", "error_type"},
		),
	}

	registry.MustRegister(pm.requestsTotal, pm.latency, pm.errorsTotal)
	return pm
}

// RecordCall records one upstream call and its failure, if any.
func (pm *ProviderMetrics) RecordCall(provider, model string, latency time.Duration, err error) {
	pm.requestsTotal.WithLabelValues(provider, model).Inc()
	pm.latency.WithLabelValues(provider, model).Observe(latency.Seconds())
	if err != nil {
		pm.errorsTotal.WithLabelValues(provider, errorType(err)).Inc()
	}
}

func errorType(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "transport"
	}
}
