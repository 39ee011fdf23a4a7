package metrics

import (
	"sync"
	"time"

	"policyguard/gateway/pkg/arbiter"
	"policyguard/gateway/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// DefaultDurationBuckets cover evaluation latencies from 50µs to 250ms.
var DefaultDurationBuckets = []float64{0.00005, 0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.1, 0.25}

// Collector owns every Prometheus metric of the gateway. It implements
// arbiter.Observer so the engine reports each evaluation directly.
type Collector struct {
	config   config.MetricsConfig
	registry *prometheus.Registry

	evaluationMetrics *EvaluationMetrics
	requestMetrics    *RequestMetrics
	providerMetrics   *ProviderMetrics

	cardinalityLimiter *CardinalityLimiter
}

var _ arbiter.Observer = (*Collector)(nil)

// NewCollector creates a collector registering into registry. A nil
// registry gets a fresh one.
func NewCollector(cfg config.MetricsConfig, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	if cfg.Namespace == "" {
		cfg.Namespace = config.DefaultMetricsNamespace
	}
	if len(cfg.DurationBuckets) == 0 {
		cfg.DurationBuckets = DefaultDurationBuckets
	}

	return &Collector{
		config:             cfg,
		registry:           registry,
		evaluationMetrics:  NewEvaluationMetrics(&cfg, registry),
		requestMetrics:     NewRequestMetrics(&cfg, registry),
		providerMetrics:    NewProviderMetrics(&cfg, registry),
		cardinalityLimiter: NewCardinalityLimiter(1000),
	}
}

// ObserveEvaluation implements arbiter.Observer.
func (c *Collector) ObserveEvaluation(direction arbiter.Direction, result *arbiter.EvaluationResult, elapsed time.Duration) {
	if !c.config.Enabled || result == nil {
		return
	}
	c.evaluationMetrics.Record(direction, result, elapsed)
}

// RecordRequest records one HTTP request served by the gateway.
func (c *Collector) RecordRequest(endpoint string, status int, duration time.Duration) {
	if !c.config.Enabled {
		return
	}
	c.requestMetrics.Record(endpoint, status, duration)
}

// RecordUpstream records one upstream provider call. Unknown models beyond
// the cardinality limit are folded into "other".
func (c *Collector) RecordUpstream(provider, model string, latency time.Duration, err error) {
	if !c.config.Enabled {
		return
	}
	if !c.cardinalityLimiter.Allow(provider + ":" + model) {
		model = "other"
	}
	c.providerMetrics.RecordCall(provider, model, latency, err)
}

// RecordStoreReload records a policy reload attempt.
func (c *Collector) RecordStoreReload(err error) {
	if !c.config.Enabled {
		return
	}
	c.evaluationMetrics.RecordReload(err)
}

// Registry returns the Prometheus registry used by this collector.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// CardinalityLimiter bounds the number of distinct label sets a metric may
// grow to.
type CardinalityLimiter struct {
	maxCardinality int
	current        map[string]struct{}
	mu             sync.RWMutex
}

// NewCardinalityLimiter creates a limiter admitting maxCardinality label sets.
func NewCardinalityLimiter(maxCardinality int) *CardinalityLimiter {
	return &CardinalityLimiter{
		maxCardinality: maxCardinality,
		current:        make(map[string]struct{}),
	}
}

// Allow reports whether labelSet is already known or there is still room
// for it.
func (cl *CardinalityLimiter) Allow(labelSet string) bool {
	cl.mu.RLock()
	if _, exists := cl.current[labelSet]; exists {
		cl.mu.RUnlock()
		return true
	}
	cl.mu.RUnlock()

	cl.mu.Lock()
	defer cl.mu.Unlock()

	if _, exists := cl.current[labelSet]; exists {
		return true
	}
	if len(cl.current) >= cl.maxCardinality {
		return false
	}
	cl.current[labelSet] = struct{}{}
	return true
}

// Count returns the current cardinality.
func (cl *CardinalityLimiter) Count() int {
	cl.mu.RLock()
	defer cl.mu.RUnlock()
	return len(cl.current)
}
