package metrics

import (
	"time"

	"policyguard/gateway/pkg/arbiter"
	"policyguard/gateway/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

var healthStates = []arbiter.HealthState{
	arbiter.HealthHealthy,
	arbiter.HealthDegraded,
	arbiter.HealthNoPolicies,
}

// EvaluationMetrics tracks arbitration outcomes.
//
// Metrics:
//   - policyguard_evaluations_total{direction,verdict}
//   - policyguard_evaluation_duration_seconds{direction}
//   - policyguard_findings_total{kind,action}
//   - policyguard_redactions_total{direction}
//   - policyguard_drift_detected_total
//   - policyguard_entropy_bits
//   - policyguard_policy_store_state{state}
//   - policyguard_policy_reloads_total{result}
type EvaluationMetrics struct {
	evaluationsTotal   *prometheus.CounterVec
	evaluationDuration *prometheus.HistogramVec
	findingsTotal      *prometheus.CounterVec
	redactionsTotal    *prometheus.CounterVec
	driftTotal         prometheus.Counter
	entropyBits        prometheus.Histogram
	storeState         *prometheus.GaugeVec
	reloadsTotal       *prometheus.CounterVec
}

// NewEvaluationMetrics creates and registers evaluation metrics.
func NewEvaluationMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *EvaluationMetrics {
	em := &EvaluationMetrics{
		evaluationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "evaluations_total",
				Help:      "Total number of evaluations by direction and verdict",
			},
			[]string{"direction", "verdict"},
		),

		evaluationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Name:      "evaluation_duration_seconds",
				Help:      "Duration of one evaluation in seconds",
				Buckets:   cfg.DurationBuckets,
			},
			[]string{"direction"},
		),

		findingsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "findings_total",
				Help:      "Evidence entries recorded by detector kind and proposed action",
			},
			[]string{"kind", "action"},
		),

		redactionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "redactions_total",
				Help:      "Total number of spans replaced or masked",
			},
			[]string{"direction"},
		),

		driftTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "drift_detected_total",
				Help:      "Evaluations blocked for low information density",
			},
		),

		entropyBits: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Name:      "entropy_bits",
				Help:      "Word-level Shannon entropy of analysed inputs",
				Buckets:   prometheus.LinearBuckets(0, 0.5, 16),
			},
		),

		storeState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Name:      "policy_store_state",
				Help:      "1 for the policy store state observed by the latest evaluation",
			},
			[]string{"state"},
		),

		reloadsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "policy_reloads_total",
				Help:      "Policy reload attempts by result",
			},
			[]string{"result"},
		),
	}

	registry.MustRegister(
		em.evaluationsTotal,
		em.evaluationDuration,
		em.findingsTotal,
		em.redactionsTotal,
		em.driftTotal,
		em.entropyBits,
		em.storeState,
		em.reloadsTotal,
	)

	return em
}

// Record records one evaluation result.
func (em *EvaluationMetrics) Record(direction arbiter.Direction, result *arbiter.EvaluationResult, elapsed time.Duration) {
	dir := string(direction)
	md := result.Metadata

	em.evaluationsTotal.WithLabelValues(dir, string(result.Verdict())).Inc()
	em.evaluationDuration.WithLabelValues(dir).Observe(elapsed.Seconds())

	for _, ev := range md.Evidence {
		if ev.Kind == arbiter.EvidenceHealth {
			continue
		}
		action := string(ev.Action)
		if action == "" {
			action = "none"
		}
		em.findingsTotal.WithLabelValues(string(ev.Kind), action).Inc()
	}

	if md.Redactions > 0 {
		em.redactionsTotal.WithLabelValues(dir).Add(float64(md.Redactions))
	}
	if md.Drift.Detected {
		em.driftTotal.Inc()
	}
	if md.Drift.Entropy > 0 {
		em.entropyBits.Observe(md.Drift.Entropy)
	}
	if md.Health != "" {
		em.setState(md.Health)
	}
}

func (em *EvaluationMetrics) setState(state arbiter.HealthState) {
	for _, s := range healthStates {
		v := 0.0
		if s == state {
			v = 1
		}
		em.storeState.WithLabelValues(string(s)).Set(v)
	}
}

// RecordReload records a policy reload attempt.
func (em *EvaluationMetrics) RecordReload(err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	em.reloadsTotal.WithLabelValues(result).Inc()
}
