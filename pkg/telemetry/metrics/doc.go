// Package metrics exposes the gateway's Prometheus metrics.
//
// A Collector registers three groups into one registry:
//
//   - Evaluation metrics: verdicts by direction, findings by detector kind,
//     redactions, entropy, drift blocks and the policy store state.
//   - Request metrics: HTTP requests by endpoint pattern and status.
//   - Provider metrics: upstream call counts, latency and failures.
//
// The Collector implements arbiter.Observer, so wiring it into the engine
// is enough to get evaluation metrics:
//
//	collector := metrics.NewCollector(cfg.Telemetry.Metrics, nil)
//	engine, err := arbiter.New(store, arbiter.DefaultEngineConfig().WithObserver(collector))
//	mux.Handle("/metrics", collector.Handler())
//
// Label values are bounded. Endpoints are route patterns, and upstream
// models beyond the cardinality limit are reported as "other".
package metrics
