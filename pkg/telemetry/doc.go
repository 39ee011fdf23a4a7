// Package telemetry groups the gateway's observability packages.
//
//   - logging: slog setup with redaction of secrets and PII in attributes
//   - metrics: Prometheus collectors for requests, upstream calls and verdicts
//   - tracing: OpenTelemetry spans around evaluation and upstream calls
//   - health: liveness, readiness and engine health endpoints
//
// The command wires them together at startup:
//
//	logger, err := logging.New(cfg.Telemetry.Logging, os.Stderr)
//	collector := metrics.NewCollector(cfg.Telemetry.Metrics, prometheus.NewRegistry())
//	tracer, err := tracing.New(ctx, cfg.Telemetry.Tracing, Version)
//	defer tracer.Shutdown(ctx)
//
// Evaluation text never reaches the logs. Only verdicts, policy names and
// redaction counts are recorded.
package telemetry
