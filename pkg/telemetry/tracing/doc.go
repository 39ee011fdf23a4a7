// Package tracing provides OpenTelemetry tracing for the gateway.
//
// When telemetry.tracing.enabled is false every span is a noop. Otherwise
// spans are batched to an OTLP gRPC collector and W3C trace context is
// propagated both from callers and to upstream providers.
//
//	tracer, err := tracing.New(ctx, cfg.Telemetry.Tracing, version)
//	defer tracer.Shutdown(context.Background())
//
//	ctx, span := tracer.Start(ctx, "arbiter.evaluate")
//	tracing.SetEvaluationAttributes(span, arbiter.DirectionIngress, result)
//	span.End()
//
// Span attributes never carry prompt or response text.
package tracing
