package tracing

import (
	"net/http"

	"policyguard/gateway/pkg/arbiter"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys in the policyguard namespace.
const (
	AttrAgentID    = "policyguard.agent_id"
	AttrRoute      = "policyguard.route"
	AttrRequestID  = "policyguard.request_id"
	AttrDirection  = "policyguard.direction"
	AttrVerdict    = "policyguard.verdict"
	AttrPolicy     = "policyguard.policy"
	AttrRedactions = "policyguard.redactions"
	AttrEntropy    = "policyguard.entropy"
	AttrDrift      = "policyguard.drift_detected"
	AttrHealth     = "policyguard.store_health"
	AttrProvider   = "policyguard.provider"
	AttrModel      = "policyguard.model"
)

// ServerSpan marks a span as the server side of r.
func ServerSpan(r *http.Request) trace.SpanStartOption {
	return trace.WithAttributes(
		attribute.String("http.method", r.Method),
		attribute.String("http.target", r.URL.Path),
	)
}

// SetScopeAttributes records who made the request.
func SetScopeAttributes(span trace.Span, requestID string, scope arbiter.Scope) {
	span.SetAttributes(
		attribute.String(AttrRequestID, requestID),
		attribute.String(AttrAgentID, scope.AgentID),
		attribute.String(AttrRoute, scope.Route),
	)
}

// SetEvaluationAttributes records an evaluation outcome. Neither the input
// nor the transformed text is attached.
func SetEvaluationAttributes(span trace.Span, direction arbiter.Direction, result *arbiter.EvaluationResult) {
	md := result.Metadata
	span.SetAttributes(
		attribute.String(AttrDirection, string(direction)),
		attribute.String(AttrVerdict, string(result.Verdict())),
		attribute.String(AttrPolicy, md.Policy),
		attribute.Int(AttrRedactions, md.Redactions),
		attribute.Float64(AttrEntropy, md.Drift.Entropy),
		attribute.Bool(AttrDrift, md.Drift.Detected),
		attribute.String(AttrHealth, string(md.Health)),
	)
}

// SetProviderAttributes records the upstream provider and model.
func SetProviderAttributes(span trace.Span, provider, model string) {
	span.SetAttributes(
		attribute.String(AttrProvider, provider),
		attribute.String(AttrModel, model),
	)
}
