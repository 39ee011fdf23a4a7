package handlers

import (
	"context"

	"policyguard/gateway/pkg/arbiter"
	"policyguard/gateway/pkg/evidence/recorder"
	"policyguard/gateway/pkg/providers"
)

// ProviderManager looks up upstream providers by name.
type ProviderManager interface {
	GetProvider(name string) (providers.Provider, error)
}

// DirectEvaluator evaluates text submitted to the evaluation API.
type DirectEvaluator interface {
	Evaluate(ctx context.Context, text string, scope arbiter.Scope) *arbiter.EvaluationResult
}

// EvidenceRecorder persists evaluation evidence.
type EvidenceRecorder interface {
	Record(ctx context.Context, e recorder.Entry) error
}
