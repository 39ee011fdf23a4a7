package arbiter

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	// ReasonMinimalInput is reported for empty or near-empty input.
	ReasonMinimalInput = "System: Input minimal, skipping evaluation."

	// ReasonStoreUnhealthy is reported when the policy store cannot be read.
	ReasonStoreUnhealthy = "CRITICAL: Policy Storage Unhealthy. Safe-Mode FAIL-CLOSED active."

	// ReasonDefaultDeny is reported when no active policy is in scope.
	ReasonDefaultDeny = "Zero-Trust: No active policies. Default BLOCK."

	// SafetyAnchorPolicy names the pseudo-policy behind fail-closed verdicts.
	SafetyAnchorPolicy = "System Safety Anchor"

	// DefaultDenyPolicy names the pseudo-policy behind default-deny verdicts.
	DefaultDenyPolicy = "Default Deny"

	arbitrationMode      = "Policy Precedence"
	confidenceProvenance = "Rule-Based Deterministic"
)

// PolicyStore provides the policies that govern one evaluation. It must be
// safe for concurrent reads.
type PolicyStore interface {
	GetActivePolicies(ctx context.Context, agentID, route string) ([]Policy, error)
}

// Engine evaluates text against the active policies of a store. It holds no
// per-evaluation state and is safe for concurrent use.
type Engine struct {
	store   PolicyStore
	config  *EngineConfig
	logger  *slog.Logger
	lowered []string
	health  *healthTracker
}

// New creates an engine reading policies from store.
func New(store PolicyStore, config *EngineConfig) (*Engine, error) {
	if store == nil {
		return nil, ErrNilStore
	}
	if config == nil {
		config = DefaultEngineConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	lowered := make([]string, len(config.FinancialPhrases))
	for i, p := range config.FinancialPhrases {
		lowered[i] = strings.ToLower(p)
	}

	return &Engine{
		store:   store,
		config:  config,
		logger:  logger.With("component", "arbiter"),
		lowered: lowered,
		health:  newHealthTracker(),
	}, nil
}

// Health returns the store state observed by the most recent evaluation.
func (e *Engine) Health() HealthState {
	return e.health.get()
}

// Evaluate runs every detector over text and arbitrates the findings. It
// always returns a result; internal failures become a BLOCK verdict.
func (e *Engine) Evaluate(ctx context.Context, text string, scope Scope) *EvaluationResult {
	return e.evaluate(ctx, DirectionDirect, text, scope)
}

// EvaluateIngress evaluates a prompt before it is forwarded upstream.
func (e *Engine) EvaluateIngress(ctx context.Context, text string, scope Scope) *EvaluationResult {
	return e.evaluate(ctx, DirectionIngress, text, scope)
}

// EvaluateEgress evaluates a model response before it is returned.
func (e *Engine) EvaluateEgress(ctx context.Context, text string, scope Scope) *EvaluationResult {
	return e.evaluate(ctx, DirectionEgress, text, scope)
}

func (e *Engine) evaluate(ctx context.Context, dir Direction, text string, scope Scope) (result *EvaluationResult) {
	start := time.Now()
	scope = scope.normalized()

	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("evaluation panicked, failing closed",
				"direction", dir,
				"agent_id", scope.AgentID,
				"panic", fmt.Sprint(r),
			)
			e.health.set(HealthDegraded)
			result = failClosed(text, fmt.Sprintf("internal failure: %v", r))
		}
		if e.config.Observer != nil {
			e.config.Observer.ObserveEvaluation(dir, result, time.Since(start))
		}
	}()

	if utf8.RuneCountInString(strings.TrimSpace(text)) < 2 {
		return newResult(text, ReasonMinimalInput)
	}

	policies, err := e.readStore(ctx, scope)
	if err != nil {
		e.health.set(HealthDegraded)
		e.logger.Error("policy store unhealthy, failing closed",
			"direction", dir,
			"agent_id", scope.AgentID,
			"route", scope.Route,
			"error", err,
		)
		return failClosed(text, "policy store read failed")
	}

	inScope := policies[:0:0]
	for i := range policies {
		if policies[i].IsActive && policies[i].AppliesTo(scope) {
			inScope = append(inScope, policies[i])
		}
	}

	if len(inScope) == 0 {
		e.health.set(HealthNoPolicies)
		e.logger.Warn("no active policies in scope, default deny",
			"direction", dir,
			"agent_id", scope.AgentID,
			"route", scope.Route,
		)
		return e.defaultDeny(text)
	}
	e.health.set(HealthHealthy)

	result = e.runDetectors(text, inScope)
	e.logger.Debug("evaluation complete",
		"direction", dir,
		"agent_id", scope.AgentID,
		"route", scope.Route,
		"policies", len(inScope),
		"blocked", result.IsBlocked,
		"redactions", result.Metadata.Redactions,
		"policy", result.Metadata.Policy,
	)
	return result
}

// readStore calls the store and converts a panic into a StoreError.
func (e *Engine) readStore(ctx context.Context, scope Scope) (policies []Policy, err error) {
	defer func() {
		if r := recover(); r != nil {
			policies = nil
			err = &StoreError{AgentID: scope.AgentID, Route: scope.Route, Cause: fmt.Errorf("panic: %v", r)}
		}
	}()
	policies, err = e.store.GetActivePolicies(ctx, scope.AgentID, scope.Route)
	if err != nil {
		return nil, &StoreError{AgentID: scope.AgentID, Route: scope.Route, Cause: err}
	}
	return policies, nil
}

// runDetectors is the normal pipeline: entropy over the original text, PII
// and financial checks per policy, then tool-call interception over the
// working text.
func (e *Engine) runDetectors(text string, policies []Policy) *EvaluationResult {
	var (
		findings []Finding
		evidence []Evidence
	)

	drift, analyzed := AnalyzeDrift(text)
	if analyzed && drift.Detected {
		f, ev := driftFinding(drift)
		findings = append(findings, f)
		evidence = append(evidence, ev)
	}

	lowered := strings.ToLower(text)
	scan := newPIIScan(text)
	for i := range policies {
		p := &policies[i]
		scan.scanPolicy(p)
		if f, ev, ok := financialFinding(p, lowered, e.lowered); ok {
			scan.findings = append(scan.findings, f)
			scan.evidence = append(scan.evidence, ev)
		}
	}
	findings = append(findings, scan.findings...)
	evidence = append(evidence, scan.evidence...)

	if marker, ok := ContainsToolCall(scan.text); ok {
		f, ev := toolCallFinding(marker)
		findings = append(findings, f)
		evidence = append(evidence, ev)
	}

	blocked, winner := Arbitrate(findings)

	res := newResult(scan.text, ReasonAllow)
	res.IsBlocked = blocked
	res.Metadata.Redactions = scan.redactions
	res.Metadata.Drift = drift
	res.Metadata.Health = HealthHealthy
	res.Metadata.Evidence = e.capEvidence(evidence)
	if winner != nil {
		res.Metadata.Reason = winner.Reason
		res.Metadata.Policy = winner.Source
	}
	return res
}

func (e *Engine) defaultDeny(text string) *EvaluationResult {
	res := newResult(text, ReasonDefaultDeny)
	res.IsBlocked = true
	res.Metadata.Policy = DefaultDenyPolicy
	res.Metadata.Health = HealthNoPolicies
	if marker, ok := ContainsToolCall(text); ok {
		_, ev := toolCallFinding(marker)
		res.Metadata.Evidence = append(res.Metadata.Evidence, ev)
	}
	return res
}

func (e *Engine) capEvidence(ev []Evidence) []Evidence {
	if len(ev) > e.config.MaxEvidence {
		ev = ev[:e.config.MaxEvidence]
	}
	if ev == nil {
		return []Evidence{}
	}
	return ev
}

func failClosed(text, detail string) *EvaluationResult {
	res := newResult(text, ReasonStoreUnhealthy)
	res.IsBlocked = true
	res.Metadata.Policy = SafetyAnchorPolicy
	res.Metadata.Health = HealthDegraded
	res.Metadata.Evidence = []Evidence{{
		Kind:   EvidenceHealth,
		Source: SafetyAnchorPolicy,
		Detail: detail,
		Action: ActionBlock,
	}}
	return res
}

func newResult(text, reason string) *EvaluationResult {
	return &EvaluationResult{
		TransformedText: text,
		Metadata: Metadata{
			Reason:               reason,
			Drift:                Drift{PValue: 1.0},
			Evidence:             []Evidence{},
			Arbitration:          arbitrationMode,
			ConfidenceProvenance: confidenceProvenance,
		},
	}
}
