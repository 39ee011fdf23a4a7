package arbiter

import (
	"slices"
	"time"
)

// Category classifies what a policy governs.
type Category string

const (
	CategoryPrivacy   Category = "Privacy"
	CategorySafety    Category = "Safety"
	CategorySecurity  Category = "Security"
	CategoryFinancial Category = "Financial"
	CategoryLegal     Category = "Legal"
)

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	switch c {
	case CategoryPrivacy, CategorySafety, CategorySecurity, CategoryFinancial, CategoryLegal:
		return true
	}
	return false
}

// PIIAction is the action a policy requires for one kind of sensitive data.
type PIIAction string

const (
	PIIMask     PIIAction = "mask"
	PIIRedact   PIIAction = "redact"
	PIITokenize PIIAction = "tokenize"
	PIIBlock    PIIAction = "block"
	PIIAllow    PIIAction = "allow"
)

// Valid reports whether a is one of the known PII actions.
func (a PIIAction) Valid() bool {
	switch a {
	case PIIMask, PIIRedact, PIITokenize, PIIBlock, PIIAllow:
		return true
	}
	return false
}

// PIIKind names a family of sensitive data recognized by the pattern detector.
type PIIKind string

const (
	KindEmail      PIIKind = "email"
	KindSSN        PIIKind = "ssn"
	KindPhone      PIIKind = "phone"
	KindCreditCard PIIKind = "credit_card"
	KindSecret     PIIKind = "secret"
)

// Policy is a runtime-editable governance rule set. Policies are owned by a
// store; the engine only reads them.
type Policy struct {
	ID          string                `json:"id" yaml:"id" validate:"required,max=128"`
	Name        string                `json:"name" yaml:"name" validate:"required,max=256"`
	Description string                `json:"description,omitempty" yaml:"description,omitempty"`
	Category    Category              `json:"category" yaml:"category" validate:"required,policy_category"`
	IsActive    bool                  `json:"is_active" yaml:"is_active"`
	PIIConfig   map[PIIKind]PIIAction `json:"pii_config,omitempty" yaml:"pii_config,omitempty" validate:"omitempty,dive,keys,required,endkeys,pii_action"`
	Tags        []string              `json:"tags,omitempty" yaml:"tags,omitempty" validate:"omitempty,dive,required"`
	CreatedAt   time.Time             `json:"created_at,omitempty" yaml:"created_at,omitempty"`
	UpdatedAt   time.Time             `json:"updated_at,omitempty" yaml:"updated_at,omitempty"`
}

// AppliesTo reports whether the policy is in context for the given scope.
// Untagged policies are global.
func (p *Policy) AppliesTo(scope Scope) bool {
	if len(p.Tags) == 0 {
		return true
	}
	if slices.Contains(p.Tags, scope.AgentID) {
		return true
	}
	return scope.Route != "" && slices.Contains(p.Tags, scope.Route)
}

// Clone returns a deep copy of the policy.
func (p Policy) Clone() Policy {
	if p.PIIConfig != nil {
		cfg := make(map[PIIKind]PIIAction, len(p.PIIConfig))
		for k, v := range p.PIIConfig {
			cfg[k] = v
		}
		p.PIIConfig = cfg
	}
	p.Tags = slices.Clone(p.Tags)
	return p
}

// Scope identifies the caller of one evaluation.
type Scope struct {
	// AgentID defaults to DefaultAgentID when empty.
	AgentID string

	// Route is optional; empty means no route.
	Route string
}

// DefaultAgentID is used when the caller does not identify itself.
const DefaultAgentID = "default"

func (s Scope) normalized() Scope {
	if s.AgentID == "" {
		s.AgentID = DefaultAgentID
	}
	return s
}

// Action is the action proposed by a single finding.
type Action string

const (
	ActionBlock  Action = "BLOCK"
	ActionRedact Action = "REDACT"
	ActionMask   Action = "MASK"
	ActionAllow  Action = "ALLOW"
)

// Priority returns the arbitration weight of the action. Unknown actions
// weigh the same as ALLOW.
func (a Action) Priority() int {
	switch a {
	case ActionBlock:
		return 10
	case ActionRedact:
		return 5
	case ActionMask:
		return 3
	default:
		return 0
	}
}

// Finding is one detector's proposal. Findings live only for the duration
// of a single evaluation.
type Finding struct {
	Action Action `json:"action"`
	Reason string `json:"reason"`
	Source string `json:"source"`
}

// Drift reports the outcome of the entropy analysis.
type Drift struct {
	Detected bool    `json:"detected"`
	Entropy  float64 `json:"entropy"`
	PValue   float64 `json:"p_value"`
}

// EvidenceKind tags an evidence entry with the detector that produced it.
type EvidenceKind string

const (
	EvidencePII       EvidenceKind = "pii"
	EvidenceFinancial EvidenceKind = "financial_keyword"
	EvidenceEntropy   EvidenceKind = "entropy"
	EvidenceToolCall  EvidenceKind = "tool_call"
	EvidenceHealth    EvidenceKind = "health"
)

// Evidence is a supporting fact recorded for auditing.
type Evidence struct {
	Kind    EvidenceKind `json:"kind"`
	Source  string       `json:"source"`
	Detail  string       `json:"detail"`
	Action  Action       `json:"action,omitempty"`
	Matches int          `json:"matches,omitempty"`
}

// Metadata carries everything a caller needs to audit a verdict.
type Metadata struct {
	Reason               string      `json:"reason"`
	Redactions           int         `json:"redactions"`
	Policy               string      `json:"policy"`
	Drift                Drift       `json:"drift"`
	Evidence             []Evidence  `json:"evidence"`
	Arbitration          string      `json:"arbitration"`
	ConfidenceProvenance string      `json:"confidence_provenance"`
	Health               HealthState `json:"health,omitempty"`
}

// EvaluationResult is the engine's output contract. A result is never
// mutated after it is returned.
type EvaluationResult struct {
	IsBlocked       bool     `json:"is_blocked"`
	TransformedText string   `json:"transformed_text"`
	Metadata        Metadata `json:"metadata"`
}

// Verdict collapses the result into ALLOW, REDACT or BLOCK.
func (r *EvaluationResult) Verdict() Action {
	switch {
	case r.IsBlocked:
		return ActionBlock
	case r.Metadata.Redactions > 0:
		return ActionRedact
	default:
		return ActionAllow
	}
}
