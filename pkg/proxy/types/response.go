package types

import "policyguard/gateway/pkg/arbiter"

// EvaluateResponse is the body returned by POST /v1/evaluate.
type EvaluateResponse struct {
	RequestID string         `json:"request_id"`
	Verdict   arbiter.Action `json:"verdict"`
	*arbiter.EvaluationResult
}

// PolicyList is the body returned by GET /v1/policies.
type PolicyList struct {
	Policies []arbiter.Policy `json:"policies"`
	Count    int              `json:"count"`
}

// DeleteResponse is the body returned by DELETE /v1/policies/{id}.
type DeleteResponse struct {
	Status string `json:"status"`
	ID     string `json:"id"`
}
