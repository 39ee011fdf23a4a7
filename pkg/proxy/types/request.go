package types

// EvaluateRequest is the body of POST /v1/evaluate. AgentID and Route fall
// back to the X-Agent-ID and X-Route headers.
type EvaluateRequest struct {
	Text    string `json:"text"`
	AgentID string `json:"agent_id,omitempty"`
	Route   string `json:"route,omitempty"`
}
