package proxy

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"policyguard/gateway/pkg/arbiter"
	"policyguard/gateway/pkg/providers"
	"policyguard/gateway/pkg/proxy/types"
)

// Verdict headers set on every proxied response that was evaluated.
const (
	VerdictHeader    = "X-PolicyGuard-Verdict"
	PolicyHeader     = "X-PolicyGuard-Policy"
	RedactionsHeader = "X-PolicyGuard-Redactions"
)

// relayedHeaders are the upstream headers passed back to the caller.
// Content-Length is recomputed because rewrites change the body.
var relayedHeaders = []string{
	"Content-Type",
	"Retry-After",
	"X-Request-Id",
	"Openai-Processing-Ms",
	"X-Ratelimit-Limit-Requests",
	"X-Ratelimit-Remaining-Requests",
	"X-Ratelimit-Reset-Requests",
}

// WriteJSONResponse writes a JSON response to the HTTP response writer.
func WriteJSONResponse(w http.ResponseWriter, statusCode int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		return fmt.Errorf("failed to encode JSON response: %w", err)
	}
	return nil
}

// WriteErrorResponse writes an OpenAI-compatible error response.
// It extracts the appropriate HTTP status code from the error type.
func WriteErrorResponse(w http.ResponseWriter, errResp *types.ErrorResponse) error {
	return WriteJSONResponse(w, errResp.Error.HTTPStatusCode(), errResp)
}

// WriteProviderError writes an error in the provider's own error shape.
func WriteProviderError(w http.ResponseWriter, p providers.Provider, status int, code, message string) error {
	return WriteJSONResponse(w, status, p.ErrorBody(status, code, message))
}

// WriteUpstream relays an upstream response with body in place of the
// upstream body.
func WriteUpstream(w http.ResponseWriter, resp *providers.Response, body []byte) error {
	for _, h := range relayedHeaders {
		if v := resp.Header.Get(h); v != "" {
			w.Header().Set(h, v)
		}
	}
	if w.Header().Get("Content-Type") == "" {
		w.Header().Set("Content-Type", "application/json")
	}
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(resp.StatusCode)

	if _, err := w.Write(body); err != nil {
		return fmt.Errorf("failed to write upstream response: %w", err)
	}
	return nil
}

// SetVerdictHeaders describes the outcome of the evaluations of one
// exchange. The verdict and policy are those of the most restrictive
// result; redactions are summed.
func SetVerdictHeaders(h http.Header, results ...*arbiter.EvaluationResult) {
	var (
		winner     *arbiter.EvaluationResult
		redactions int
	)
	for _, r := range results {
		if r == nil {
			continue
		}
		redactions += r.Metadata.Redactions
		if winner == nil || r.Verdict().Priority() > winner.Verdict().Priority() {
			winner = r
		}
	}
	if winner == nil {
		return
	}

	h.Set(VerdictHeader, string(winner.Verdict()))
	if winner.Metadata.Policy != "" {
		h.Set(PolicyHeader, winner.Metadata.Policy)
	}
	h.Set(RedactionsHeader, strconv.Itoa(redactions))
}
