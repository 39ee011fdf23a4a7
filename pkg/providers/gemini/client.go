package gemini

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"policyguard/gateway/pkg/config"
	"policyguard/gateway/pkg/providers"
)

// Name is the provider label.
const Name = "gemini"

// DefaultBaseURL is used when no base URL is configured.
const DefaultBaseURL = "https://generativelanguage.googleapis.com"

const apiKeyHeader = "x-goog-api-key"

// Provider is the Gemini generateContent adapter.
type Provider struct {
	*providers.HTTPProvider
}

var _ providers.Provider = (*Provider)(nil)

// New creates a Gemini provider. A nil transport uses the default pooled
// transport.
func New(cfg config.ProviderConfig, transport http.RoundTripper) *Provider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	return &Provider{HTTPProvider: providers.NewHTTPProvider(Name, cfg, transport)}
}

// GeneratePath returns the generateContent path for model.
func GeneratePath(model string) string {
	return "/v1beta/models/" + url.PathEscape(model) + ":generateContent"
}

// Credential returns the caller's key from the x-goog-api-key header or the
// key query parameter, or the configured key.
func (p *Provider) Credential(r *http.Request) string {
	key := r.Header.Get(apiKeyHeader)
	if key == "" {
		key = r.URL.Query().Get("key")
	}
	return p.ResolveCredential(key)
}

// ParseRequest extracts the last user content. Gemini carries the model
// in the URL, so Model is left empty.
func (p *Provider) ParseRequest(body []byte) (*providers.Request, error) {
	return parseRequest(body)
}

// RewritePrompt replaces the text of the last user content.
func (p *Provider) RewritePrompt(body []byte, text string) ([]byte, error) {
	return rewritePrompt(body, text)
}

// Completion extracts the text of the first candidate.
func (p *Provider) Completion(body []byte) (string, error) {
	return completion(body)
}

// RewriteCompletion replaces the text of the first candidate.
func (p *Provider) RewriteCompletion(body []byte, text string) ([]byte, error) {
	return rewriteCompletion(body, text)
}

// Forward posts the call to the model's generateContent endpoint. The key
// always travels in a header, never in the URL.
func (p *Provider) Forward(ctx context.Context, call *providers.Call) (*providers.Response, error) {
	if call.Credential == "" {
		return nil, providers.ErrMissingCredential
	}
	if call.Model == "" {
		return nil, fmt.Errorf("%w: model is required", providers.ErrInvalidBody)
	}
	headers := map[string]string{
		apiKeyHeader: call.Credential,
	}
	return p.DoRequest(ctx, p.BaseURL()+GeneratePath(call.Model), call.Body, headers)
}

// ErrorResponse is the Google API error envelope.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail is the body of a Google API error.
type ErrorDetail struct {
	Code    int           `json:"code"`
	Message string        `json:"message"`
	Status  string        `json:"status"`
	Details []ErrorReason `json:"details,omitempty"`
}

// ErrorReason carries the gateway's machine-readable code.
type ErrorReason struct {
	Type   string `json:"@type"`
	Reason string `json:"reason"`
	Domain string `json:"domain"`
}

// ErrorBody renders the Google API error envelope.
func (p *Provider) ErrorBody(status int, code, message string) any {
	resp := &ErrorResponse{
		Error: ErrorDetail{
			Code:    status,
			Message: message,
			Status:  statusName(status),
		},
	}
	if code != "" {
		resp.Error.Details = []ErrorReason{{
			Type:   "type.googleapis.com/google.rpc.ErrorInfo",
			Reason: code,
			Domain: "policyguard",
		}}
	}
	return resp
}

func statusName(status int) string {
	switch status {
	case http.StatusBadRequest, http.StatusRequestEntityTooLarge:
		return "INVALID_ARGUMENT"
	case http.StatusUnauthorized:
		return "UNAUTHENTICATED"
	case http.StatusForbidden:
		return "PERMISSION_DENIED"
	case http.StatusNotFound:
		return "NOT_FOUND"
	case http.StatusBadGateway, http.StatusServiceUnavailable:
		return "UNAVAILABLE"
	case http.StatusGatewayTimeout:
		return "DEADLINE_EXCEEDED"
	default:
		return "INTERNAL"
	}
}
