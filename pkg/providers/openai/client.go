package openai

import (
	"context"
	"net/http"
	"strings"

	"policyguard/gateway/pkg/config"
	"policyguard/gateway/pkg/providers"
	"policyguard/gateway/pkg/proxy/types"
)

// Name is the provider label.
const Name = "openai"

// DefaultBaseURL is used when no base URL is configured.
const DefaultBaseURL = "https://api.openai.com"

const completionsPath = "/v1/chat/completions"

// Provider is the OpenAI chat completions adapter.
type Provider struct {
	*providers.HTTPProvider
}

var _ providers.Provider = (*Provider)(nil)

// New creates an OpenAI provider. A nil transport uses the default pooled
// transport.
func New(cfg config.ProviderConfig, transport http.RoundTripper) *Provider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	return &Provider{HTTPProvider: providers.NewHTTPProvider(Name, cfg, transport)}
}

// Credential returns the caller's bearer token, or the configured key.
func (p *Provider) Credential(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(auth, "Bearer ")
	if !ok {
		token = ""
	}
	return p.ResolveCredential(strings.TrimSpace(token))
}

// ParseRequest extracts the model and the last user message.
func (p *Provider) ParseRequest(body []byte) (*providers.Request, error) {
	return parseRequest(body)
}

// RewritePrompt replaces the last user message content with text.
func (p *Provider) RewritePrompt(body []byte, text string) ([]byte, error) {
	return rewritePrompt(body, text)
}

// Completion extracts the first choice's message content.
func (p *Provider) Completion(body []byte) (string, error) {
	return completion(body)
}

// RewriteCompletion replaces the first choice's message content with text.
func (p *Provider) RewriteCompletion(body []byte, text string) ([]byte, error) {
	return rewriteCompletion(body, text)
}

// Forward posts the call to the chat completions endpoint.
func (p *Provider) Forward(ctx context.Context, call *providers.Call) (*providers.Response, error) {
	if call.Credential == "" {
		return nil, providers.ErrMissingCredential
	}
	headers := map[string]string{
		"Authorization": "Bearer " + call.Credential,
	}
	return p.DoRequest(ctx, p.BaseURL()+completionsPath, call.Body, headers)
}

// ErrorBody renders the OpenAI error envelope.
func (p *Provider) ErrorBody(status int, code, message string) any {
	return types.NewErrorResponse(message, types.ErrorTypeForStatus(status), "", code)
}
