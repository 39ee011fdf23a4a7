package providers

import (
	"context"
	"errors"
	"net/http"
)

var (
	// ErrInvalidBody is returned when a request or response body is not the
	// JSON shape the provider's API defines.
	ErrInvalidBody = errors.New("invalid body")

	// ErrStreaming is returned for streaming requests. Streamed responses
	// cannot be evaluated before they reach the caller.
	ErrStreaming = errors.New("streaming is not supported")

	// ErrMissingCredential is returned when neither the caller nor the
	// configuration supplies an API key.
	ErrMissingCredential = errors.New("missing credential")
)

// Request is what the gateway needs to know about an inbound call.
type Request struct {
	// Model may be empty when the API carries it in the URL.
	Model string

	// Prompt is the text of the last user turn.
	Prompt string
}

// Call is one upstream invocation.
type Call struct {
	Model      string
	Body       []byte
	Credential string
}

// Response is an upstream answer. Non-2xx answers are responses, not
// errors, so they can be relayed to the caller unchanged.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// OK reports whether the upstream answered with a 2xx status.
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Provider is one upstream LLM API. Implementations translate between the
// API's JSON shapes and flat text; they never interpret the text.
type Provider interface {
	// Name is the provider label used in metrics and evidence.
	Name() string

	// Credential returns the API key to forward: the caller's own, or the
	// configured key when the caller sent none.
	Credential(r *http.Request) string

	// ParseRequest extracts the model and prompt from an inbound body.
	ParseRequest(body []byte) (*Request, error)

	// RewritePrompt replaces the last user turn of body with text.
	RewritePrompt(body []byte, text string) ([]byte, error)

	// Completion extracts the first candidate's text from a response body.
	Completion(body []byte) (string, error)

	// RewriteCompletion replaces the first candidate's text with text.
	RewriteCompletion(body []byte, text string) ([]byte, error)

	// Forward sends the call upstream.
	Forward(ctx context.Context, call *Call) (*Response, error)

	// ErrorBody renders an error in the API's own error shape.
	ErrorBody(status int, code, message string) any
}
