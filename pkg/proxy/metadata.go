package proxy

import (
	"log/slog"
	"net/http"
	"time"

	"policyguard/gateway/pkg/arbiter"
	"policyguard/gateway/pkg/evidence/recorder"
	"policyguard/gateway/pkg/proxy/middleware"
	"policyguard/gateway/pkg/telemetry/logging"
)

// Exchange is what the gateway knows about one proxied call. It feeds
// logs, spans and evidence; it never holds prompt or completion text.
type Exchange struct {
	// RequestID is the X-Request-ID of the call.
	RequestID string

	// Provider is the upstream API label.
	Provider string

	// Model is the requested model. It is empty until the body is parsed.
	Model string

	// Scope is the caller's agent and route.
	Scope arbiter.Scope

	// Credential is the key forwarded upstream. Evidence keeps only its
	// fingerprint.
	Credential string

	// Method is the HTTP method.
	Method string

	// Path is the HTTP request path.
	Path string

	// Timestamp is when the call was received.
	Timestamp time.Time
}

// NewExchange extracts the exchange metadata of r.
func NewExchange(r *http.Request, provider string) *Exchange {
	return &Exchange{
		RequestID: logging.GetRequestID(r.Context()),
		Provider:  provider,
		Scope:     middleware.ScopeFromRequest(r),
		Method:    r.Method,
		Path:      r.URL.Path,
		Timestamp: time.Now(),
	}
}

// Entry builds the evidence entry for one evaluation of the exchange.
func (e *Exchange) Entry(direction arbiter.Direction, text string, result *arbiter.EvaluationResult, latency time.Duration) recorder.Entry {
	return recorder.Entry{
		RequestID:  e.RequestID,
		Direction:  direction,
		Scope:      e.Scope,
		Provider:   e.Provider,
		Model:      e.Model,
		Credential: e.Credential,
		Text:       text,
		Result:     result,
		Latency:    latency,
	}
}

// LogAttrs returns the exchange as log attributes. Request ID and scope
// are omitted; the logging handler adds them from the context.
func (e *Exchange) LogAttrs() []any {
	return []any{
		slog.String("provider", e.Provider),
		slog.String("model", e.Model),
		slog.Duration("elapsed", time.Since(e.Timestamp)),
	}
}
