package auth

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"policyguard/gateway/pkg/proxy"
	"policyguard/gateway/pkg/proxy/types"
)

// AdminKeyHeader carries an admin key when Authorization is taken.
const AdminKeyHeader = "X-PolicyGuard-Admin-Key"

// KeySource names a header an admin key is read from.
type KeySource struct {
	Header string
	Scheme string // "Bearer", or empty for the raw header value
}

// DefaultSources reads AdminKeyHeader, then an Authorization bearer token.
var DefaultSources = []KeySource{
	{Header: AdminKeyHeader},
	{Header: "Authorization", Scheme: "Bearer"},
}

// Middleware authenticates requests with admin keys.
type Middleware struct {
	validator KeyValidator
	sources   []KeySource
	logger    *slog.Logger
}

// NewMiddleware creates the middleware. With no sources DefaultSources is
// used.
func NewMiddleware(validator KeyValidator, sources ...KeySource) *Middleware {
	if len(sources) == 0 {
		sources = DefaultSources
	}
	return &Middleware{
		validator: validator,
		sources:   sources,
		logger:    slog.Default().With("component", "auth"),
	}
}

// Handle wraps next with admin key authentication. Failures answer 401 in
// the gateway's error envelope.
func (m *Middleware) Handle(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		info, err := m.validator.Validate(m.extractKey(r))
		if err != nil {
			m.logger.Warn("admin authentication failed",
				"error", err,
				"remote_addr", r.RemoteAddr,
				"method", r.Method,
				"path", r.URL.Path,
			)
			code := types.CodeInvalidAPIKey
			if errors.Is(err, ErrMissingKey) {
				code = types.CodeMissingAPIKey
			}
			w.Header().Set("WWW-Authenticate", `Bearer realm="policyguard"`)
			_ = proxy.WriteErrorResponse(w, types.NewErrorResponse(err.Error(), types.ErrorTypeAuthentication, "", code))
			return
		}

		m.logger.Debug("admin authenticated", "key_id", info.ID, "method", r.Method, "path", r.URL.Path)
		next.ServeHTTP(w, r.WithContext(WithKeyInfo(r.Context(), info)))
	})
}

func (m *Middleware) extractKey(r *http.Request) string {
	for _, source := range m.sources {
		value := strings.TrimSpace(r.Header.Get(source.Header))
		if value == "" {
			continue
		}
		if source.Scheme == "" {
			return value
		}
		if scheme, token, ok := strings.Cut(value, " "); ok && strings.EqualFold(scheme, source.Scheme) {
			return strings.TrimSpace(token)
		}
	}
	return ""
}
