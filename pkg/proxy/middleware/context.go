package middleware

import (
	"net/http"

	"policyguard/gateway/pkg/arbiter"
	"policyguard/gateway/pkg/telemetry/logging"
)

const (
	// AgentIDHeader identifies the calling agent.
	AgentIDHeader = "X-Agent-ID"

	// RouteHeader names the calling route. It defaults to the request path.
	RouteHeader = "X-Route"
)

// ScopeFromRequest returns the evaluation scope of r.
func ScopeFromRequest(r *http.Request) arbiter.Scope {
	scope := arbiter.Scope{
		AgentID: r.Header.Get(AgentIDHeader),
		Route:   r.Header.Get(RouteHeader),
	}
	if scope.AgentID == "" {
		scope.AgentID = arbiter.DefaultAgentID
	}
	if scope.Route == "" {
		scope.Route = r.URL.Path
	}
	return scope
}

// ScopeMiddleware attaches the caller's scope to the context so every log
// line of the request carries agent_id and route.
func ScopeMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		scope := ScopeFromRequest(r)
		ctx := logging.WithScope(r.Context(), scope.AgentID, scope.Route)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
