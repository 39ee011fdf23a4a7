// Package middleware provides HTTP middleware for cross-cutting concerns.
//
// # Middleware Chain
//
// The server wraps its mux in a fixed order, outermost first:
//
//	handler = Recovery(RequestID(Scope(Logging(BodyLimit(Timeout(mux))))))
//
//   - RecoveryMiddleware: turn panics into a 500 error envelope
//   - RequestIDMiddleware: assign or propagate X-Request-ID
//   - ScopeMiddleware: attach agent_id and route for logging
//   - LoggingMiddleware: one structured line per request
//   - BodyLimitMiddleware: reject oversized bodies with 413
//   - TimeoutMiddleware: put a deadline on the request context
//
// MetricsMiddleware is applied per route instead, so that the endpoint
// label is the route pattern rather than the raw path.
//
// # Scope
//
// Policies are scoped by agent and route. Callers identify themselves with
// headers:
//
//	X-Agent-ID: billing-bot
//	X-Route: /checkout
//
// A missing agent is "default" and a missing route is the request path.
//
// # Request ID
//
// RequestIDMiddleware generates a UUID v4 when the caller sends none:
//
//	X-Request-ID: 550e8400-e29b-41d4-a716-446655440000
//
// The ID is stored with logging.WithRequestID, so every log line and
// evidence record of the request carries it.
package middleware
