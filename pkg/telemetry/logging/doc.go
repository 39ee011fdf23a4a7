// Package logging builds the gateway's structured logger.
//
// New returns a *slog.Logger whose handler adds request fields from the
// context (request_id, agent_id, route, trace_id) and scrubs attribute
// values through a Redactor:
//
//	logger, err := logging.New(cfg.Telemetry.Logging, os.Stderr)
//	ctx = logging.WithRequestID(ctx, id)
//	logger.InfoContext(ctx, "evaluation complete", "verdict", "BLOCK")
//
// Attributes under keys such as "api_key", "authorization" or "token" are
// masked outright. Other strings are matched against the built-in patterns
// (bearer tokens, API keys, emails, SSNs, card numbers, passwords) and any
// configured custom patterns.
package logging
