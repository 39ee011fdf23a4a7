/*
Package auth authenticates callers of the policy management API.

Admin keys come from the security.admin_keys configuration section (or
POLICYGUARD_SECURITY_ADMIN_KEY) and are held only as SHA-256 digests:

	validator := auth.FromConfig(cfg.Security)
	admin := auth.NewMiddleware(validator)
	mux.Handle("GET /v1/policies", admin.Handle(listHandler))

Clients send the key in the X-PolicyGuard-Admin-Key header or as an
Authorization bearer token. Missing, unknown and disabled keys are all
answered with 401 in the gateway's OpenAI-style error envelope. The
authenticated key's ID is available to handlers:

	if info, ok := auth.GetKeyInfo(r.Context()); ok {
		logger.Info("policy changed", "key_id", info.ID)
	}

The proxy endpoints are not covered; they forward the caller's own upstream
credentials.
*/
package auth
