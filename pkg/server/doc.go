// Package server provides the HTTP server of the gateway.
//
// The server ties the policy engine, the policy store, the upstream
// providers and the telemetry components together behind one mux and
// manages the listener lifecycle: start, signal handling and graceful
// shutdown.
//
// # Basic Usage
//
//	srv, err := server.NewServer(&cfg.Proxy, &cfg.Telemetry, server.Dependencies{
//	    Engine:    engine,
//	    Store:     policyStore,
//	    Providers: manager,
//	    Evidence:  rec,
//	    Metrics:   collector,
//	    Tracer:    tracer,
//	})
//	if err != nil {
//	    return err
//	}
//	return srv.Start(ctx) // blocks until ctx is done or SIGINT/SIGTERM
//
// # Routes
//
//	POST   /v1/chat/completions              OpenAI-compatible proxy
//	POST   /v1beta/models/{model}:generateContent  Gemini-compatible proxy
//	POST   /v1/evaluate                      evaluate text, no upstream call
//	GET    /v1/policies                      list policies
//	POST   /v1/policies                      create or replace a policy
//	GET    /v1/policies/{id}                 get a policy
//	PUT    /v1/policies/{id}                 replace a policy
//	DELETE /v1/policies/{id}                 delete a policy
//	PATCH  /v1/policies/{id}/toggle          flip is_active
//	GET    /health                           liveness
//	GET    /ready                            readiness (engine and store)
//	GET    /metrics                          Prometheus scrape
//	GET    /version                          build information
//
// API routes are measured and traced under their pattern. Probes and the
// scrape endpoint are not.
//
// # Readiness
//
// /ready fails while the engine last saw the store DEGRADED or with no
// active policy in scope, and while the store itself reports a problem.
//
// # TLS
//
//	proxy:
//	  tls:
//	    enabled: true
//	    cert_file: /etc/policyguard/tls.crt
//	    key_file: /etc/policyguard/tls.key
//
// TLS 1.3 is the minimum version.
package server
