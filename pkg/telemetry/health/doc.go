// Package health provides the liveness and readiness endpoints.
//
// Liveness only says the process is up. Readiness runs the registered
// checks concurrently, each bounded by the check timeout, and answers 503
// unless all of them pass:
//
//	checker := health.New(cfg.Telemetry.Health.CheckTimeout)
//	checker.RegisterCheck("policy_engine", health.EngineCheck(engine))
//	checker.RegisterCheck("policy_store", health.ComponentCheck(store))
//	checker.RegisterCheck("evidence", health.ComponentCheck(storage))
//	mux.HandleFunc("GET /ready", checker.ReadinessHandler())
package health
