package arbiter

import "sync/atomic"

// HealthState is the engine's view of its policy store.
type HealthState string

const (
	// HealthHealthy means the store answered and returned in-scope policies.
	HealthHealthy HealthState = "HEALTHY"

	// HealthDegraded means the store failed on read. Evaluations fail closed.
	HealthDegraded HealthState = "DEGRADED"

	// HealthNoPolicies means the store answered with no active policy in
	// scope. Evaluations default to deny.
	HealthNoPolicies HealthState = "NO_POLICIES"
)

// healthTracker holds the last observed state. It is only reported to
// readiness checks; evaluations never read it.
type healthTracker struct {
	state atomic.Value
}

func newHealthTracker() *healthTracker {
	h := &healthTracker{}
	h.state.Store(HealthHealthy)
	return h
}

func (h *healthTracker) set(s HealthState) {
	h.state.Store(s)
}

func (h *healthTracker) get() HealthState {
	return h.state.Load().(HealthState)
}
