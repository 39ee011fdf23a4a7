package health

import (
	"context"
	"fmt"

	"policyguard/gateway/pkg/arbiter"
)

// Pinger is implemented by database-backed stores.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Healther is implemented by stores that track their own load state.
type Healther interface {
	Healthy() error
}

// EngineState reports the policy store state last observed by the engine.
type EngineState interface {
	Health() arbiter.HealthState
}

// EngineCheck fails while the engine is failing closed. NO_POLICIES is
// reported as unhealthy too: every evaluation is a default deny.
func EngineCheck(e EngineState) CheckFunc {
	return func(context.Context) error {
		switch s := e.Health(); s {
		case arbiter.HealthHealthy:
			return nil
		default:
			return fmt.Errorf("policy engine state %s", s)
		}
	}
}

// ComponentCheck checks any component that can report on itself. A
// component that implements neither Pinger nor Healther always passes.
func ComponentCheck(component any) CheckFunc {
	return func(ctx context.Context) error {
		if h, ok := component.(Healther); ok {
			if err := h.Healthy(); err != nil {
				return err
			}
		}
		if p, ok := component.(Pinger); ok {
			return p.Ping(ctx)
		}
		return nil
	}
}
