package store

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"policyguard/gateway/pkg/arbiter"
)

var (
	// ErrNotFound is returned when no policy has the requested ID.
	ErrNotFound = errors.New("policy not found")

	// ErrReadOnly is returned by writes to a store that cannot persist them.
	ErrReadOnly = errors.New("policy store is read-only")

	// ErrUnhealthy is returned by reads while the backing source is broken.
	ErrUnhealthy = errors.New("policy store unhealthy")
)

// Writer is the management side of a policy store.
type Writer interface {
	// List returns every policy, active or not, ordered by ID.
	List(ctx context.Context) ([]arbiter.Policy, error)

	// Get returns one policy.
	Get(ctx context.Context, id string) (arbiter.Policy, error)

	// Put validates and inserts or replaces a policy.
	Put(ctx context.Context, p arbiter.Policy) error

	// Delete removes a policy.
	Delete(ctx context.Context, id string) error

	// SetActive changes a policy's active flag and returns the result.
	SetActive(ctx context.Context, id string, active bool) (arbiter.Policy, error)
}

// Store is a policy store usable by both the engine and management APIs.
type Store interface {
	arbiter.PolicyStore
	Writer
	Close() error
}

// Toggle flips a policy's active flag.
func Toggle(ctx context.Context, w Writer, id string) (arbiter.Policy, error) {
	p, err := w.Get(ctx, id)
	if err != nil {
		return arbiter.Policy{}, err
	}
	return w.SetActive(ctx, id, !p.IsActive)
}

// inScope returns copies of the active policies that apply to the scope,
// ordered by ID.
func inScope(policies []arbiter.Policy, agentID, route string) []arbiter.Policy {
	scope := arbiter.Scope{AgentID: agentID, Route: route}
	if scope.AgentID == "" {
		scope.AgentID = arbiter.DefaultAgentID
	}
	out := make([]arbiter.Policy, 0, len(policies))
	for i := range policies {
		if policies[i].IsActive && policies[i].AppliesTo(scope) {
			out = append(out, policies[i].Clone())
		}
	}
	sortByID(out)
	return out
}

func sortByID(policies []arbiter.Policy) {
	sort.Slice(policies, func(i, j int) bool { return policies[i].ID < policies[j].ID })
}

func notFound(id string) error {
	return fmt.Errorf("%w: %q", ErrNotFound, id)
}
