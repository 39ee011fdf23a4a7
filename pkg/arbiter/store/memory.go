package store

import (
	"context"
	"sync"
	"time"

	"policyguard/gateway/pkg/arbiter"
)

// MemoryStore keeps policies in memory. It is safe for concurrent use.
type MemoryStore struct {
	mu       sync.RWMutex
	policies map[string]arbiter.Policy
	now      func() time.Time
}

// NewMemoryStore creates a store seeded with policies. Invalid seeds are
// rejected.
func NewMemoryStore(policies ...arbiter.Policy) (*MemoryStore, error) {
	s := &MemoryStore{
		policies: make(map[string]arbiter.Policy, len(policies)),
		now:      time.Now,
	}
	if err := validateAll(policies); err != nil {
		return nil, err
	}
	for _, p := range policies {
		s.policies[p.ID] = p.Clone()
	}
	return s, nil
}

// GetActivePolicies implements arbiter.PolicyStore.
func (s *MemoryStore) GetActivePolicies(_ context.Context, agentID, route string) ([]arbiter.Policy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return inScope(s.snapshot(), agentID, route), nil
}

// List implements Writer.
func (s *MemoryStore) List(context.Context) ([]arbiter.Policy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := s.snapshot()
	for i := range out {
		out[i] = out[i].Clone()
	}
	sortByID(out)
	return out, nil
}

// Get implements Writer.
func (s *MemoryStore) Get(_ context.Context, id string) (arbiter.Policy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.policies[id]
	if !ok {
		return arbiter.Policy{}, notFound(id)
	}
	return p.Clone(), nil
}

// Put implements Writer.
func (s *MemoryStore) Put(_ context.Context, p arbiter.Policy) error {
	if err := Validate(&p); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now().UTC()
	if old, ok := s.policies[p.ID]; ok {
		p.CreatedAt = old.CreatedAt
	} else if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	s.policies[p.ID] = p.Clone()
	return nil
}

// Delete implements Writer.
func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.policies[id]; !ok {
		return notFound(id)
	}
	delete(s.policies, id)
	return nil
}

// SetActive implements Writer.
func (s *MemoryStore) SetActive(_ context.Context, id string, active bool) (arbiter.Policy, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.policies[id]
	if !ok {
		return arbiter.Policy{}, notFound(id)
	}
	p.IsActive = active
	p.UpdatedAt = s.now().UTC()
	s.policies[id] = p
	return p.Clone(), nil
}

// Replace swaps the whole policy set. Used by FileStore reloads.
func (s *MemoryStore) Replace(policies []arbiter.Policy) {
	next := make(map[string]arbiter.Policy, len(policies))
	for _, p := range policies {
		next[p.ID] = p.Clone()
	}
	s.mu.Lock()
	s.policies = next
	s.mu.Unlock()
}

// Close implements Store.
func (s *MemoryStore) Close() error { return nil }

// snapshot must be called with the lock held. Entries are not cloned.
func (s *MemoryStore) snapshot() []arbiter.Policy {
	out := make([]arbiter.Policy, 0, len(s.policies))
	for _, p := range s.policies {
		out = append(out, p)
	}
	return out
}
