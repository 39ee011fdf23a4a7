package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"policyguard/gateway/pkg/arbiter"
)

func testPolicy(id string, active bool, tags ...string) arbiter.Policy {
	return arbiter.Policy{
		ID:        id,
		Name:      "Policy " + id,
		Category:  arbiter.CategoryPrivacy,
		IsActive:  active,
		PIIConfig: map[arbiter.PIIKind]arbiter.PIIAction{arbiter.KindEmail: arbiter.PIIRedact},
		Tags:      tags,
	}
}

func TestMemoryStore_GetActivePolicies(t *testing.T) {
	s, err := NewMemoryStore(
		testPolicy("c", true),
		testPolicy("a", true, "billing-bot"),
		testPolicy("b", false),
		testPolicy("d", true, "/v1/billing"),
	)
	if err != nil {
		t.Fatalf("NewMemoryStore() error = %v", err)
	}

	tests := []struct {
		name    string
		agentID string
		route   string
		want    []string
	}{
		{"default agent sees global only", "", "", []string{"c"}},
		{"agent tag", "billing-bot", "", []string{"a", "c"}},
		{"route tag", "other", "/v1/billing", []string{"c", "d"}},
		{"agent and route", "billing-bot", "/v1/billing", []string{"a", "c", "d"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.GetActivePolicies(context.Background(), tt.agentID, tt.route)
			if err != nil {
				t.Fatalf("GetActivePolicies() error = %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("GetActivePolicies() = %d policies, want %d", len(got), len(tt.want))
			}
			for i, id := range tt.want {
				if got[i].ID != id {
					t.Errorf("policy[%d] = %q, want %q", i, got[i].ID, id)
				}
			}
		})
	}
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	s, _ := NewMemoryStore(testPolicy("a", true))
	ctx := context.Background()

	got, _ := s.GetActivePolicies(ctx, "", "")
	got[0].PIIConfig[arbiter.KindEmail] = arbiter.PIIAllow
	got[0].Name = "changed"

	again, _ := s.Get(ctx, "a")
	if again.PIIConfig[arbiter.KindEmail] != arbiter.PIIRedact {
		t.Error("mutating a returned policy changed the store")
	}
	if again.Name != "Policy a" {
		t.Errorf("Name = %q, want unchanged", again.Name)
	}
}

func TestMemoryStore_PutTimestamps(t *testing.T) {
	s, _ := NewMemoryStore()
	ctx := context.Background()

	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return t0 }
	if err := s.Put(ctx, testPolicy("a", true)); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	t1 := t0.Add(time.Hour)
	s.now = func() time.Time { return t1 }
	p := testPolicy("a", false)
	p.Name = "renamed"
	if err := s.Put(ctx, p); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	got, _ := s.Get(ctx, "a")
	if !got.CreatedAt.Equal(t0) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, t0)
	}
	if !got.UpdatedAt.Equal(t1) {
		t.Errorf("UpdatedAt = %v, want %v", got.UpdatedAt, t1)
	}
	if got.Name != "renamed" || got.IsActive {
		t.Errorf("Put() did not replace policy: %+v", got)
	}
}

func TestMemoryStore_Toggle(t *testing.T) {
	s, _ := NewMemoryStore(testPolicy("a", true))
	ctx := context.Background()

	p, err := Toggle(ctx, s, "a")
	if err != nil {
		t.Fatalf("Toggle() error = %v", err)
	}
	if p.IsActive {
		t.Error("Toggle() left policy active")
	}
	active, _ := s.GetActivePolicies(ctx, "", "")
	if len(active) != 0 {
		t.Errorf("GetActivePolicies() = %d, want 0 after toggle", len(active))
	}

	p, _ = Toggle(ctx, s, "a")
	if !p.IsActive {
		t.Error("second Toggle() did not reactivate policy")
	}
}

func TestMemoryStore_NotFound(t *testing.T) {
	s, _ := NewMemoryStore()
	ctx := context.Background()

	if _, err := s.Get(ctx, "x"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() error = %v, want ErrNotFound", err)
	}
	if err := s.Delete(ctx, "x"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Delete() error = %v, want ErrNotFound", err)
	}
	if _, err := Toggle(ctx, s, "x"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Toggle() error = %v, want ErrNotFound", err)
	}
}

func TestMemoryStore_RejectsInvalid(t *testing.T) {
	if _, err := NewMemoryStore(testPolicy("a", true), testPolicy("a", true)); err == nil {
		t.Error("NewMemoryStore() accepted duplicate IDs")
	}

	s, _ := NewMemoryStore()
	bad := testPolicy("a", true)
	bad.Category = "Astrology"
	err := s.Put(context.Background(), bad)
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("Put() error = %v, want *ValidationError", err)
	}
}

func TestMemoryStore_Replace(t *testing.T) {
	s, _ := NewMemoryStore(testPolicy("a", true))
	s.Replace([]arbiter.Policy{testPolicy("b", true)})

	all, _ := s.List(context.Background())
	if len(all) != 1 || all[0].ID != "b" {
		t.Errorf("List() after Replace = %+v, want only b", all)
	}
}
