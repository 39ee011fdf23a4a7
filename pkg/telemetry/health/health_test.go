package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"slices"
	"testing"
	"time"

	"policyguard/gateway/pkg/arbiter"
)

type stateStub arbiter.HealthState

func (s stateStub) Health() arbiter.HealthState { return arbiter.HealthState(s) }

type pingStub struct{ err error }

func (p pingStub) Ping(context.Context) error { return p.err }

type healthyStub struct{ err error }

func (h healthyStub) Healthy() error { return h.err }

func TestNew_DefaultTimeout(t *testing.T) {
	if c := New(0); c.checkTimeout != 5*time.Second {
		t.Errorf("checkTimeout = %v", c.checkTimeout)
	}
}

func TestCheckReadiness(t *testing.T) {
	tests := []struct {
		name   string
		checks map[string]CheckFunc
		want   string
	}{
		{name: "no checks", checks: nil, want: StatusReady},
		{
			name: "all pass",
			checks: map[string]CheckFunc{
				"engine": EngineCheck(stateStub(arbiter.HealthHealthy)),
				"store":  ComponentCheck(pingStub{}),
			},
			want: StatusReady,
		},
		{
			name: "engine degraded",
			checks: map[string]CheckFunc{
				"engine": EngineCheck(stateStub(arbiter.HealthDegraded)),
			},
			want: StatusNotReady,
		},
		{
			name: "no policies",
			checks: map[string]CheckFunc{
				"engine": EngineCheck(stateStub(arbiter.HealthNoPolicies)),
			},
			want: StatusNotReady,
		},
		{
			name: "store failing",
			checks: map[string]CheckFunc{
				"store": ComponentCheck(healthyStub{err: errors.New("reload failed")}),
			},
			want: StatusNotReady,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New(time.Second)
			for name, fn := range tt.checks {
				c.RegisterCheck(name, fn)
			}
			got := c.CheckReadiness(context.Background())
			if got.Status != tt.want {
				t.Errorf("Status = %q, want %q (%+v)", got.Status, tt.want, got.Checks)
			}
			if len(got.Checks) != len(tt.checks) {
				t.Errorf("got %d results, want %d", len(got.Checks), len(tt.checks))
			}
		})
	}
}

func TestCheckReadiness_Timeout(t *testing.T) {
	c := New(20 * time.Millisecond)
	c.RegisterCheck("slow", func(ctx context.Context) error {
		time.Sleep(time.Second)
		return nil
	})

	got := c.CheckReadiness(context.Background())
	res := got.Checks["slow"]
	if res.Status != StatusUnhealthy || res.Message != ErrCheckTimeout.Error() {
		t.Errorf("slow check = %+v", res)
	}
}

func TestCheckReadiness_Panic(t *testing.T) {
	c := New(time.Second)
	c.RegisterCheck("boom", func(context.Context) error { panic("nil store") })

	if got := c.CheckReadiness(context.Background()); got.Status != StatusNotReady {
		t.Errorf("Status = %q", got.Status)
	}
}

func TestComponentCheck_PlainComponent(t *testing.T) {
	if err := ComponentCheck(struct{}{})(context.Background()); err != nil {
		t.Errorf("plain component failed: %v", err)
	}
}

func TestListChecks(t *testing.T) {
	c := New(time.Second)
	c.RegisterCheck("b", ComponentCheck(nil))
	c.RegisterCheck("a", ComponentCheck(nil))
	if got := c.ListChecks(); !slices.Equal(got, []string{"a", "b"}) {
		t.Errorf("ListChecks() = %v", got)
	}
}

func TestHandlers(t *testing.T) {
	c := New(time.Second)
	c.RegisterCheck("engine", EngineCheck(stateStub(arbiter.HealthDegraded)))

	tests := []struct {
		name    string
		handler http.HandlerFunc
		method  string
		code    int
		status  string
	}{
		{"liveness", c.LivenessHandler(), http.MethodGet, http.StatusOK, StatusOK},
		{"readiness degraded", c.ReadinessHandler(), http.MethodGet, http.StatusServiceUnavailable, StatusNotReady},
		{"head", c.LivenessHandler(), http.MethodHead, http.StatusOK, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			tt.handler(rec, httptest.NewRequest(tt.method, "/", nil))
			if rec.Code != tt.code {
				t.Fatalf("code = %d, want %d", rec.Code, tt.code)
			}
			if tt.status == "" {
				if rec.Body.Len() != 0 {
					t.Errorf("HEAD wrote a body")
				}
				return
			}
			var body HealthStatus
			if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
				t.Fatal(err)
			}
			if body.Status != tt.status {
				t.Errorf("status = %q, want %q", body.Status, tt.status)
			}
		})
	}
}

func TestVersionHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	VersionHandler("1.2.3", "abc", "2026-01-01")(rec, httptest.NewRequest(http.MethodGet, "/version", nil))

	var info VersionInfo
	if err := json.NewDecoder(rec.Body).Decode(&info); err != nil {
		t.Fatal(err)
	}
	if info.Version != "1.2.3" || info.GoVersion == "" {
		t.Errorf("info = %+v", info)
	}
}
