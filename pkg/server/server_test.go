package server

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"policyguard/gateway/pkg/arbiter"
	"policyguard/gateway/pkg/arbiter/store"
	"policyguard/gateway/pkg/config"
	"policyguard/gateway/pkg/providerfactory"
	"policyguard/gateway/pkg/proxy/middleware"
	"policyguard/gateway/pkg/security/auth"
	"policyguard/gateway/pkg/telemetry/health"
	"policyguard/gateway/pkg/telemetry/metrics"
)

type testServer struct {
	srv     *Server
	handler http.Handler
	store   *store.MemoryStore
	engine  *arbiter.Engine
}

func newTestServer(t *testing.T, policies ...arbiter.Policy) *testServer {
	t.Helper()
	cfg := config.Default()

	s, err := store.NewMemoryStore(policies...)
	if err != nil {
		t.Fatal(err)
	}
	collector := metrics.NewCollector(cfg.Telemetry.Metrics, nil)
	engine, err := arbiter.New(s, arbiter.DefaultEngineConfig().WithObserver(collector))
	if err != nil {
		t.Fatal(err)
	}

	srv, err := NewServer(&cfg.Proxy, &cfg.Telemetry, Dependencies{
		Engine:    engine,
		Store:     s,
		Providers: providerfactory.NewManager(nil),
		Metrics:   collector,
		Version:   health.VersionInfo{Version: "1.2.3", Commit: "abc123"},
	})
	if err != nil {
		t.Fatal(err)
	}
	return &testServer{srv: srv, handler: srv.Handler(), store: s, engine: engine}
}

func (ts *testServer) do(method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	w := httptest.NewRecorder()
	ts.handler.ServeHTTP(w, req)
	return w
}

var privacy = arbiter.Policy{
	ID:        "privacy",
	Name:      "Privacy",
	Category:  arbiter.CategoryPrivacy,
	IsActive:  true,
	PIIConfig: map[arbiter.PIIKind]arbiter.PIIAction{arbiter.KindEmail: arbiter.PIIRedact},
}

func TestNewServer_RequiresDependencies(t *testing.T) {
	cfg := config.Default()
	if _, err := NewServer(&cfg.Proxy, &cfg.Telemetry, Dependencies{}); err == nil {
		t.Error("NewServer() without dependencies should fail")
	}
	if _, err := NewServer(nil, &cfg.Telemetry, Dependencies{}); err == nil {
		t.Error("NewServer() without config should fail")
	}
}

func TestServer_Routes(t *testing.T) {
	ts := newTestServer(t, privacy)

	tests := []struct {
		name       string
		method     string
		path       string
		body       string
		wantStatus int
	}{
		{"evaluate", http.MethodPost, "/v1/evaluate", `{"text":"mail bob@example.com"}`, http.StatusOK},
		{"list policies", http.MethodGet, "/v1/policies", "", http.StatusOK},
		{"get policy", http.MethodGet, "/v1/policies/privacy", "", http.StatusOK},
		{"unknown policy", http.MethodGet, "/v1/policies/nope", "", http.StatusNotFound},
		{"liveness", http.MethodGet, "/health", "", http.StatusOK},
		{"version", http.MethodGet, "/version", "", http.StatusOK},
		{"metrics", http.MethodGet, "/metrics", "", http.StatusOK},
		{"wrong method", http.MethodGet, "/v1/evaluate", "", http.StatusMethodNotAllowed},
		{"unknown path", http.MethodGet, "/v2/anything", "", http.StatusNotFound},
		{"openai not configured", http.MethodPost, "/v1/chat/completions", `{}`, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := ts.do(tt.method, tt.path, tt.body)
			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d, body = %s", w.Code, tt.wantStatus, w.Body)
			}
			if w.Header().Get(middleware.RequestIDHeader) == "" {
				t.Error("missing request ID header")
			}
		})
	}
}

func TestServer_Readiness(t *testing.T) {
	ts := newTestServer(t)

	// The engine reports NO_POLICIES once it has evaluated against an
	// empty store.
	ts.do(http.MethodPost, "/v1/evaluate", `{"text":"hello"}`)
	if w := ts.do(http.MethodGet, "/ready", ""); w.Code != http.StatusServiceUnavailable {
		t.Fatalf("ready with no policies = %d, want 503", w.Code)
	}

	if err := ts.store.Put(context.Background(), privacy); err != nil {
		t.Fatal(err)
	}
	ts.do(http.MethodPost, "/v1/evaluate", `{"text":"hello"}`)
	w := ts.do(http.MethodGet, "/ready", "")
	if w.Code != http.StatusOK {
		t.Fatalf("ready = %d, body = %s", w.Code, w.Body)
	}

	var status health.HealthStatus
	if err := json.Unmarshal(w.Body.Bytes(), &status); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"policy_engine", "policy_store"} {
		if _, ok := status.Checks[name]; !ok {
			t.Errorf("readiness is missing check %q", name)
		}
	}
}

func TestServer_MetricsUseRoutePattern(t *testing.T) {
	ts := newTestServer(t, privacy)
	ts.do(http.MethodGet, "/v1/policies/privacy", "")
	ts.do(http.MethodGet, "/v1/policies/other", "")

	body := ts.do(http.MethodGet, "/metrics", "").Body.String()
	if !strings.Contains(body, `endpoint="GET /v1/policies/{id}"`) {
		t.Errorf("metrics missing pattern label:\n%s", body)
	}
	if strings.Contains(body, "/v1/policies/other") {
		t.Error("raw path leaked into metric labels")
	}
}

func TestServer_BodyLimit(t *testing.T) {
	ts := newTestServer(t, privacy)
	ts.srv.config.MaxBodyBytes = 32
	handler := ts.srv.Handler()

	req := httptest.NewRequest(http.MethodPost, "/v1/evaluate", strings.NewReader(`{"text":"`+strings.Repeat("a", 100)+`"}`))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d, want 413", w.Code)
	}
}

func TestServer_AdminAuth(t *testing.T) {
	ts := newTestServer(t, privacy)
	validator := auth.NewValidator()
	validator.Add("ops", "ops-key-0123456789abcdef", true)
	ts.srv.deps.Admin = auth.NewMiddleware(validator)
	handler := ts.srv.Handler()

	tests := []struct {
		name       string
		method     string
		path       string
		key        string
		wantStatus int
	}{
		{"list without key", http.MethodGet, "/v1/policies", "", http.StatusUnauthorized},
		{"toggle without key", http.MethodPatch, "/v1/policies/privacy/toggle", "", http.StatusUnauthorized},
		{"list with key", http.MethodGet, "/v1/policies", "ops-key-0123456789abcdef", http.StatusOK},
		{"wrong key", http.MethodDelete, "/v1/policies/privacy", "wrong-key-0123456789", http.StatusUnauthorized},
		{"evaluate is not guarded", http.MethodPost, "/v1/evaluate", "", http.StatusOK},
		{"health is not guarded", http.MethodGet, "/health", "", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := ""
			if tt.method == http.MethodPost {
				body = `{"text":"hello there"}`
			}
			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(body))
			if tt.key != "" {
				req.Header.Set(auth.AdminKeyHeader, tt.key)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)
			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d: %s", w.Code, tt.wantStatus, w.Body)
			}
		})
	}

	if _, err := ts.store.Get(context.Background(), "privacy"); err != nil {
		t.Errorf("unauthenticated delete removed the policy: %v", err)
	}
}

func TestServer_ServeAndStop(t *testing.T) {
	ts := newTestServer(t, privacy)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}

	done := make(chan error, 1)
	go func() { done <- ts.srv.Serve(context.Background(), ln) }()

	url := "http://" + ln.Addr().String() + "/health"
	deadline := time.Now().Add(2 * time.Second)
	for {
		resp, err := http.Get(url)
		if err == nil {
			resp.Body.Close()
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("server did not come up: %v", err)
		}
		time.Sleep(10 * time.Millisecond)
	}
	if !ts.srv.IsRunning() {
		t.Error("IsRunning() = false while serving")
	}

	ts.srv.Stop()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Serve() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve() did not return after Stop")
	}
	if ts.srv.IsRunning() {
		t.Error("IsRunning() = true after shutdown")
	}
}

func TestServer_TLSMisconfigured(t *testing.T) {
	ts := newTestServer(t, privacy)
	ts.srv.config.TLS = config.TLSConfig{Enabled: true, CertFile: "missing.pem", KeyFile: "missing.key"}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	if err := ts.srv.Serve(context.Background(), ln); err == nil {
		t.Error("Serve() with missing certificate should fail")
	}
	if ts.srv.IsRunning() {
		t.Error("IsRunning() = true after failed start")
	}
}
