package middleware

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestBodyLimitMiddleware(t *testing.T) {
	var readErr error
	handler := BodyLimitMiddleware(8)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, readErr = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))

	t.Run("within limit", func(t *testing.T) {
		readErr = nil
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/", strings.NewReader("small")))
		if w.Code != http.StatusOK || readErr != nil {
			t.Errorf("status = %d, read error = %v", w.Code, readErr)
		}
	})

	t.Run("declared length too large", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/", strings.NewReader("way too large")))
		if w.Code != http.StatusRequestEntityTooLarge {
			t.Errorf("status = %d, want 413", w.Code)
		}
	})

	t.Run("undeclared length cut off", func(t *testing.T) {
		readErr = nil
		req := httptest.NewRequest(http.MethodPost, "/", io.NopCloser(strings.NewReader("way too large")))
		req.ContentLength = -1
		handler.ServeHTTP(httptest.NewRecorder(), req)

		var mbe *http.MaxBytesError
		if !errors.As(readErr, &mbe) {
			t.Errorf("read error = %v, want MaxBytesError", readErr)
		}
	})
}

func TestBodyLimitMiddleware_Disabled(t *testing.T) {
	called := false
	handler := BodyLimitMiddleware(0)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/", strings.NewReader("anything")))
	if !called {
		t.Error("handler not called with limit disabled")
	}
}

func TestTimeoutMiddleware(t *testing.T) {
	var hasDeadline bool
	handler := TimeoutMiddleware(time.Minute)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, hasDeadline = r.Context().Deadline()
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	if !hasDeadline {
		t.Error("request context has no deadline")
	}
}

type recordedRequest struct {
	endpoint string
	status   int
}

type fakeRequestRecorder struct {
	calls []recordedRequest
}

func (f *fakeRequestRecorder) RecordRequest(endpoint string, status int, _ time.Duration) {
	f.calls = append(f.calls, recordedRequest{endpoint, status})
}

func TestMetricsMiddleware(t *testing.T) {
	rec := &fakeRequestRecorder{}
	handler := MetricsMiddleware("DELETE /v1/policies/{id}", rec)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodDelete, "/v1/policies/abc", nil))

	if len(rec.calls) != 1 {
		t.Fatalf("recorded %d requests, want 1", len(rec.calls))
	}
	if rec.calls[0].endpoint != "DELETE /v1/policies/{id}" || rec.calls[0].status != http.StatusNotFound {
		t.Errorf("recorded %+v", rec.calls[0])
	}
}

func TestScopeFromRequest(t *testing.T) {
	tests := []struct {
		name      string
		agent     string
		route     string
		wantAgent string
		wantRoute string
	}{
		{"defaults", "", "", "default", "/v1/chat/completions"},
		{"headers", "billing-bot", "/checkout", "billing-bot", "/checkout"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", nil)
			if tt.agent != "" {
				r.Header.Set(AgentIDHeader, tt.agent)
			}
			if tt.route != "" {
				r.Header.Set(RouteHeader, tt.route)
			}
			scope := ScopeFromRequest(r)
			if scope.AgentID != tt.wantAgent || scope.Route != tt.wantRoute {
				t.Errorf("ScopeFromRequest() = %+v", scope)
			}
		})
	}
}
