package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	testhelpers "policyguard/gateway/internal/providers"
	"policyguard/gateway/pkg/providers"
	"policyguard/gateway/pkg/providers/gemini"
	"policyguard/gateway/pkg/providers/openai"
	"policyguard/gateway/pkg/proxy"
)

type staticManager map[string]providers.Provider

func (m staticManager) GetProvider(name string) (providers.Provider, error) {
	p, ok := m[name]
	if !ok {
		return nil, errors.New("unknown provider " + name)
	}
	return p, nil
}

func newGateway(t *testing.T) (*http.ServeMux, *testhelpers.MockServer) {
	t.Helper()
	mock := testhelpers.NewMockServer()
	t.Cleanup(mock.Close)

	guard := proxy.NewGuard(newEngine(t), proxy.GuardConfig{})
	pm := staticManager{
		openai.Name: openai.New(testhelpers.TestConfig(mock.URL()), nil),
		gemini.Name: gemini.New(testhelpers.TestConfig(mock.URL()), nil),
	}

	mux := http.NewServeMux()
	mux.Handle("POST /v1/chat/completions", NewChatHandler(guard, pm))
	mux.Handle("POST /v1beta/models/{action}", NewGenerateHandler(guard, pm))
	return mux, mock
}

func TestChatHandler(t *testing.T) {
	mux, mock := newGateway(t)
	mock.SetResponse("/v1/chat/completions", testhelpers.MockResponse{
		StatusCode: http.StatusOK,
		Body:       testhelpers.MockOpenAIResponse("Paris.", "gpt-4o"),
	})

	w := serve(mux, http.MethodPost, "/v1/chat/completions",
		`{"model":"gpt-4o","messages":[{"role":"user","content":"Capital of France?"}]}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body)
	}
	if w.Header().Get(proxy.VerdictHeader) != "ALLOW" {
		t.Errorf("verdict header = %q", w.Header().Get(proxy.VerdictHeader))
	}

	w = serve(mux, http.MethodPost, "/v1/chat/completions",
		`{"model":"gpt-4o","messages":[{"role":"user","content":"my ssn is 123-45-6789"}]}`)
	if w.Code != http.StatusForbidden {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body)
	}
	if mock.RequestCount() != 1 {
		t.Errorf("upstream calls = %d, blocked prompt must not be forwarded", mock.RequestCount())
	}
}

func TestGenerateHandler(t *testing.T) {
	mux, mock := newGateway(t)
	mock.SetResponse(gemini.GeneratePath("gemini-1.5-pro"), testhelpers.MockResponse{
		StatusCode: http.StatusOK,
		Body:       testhelpers.MockGeminiResponse("Paris."),
	})

	body := `{"contents":[{"role":"user","parts":[{"text":"Capital of France?"}]}]}`

	tests := []struct {
		name       string
		path       string
		wantStatus int
		wantReason string
	}{
		{"generate", "/v1beta/models/gemini-1.5-pro:generateContent", http.StatusOK, ""},
		{"stream", "/v1beta/models/gemini-1.5-pro:streamGenerateContent", http.StatusBadRequest, "stream_unsupported"},
		{"unknown method", "/v1beta/models/gemini-1.5-pro:countTokens", http.StatusNotFound, "invalid_value"},
		{"no method", "/v1beta/models/gemini-1.5-pro", http.StatusNotFound, "invalid_value"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(mux, http.MethodPost, tt.path, body)
			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d, body = %s", w.Code, tt.wantStatus, w.Body)
			}
			if tt.wantReason == "" {
				return
			}
			var resp gemini.ErrorResponse
			if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
				t.Fatal(err)
			}
			if got := resp.Error.Details[0].Reason; got != tt.wantReason {
				t.Errorf("reason = %q, want %q", got, tt.wantReason)
			}
		})
	}
}

func TestChatHandler_ProviderNotConfigured(t *testing.T) {
	guard := proxy.NewGuard(newEngine(t), proxy.GuardConfig{})
	h := NewChatHandler(guard, staticManager{})

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/v1/chat/completions", strings.NewReader(`{}`)))
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", w.Code)
	}
}
