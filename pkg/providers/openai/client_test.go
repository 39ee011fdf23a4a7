package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	testhelpers "policyguard/gateway/internal/providers"
	"policyguard/gateway/pkg/providers"
	"policyguard/gateway/pkg/proxy/types"
)

func TestParseRequest(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantModel  string
		wantPrompt string
		wantErr    error
	}{
		{
			name:       "last user message",
			body:       `{"model":"gpt-4o","messages":[{"role":"user","content":"first"},{"role":"assistant","content":"ok"},{"role":"user","content":"second"}]}`,
			wantModel:  "gpt-4o",
			wantPrompt: "second",
		},
		{
			name:       "text parts joined",
			body:       `{"model":"gpt-4o","messages":[{"role":"user","content":[{"type":"text","text":"hello"},{"type":"image_url","image_url":{"url":"x"}},{"type":"text","text":"world"}]}]}`,
			wantModel:  "gpt-4o",
			wantPrompt: "hello world",
		},
		{
			name:       "no user message",
			body:       `{"model":"gpt-4o","messages":[{"role":"system","content":"be nice"}]}`,
			wantModel:  "gpt-4o",
			wantPrompt: "",
		},
		{
			name:    "streaming",
			body:    `{"model":"gpt-4o","stream":true,"messages":[{"role":"user","content":"hi"}]}`,
			wantErr: providers.ErrStreaming,
		},
		{
			name:    "missing model",
			body:    `{"messages":[{"role":"user","content":"hi"}]}`,
			wantErr: providers.ErrInvalidBody,
		},
		{
			name:    "empty messages",
			body:    `{"model":"gpt-4o","messages":[]}`,
			wantErr: providers.ErrInvalidBody,
		},
		{
			name:    "numeric content",
			body:    `{"model":"gpt-4o","messages":[{"role":"user","content":42}]}`,
			wantErr: providers.ErrInvalidBody,
		},
		{
			name:    "malformed json",
			body:    `{"model":`,
			wantErr: providers.ErrInvalidBody,
		},
	}

	p := New(testhelpers.TestConfig("http://unused"), nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := p.ParseRequest([]byte(tt.body))
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("ParseRequest() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseRequest() error = %v", err)
			}
			if req.Model != tt.wantModel {
				t.Errorf("Model = %q, want %q", req.Model, tt.wantModel)
			}
			if req.Prompt != tt.wantPrompt {
				t.Errorf("Prompt = %q, want %q", req.Prompt, tt.wantPrompt)
			}
		})
	}
}

func TestRewritePrompt(t *testing.T) {
	p := New(testhelpers.TestConfig("http://unused"), nil)
	body := `{"model":"gpt-4o","temperature":0.2,"messages":[{"role":"user","content":"old"},{"role":"assistant","content":"a"},{"role":"user","content":[{"type":"text","text":"mail a@b.co"}]}]}`

	out, err := p.RewritePrompt([]byte(body), "mail [REDACTED_EMAIL]")
	if err != nil {
		t.Fatalf("RewritePrompt() error = %v", err)
	}

	req, err := p.ParseRequest(out)
	if err != nil {
		t.Fatalf("ParseRequest(rewritten) error = %v", err)
	}
	if req.Prompt != "mail [REDACTED_EMAIL]" {
		t.Errorf("Prompt = %q", req.Prompt)
	}

	var doc struct {
		Temperature float64 `json:"temperature"`
		Messages    []struct {
			Content any `json:"content"`
		} `json:"messages"`
	}
	if err := json.Unmarshal(out, &doc); err != nil {
		t.Fatal(err)
	}
	if doc.Temperature != 0.2 {
		t.Errorf("temperature = %v, want unknown fields preserved", doc.Temperature)
	}
	if doc.Messages[0].Content != "old" {
		t.Errorf("earlier user message changed: %v", doc.Messages[0].Content)
	}
}

func TestRewritePrompt_NoUserMessage(t *testing.T) {
	p := New(testhelpers.TestConfig("http://unused"), nil)
	_, err := p.RewritePrompt([]byte(`{"model":"m","messages":[{"role":"system","content":"x"}]}`), "y")
	if !errors.Is(err, providers.ErrInvalidBody) {
		t.Errorf("error = %v, want ErrInvalidBody", err)
	}
}

func TestCompletion(t *testing.T) {
	p := New(testhelpers.TestConfig("http://unused"), nil)
	body, _ := json.Marshal(testhelpers.MockOpenAIResponse("Hello, world!", "gpt-4o"))

	text, err := p.Completion(body)
	if err != nil {
		t.Fatalf("Completion() error = %v", err)
	}
	if text != "Hello, world!" {
		t.Errorf("Completion() = %q", text)
	}

	out, err := p.RewriteCompletion(body, "Hello, [REDACTED]")
	if err != nil {
		t.Fatalf("RewriteCompletion() error = %v", err)
	}
	text, _ = p.Completion(out)
	if text != "Hello, [REDACTED]" {
		t.Errorf("rewritten completion = %q", text)
	}

	var doc map[string]any
	_ = json.Unmarshal(out, &doc)
	if doc["id"] != "chatcmpl-123" {
		t.Errorf("id = %v, want fields preserved", doc["id"])
	}

	if _, err := p.Completion([]byte(`{"choices":[]}`)); !errors.Is(err, providers.ErrInvalidBody) {
		t.Errorf("empty choices error = %v", err)
	}
}

func TestCredential(t *testing.T) {
	p := New(testhelpers.TestConfig("http://unused"), nil)

	r := httptest.NewRequest(http.MethodPost, completionsPath, nil)
	if got := p.Credential(r); got != "test-key" {
		t.Errorf("fallback credential = %q", got)
	}

	r.Header.Set("Authorization", "Bearer sk-caller")
	if got := p.Credential(r); got != "sk-caller" {
		t.Errorf("caller credential = %q", got)
	}

	cfg := testhelpers.TestConfig("http://unused")
	cfg.APIKey = ""
	bare := New(cfg, nil)
	if got := bare.Credential(httptest.NewRequest(http.MethodPost, completionsPath, nil)); got != "" {
		t.Errorf("credential = %q, want empty", got)
	}
}

func TestForward(t *testing.T) {
	mock := testhelpers.NewMockServer()
	defer mock.Close()
	mock.SetResponse(completionsPath, testhelpers.MockResponse{
		StatusCode: http.StatusOK,
		Body:       testhelpers.MockOpenAIResponse("hi", "gpt-4o"),
	})

	p := New(testhelpers.TestConfig(mock.URL()+"/"), nil)
	body := []byte(`{"model":"gpt-4o","messages":[{"role":"user","content":"hi"}]}`)

	resp, err := p.Forward(context.Background(), &providers.Call{Model: "gpt-4o", Body: body, Credential: "sk-1"})
	if err != nil {
		t.Fatalf("Forward() error = %v", err)
	}
	if !resp.OK() {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	got, ok := mock.LastRequest()
	if !ok {
		t.Fatal("upstream received no request")
	}
	if got.Header.Get("Authorization") != "Bearer sk-1" {
		t.Errorf("Authorization = %q", got.Header.Get("Authorization"))
	}
	if string(got.Body) != string(body) {
		t.Errorf("body = %s", got.Body)
	}
}

func TestForward_Errors(t *testing.T) {
	mock := testhelpers.NewMockServer()
	defer mock.Close()
	mock.SetResponse(completionsPath, testhelpers.MockAuthError())

	p := New(testhelpers.TestConfig(mock.URL()), nil)

	resp, err := p.Forward(context.Background(), &providers.Call{Body: []byte(`{}`), Credential: "bad"})
	if err != nil {
		t.Fatalf("Forward() error = %v", err)
	}
	if resp.StatusCode != http.StatusUnauthorized || resp.OK() {
		t.Errorf("status = %d, want relayed 401", resp.StatusCode)
	}

	if _, err := p.Forward(context.Background(), &providers.Call{Body: []byte(`{}`)}); !errors.Is(err, providers.ErrMissingCredential) {
		t.Errorf("missing credential error = %v", err)
	}
}

func TestForward_Timeout(t *testing.T) {
	mock := testhelpers.NewMockServer()
	defer mock.Close()
	mock.SetResponse(completionsPath, testhelpers.MockTimeoutError(time.Second))

	cfg := testhelpers.TestConfig(mock.URL())
	cfg.Timeout = 50 * time.Millisecond
	p := New(cfg, nil)

	_, err := p.Forward(context.Background(), &providers.Call{Body: []byte(`{}`), Credential: "k"})
	var te *providers.TimeoutError
	if !errors.As(err, &te) {
		t.Fatalf("error = %v, want TimeoutError", err)
	}
}

func TestErrorBody(t *testing.T) {
	p := New(testhelpers.TestConfig("http://unused"), nil)
	body, ok := p.ErrorBody(http.StatusForbidden, types.CodePromptBlocked, "blocked").(*types.ErrorResponse)
	if !ok {
		t.Fatalf("ErrorBody() type = %T", body)
	}
	if body.Error.Type != types.ErrorTypePolicyViolation || body.Error.Code != types.CodePromptBlocked {
		t.Errorf("ErrorBody() = %+v", body.Error)
	}
	if body.Error.HTTPStatusCode() != http.StatusForbidden {
		t.Errorf("status = %d", body.Error.HTTPStatusCode())
	}
}
