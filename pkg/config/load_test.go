package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "policyguard.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return path
}

func TestLoadConfig_ValidFile(t *testing.T) {
	path := writeConfig(t, `
proxy:
  listen_address: "0.0.0.0:9000"
  read_timeout: "60s"

upstream:
  openai:
    base_url: "http://localhost:11434"
    api_key: "sk-test"

policy:
  backend: "sqlite"
  sqlite_path: "./p.db"
  financial_phrases: ["wash trading"]

evidence:
  backend: "memory"
  retention:
    days: 7

telemetry:
  logging:
    level: "debug"
    format: "text"
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.Proxy.ListenAddress != "0.0.0.0:9000" {
		t.Errorf("listen address = %q", cfg.Proxy.ListenAddress)
	}
	if cfg.Proxy.ReadTimeout != 60*time.Second {
		t.Errorf("read timeout = %v", cfg.Proxy.ReadTimeout)
	}
	if cfg.Upstream.OpenAI.BaseURL != "http://localhost:11434" || cfg.Upstream.OpenAI.APIKey != "sk-test" {
		t.Errorf("openai = %+v", cfg.Upstream.OpenAI)
	}
	if cfg.Upstream.Gemini.BaseURL != DefaultGeminiBaseURL {
		t.Errorf("gemini base url = %q, want default", cfg.Upstream.Gemini.BaseURL)
	}
	if cfg.Policy.Backend != "sqlite" || len(cfg.Policy.FinancialPhrases) != 1 {
		t.Errorf("policy = %+v", cfg.Policy)
	}
	if !cfg.Evidence.Enabled {
		t.Error("evidence should stay enabled when omitted")
	}
	if cfg.Evidence.Retention.Days != 7 {
		t.Errorf("retention days = %d", cfg.Evidence.Retention.Days)
	}
	if cfg.Telemetry.Logging.Level != "debug" {
		t.Errorf("log level = %q", cfg.Telemetry.Logging.Level)
	}
	if !cfg.Telemetry.Metrics.Enabled || !cfg.Telemetry.Logging.RedactPII {
		t.Error("boolean defaults lost")
	}
}

func TestLoadConfig_ExplicitFalseKept(t *testing.T) {
	path := writeConfig(t, `
policy:
  backend: memory
evidence:
  enabled: false
telemetry:
  metrics:
    enabled: false
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.Evidence.Enabled || cfg.Telemetry.Metrics.Enabled {
		t.Errorf("explicit false overridden: evidence=%v metrics=%v", cfg.Evidence.Enabled, cfg.Telemetry.Metrics.Enabled)
	}
}

func TestLoadConfig_FileNotFound(t *testing.T) {
	_, err := LoadConfig("/nonexistent/policyguard.yaml")
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("error = %v, want os.ErrNotExist", err)
	}
}

func TestLoadConfig_MalformedYAML(t *testing.T) {
	path := writeConfig(t, "proxy:\n  listen_address: [unclosed\n")
	if _, err := LoadConfig(path); err == nil || !strings.Contains(err.Error(), "parse") {
		t.Errorf("error = %v, want parse error", err)
	}
}

func TestLoadConfig_ValidationFailure(t *testing.T) {
	path := writeConfig(t, `
policy:
  backend: "firestore"
`)
	_, err := LoadConfig(path)
	var verr ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("error = %v, want ValidationError", err)
	}
	if verr.Errors[0].Field != "policy.backend" {
		t.Errorf("field = %q", verr.Errors[0].Field)
	}
}

func TestLoadConfigWithEnvOverrides(t *testing.T) {
	path := writeConfig(t, `
policy:
  backend: file
`)

	t.Setenv("POLICYGUARD_PROXY_LISTEN_ADDRESS", "0.0.0.0:7777")
	t.Setenv("POLICYGUARD_PROXY_READ_TIMEOUT", "5s")
	t.Setenv("POLICYGUARD_POLICY_BACKEND", "memory")
	t.Setenv("POLICYGUARD_POLICY_WATCH", "true")
	t.Setenv("POLICYGUARD_POLICY_FINANCIAL_PHRASES", "front running, wash trading ,")
	t.Setenv("POLICYGUARD_UPSTREAM_GEMINI_API_KEY", "g-key")
	t.Setenv("POLICYGUARD_EVIDENCE_RETENTION_DAYS", "30")
	t.Setenv("POLICYGUARD_TELEMETRY_TRACING_SAMPLE_RATIO", "0.25")
	t.Setenv("POLICYGUARD_SECURITY_ADMIN_KEY", "env-admin-key-0123456789")

	cfg, err := LoadConfigWithEnvOverrides(path)
	if err != nil {
		t.Fatalf("LoadConfigWithEnvOverrides() error = %v", err)
	}

	if cfg.Proxy.ListenAddress != "0.0.0.0:7777" {
		t.Errorf("listen address = %q", cfg.Proxy.ListenAddress)
	}
	if cfg.Proxy.ReadTimeout != 5*time.Second {
		t.Errorf("read timeout = %v", cfg.Proxy.ReadTimeout)
	}
	if cfg.Policy.Backend != "memory" || !cfg.Policy.Watch {
		t.Errorf("policy = %+v", cfg.Policy)
	}
	want := []string{"front running", "wash trading"}
	if len(cfg.Policy.FinancialPhrases) != 2 || cfg.Policy.FinancialPhrases[0] != want[0] || cfg.Policy.FinancialPhrases[1] != want[1] {
		t.Errorf("phrases = %q, want %q", cfg.Policy.FinancialPhrases, want)
	}
	if cfg.Upstream.Gemini.APIKey != "g-key" {
		t.Errorf("gemini key = %q", cfg.Upstream.Gemini.APIKey)
	}
	if cfg.Evidence.Retention.Days != 30 {
		t.Errorf("retention days = %d", cfg.Evidence.Retention.Days)
	}
	if cfg.Telemetry.Tracing.SampleRatio != 0.25 {
		t.Errorf("sample ratio = %v", cfg.Telemetry.Tracing.SampleRatio)
	}
	if len(cfg.Security.AdminKeys) != 1 || cfg.Security.AdminKeys[0].ID != EnvAdminKeyID {
		t.Errorf("admin keys = %+v", cfg.Security.AdminKeys)
	}
}

func TestLoadConfigWithEnvOverrides_InvalidValuesIgnored(t *testing.T) {
	t.Setenv("POLICYGUARD_PROXY_READ_TIMEOUT", "soon")
	t.Setenv("POLICYGUARD_EVIDENCE_ENABLED", "maybe")
	t.Setenv("POLICYGUARD_POLICY_BACKEND", "memory")

	cfg, err := LoadConfigWithEnvOverrides("")
	if err != nil {
		t.Fatalf("LoadConfigWithEnvOverrides() error = %v", err)
	}
	if cfg.Proxy.ReadTimeout != DefaultReadTimeout {
		t.Errorf("read timeout = %v, want default", cfg.Proxy.ReadTimeout)
	}
	if !cfg.Evidence.Enabled {
		t.Error("invalid bool should leave default")
	}
}

func TestLoadConfigWithEnvOverrides_RevalidatesOverrides(t *testing.T) {
	t.Setenv("POLICYGUARD_TELEMETRY_LOGGING_LEVEL", "verbose")

	_, err := LoadConfigWithEnvOverrides("")
	if err == nil || !strings.Contains(err.Error(), "telemetry.logging.level") {
		t.Errorf("error = %v, want logging level failure", err)
	}
}
