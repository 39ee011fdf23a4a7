package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/robfig/cron/v3"
)

// FieldError represents a validation error for a specific configuration field.
type FieldError struct {
	// Field is the dotted path to the configuration field (e.g., "proxy.listen_address").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError represents one or more validation errors in a configuration.
type ValidationError struct {
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("configuration validation failed with %d errors:\n", len(e.Errors)))
	for _, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	return sb.String()
}

// Validate validates the entire configuration. All field errors are
// collected and returned together as a ValidationError.
func Validate(cfg *Config) error {
	var errs []FieldError

	errs = append(errs, validateProxy(&cfg.Proxy)...)
	errs = append(errs, validateProvider("upstream.openai", &cfg.Upstream.OpenAI)...)
	errs = append(errs, validateProvider("upstream.gemini", &cfg.Upstream.Gemini)...)
	errs = append(errs, validatePolicy(&cfg.Policy)...)
	errs = append(errs, validateEvidence(&cfg.Evidence)...)
	errs = append(errs, validateTelemetry(&cfg.Telemetry)...)
	errs = append(errs, validateSecurity(&cfg.Security)...)

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}
	return nil
}

func validateProxy(cfg *ProxyConfig) []FieldError {
	var errs []FieldError

	if cfg.ListenAddress == "" {
		errs = append(errs, FieldError{Field: "proxy.listen_address", Message: "listen address is required"})
	}
	if cfg.ReadTimeout < 0 {
		errs = append(errs, FieldError{Field: "proxy.read_timeout", Message: "read timeout must be positive"})
	}
	if cfg.WriteTimeout < 0 {
		errs = append(errs, FieldError{Field: "proxy.write_timeout", Message: "write timeout must be positive"})
	}
	if cfg.IdleTimeout < 0 {
		errs = append(errs, FieldError{Field: "proxy.idle_timeout", Message: "idle timeout must be positive"})
	}
	if cfg.MaxHeaderBytes < 0 || cfg.MaxHeaderBytes > 10*1024*1024 {
		errs = append(errs, FieldError{Field: "proxy.max_header_bytes", Message: "max header bytes must be between 0 and 10MB"})
	}
	if cfg.MaxBodyBytes <= 0 {
		errs = append(errs, FieldError{Field: "proxy.max_body_bytes", Message: "max body bytes must be positive"})
	}
	if cfg.TLS.Enabled {
		if cfg.TLS.CertFile == "" {
			errs = append(errs, FieldError{Field: "proxy.tls.cert_file", Message: "cert file is required when TLS is enabled"})
		}
		if cfg.TLS.KeyFile == "" {
			errs = append(errs, FieldError{Field: "proxy.tls.key_file", Message: "key file is required when TLS is enabled"})
		}
	}

	return errs
}

func validateProvider(prefix string, cfg *ProviderConfig) []FieldError {
	var errs []FieldError

	if cfg.BaseURL == "" {
		errs = append(errs, FieldError{Field: prefix + ".base_url", Message: "base URL is required"})
	} else if u, err := url.Parse(cfg.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, FieldError{Field: prefix + ".base_url", Message: fmt.Sprintf("invalid URL %q", cfg.BaseURL)})
	} else if u.Scheme != "http" && u.Scheme != "https" {
		errs = append(errs, FieldError{Field: prefix + ".base_url", Message: "scheme must be http or https"})
	}
	if cfg.Timeout <= 0 {
		errs = append(errs, FieldError{Field: prefix + ".timeout", Message: "timeout must be positive"})
	}

	return errs
}

func validatePolicy(cfg *PolicyConfig) []FieldError {
	var errs []FieldError

	switch cfg.Backend {
	case "memory":
	case "file":
		if cfg.FilePath == "" {
			errs = append(errs, FieldError{Field: "policy.file_path", Message: "file path is required for the file backend"})
		}
	case "sqlite":
		if cfg.SQLitePath == "" {
			errs = append(errs, FieldError{Field: "policy.sqlite_path", Message: "sqlite path is required for the sqlite backend"})
		}
	case "git":
		if cfg.Git.Repository == "" {
			errs = append(errs, FieldError{Field: "policy.git.repository", Message: "repository is required for the git backend"})
		}
		if cfg.Git.PollInterval < 0 {
			errs = append(errs, FieldError{Field: "policy.git.poll_interval", Message: "poll interval must be positive"})
		}
	default:
		errs = append(errs, FieldError{
			Field:   "policy.backend",
			Message: fmt.Sprintf("invalid backend %q: must be 'memory', 'file', 'sqlite' or 'git'", cfg.Backend),
		})
	}

	if cfg.DebounceInterval < 0 {
		errs = append(errs, FieldError{Field: "policy.debounce_interval", Message: "debounce interval must be positive"})
	}
	if cfg.MaxEvidence < 0 {
		errs = append(errs, FieldError{Field: "policy.max_evidence", Message: "max evidence must be positive"})
	}
	for i, p := range cfg.FinancialPhrases {
		if strings.TrimSpace(p) == "" {
			errs = append(errs, FieldError{Field: fmt.Sprintf("policy.financial_phrases[%d]", i), Message: "phrase cannot be empty"})
		}
	}

	return errs
}

func validateEvidence(cfg *EvidenceConfig) []FieldError {
	var errs []FieldError

	if !cfg.Enabled {
		return nil
	}

	switch cfg.Backend {
	case "memory":
	case "sqlite":
		if cfg.SQLite.Path == "" {
			errs = append(errs, FieldError{Field: "evidence.sqlite.path", Message: "path is required for the sqlite backend"})
		}
		if cfg.SQLite.MaxOpenConns < 1 {
			errs = append(errs, FieldError{Field: "evidence.sqlite.max_open_conns", Message: "must be at least 1"})
		}
		if cfg.SQLite.MaxIdleConns > cfg.SQLite.MaxOpenConns {
			errs = append(errs, FieldError{Field: "evidence.sqlite.max_idle_conns", Message: "cannot exceed max_open_conns"})
		}
	default:
		errs = append(errs, FieldError{
			Field:   "evidence.backend",
			Message: fmt.Sprintf("invalid backend %q: must be 'memory' or 'sqlite'", cfg.Backend),
		})
	}

	if cfg.Recorder.AsyncBuffer < 1 {
		errs = append(errs, FieldError{Field: "evidence.recorder.async_buffer", Message: "must be at least 1"})
	}
	if cfg.Retention.Days < 0 {
		errs = append(errs, FieldError{Field: "evidence.retention.days", Message: "must be non-negative"})
	}
	if cfg.Retention.MaxRecords < 0 {
		errs = append(errs, FieldError{Field: "evidence.retention.max_records", Message: "must be non-negative"})
	}
	if _, err := cron.ParseStandard(cfg.Retention.PruneSchedule); err != nil {
		errs = append(errs, FieldError{
			Field:   "evidence.retention.prune_schedule",
			Message: fmt.Sprintf("invalid cron expression %q: %v", cfg.Retention.PruneSchedule, err),
		})
	}

	return errs
}

func validateTelemetry(cfg *TelemetryConfig) []FieldError {
	var errs []FieldError

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[cfg.Logging.Level] {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.level",
			Message: fmt.Sprintf("invalid logging level %q: must be 'debug', 'info', 'warn', or 'error'", cfg.Logging.Level),
		})
	}
	if cfg.Logging.Format != "json" && cfg.Logging.Format != "text" {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.format",
			Message: fmt.Sprintf("invalid logging format %q: must be 'json' or 'text'", cfg.Logging.Format),
		})
	}
	for i, p := range cfg.Logging.RedactPatterns {
		if p.Pattern == "" {
			errs = append(errs, FieldError{Field: fmt.Sprintf("telemetry.logging.redact_patterns[%d].pattern", i), Message: "pattern is required"})
		}
	}

	if cfg.Metrics.Enabled && !strings.HasPrefix(cfg.Metrics.Path, "/") {
		errs = append(errs, FieldError{Field: "telemetry.metrics.path", Message: "metrics path must start with /"})
	}

	if cfg.Tracing.Enabled && cfg.Tracing.Endpoint == "" {
		errs = append(errs, FieldError{Field: "telemetry.tracing.endpoint", Message: "tracing endpoint is required when tracing is enabled"})
	}
	if cfg.Tracing.SampleRatio < 0 || cfg.Tracing.SampleRatio > 1.0 {
		errs = append(errs, FieldError{Field: "telemetry.tracing.sample_ratio", Message: "sample ratio must be between 0.0 and 1.0"})
	}

	if cfg.Health.LivenessPath == cfg.Health.ReadinessPath {
		errs = append(errs, FieldError{Field: "telemetry.health", Message: "liveness and readiness paths must differ"})
	}

	return errs
}

// MinAdminKeyLength is the shortest accepted admin key.
const MinAdminKeyLength = 16

func validateSecurity(cfg *SecurityConfig) []FieldError {
	var errs []FieldError

	seen := make(map[string]bool, len(cfg.AdminKeys))
	for i, k := range cfg.AdminKeys {
		field := fmt.Sprintf("security.admin_keys[%d]", i)
		if k.ID == "" {
			errs = append(errs, FieldError{Field: field + ".id", Message: "id is required"})
		} else if seen[k.ID] {
			errs = append(errs, FieldError{Field: field + ".id", Message: fmt.Sprintf("duplicate id %q", k.ID)})
		}
		seen[k.ID] = true
		if len(k.Key) < MinAdminKeyLength {
			errs = append(errs, FieldError{Field: field + ".key", Message: fmt.Sprintf("key must be at least %d characters", MinAdminKeyLength)})
		}
	}

	return errs
}
