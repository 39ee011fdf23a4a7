package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "POLICYGUARD_"

// LoadConfig loads configuration from a YAML file at the specified path.
// YAML is decoded on top of Default(), so omitted fields keep their
// defaults. The result is validated. Environment variables are ignored; use
// LoadConfigWithEnvOverrides for that.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}

	ApplyDefaults(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// LoadConfigWithEnvOverrides loads configuration and applies environment
// variable overrides named POLICYGUARD_SECTION_FIELD (for example
// POLICYGUARD_PROXY_LISTEN_ADDRESS). An empty path starts from defaults.
//
// The loading sequence is:
// 1. Load YAML from file (or defaults)
// 2. Apply default values
// 3. Apply environment variable overrides
// 4. Validate final configuration
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	var cfg *Config
	if path == "" {
		cfg = Default()
	} else {
		var err error
		cfg, err = LoadConfig(path)
		if err != nil {
			return nil, err
		}
	}

	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed after environment overrides: %w", err)
	}

	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	// Proxy overrides
	envString("PROXY_LISTEN_ADDRESS", &cfg.Proxy.ListenAddress)
	envDuration("PROXY_READ_TIMEOUT", &cfg.Proxy.ReadTimeout)
	envDuration("PROXY_WRITE_TIMEOUT", &cfg.Proxy.WriteTimeout)
	envDuration("PROXY_IDLE_TIMEOUT", &cfg.Proxy.IdleTimeout)
	envDuration("PROXY_SHUTDOWN_TIMEOUT", &cfg.Proxy.ShutdownTimeout)
	envInt64("PROXY_MAX_BODY_BYTES", &cfg.Proxy.MaxBodyBytes)
	envBool("PROXY_TLS_ENABLED", &cfg.Proxy.TLS.Enabled)
	envString("PROXY_TLS_CERT_FILE", &cfg.Proxy.TLS.CertFile)
	envString("PROXY_TLS_KEY_FILE", &cfg.Proxy.TLS.KeyFile)

	// Upstream overrides
	applyProviderEnvOverrides("OPENAI", &cfg.Upstream.OpenAI)
	applyProviderEnvOverrides("GEMINI", &cfg.Upstream.Gemini)

	// Policy overrides
	envString("POLICY_BACKEND", &cfg.Policy.Backend)
	envString("POLICY_FILE_PATH", &cfg.Policy.FilePath)
	envString("POLICY_SQLITE_PATH", &cfg.Policy.SQLitePath)
	envBool("POLICY_WATCH", &cfg.Policy.Watch)
	envString("POLICY_GIT_REPOSITORY", &cfg.Policy.Git.Repository)
	envString("POLICY_GIT_BRANCH", &cfg.Policy.Git.Branch)
	envString("POLICY_GIT_PATH", &cfg.Policy.Git.Path)
	envString("POLICY_GIT_TOKEN", &cfg.Policy.Git.Token)
	envDuration("POLICY_GIT_POLL_INTERVAL", &cfg.Policy.Git.PollInterval)
	if val := os.Getenv(EnvPrefix + "POLICY_FINANCIAL_PHRASES"); val != "" {
		var phrases []string
		for _, p := range strings.Split(val, ",") {
			if p = strings.TrimSpace(p); p != "" {
				phrases = append(phrases, p)
			}
		}
		cfg.Policy.FinancialPhrases = phrases
	}

	// Evidence overrides
	envBool("EVIDENCE_ENABLED", &cfg.Evidence.Enabled)
	envString("EVIDENCE_BACKEND", &cfg.Evidence.Backend)
	envString("EVIDENCE_SQLITE_PATH", &cfg.Evidence.SQLite.Path)
	envInt("EVIDENCE_RETENTION_DAYS", &cfg.Evidence.Retention.Days)
	envInt64("EVIDENCE_RETENTION_MAX_RECORDS", &cfg.Evidence.Retention.MaxRecords)
	envString("EVIDENCE_RETENTION_PRUNE_SCHEDULE", &cfg.Evidence.Retention.PruneSchedule)
	envString("EVIDENCE_RETENTION_ARCHIVE_PATH", &cfg.Evidence.Retention.ArchivePath)

	// Telemetry overrides
	envString("TELEMETRY_LOGGING_LEVEL", &cfg.Telemetry.Logging.Level)
	envString("TELEMETRY_LOGGING_FORMAT", &cfg.Telemetry.Logging.Format)
	envBool("TELEMETRY_METRICS_ENABLED", &cfg.Telemetry.Metrics.Enabled)
	envString("TELEMETRY_METRICS_PATH", &cfg.Telemetry.Metrics.Path)
	envBool("TELEMETRY_TRACING_ENABLED", &cfg.Telemetry.Tracing.Enabled)
	envString("TELEMETRY_TRACING_ENDPOINT", &cfg.Telemetry.Tracing.Endpoint)
	envBool("TELEMETRY_TRACING_INSECURE", &cfg.Telemetry.Tracing.Insecure)
	if val := os.Getenv(EnvPrefix + "TELEMETRY_TRACING_SAMPLE_RATIO"); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			cfg.Telemetry.Tracing.SampleRatio = f
		}
	}

	// Security overrides
	if val := os.Getenv(EnvPrefix + "SECURITY_ADMIN_KEY"); val != "" {
		cfg.Security.AdminKeys = append(cfg.Security.AdminKeys, AdminKeyConfig{ID: EnvAdminKeyID, Key: val})
	}
}

// EnvAdminKeyID names the admin key read from POLICYGUARD_SECURITY_ADMIN_KEY.
const EnvAdminKeyID = "env"

// applyProviderEnvOverrides reads POLICYGUARD_UPSTREAM_<NAME>_*.
func applyProviderEnvOverrides(name string, p *ProviderConfig) {
	prefix := "UPSTREAM_" + name + "_"
	envString(prefix+"BASE_URL", &p.BaseURL)
	envString(prefix+"API_KEY", &p.APIKey)
	envDuration(prefix+"TIMEOUT", &p.Timeout)
}

func envString(key string, dst *string) {
	if val := os.Getenv(EnvPrefix + key); val != "" {
		*dst = val
	}
}

func envBool(key string, dst *bool) {
	if val := os.Getenv(EnvPrefix + key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			*dst = b
		}
	}
}

func envInt(key string, dst *int) {
	if val := os.Getenv(EnvPrefix + key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			*dst = i
		}
	}
}

func envInt64(key string, dst *int64) {
	if val := os.Getenv(EnvPrefix + key); val != "" {
		if i, err := strconv.ParseInt(val, 10, 64); err == nil {
			*dst = i
		}
	}
}

func envDuration(key string, dst *time.Duration) {
	if val := os.Getenv(EnvPrefix + key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			*dst = d
		}
	}
}
