package config

import "time"

// Config is the root configuration structure for the PolicyGuard gateway.
type Config struct {
	// Proxy contains HTTP server configuration.
	Proxy ProxyConfig `yaml:"proxy"`

	// Upstream contains the LLM APIs requests are forwarded to.
	Upstream UpstreamConfig `yaml:"upstream"`

	// Policy selects and configures the policy store and the engine.
	Policy PolicyConfig `yaml:"policy"`

	// Evidence configures the audit trail of evaluations.
	Evidence EvidenceConfig `yaml:"evidence"`

	// Telemetry contains logging, metrics, tracing and health settings.
	Telemetry TelemetryConfig `yaml:"telemetry"`

	// Security protects the policy management API.
	Security SecurityConfig `yaml:"security"`
}

// ProxyConfig contains configuration for the HTTP server.
type ProxyConfig struct {
	// ListenAddress is the address and port to listen on.
	// Default: "127.0.0.1:8080"
	ListenAddress string `yaml:"listen_address"`

	// ReadTimeout is the maximum duration for reading the entire request.
	// Default: 30s
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout must cover the upstream call.
	// Default: 120s
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// IdleTimeout is the keep-alive idle timeout.
	// Default: 120s
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// ShutdownTimeout bounds graceful shutdown.
	// Default: 30s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// MaxHeaderBytes limits request header size.
	// Default: 1048576 (1MB)
	MaxHeaderBytes int `yaml:"max_header_bytes"`

	// MaxBodyBytes limits request body size.
	// Default: 4194304 (4MB)
	MaxBodyBytes int64 `yaml:"max_body_bytes"`

	// TLS terminates TLS in the gateway itself.
	TLS TLSConfig `yaml:"tls"`
}

// TLSConfig contains TLS termination settings.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// SecurityConfig protects the policy management API.
type SecurityConfig struct {
	// AdminKeys authorize requests to /v1/policies. When empty the
	// management API is open, which is only sensible on a loopback listener.
	AdminKeys []AdminKeyConfig `yaml:"admin_keys"`
}

// AdminKeyConfig is one management API key.
type AdminKeyConfig struct {
	// ID names the key in logs. The key itself is never logged.
	ID string `yaml:"id"`

	// Key is the secret presented by clients. At least 16 characters.
	Key string `yaml:"key"`

	// Disabled rejects the key without removing it.
	Disabled bool `yaml:"disabled"`
}

// UpstreamConfig contains the upstream LLM providers.
type UpstreamConfig struct {
	// OpenAI serves /v1/chat/completions.
	OpenAI ProviderConfig `yaml:"openai"`

	// Gemini serves /v1beta/models/{model}:generateContent.
	Gemini ProviderConfig `yaml:"gemini"`
}

// ProviderConfig contains configuration for one upstream provider.
type ProviderConfig struct {
	// BaseURL is the provider's API root, without a trailing slash.
	BaseURL string `yaml:"base_url"`

	// APIKey is used when the caller sends no credentials of its own.
	APIKey string `yaml:"api_key"`

	// Timeout bounds one upstream call.
	// Default: 60s
	Timeout time.Duration `yaml:"timeout"`
}

// PolicyConfig configures where policies come from.
type PolicyConfig struct {
	// Backend is one of "memory", "file", "sqlite" or "git".
	// Default: "file"
	Backend string `yaml:"backend"`

	// FilePath is a policy document or a directory of them (file backend).
	// Default: "./policies.yaml"
	FilePath string `yaml:"file_path"`

	// SQLitePath is the policy database (sqlite backend).
	// Default: "data/policies.db"
	SQLitePath string `yaml:"sqlite_path"`

	// Watch reloads file-backed policies when they change.
	// Default: false
	Watch bool `yaml:"watch"`

	// DebounceInterval coalesces bursts of file events.
	// Default: 100ms
	DebounceInterval time.Duration `yaml:"debounce_interval"`

	// FinancialPhrases overrides the built-in financial-harm phrase list.
	FinancialPhrases []string `yaml:"financial_phrases"`

	// MaxEvidence caps evidence entries per evaluation result.
	// Default: 64
	MaxEvidence int `yaml:"max_evidence"`

	// Git configures the git backend.
	Git GitPolicyConfig `yaml:"git"`
}

// GitPolicyConfig configures policies synced from a git repository.
type GitPolicyConfig struct {
	// Repository is the clone URL or a local path.
	Repository string `yaml:"repository"`

	// Branch to track.
	// Default: "main"
	Branch string `yaml:"branch"`

	// Path is the policy file or directory inside the repository.
	// Default: "policies"
	Path string `yaml:"path"`

	// LocalPath is where the repository is cloned.
	// Default: "data/policy-repo"
	LocalPath string `yaml:"local_path"`

	// Token authenticates HTTPS clones. Empty means anonymous.
	Token string `yaml:"token"`

	// PollInterval is the time between pulls.
	// Default: 60s
	PollInterval time.Duration `yaml:"poll_interval"`

	// Timeout bounds one clone or pull.
	// Default: 30s
	Timeout time.Duration `yaml:"timeout"`
}

// EvidenceConfig configures evaluation evidence.
type EvidenceConfig struct {
	// Enabled controls whether evidence is recorded.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// Backend is "memory" or "sqlite".
	// Default: "sqlite"
	Backend string `yaml:"backend"`

	// SQLite configures the sqlite backend.
	SQLite SQLiteConfig `yaml:"sqlite"`

	// Recorder configures the asynchronous recorder.
	Recorder RecorderConfig `yaml:"recorder"`

	// Retention configures pruning of old records.
	Retention RetentionConfig `yaml:"retention"`
}

// SQLiteConfig configures the sqlite evidence database.
type SQLiteConfig struct {
	// Path is the database file.
	// Default: "data/evidence.db"
	Path string `yaml:"path"`

	// MaxOpenConns limits open connections.
	// Default: 10
	MaxOpenConns int `yaml:"max_open_conns"`

	// MaxIdleConns limits idle connections.
	// Default: 5
	MaxIdleConns int `yaml:"max_idle_conns"`

	// BusyTimeout is sqlite's busy_timeout.
	// Default: 5s
	BusyTimeout time.Duration `yaml:"busy_timeout"`
}

// RecorderConfig configures the asynchronous evidence recorder.
type RecorderConfig struct {
	// AsyncBuffer is the channel size. Records are dropped when it is full.
	// Default: 1000
	AsyncBuffer int `yaml:"async_buffer"`

	// WriteTimeout bounds one storage write.
	// Default: 5s
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// RetentionConfig configures evidence pruning.
type RetentionConfig struct {
	// Days is how long records are kept. 0 keeps them forever.
	// Default: 90
	Days int `yaml:"days"`

	// MaxRecords caps the record count. 0 means unlimited.
	// Default: 0
	MaxRecords int64 `yaml:"max_records"`

	// PruneSchedule is a cron expression.
	// Default: "0 3 * * *"
	PruneSchedule string `yaml:"prune_schedule"`

	// ArchivePath, when set, is a directory that receives a JSON export of
	// every batch before it is deleted.
	ArchivePath string `yaml:"archive_path"`
}

// TelemetryConfig contains observability configuration.
type TelemetryConfig struct {
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
	Tracing TracingConfig `yaml:"tracing"`
	Health  HealthConfig  `yaml:"health"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	// Level is "debug", "info", "warn" or "error".
	// Default: "info"
	Level string `yaml:"level"`

	// Format is "json" or "text".
	// Default: "json"
	Format string `yaml:"format"`

	// AddSource adds file:line to records.
	AddSource bool `yaml:"add_source"`

	// RedactPII scrubs sensitive values from log attributes.
	// Default: true
	RedactPII bool `yaml:"redact_pii"`

	// RedactPatterns are additional patterns to scrub.
	RedactPatterns []RedactPattern `yaml:"redact_patterns"`
}

// RedactPattern is a custom log redaction rule.
type RedactPattern struct {
	Name        string `yaml:"name"`
	Pattern     string `yaml:"pattern"`
	Replacement string `yaml:"replacement"`
}

// MetricsConfig configures Prometheus metrics.
type MetricsConfig struct {
	// Enabled controls whether /metrics is served.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// Path is the scrape path.
	// Default: "/metrics"
	Path string `yaml:"path"`

	// Namespace prefixes every metric.
	// Default: "policyguard"
	Namespace string `yaml:"namespace"`

	// DurationBuckets are the evaluation latency buckets in seconds.
	DurationBuckets []float64 `yaml:"duration_buckets"`
}

// TracingConfig configures OpenTelemetry tracing.
type TracingConfig struct {
	// Enabled turns tracing on. When off a noop tracer is used.
	Enabled bool `yaml:"enabled"`

	// SampleRatio is the fraction of traces sampled.
	// Default: 1.0
	SampleRatio float64 `yaml:"sample_ratio"`

	// Endpoint is the OTLP gRPC collector address.
	Endpoint string `yaml:"endpoint"`

	// ServiceName is reported as service.name.
	// Default: "policyguard"
	ServiceName string `yaml:"service_name"`

	// Insecure disables TLS to the collector.
	Insecure bool `yaml:"insecure"`

	// Timeout bounds exports.
	// Default: 10s
	Timeout time.Duration `yaml:"timeout"`
}

// HealthConfig configures health endpoints.
type HealthConfig struct {
	// LivenessPath default: "/health"
	LivenessPath string `yaml:"liveness_path"`

	// ReadinessPath default: "/ready"
	ReadinessPath string `yaml:"readiness_path"`

	// CheckTimeout bounds each readiness check.
	// Default: 5s
	CheckTimeout time.Duration `yaml:"check_timeout"`
}
