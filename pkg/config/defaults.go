package config

import "time"

// Default values for configuration fields.
const (
	// Proxy defaults
	DefaultListenAddress   = "127.0.0.1:8080"
	DefaultReadTimeout     = 30 * time.Second
	DefaultWriteTimeout    = 120 * time.Second
	DefaultIdleTimeout     = 120 * time.Second
	DefaultShutdownTimeout = 30 * time.Second
	DefaultMaxHeaderBytes  = 1048576 // 1MB
	DefaultMaxBodyBytes    = int64(4 << 20)

	// Upstream defaults
	DefaultOpenAIBaseURL   = "https://api.openai.com"
	DefaultGeminiBaseURL   = "https://generativelanguage.googleapis.com"
	DefaultProviderTimeout = 60 * time.Second

	// Policy defaults
	DefaultPolicyBackend          = "file"
	DefaultPolicyFilePath         = "./policies.yaml"
	DefaultPolicySQLitePath       = "data/policies.db"
	DefaultPolicyDebounceInterval = 100 * time.Millisecond
	DefaultPolicyMaxEvidence      = 64
	DefaultPolicyGitBranch        = "main"
	DefaultPolicyGitPath          = "policies"
	DefaultPolicyGitLocalPath     = "data/policy-repo"
	DefaultPolicyGitPollInterval  = 60 * time.Second
	DefaultPolicyGitTimeout       = 30 * time.Second

	// Evidence defaults
	DefaultEvidenceEnabled              = true
	DefaultEvidenceBackend              = "sqlite"
	DefaultEvidenceSQLitePath           = "data/evidence.db"
	DefaultEvidenceSQLiteMaxOpenConns   = 10
	DefaultEvidenceSQLiteMaxIdleConns   = 5
	DefaultEvidenceSQLiteBusyTimeout    = 5 * time.Second
	DefaultEvidenceRecorderAsyncBuffer  = 1000
	DefaultEvidenceRecorderWriteTimeout = 5 * time.Second
	DefaultEvidenceRetentionDays        = 90
	DefaultEvidenceRetentionSchedule    = "0 3 * * *"

	// Telemetry defaults
	DefaultLoggingLevel        = "info"
	DefaultLoggingFormat       = "json"
	DefaultLoggingRedactPII    = true
	DefaultMetricsEnabled      = true
	DefaultMetricsPath         = "/metrics"
	DefaultMetricsNamespace    = "policyguard"
	DefaultTracingSampleRatio  = 1.0
	DefaultTracingServiceName  = "policyguard"
	DefaultTracingTimeout      = 10 * time.Second
	DefaultHealthLivenessPath  = "/health"
	DefaultHealthReadinessPath = "/ready"
	DefaultHealthCheckTimeout  = 5 * time.Second
)

// Default returns a configuration with every default applied, including the
// boolean defaults that ApplyDefaults cannot distinguish from "unset".
// LoadConfig decodes YAML on top of it.
func Default() *Config {
	cfg := &Config{}
	cfg.Evidence.Enabled = DefaultEvidenceEnabled
	cfg.Telemetry.Logging.RedactPII = DefaultLoggingRedactPII
	cfg.Telemetry.Metrics.Enabled = DefaultMetricsEnabled
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults sets defaults for any fields that have zero values.
// It is idempotent and safe to call multiple times.
func ApplyDefaults(cfg *Config) {
	// Proxy defaults
	if cfg.Proxy.ListenAddress == "" {
		cfg.Proxy.ListenAddress = DefaultListenAddress
	}
	if cfg.Proxy.ReadTimeout == 0 {
		cfg.Proxy.ReadTimeout = DefaultReadTimeout
	}
	if cfg.Proxy.WriteTimeout == 0 {
		cfg.Proxy.WriteTimeout = DefaultWriteTimeout
	}
	if cfg.Proxy.IdleTimeout == 0 {
		cfg.Proxy.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.Proxy.ShutdownTimeout == 0 {
		cfg.Proxy.ShutdownTimeout = DefaultShutdownTimeout
	}
	if cfg.Proxy.MaxHeaderBytes == 0 {
		cfg.Proxy.MaxHeaderBytes = DefaultMaxHeaderBytes
	}
	if cfg.Proxy.MaxBodyBytes == 0 {
		cfg.Proxy.MaxBodyBytes = DefaultMaxBodyBytes
	}

	// Upstream defaults
	if cfg.Upstream.OpenAI.BaseURL == "" {
		cfg.Upstream.OpenAI.BaseURL = DefaultOpenAIBaseURL
	}
	if cfg.Upstream.OpenAI.Timeout == 0 {
		cfg.Upstream.OpenAI.Timeout = DefaultProviderTimeout
	}
	if cfg.Upstream.Gemini.BaseURL == "" {
		cfg.Upstream.Gemini.BaseURL = DefaultGeminiBaseURL
	}
	if cfg.Upstream.Gemini.Timeout == 0 {
		cfg.Upstream.Gemini.Timeout = DefaultProviderTimeout
	}

	// Policy defaults
	if cfg.Policy.Backend == "" {
		cfg.Policy.Backend = DefaultPolicyBackend
	}
	if cfg.Policy.FilePath == "" {
		cfg.Policy.FilePath = DefaultPolicyFilePath
	}
	if cfg.Policy.SQLitePath == "" {
		cfg.Policy.SQLitePath = DefaultPolicySQLitePath
	}
	if cfg.Policy.DebounceInterval == 0 {
		cfg.Policy.DebounceInterval = DefaultPolicyDebounceInterval
	}
	if cfg.Policy.MaxEvidence == 0 {
		cfg.Policy.MaxEvidence = DefaultPolicyMaxEvidence
	}
	if cfg.Policy.Git.Branch == "" {
		cfg.Policy.Git.Branch = DefaultPolicyGitBranch
	}
	if cfg.Policy.Git.Path == "" {
		cfg.Policy.Git.Path = DefaultPolicyGitPath
	}
	if cfg.Policy.Git.LocalPath == "" {
		cfg.Policy.Git.LocalPath = DefaultPolicyGitLocalPath
	}
	if cfg.Policy.Git.PollInterval == 0 {
		cfg.Policy.Git.PollInterval = DefaultPolicyGitPollInterval
	}
	if cfg.Policy.Git.Timeout == 0 {
		cfg.Policy.Git.Timeout = DefaultPolicyGitTimeout
	}

	// Evidence defaults
	if cfg.Evidence.Backend == "" {
		cfg.Evidence.Backend = DefaultEvidenceBackend
	}
	if cfg.Evidence.SQLite.Path == "" {
		cfg.Evidence.SQLite.Path = DefaultEvidenceSQLitePath
	}
	if cfg.Evidence.SQLite.MaxOpenConns == 0 {
		cfg.Evidence.SQLite.MaxOpenConns = DefaultEvidenceSQLiteMaxOpenConns
	}
	if cfg.Evidence.SQLite.MaxIdleConns == 0 {
		cfg.Evidence.SQLite.MaxIdleConns = DefaultEvidenceSQLiteMaxIdleConns
	}
	if cfg.Evidence.SQLite.BusyTimeout == 0 {
		cfg.Evidence.SQLite.BusyTimeout = DefaultEvidenceSQLiteBusyTimeout
	}
	if cfg.Evidence.Recorder.AsyncBuffer == 0 {
		cfg.Evidence.Recorder.AsyncBuffer = DefaultEvidenceRecorderAsyncBuffer
	}
	if cfg.Evidence.Recorder.WriteTimeout == 0 {
		cfg.Evidence.Recorder.WriteTimeout = DefaultEvidenceRecorderWriteTimeout
	}
	if cfg.Evidence.Retention.Days == 0 {
		cfg.Evidence.Retention.Days = DefaultEvidenceRetentionDays
	}
	if cfg.Evidence.Retention.PruneSchedule == "" {
		cfg.Evidence.Retention.PruneSchedule = DefaultEvidenceRetentionSchedule
	}

	// Telemetry defaults
	if cfg.Telemetry.Logging.Level == "" {
		cfg.Telemetry.Logging.Level = DefaultLoggingLevel
	}
	if cfg.Telemetry.Logging.Format == "" {
		cfg.Telemetry.Logging.Format = DefaultLoggingFormat
	}
	if cfg.Telemetry.Metrics.Path == "" {
		cfg.Telemetry.Metrics.Path = DefaultMetricsPath
	}
	if cfg.Telemetry.Metrics.Namespace == "" {
		cfg.Telemetry.Metrics.Namespace = DefaultMetricsNamespace
	}
	if cfg.Telemetry.Tracing.SampleRatio == 0 {
		cfg.Telemetry.Tracing.SampleRatio = DefaultTracingSampleRatio
	}
	if cfg.Telemetry.Tracing.ServiceName == "" {
		cfg.Telemetry.Tracing.ServiceName = DefaultTracingServiceName
	}
	if cfg.Telemetry.Tracing.Timeout == 0 {
		cfg.Telemetry.Tracing.Timeout = DefaultTracingTimeout
	}
	if cfg.Telemetry.Health.LivenessPath == "" {
		cfg.Telemetry.Health.LivenessPath = DefaultHealthLivenessPath
	}
	if cfg.Telemetry.Health.ReadinessPath == "" {
		cfg.Telemetry.Health.ReadinessPath = DefaultHealthReadinessPath
	}
	if cfg.Telemetry.Health.CheckTimeout == 0 {
		cfg.Telemetry.Health.CheckTimeout = DefaultHealthCheckTimeout
	}
}
