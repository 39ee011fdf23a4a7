package config

import "time"

// ConfigBuilder provides a fluent API for building Config instances in tests.
type ConfigBuilder struct {
	cfg *Config
}

// NewTestConfig starts from a valid default configuration backed by memory
// stores only.
func NewTestConfig() *ConfigBuilder {
	cfg := Default()
	cfg.Policy.Backend = "memory"
	cfg.Evidence.Backend = "memory"
	return &ConfigBuilder{cfg: cfg}
}

func (b *ConfigBuilder) Build() *Config {
	return b.cfg
}

func (b *ConfigBuilder) WithListenAddress(addr string) *ConfigBuilder {
	b.cfg.Proxy.ListenAddress = addr
	return b
}

func (b *ConfigBuilder) WithReadTimeout(d time.Duration) *ConfigBuilder {
	b.cfg.Proxy.ReadTimeout = d
	return b
}

func (b *ConfigBuilder) WithPolicyBackend(backend string) *ConfigBuilder {
	b.cfg.Policy.Backend = backend
	return b
}

func (b *ConfigBuilder) WithEvidenceBackend(backend string) *ConfigBuilder {
	b.cfg.Evidence.Backend = backend
	return b
}

func (b *ConfigBuilder) WithLogLevel(level string) *ConfigBuilder {
	b.cfg.Telemetry.Logging.Level = level
	return b
}

func (b *ConfigBuilder) WithTracing(endpoint string) *ConfigBuilder {
	b.cfg.Telemetry.Tracing.Enabled = true
	b.cfg.Telemetry.Tracing.Endpoint = endpoint
	return b
}
