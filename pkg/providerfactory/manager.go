package providerfactory

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"sync"

	"policyguard/gateway/pkg/config"
	"policyguard/gateway/pkg/providers"
	"policyguard/gateway/pkg/providers/gemini"
	"policyguard/gateway/pkg/providers/openai"
)

// ErrUnknownProvider is returned by GetProvider for unregistered names.
var ErrUnknownProvider = errors.New("unknown provider")

// Manager holds the configured upstream providers by name.
//
// Manager is safe for concurrent use.
type Manager struct {
	providers map[string]providers.Provider
	transport http.RoundTripper
	mu        sync.RWMutex
}

// NewManager creates an empty manager. A nil transport uses each
// adapter's pooled default.
func NewManager(transport http.RoundTripper) *Manager {
	return &Manager{
		providers: make(map[string]providers.Provider),
		transport: transport,
	}
}

// NewFromConfig creates a manager holding both upstream APIs.
func NewFromConfig(cfg config.UpstreamConfig, transport http.RoundTripper) (*Manager, error) {
	m := NewManager(transport)
	if err := m.LoadFromConfig(cfg); err != nil {
		_ = m.Close()
		return nil, err
	}
	return m, nil
}

// AddProvider creates and registers the named provider, replacing and
// closing any previous one.
func (m *Manager) AddProvider(name string, cfg config.ProviderConfig) error {
	provider, err := NewProvider(name, cfg, m.transport)
	if err != nil {
		return fmt.Errorf("failed to add provider %q: %w", name, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.providers[name]; ok {
		slog.Warn("replacing existing provider", "name", name)
		closeProvider(existing)
	}
	m.providers[name] = provider

	slog.Info("provider registered",
		"name", name,
		"total_providers", len(m.providers),
	)
	return nil
}

// GetProvider returns the named provider.
func (m *Manager) GetProvider(name string) (providers.Provider, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	provider, ok := m.providers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, name)
	}
	return provider, nil
}

// GetProviderNames returns the registered names, sorted.
func (m *Manager) GetProviderNames() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.providers))
	for name := range m.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ProviderCount returns the number of registered providers.
func (m *Manager) ProviderCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.providers)
}

// LoadFromConfig registers the OpenAI and Gemini providers.
func (m *Manager) LoadFromConfig(cfg config.UpstreamConfig) error {
	configs := map[string]config.ProviderConfig{
		openai.Name: cfg.OpenAI,
		gemini.Name: cfg.Gemini,
	}

	var errs []error
	for name, pc := range configs {
		if err := m.AddProvider(name, pc); err != nil {
			slog.Error("failed to load provider", "name", name, "error", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close releases every provider's idle connections.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, provider := range m.providers {
		closeProvider(provider)
	}
	m.providers = make(map[string]providers.Provider)
	return nil
}

func closeProvider(p providers.Provider) {
	if c, ok := p.(io.Closer); ok {
		_ = c.Close()
	}
}
