package providerfactory

import (
	"errors"
	"testing"
	"time"

	"policyguard/gateway/pkg/config"
	"policyguard/gateway/pkg/providers/gemini"
	"policyguard/gateway/pkg/providers/openai"
)

func testConfig() config.ProviderConfig {
	return config.ProviderConfig{
		APIKey:  "test-key",
		Timeout: 30 * time.Second,
	}
}

func TestNewProvider(t *testing.T) {
	tests := []struct {
		name    string
		wantErr bool
	}{
		{openai.Name, false},
		{gemini.Name, false},
		{"anthropic", true},
		{"", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider, err := NewProvider(tt.name, testConfig(), nil)
			if tt.wantErr {
				if err == nil {
					t.Fatal("NewProvider() expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("NewProvider() error = %v", err)
			}
			if provider.Name() != tt.name {
				t.Errorf("Name() = %q, want %q", provider.Name(), tt.name)
			}
		})
	}
}

func TestNewFromConfig(t *testing.T) {
	m, err := NewFromConfig(config.UpstreamConfig{OpenAI: testConfig(), Gemini: testConfig()}, nil)
	if err != nil {
		t.Fatalf("NewFromConfig() error = %v", err)
	}
	defer m.Close()

	if m.ProviderCount() != 2 {
		t.Errorf("ProviderCount() = %d, want 2", m.ProviderCount())
	}
	names := m.GetProviderNames()
	if len(names) != 2 || names[0] != gemini.Name || names[1] != openai.Name {
		t.Errorf("GetProviderNames() = %v", names)
	}

	p, err := m.GetProvider(openai.Name)
	if err != nil {
		t.Fatalf("GetProvider() error = %v", err)
	}
	if _, ok := p.(*openai.Provider); !ok {
		t.Errorf("GetProvider(openai) = %T", p)
	}
}

func TestManager_UnknownProvider(t *testing.T) {
	m := NewManager(nil)
	defer m.Close()

	if _, err := m.GetProvider("openai"); !errors.Is(err, ErrUnknownProvider) {
		t.Errorf("GetProvider() error = %v, want ErrUnknownProvider", err)
	}
	if err := m.AddProvider("bogus", testConfig()); err == nil {
		t.Error("AddProvider(bogus) expected error")
	}
}

func TestManager_ReplaceAndClose(t *testing.T) {
	m := NewManager(nil)

	if err := m.AddProvider(openai.Name, testConfig()); err != nil {
		t.Fatal(err)
	}
	if err := m.AddProvider(openai.Name, testConfig()); err != nil {
		t.Fatal(err)
	}
	if m.ProviderCount() != 1 {
		t.Errorf("ProviderCount() = %d after replace, want 1", m.ProviderCount())
	}

	if err := m.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if m.ProviderCount() != 0 {
		t.Errorf("ProviderCount() = %d after Close, want 0", m.ProviderCount())
	}
}
