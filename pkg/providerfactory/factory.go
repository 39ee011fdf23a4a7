package providerfactory

import (
	"fmt"
	"log/slog"
	"net/http"

	"policyguard/gateway/pkg/config"
	"policyguard/gateway/pkg/providers"
	"policyguard/gateway/pkg/providers/gemini"
	"policyguard/gateway/pkg/providers/openai"
)

// NewProvider creates the adapter for the named API.
//
// Supported names:
//   - "openai": OpenAI chat completions
//   - "gemini": Gemini generateContent
//
// A nil transport uses each adapter's pooled default.
func NewProvider(name string, cfg config.ProviderConfig, transport http.RoundTripper) (providers.Provider, error) {
	var provider providers.Provider

	switch name {
	case openai.Name:
		provider = openai.New(cfg, transport)
	case gemini.Name:
		provider = gemini.New(cfg, transport)
	default:
		return nil, fmt.Errorf("unsupported provider %q (supported: %s, %s)", name, openai.Name, gemini.Name)
	}

	slog.Debug("provider created",
		"name", name,
		"base_url", cfg.BaseURL,
		"timeout", cfg.Timeout,
	)
	return provider, nil
}
