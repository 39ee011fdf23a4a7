package providers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"policyguard/gateway/pkg/config"
	"policyguard/gateway/pkg/telemetry/tracing"
)

// MaxResponseBytes caps how much of an upstream body is read.
const MaxResponseBytes = 32 << 20

// HTTPProvider is the HTTP plumbing shared by the provider adapters.
type HTTPProvider struct {
	name    string
	baseURL string
	apiKey  string
	timeout time.Duration
	client  *http.Client
	logger  *slog.Logger
}

// NewHTTPProvider creates the base provider. A nil transport gets a pooled
// default one.
func NewHTTPProvider(name string, cfg config.ProviderConfig, transport http.RoundTripper) *HTTPProvider {
	if transport == nil {
		transport = &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 20,
			IdleConnTimeout:     90 * time.Second,
			ForceAttemptHTTP2:   true,
		}
	}
	return &HTTPProvider{
		name:    name,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		timeout: cfg.Timeout,
		client: &http.Client{
			Transport: transport,
			Timeout:   cfg.Timeout,
		},
		logger: slog.Default().With("component", "provider", "provider", name),
	}
}

// Name returns the provider label.
func (p *HTTPProvider) Name() string {
	return p.name
}

// BaseURL returns the API root without a trailing slash.
func (p *HTTPProvider) BaseURL() string {
	return p.baseURL
}

// Close releases idle upstream connections.
func (p *HTTPProvider) Close() error {
	p.client.CloseIdleConnections()
	return nil
}

// ResolveCredential returns caller, or the configured key when caller is
// empty.
func (p *HTTPProvider) ResolveCredential(caller string) string {
	if caller != "" {
		return caller
	}
	return p.apiKey
}

// DoRequest POSTs body to url. Any HTTP answer is returned as a Response;
// only transport failures are errors.
func (p *HTTPProvider) DoRequest(ctx context.Context, url string, body []byte, headers map[string]string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, &ProviderError{Provider: p.name, Message: "failed to create request", Cause: err}
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	req.Header.Set("Content-Type", "application/json")
	tracing.Inject(ctx, req.Header)

	start := time.Now()
	resp, err := p.client.Do(req)
	if err != nil {
		if isTimeout(ctx, err) {
			return nil, &TimeoutError{Provider: p.name, Timeout: p.timeout, Cause: err}
		}
		return nil, &ProviderError{Provider: p.name, Message: "request failed", Cause: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseBytes+1))
	if err != nil {
		if isTimeout(ctx, err) {
			return nil, &TimeoutError{Provider: p.name, Timeout: p.timeout, Cause: err}
		}
		return nil, &ProviderError{Provider: p.name, Message: "failed to read response", Cause: err}
	}
	if len(data) > MaxResponseBytes {
		return nil, &ProviderError{Provider: p.name, Message: fmt.Sprintf("response exceeds %d bytes", MaxResponseBytes)}
	}

	p.logger.DebugContext(ctx, "upstream call complete",
		"status", resp.StatusCode,
		"latency_ms", time.Since(start).Milliseconds(),
	)
	return &Response{StatusCode: resp.StatusCode, Header: resp.Header.Clone(), Body: data}, nil
}

func isTimeout(ctx context.Context, err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
