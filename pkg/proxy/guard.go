package proxy

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/trace"

	"policyguard/gateway/pkg/arbiter"
	"policyguard/gateway/pkg/evidence/recorder"
	"policyguard/gateway/pkg/providers"
	"policyguard/gateway/pkg/proxy/types"
	"policyguard/gateway/pkg/telemetry/tracing"
)

// Evaluator runs the policy engine on each side of an exchange.
type Evaluator interface {
	EvaluateIngress(ctx context.Context, text string, scope arbiter.Scope) *arbiter.EvaluationResult
	EvaluateEgress(ctx context.Context, text string, scope arbiter.Scope) *arbiter.EvaluationResult
}

// EvidenceRecorder persists one evidence entry per evaluation.
type EvidenceRecorder interface {
	Record(ctx context.Context, e recorder.Entry) error
}

// UpstreamRecorder observes upstream calls.
type UpstreamRecorder interface {
	RecordUpstream(provider, model string, latency time.Duration, err error)
}

// GuardConfig configures a Guard. Every field is optional.
type GuardConfig struct {
	Evidence     EvidenceRecorder
	Upstream     UpstreamRecorder
	Tracer       *tracing.Tracer
	MaxBodyBytes int64
	Logger       *slog.Logger
}

// Guard evaluates both sides of a proxied LLM call. A prompt is forwarded
// only after the engine allowed or redacted it, and nothing from upstream
// reaches the caller without the same check on the way back. Completions
// are checked on their extracted text; upstream error bodies are checked
// as raw JSON. Any failure in between answers with an error instead of
// passing traffic through.
type Guard struct {
	engine       Evaluator
	evidence     EvidenceRecorder
	upstream     UpstreamRecorder
	tracer       *tracing.Tracer
	maxBodyBytes int64
	logger       *slog.Logger
}

// NewGuard creates a Guard around engine.
func NewGuard(engine Evaluator, cfg GuardConfig) *Guard {
	g := &Guard{
		engine:       engine,
		evidence:     cfg.Evidence,
		upstream:     cfg.Upstream,
		tracer:       cfg.Tracer,
		maxBodyBytes: cfg.MaxBodyBytes,
		logger:       cfg.Logger,
	}
	if g.tracer == nil {
		g.tracer = tracing.NewNoop()
	}
	if g.logger == nil {
		g.logger = slog.Default()
	}
	g.logger = g.logger.With("component", "proxy.guard")
	return g
}

// Serve proxies one call to p. model overrides the model found in the body
// for APIs that carry it in the URL.
func (g *Guard) Serve(w http.ResponseWriter, r *http.Request, p providers.Provider, model string) {
	ex := NewExchange(r, p.Name())
	fail := func(err error) {
		status, code, message := Classify(err)
		g.logger.WarnContext(r.Context(), "proxy request rejected",
			append(ex.LogAttrs(), "status", status, "code", code, "error", err)...)
		_ = WriteProviderError(w, p, status, code, message)
	}

	ex.Credential = p.Credential(r)
	if ex.Credential == "" {
		fail(providers.ErrMissingCredential)
		return
	}

	body, err := ReadBody(r, g.maxBodyBytes)
	if err != nil {
		fail(err)
		return
	}
	req, err := p.ParseRequest(body)
	if err != nil {
		fail(err)
		return
	}
	ex.Model = req.Model
	if model != "" {
		ex.Model = model
	}

	ctx, span := g.tracer.Start(r.Context(), "policyguard.proxy", trace.WithSpanKind(trace.SpanKindInternal))
	defer span.End()
	tracing.SetScopeAttributes(span, ex.RequestID, ex.Scope)
	tracing.SetProviderAttributes(span, ex.Provider, ex.Model)

	// Ingress.
	in := g.evaluate(ctx, ex, arbiter.DirectionIngress, req.Prompt)
	if in.IsBlocked {
		g.block(ctx, w, p, ex, in, types.CodePromptBlocked)
		return
	}
	if in.TransformedText != req.Prompt {
		if body, err = p.RewritePrompt(body, in.TransformedText); err != nil {
			tracing.SetStatus(span, err)
			fail(err)
			return
		}
	}

	// Upstream.
	start := time.Now()
	resp, err := p.Forward(ctx, &providers.Call{Model: ex.Model, Body: body, Credential: ex.Credential})
	if g.upstream != nil {
		g.upstream.RecordUpstream(ex.Provider, ex.Model, time.Since(start), err)
	}
	if err != nil {
		tracing.SetStatus(span, err)
		fail(err)
		return
	}
	if !resp.OK() {
		// Error bodies can echo the prompt, so the raw body gets the egress
		// check and any redaction is applied to it directly.
		out := g.evaluate(ctx, ex, arbiter.DirectionEgress, string(resp.Body))
		if out.IsBlocked {
			g.block(ctx, w, p, ex, out, types.CodeResponseBlocked)
			return
		}
		g.logger.InfoContext(ctx, "relaying upstream error",
			append(ex.LogAttrs(), "upstream_status", resp.StatusCode)...)
		SetVerdictHeaders(w.Header(), in, out)
		_ = WriteUpstream(w, resp, []byte(out.TransformedText))
		return
	}

	// Egress.
	text, err := p.Completion(resp.Body)
	if err != nil {
		tracing.SetStatus(span, err)
		g.logger.ErrorContext(ctx, "unreadable upstream completion",
			append(ex.LogAttrs(), "error", err)...)
		_ = WriteProviderError(w, p, http.StatusBadGateway, types.CodeProviderError, "upstream response could not be evaluated")
		return
	}
	out := g.evaluate(ctx, ex, arbiter.DirectionEgress, text)
	if out.IsBlocked {
		g.block(ctx, w, p, ex, out, types.CodeResponseBlocked)
		return
	}

	outBody := resp.Body
	if out.TransformedText != text {
		if outBody, err = p.RewriteCompletion(resp.Body, out.TransformedText); err != nil {
			tracing.SetStatus(span, err)
			g.logger.ErrorContext(ctx, "failed to rewrite completion",
				append(ex.LogAttrs(), "error", err)...)
			_ = WriteProviderError(w, p, http.StatusBadGateway, types.CodeProviderError, "upstream response could not be redacted")
			return
		}
	}

	SetVerdictHeaders(w.Header(), in, out)
	if err := WriteUpstream(w, resp, outBody); err != nil {
		g.logger.DebugContext(ctx, "client went away", "error", err)
	}
}

func (g *Guard) evaluate(ctx context.Context, ex *Exchange, dir arbiter.Direction, text string) *arbiter.EvaluationResult {
	ctx, span := g.tracer.Start(ctx, "policyguard.evaluate."+string(dir))
	defer span.End()

	start := time.Now()
	var result *arbiter.EvaluationResult
	if dir == arbiter.DirectionEgress {
		result = g.engine.EvaluateEgress(ctx, text, ex.Scope)
	} else {
		result = g.engine.EvaluateIngress(ctx, text, ex.Scope)
	}
	latency := time.Since(start)
	tracing.SetEvaluationAttributes(span, dir, result)

	if g.evidence != nil {
		if err := g.evidence.Record(ctx, ex.Entry(dir, text, result, latency)); err != nil {
			g.logger.WarnContext(ctx, "failed to record evidence", "direction", dir, "error", err)
		}
	}
	return result
}

func (g *Guard) block(ctx context.Context, w http.ResponseWriter, p providers.Provider, ex *Exchange, result *arbiter.EvaluationResult, code string) {
	g.logger.InfoContext(ctx, "traffic blocked",
		append(ex.LogAttrs(),
			"code", code,
			"policy", result.Metadata.Policy,
			"health", result.Metadata.Health,
		)...)
	SetVerdictHeaders(w.Header(), result)
	_ = WriteProviderError(w, p, http.StatusForbidden, code, result.Metadata.Reason)
}
