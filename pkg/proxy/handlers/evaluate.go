package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"policyguard/gateway/pkg/arbiter"
	"policyguard/gateway/pkg/proxy"
	"policyguard/gateway/pkg/proxy/middleware"
	"policyguard/gateway/pkg/proxy/types"
	"policyguard/gateway/pkg/telemetry/logging"
)

// EvaluateHandler serves POST /v1/evaluate: it runs the engine on
// caller-supplied text without calling any upstream. A blocked verdict is
// still a 200; the verdict is the answer.
type EvaluateHandler struct {
	Engine       DirectEvaluator
	Evidence     EvidenceRecorder
	MaxBodyBytes int64
}

// NewEvaluateHandler creates the evaluation handler. evidence may be nil.
func NewEvaluateHandler(engine DirectEvaluator, evidence EvidenceRecorder, maxBodyBytes int64) *EvaluateHandler {
	return &EvaluateHandler{Engine: engine, Evidence: evidence, MaxBodyBytes: maxBodyBytes}
}

// ServeHTTP implements http.Handler.
func (h *EvaluateHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req types.EvaluateRequest
	if err := proxy.DecodeJSON(r, h.MaxBodyBytes, &req); err != nil {
		_ = proxy.WriteErrorResponse(w, proxy.HandleError(err))
		return
	}

	scope := middleware.ScopeFromRequest(r)
	if req.AgentID != "" {
		scope.AgentID = req.AgentID
	}
	if req.Route != "" {
		scope.Route = req.Route
	}

	ctx := r.Context()
	start := time.Now()
	result := h.Engine.Evaluate(ctx, req.Text, scope)
	latency := time.Since(start)

	requestID := logging.GetRequestID(ctx)
	if h.Evidence != nil {
		ex := &proxy.Exchange{RequestID: requestID, Scope: scope}
		if err := h.Evidence.Record(ctx, ex.Entry(arbiter.DirectionDirect, req.Text, result, latency)); err != nil {
			slog.WarnContext(ctx, "failed to record evidence", "error", err)
		}
	}

	proxy.SetVerdictHeaders(w.Header(), result)
	_ = proxy.WriteJSONResponse(w, http.StatusOK, types.EvaluateResponse{
		RequestID:        requestID,
		Verdict:          result.Verdict(),
		EvaluationResult: result,
	})
}
