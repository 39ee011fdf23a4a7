package handlers

import (
	"log/slog"
	"net/http"
	"strings"

	"policyguard/gateway/pkg/providers"
	"policyguard/gateway/pkg/providers/gemini"
	"policyguard/gateway/pkg/providers/openai"
	"policyguard/gateway/pkg/proxy"
	"policyguard/gateway/pkg/proxy/types"
)

// ChatHandler serves POST /v1/chat/completions through the guard.
type ChatHandler struct {
	Guard           *proxy.Guard
	ProviderManager ProviderManager
}

// NewChatHandler creates the OpenAI-compatible handler.
func NewChatHandler(g *proxy.Guard, pm ProviderManager) *ChatHandler {
	return &ChatHandler{Guard: g, ProviderManager: pm}
}

// ServeHTTP implements http.Handler.
func (h *ChatHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	p, ok := lookup(w, r, h.ProviderManager, openai.Name)
	if !ok {
		return
	}
	h.Guard.Serve(w, r, p, "")
}

// GenerateHandler serves POST /v1beta/models/{action} for Gemini, where
// action is "{model}:{method}". Only generateContent is proxied;
// streamGenerateContent is refused because streamed output cannot be
// evaluated before it reaches the caller.
type GenerateHandler struct {
	Guard           *proxy.Guard
	ProviderManager ProviderManager
}

// NewGenerateHandler creates the Gemini handler.
func NewGenerateHandler(g *proxy.Guard, pm ProviderManager) *GenerateHandler {
	return &GenerateHandler{Guard: g, ProviderManager: pm}
}

// ServeHTTP implements http.Handler.
func (h *GenerateHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	p, ok := lookup(w, r, h.ProviderManager, gemini.Name)
	if !ok {
		return
	}

	model, method, found := strings.Cut(r.PathValue("action"), ":")
	switch {
	case !found || model == "":
		_ = proxy.WriteProviderError(w, p, http.StatusNotFound, types.CodeInvalidValue, "expected /v1beta/models/{model}:generateContent")
	case method == "streamGenerateContent":
		_ = proxy.WriteProviderError(w, p, http.StatusBadRequest, types.CodeStreamUnsupported, providers.ErrStreaming.Error())
	case method != "generateContent":
		_ = proxy.WriteProviderError(w, p, http.StatusNotFound, types.CodeInvalidValue, "unsupported method "+method)
	default:
		h.Guard.Serve(w, r, p, model)
	}
}

func lookup(w http.ResponseWriter, r *http.Request, pm ProviderManager, name string) (providers.Provider, bool) {
	p, err := pm.GetProvider(name)
	if err != nil {
		slog.ErrorContext(r.Context(), "provider not configured", "provider", name, "error", err)
		_ = proxy.WriteErrorResponse(w, types.NewErrorResponse(
			"provider "+name+" is not configured",
			types.ErrorTypeServiceUnavailable, "", types.CodeProviderError,
		))
		return nil, false
	}
	return p, true
}
