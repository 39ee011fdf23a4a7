package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"policyguard/gateway/pkg/arbiter"
	"policyguard/gateway/pkg/arbiter/store"
	"policyguard/gateway/pkg/proxy"
	"policyguard/gateway/pkg/proxy/types"
)

// PolicyHandler serves the policy management API:
//
//	GET    /v1/policies
//	POST   /v1/policies
//	GET    /v1/policies/{id}
//	PUT    /v1/policies/{id}
//	DELETE /v1/policies/{id}
//	PATCH  /v1/policies/{id}/toggle
//
// Changes take effect on the next evaluation; the engine reads the store
// on every call.
type PolicyHandler struct {
	Store        store.Writer
	MaxBodyBytes int64
	logger       *slog.Logger
}

// NewPolicyHandler creates the management handler.
func NewPolicyHandler(s store.Writer, maxBodyBytes int64) *PolicyHandler {
	return &PolicyHandler{
		Store:        s,
		MaxBodyBytes: maxBodyBytes,
		logger:       slog.Default().With("component", "handlers.policies"),
	}
}

// List handles GET /v1/policies.
func (h *PolicyHandler) List(w http.ResponseWriter, r *http.Request) {
	policies, err := h.Store.List(r.Context())
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	if policies == nil {
		policies = []arbiter.Policy{}
	}
	_ = proxy.WriteJSONResponse(w, http.StatusOK, types.PolicyList{Policies: policies, Count: len(policies)})
}

// Get handles GET /v1/policies/{id}.
func (h *PolicyHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, err := h.Store.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	_ = proxy.WriteJSONResponse(w, http.StatusOK, p)
}

// Create handles POST /v1/policies. An existing policy with the same ID is
// replaced.
func (h *PolicyHandler) Create(w http.ResponseWriter, r *http.Request) {
	var p arbiter.Policy
	if err := proxy.DecodeJSON(r, h.MaxBodyBytes, &p); err != nil {
		_ = proxy.WriteErrorResponse(w, proxy.HandleError(err))
		return
	}
	h.put(w, r, p, http.StatusCreated)
}

// Replace handles PUT /v1/policies/{id}. The path ID wins over the body.
func (h *PolicyHandler) Replace(w http.ResponseWriter, r *http.Request) {
	var p arbiter.Policy
	if err := proxy.DecodeJSON(r, h.MaxBodyBytes, &p); err != nil {
		_ = proxy.WriteErrorResponse(w, proxy.HandleError(err))
		return
	}
	p.ID = r.PathValue("id")
	h.put(w, r, p, http.StatusOK)
}

func (h *PolicyHandler) put(w http.ResponseWriter, r *http.Request, p arbiter.Policy, status int) {
	if err := h.Store.Put(r.Context(), p); err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	stored, err := h.Store.Get(r.Context(), p.ID)
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	h.logger.InfoContext(r.Context(), "policy stored", "policy_id", stored.ID, "active", stored.IsActive)
	_ = proxy.WriteJSONResponse(w, status, stored)
}

// Delete handles DELETE /v1/policies/{id}.
func (h *PolicyHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.Store.Delete(r.Context(), id); err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	h.logger.InfoContext(r.Context(), "policy deleted", "policy_id", id)
	_ = proxy.WriteJSONResponse(w, http.StatusOK, types.DeleteResponse{Status: "deleted", ID: id})
}

// Toggle handles PATCH /v1/policies/{id}/toggle.
func (h *PolicyHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	p, err := store.Toggle(r.Context(), h.Store, r.PathValue("id"))
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	h.logger.InfoContext(r.Context(), "policy toggled", "policy_id", p.ID, "active", p.IsActive)
	_ = proxy.WriteJSONResponse(w, http.StatusOK, p)
}

func (h *PolicyHandler) writeStoreError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *store.ValidationError

	switch {
	case errors.As(err, &verr):
		param := ""
		for field := range verr.Fields {
			if param == "" || field < param {
				param = field
			}
		}
		_ = proxy.WriteErrorResponse(w, types.NewInvalidRequestError(verr.Error(), param, types.CodeInvalidValue))
	case errors.Is(err, store.ErrNotFound):
		_ = proxy.WriteErrorResponse(w, types.NewErrorResponse(err.Error(), types.ErrorTypeNotFound, "id", types.CodePolicyNotFound))
	case errors.Is(err, store.ErrReadOnly):
		w.Header().Set("Allow", "GET")
		_ = proxy.WriteErrorResponse(w, types.NewInvalidRequestError(err.Error(), "", types.CodeReadOnly))
	case errors.Is(err, store.ErrUnhealthy):
		_ = proxy.WriteErrorResponse(w, types.NewErrorResponse(err.Error(), types.ErrorTypeServiceUnavailable, "", types.CodeInternalError))
	default:
		h.logger.ErrorContext(r.Context(), "policy store error", "error", err)
		_ = proxy.WriteErrorResponse(w, types.NewServerError("policy store error"))
	}
}
