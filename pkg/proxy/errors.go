package proxy

import (
	"context"
	"errors"
	"net/http"

	"policyguard/gateway/pkg/providers"
	"policyguard/gateway/pkg/proxy/types"
)

// Classify maps an error to the status, code and client-facing message the
// gateway answers with. Upstream and internal details are not exposed.
func Classify(err error) (status int, code, message string) {
	var reqErr *RequestError
	var timeoutErr *providers.TimeoutError
	var providerErr *providers.ProviderError

	switch {
	case errors.As(err, &reqErr):
		return reqErr.ToErrorResponse().Error.HTTPStatusCode(), reqErr.Code, reqErr.Message
	case errors.Is(err, providers.ErrStreaming):
		return http.StatusBadRequest, types.CodeStreamUnsupported, "streaming requests are not supported; set stream to false"
	case errors.Is(err, providers.ErrInvalidBody):
		return http.StatusBadRequest, types.CodeInvalidValue, err.Error()
	case errors.Is(err, providers.ErrMissingCredential):
		return http.StatusUnauthorized, types.CodeMissingAPIKey, "missing API key"
	case errors.As(err, &timeoutErr), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, types.CodeProviderTimeout, "upstream provider timed out"
	case errors.As(err, &providerErr):
		return http.StatusBadGateway, types.CodeProviderError, "upstream provider request failed"
	default:
		return http.StatusInternalServerError, types.CodeInternalError, "An internal error occurred. Please try again later."
	}
}

// HandleError converts an error to an OpenAI-compatible error response.
//
// Example usage:
//
//	if err != nil {
//	    WriteErrorResponse(w, HandleError(err))
//	    return
//	}
func HandleError(err error) *types.ErrorResponse {
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		return reqErr.ToErrorResponse()
	}
	status, code, message := Classify(err)
	return types.NewErrorResponse(message, types.ErrorTypeForStatus(status), "", code)
}
