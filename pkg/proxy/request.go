package proxy

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"policyguard/gateway/pkg/proxy/types"
)

// DefaultMaxBodyBytes is used when no body limit is configured (4MB).
const DefaultMaxBodyBytes = 4 << 20

// ReadBody reads the whole request body, enforcing maxBytes. An oversized
// body is a RequestError with CodeRequestTooLarge.
//
// Example usage:
//
//	body, err := ReadBody(r, cfg.Proxy.MaxBodyBytes)
//	if err != nil {
//	    WriteErrorResponse(w, HandleError(err))
//	    return
//	}
func ReadBody(r *http.Request, maxBytes int64) ([]byte, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBodyBytes
	}
	if r.Body == nil {
		return nil, &RequestError{Message: "request body is required", Code: types.CodeMissingField, Param: "body"}
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBytes+1))
	if err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			return nil, tooLarge(mbe.Limit)
		}
		return nil, fmt.Errorf("failed to read request body: %w", err)
	}
	if int64(len(body)) > maxBytes {
		return nil, tooLarge(maxBytes)
	}
	return body, nil
}

func tooLarge(limit int64) *RequestError {
	return &RequestError{
		Message: fmt.Sprintf("request body exceeds maximum size of %d bytes", limit),
		Code:    types.CodeRequestTooLarge,
		Param:   "body",
	}
}

// DecodeJSON reads the body and unmarshals it into v.
func DecodeJSON(r *http.Request, maxBytes int64, v any) error {
	body, err := ReadBody(r, maxBytes)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return &RequestError{
			Message: fmt.Sprintf("invalid JSON: %v", err),
			Code:    types.CodeInvalidJSON,
			Param:   "body",
		}
	}
	return nil
}

// RequestError represents a request parsing or validation error.
type RequestError struct {
	Message string
	Code    string
	Param   string
}

// Error implements the error interface.
func (e *RequestError) Error() string {
	return e.Message
}

// ToErrorResponse converts a RequestError to an OpenAI-compatible error response.
func (e *RequestError) ToErrorResponse() *types.ErrorResponse {
	return types.NewInvalidRequestError(e.Message, e.Param, e.Code)
}
