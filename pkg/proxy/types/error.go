package types

import "net/http"

// ErrorResponse is the OpenAI-compatible error envelope. The gateway uses
// it for its own endpoints and for blocked OpenAI-shaped calls so existing
// SDKs surface the message.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains detailed error information.
type ErrorDetail struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Param   string `json:"param,omitempty"`
	Code    string `json:"code,omitempty"`
}

// Error types.
const (
	ErrorTypeInvalidRequest     = "invalid_request_error"
	ErrorTypeAuthentication     = "authentication_error"
	ErrorTypePolicyViolation    = "policy_violation"
	ErrorTypeNotFound           = "not_found"
	ErrorTypeServerError        = "server_error"
	ErrorTypeBadGateway         = "bad_gateway"
	ErrorTypeServiceUnavailable = "service_unavailable"
	ErrorTypeGatewayTimeout     = "gateway_timeout"
)

// Error codes.
const (
	CodeInvalidJSON       = "invalid_json"
	CodeInvalidValue      = "invalid_value"
	CodeMissingField      = "missing_field"
	CodeRequestTooLarge   = "request_too_large"
	CodeStreamUnsupported = "stream_unsupported"
	CodeMissingAPIKey     = "missing_api_key"
	CodeInvalidAPIKey     = "invalid_api_key"
	CodePromptBlocked     = "prompt_blocked"
	CodeResponseBlocked   = "response_blocked"
	CodePolicyNotFound    = "policy_not_found"
	CodeReadOnly          = "policy_store_read_only"
	CodeProviderError     = "provider_error"
	CodeProviderTimeout   = "provider_timeout"
	CodeInternalError     = "internal_error"
)

// NewErrorResponse creates an error response.
func NewErrorResponse(message, errorType, param, code string) *ErrorResponse {
	return &ErrorResponse{
		Error: ErrorDetail{
			Message: message,
			Type:    errorType,
			Param:   param,
			Code:    code,
		},
	}
}

// NewInvalidRequestError creates a 400 error.
func NewInvalidRequestError(message, param, code string) *ErrorResponse {
	return NewErrorResponse(message, ErrorTypeInvalidRequest, param, code)
}

// NewPolicyViolationError creates the 403 returned for blocked traffic.
func NewPolicyViolationError(reason, code string) *ErrorResponse {
	return NewErrorResponse(reason, ErrorTypePolicyViolation, "", code)
}

// NewServerError creates a 500 error.
func NewServerError(message string) *ErrorResponse {
	return NewErrorResponse(message, ErrorTypeServerError, "", CodeInternalError)
}

// NewBadGatewayError creates a 502 error.
func NewBadGatewayError(message string) *ErrorResponse {
	return NewErrorResponse(message, ErrorTypeBadGateway, "", CodeProviderError)
}

// NewGatewayTimeoutError creates a 504 error.
func NewGatewayTimeoutError(message string) *ErrorResponse {
	return NewErrorResponse(message, ErrorTypeGatewayTimeout, "", CodeProviderTimeout)
}

// HTTPStatusCode returns the status code matching the error type.
func (e *ErrorDetail) HTTPStatusCode() int {
	switch e.Type {
	case ErrorTypeInvalidRequest:
		switch e.Code {
		case CodeRequestTooLarge:
			return http.StatusRequestEntityTooLarge
		case CodeReadOnly:
			return http.StatusMethodNotAllowed
		}
		return http.StatusBadRequest
	case ErrorTypeAuthentication:
		return http.StatusUnauthorized
	case ErrorTypePolicyViolation:
		return http.StatusForbidden
	case ErrorTypeNotFound:
		return http.StatusNotFound
	case ErrorTypeBadGateway:
		return http.StatusBadGateway
	case ErrorTypeServiceUnavailable:
		return http.StatusServiceUnavailable
	case ErrorTypeGatewayTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// ErrorTypeForStatus returns the error type clients expect for status.
func ErrorTypeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest, http.StatusRequestEntityTooLarge, http.StatusMethodNotAllowed:
		return ErrorTypeInvalidRequest
	case http.StatusUnauthorized:
		return ErrorTypeAuthentication
	case http.StatusForbidden:
		return ErrorTypePolicyViolation
	case http.StatusNotFound:
		return ErrorTypeNotFound
	case http.StatusBadGateway:
		return ErrorTypeBadGateway
	case http.StatusServiceUnavailable:
		return ErrorTypeServiceUnavailable
	case http.StatusGatewayTimeout:
		return ErrorTypeGatewayTimeout
	default:
		return ErrorTypeServerError
	}
}
