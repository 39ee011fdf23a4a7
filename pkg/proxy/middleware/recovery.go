package middleware

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"runtime/debug"

	"policyguard/gateway/pkg/proxy/types"
)

// RecoveryMiddleware turns a handler panic into a 500 in the OpenAI error
// format. The stack is logged; nothing internal reaches the client. No
// request is forwarded upstream after a panic, so traffic fails closed.
//
// Example usage:
//
//	handler = RecoveryMiddleware(handler)
func RecoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			err := recover()
			if err == nil {
				return
			}
			if err == http.ErrAbortHandler {
				panic(err)
			}

			slog.ErrorContext(r.Context(), "panic in handler",
				"error", err,
				"method", r.Method,
				"path", r.URL.Path,
				"stack", string(debug.Stack()),
			)

			writeError(w, types.NewServerError("An internal error occurred. Please try again later."))
		}()

		next.ServeHTTP(w, r)
	})
}

func writeError(w http.ResponseWriter, errResp *types.ErrorResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(errResp.Error.HTTPStatusCode())
	_ = json.NewEncoder(w).Encode(errResp)
}
