package middleware

import (
	"net/http"

	"policyguard/gateway/pkg/proxy/types"
)

// BodyLimitMiddleware caps request bodies at maxBytes. Requests that
// declare a larger Content-Length are rejected with 413 before any handler
// runs; bodies without a length are cut off by http.MaxBytesReader, which
// handlers report as 413 when reading.
//
// A non-positive maxBytes disables the limit.
func BodyLimitMiddleware(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if maxBytes <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > maxBytes {
				writeError(w, types.NewInvalidRequestError(
					"request body too large", "body", types.CodeRequestTooLarge,
				))
				return
			}
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}
