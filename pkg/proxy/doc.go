// Package proxy puts the policy engine in front of upstream LLM APIs.
//
// A Guard evaluates both sides of every proxied call with the same engine:
//
//  1. Resolve the credential (caller's, else configured). None: 401.
//  2. Read the body under the size limit. Too large: 413.
//  3. Parse the prompt. Streaming or malformed: 400.
//  4. Evaluate the prompt (ingress). BLOCK: 403, nothing is forwarded.
//     Redactions are written back into the body before forwarding.
//  5. Forward. Timeout: 504. Transport failure: 502. A non-2xx upstream
//     answer is egress-checked as raw JSON, then relayed with its status
//     (403 if blocked).
//  6. Parse the completion. Unparseable: 502, nothing is relayed.
//  7. Evaluate the completion (egress). BLOCK: 403. Redactions are written
//     back into the response body.
//  8. Relay with X-PolicyGuard-Verdict, X-PolicyGuard-Policy and
//     X-PolicyGuard-Redactions headers.
//
// Every evaluation produces one evidence entry and a span; prompt and
// completion text never reach logs or spans.
//
// # Basic Usage
//
//	guard := proxy.NewGuard(engine, proxy.GuardConfig{
//	    Evidence:     rec,
//	    Upstream:     collector,
//	    Tracer:       tracer,
//	    MaxBodyBytes: cfg.Proxy.MaxBodyBytes,
//	})
//	mux.Handle("POST /v1/chat/completions", handlers.NewChatHandler(guard, manager))
//
// Errors are written in the shape of the API being proxied, so existing
// OpenAI and Gemini SDKs surface blocks as ordinary API errors:
//
//	{
//	  "error": {
//	    "message": "PII Violation: ssn blocked by Privacy.",
//	    "type": "policy_violation",
//	    "code": "prompt_blocked"
//	  }
//	}
package proxy
