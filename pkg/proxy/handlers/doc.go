// Package handlers provides the HTTP handlers of the gateway.
//
// # Proxy handlers
//
//   - ChatHandler: POST /v1/chat/completions (OpenAI)
//   - GenerateHandler: POST /v1beta/models/{model}:generateContent (Gemini)
//
// Both hand the call to proxy.Guard, which evaluates the prompt, forwards
// it, and evaluates the completion. Errors are written in the shape of the
// API being proxied so existing SDKs surface them.
//
// # Evaluation API
//
//   - EvaluateHandler: POST /v1/evaluate
//
// Runs the engine on submitted text and returns the full result:
//
//	{
//	  "request_id": "550e8400-...",
//	  "verdict": "REDACT",
//	  "is_blocked": false,
//	  "transformed_text": "mail [REDACTED_EMAIL]",
//	  "metadata": {...}
//	}
//
// # Policy API
//
//   - PolicyHandler: list, get, create, replace, delete and toggle
//
// Store errors map to status codes: validation 400, unknown ID 404,
// read-only store 405, unhealthy store 503.
package handlers
