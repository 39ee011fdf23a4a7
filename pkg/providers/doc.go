// Package providers adapts the upstream LLM APIs the gateway fronts.
//
// A Provider knows one API's JSON shapes: where the last user turn lives in
// a request, where the first candidate's text lives in a response, how to
// put transformed text back, and how errors are rendered. Adapters live in
// the openai and gemini subpackages and share HTTPProvider for transport.
//
// Upstream answers with a non-2xx status are returned as Responses so the
// proxy can relay them; only transport failures become errors
// (*ProviderError, *TimeoutError).
package providers
