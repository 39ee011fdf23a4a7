// Package types defines the wire types of the gateway's own HTTP API:
// the evaluate and policy management bodies and the OpenAI-compatible error
// envelope used by every endpoint.
package types
