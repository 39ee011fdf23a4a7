// Package arbiter implements the policy arbitration engine that sits between
// clients and LLM APIs.
//
// One call to Evaluate runs a fixed set of deterministic detectors over a
// prompt or a model response and resolves their findings into a single
// verdict:
//
//   - PII patterns (email, ssn, phone, credit_card, secret) acted on per
//     policy with block, redact, mask, tokenize or allow
//   - financial-harm phrases for Financial-category policies
//   - word-level Shannon entropy ("logic drift") for long inputs
//   - tool-call markers, which block regardless of policy data
//
// Findings are arbitrated with Most Restrictive Wins (BLOCK > REDACT > MASK >
// ALLOW, ties to the first finding).
//
// # Failure Semantics
//
// The engine fails closed. A policy store error, or a panic anywhere in the
// pipeline, yields a BLOCK verdict attributed to "System Safety Anchor". When
// no active policy is in scope the verdict is a default BLOCK. Evaluate never
// returns an error.
//
// # Basic Usage
//
//	eng, err := arbiter.New(store, arbiter.DefaultEngineConfig())
//	if err != nil {
//	    return err
//	}
//	res := eng.EvaluateIngress(ctx, prompt, arbiter.Scope{AgentID: "billing-bot"})
//	if res.IsBlocked {
//	    // reject the request
//	}
//	forward(res.TransformedText)
package arbiter
