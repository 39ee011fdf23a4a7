// Package openai implements the OpenAI chat completions adapter.
//
// The adapter reads and rewrites request and response bodies without
// modelling the whole API: only the model, the stream flag, the last user
// message and the first choice are decoded. Every other field is passed
// through to the upstream as sent.
//
// # Basic Usage
//
//	p := openai.New(cfg.Upstream.OpenAI, nil)
//
//	req, err := p.ParseRequest(body)
//	if err != nil {
//	    // providers.ErrStreaming or providers.ErrInvalidBody
//	}
//
//	resp, err := p.Forward(ctx, &providers.Call{
//	    Model:      req.Model,
//	    Body:       body,
//	    Credential: p.Credential(r),
//	})
//
// Message content may be a string or an array of parts. Text parts are
// joined with a single space; a rewrite replaces the content with one
// string.
package openai
