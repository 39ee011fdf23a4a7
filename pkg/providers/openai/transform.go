package openai

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"policyguard/gateway/pkg/providers"
)

// Only the fields the gateway reads are decoded. Bodies are rewritten
// through raw maps so unknown fields reach the upstream untouched.

type chatRequest struct {
	Model    string        `json:"model"`
	Stream   bool          `json:"stream"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string          `json:"role"`
	Content json.RawMessage `json:"content"`
}

type contentPart struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", providers.ErrInvalidBody, fmt.Sprintf(format, args...))
}

// messageText flattens a message content into plain text. Content is
// either a string or an array of typed parts; only text parts count.
func messageText(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", nil
	}

	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", invalid("content: %v", err)
		}
		return s, nil
	case '[':
		var parts []contentPart
		if err := json.Unmarshal(raw, &parts); err != nil {
			return "", invalid("content parts: %v", err)
		}
		texts := make([]string, 0, len(parts))
		for _, p := range parts {
			if p.Type == "text" {
				texts = append(texts, p.Text)
			}
		}
		return strings.Join(texts, " "), nil
	default:
		return "", invalid("content must be a string or an array of parts")
	}
}

func parseRequest(body []byte) (*providers.Request, error) {
	var req chatRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, invalid("%v", err)
	}
	if req.Stream {
		return nil, providers.ErrStreaming
	}
	if req.Model == "" {
		return nil, invalid("model is required")
	}
	if len(req.Messages) == 0 {
		return nil, invalid("messages must not be empty")
	}

	out := &providers.Request{Model: req.Model}
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role != "user" {
			continue
		}
		text, err := messageText(req.Messages[i].Content)
		if err != nil {
			return nil, err
		}
		out.Prompt = text
		break
	}
	return out, nil
}

func rewritePrompt(body []byte, text string) ([]byte, error) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, invalid("%v", err)
	}
	var msgs []map[string]json.RawMessage
	if err := json.Unmarshal(doc["messages"], &msgs); err != nil {
		return nil, invalid("messages: %v", err)
	}

	idx := -1
	for i := len(msgs) - 1; i >= 0; i-- {
		var role string
		_ = json.Unmarshal(msgs[i]["role"], &role)
		if role == "user" {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, invalid("no user message to rewrite")
	}

	content, err := json.Marshal(text)
	if err != nil {
		return nil, err
	}
	msgs[idx]["content"] = content

	if doc["messages"], err = json.Marshal(msgs); err != nil {
		return nil, err
	}
	return json.Marshal(doc)
}

func completion(body []byte) (string, error) {
	var resp chatResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", invalid("%v", err)
	}
	if len(resp.Choices) == 0 {
		return "", invalid("response has no choices")
	}
	return messageText(resp.Choices[0].Message.Content)
}

func rewriteCompletion(body []byte, text string) ([]byte, error) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, invalid("%v", err)
	}
	var choices []map[string]json.RawMessage
	if err := json.Unmarshal(doc["choices"], &choices); err != nil || len(choices) == 0 {
		return nil, invalid("response has no choices")
	}
	var msg map[string]json.RawMessage
	if err := json.Unmarshal(choices[0]["message"], &msg); err != nil || msg == nil {
		return nil, invalid("choice has no message")
	}

	content, err := json.Marshal(text)
	if err != nil {
		return nil, err
	}
	msg["content"] = content

	if choices[0]["message"], err = json.Marshal(msg); err != nil {
		return nil, err
	}
	if doc["choices"], err = json.Marshal(choices); err != nil {
		return nil, err
	}
	return json.Marshal(doc)
}
