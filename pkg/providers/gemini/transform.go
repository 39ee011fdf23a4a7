package gemini

import (
	"encoding/json"
	"fmt"
	"strings"

	"policyguard/gateway/pkg/providers"
)

type generateRequest struct {
	Contents []content `json:"contents"`
}

type content struct {
	Role  string `json:"role"`
	Parts []part `json:"parts"`
}

// part has a pointer so a part without text (inline data, function calls)
// can be told apart from an empty string.
type part struct {
	Text *string `json:"text"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", providers.ErrInvalidBody, fmt.Sprintf(format, args...))
}

func isUserRole(role string) bool {
	return role == "" || role == "user"
}

func partsText(parts []part) string {
	texts := make([]string, 0, len(parts))
	for _, p := range parts {
		if p.Text != nil {
			texts = append(texts, *p.Text)
		}
	}
	return strings.Join(texts, " ")
}

func parseRequest(body []byte) (*providers.Request, error) {
	var req generateRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, invalid("%v", err)
	}
	if len(req.Contents) == 0 {
		return nil, invalid("contents must not be empty")
	}

	out := &providers.Request{}
	for i := len(req.Contents) - 1; i >= 0; i-- {
		if isUserRole(req.Contents[i].Role) {
			out.Prompt = partsText(req.Contents[i].Parts)
			break
		}
	}
	return out, nil
}

// replaceText puts text in the first text part and drops the other text
// parts. Non-text parts keep their position.
func replaceText(raw json.RawMessage, text string) (json.RawMessage, error) {
	var parts []map[string]json.RawMessage
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &parts); err != nil {
			return nil, invalid("parts: %v", err)
		}
	}
	encoded, err := json.Marshal(text)
	if err != nil {
		return nil, err
	}

	out := make([]map[string]json.RawMessage, 0, len(parts)+1)
	placed := false
	for _, p := range parts {
		if _, ok := p["text"]; !ok {
			out = append(out, p)
			continue
		}
		if placed {
			continue
		}
		p["text"] = encoded
		out = append(out, p)
		placed = true
	}
	if !placed {
		out = append(out, map[string]json.RawMessage{"text": encoded})
	}
	return json.Marshal(out)
}

func rewritePrompt(body []byte, text string) ([]byte, error) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, invalid("%v", err)
	}
	var contents []map[string]json.RawMessage
	if err := json.Unmarshal(doc["contents"], &contents); err != nil {
		return nil, invalid("contents: %v", err)
	}

	idx := -1
	for i := len(contents) - 1; i >= 0; i-- {
		var role string
		_ = json.Unmarshal(contents[i]["role"], &role)
		if isUserRole(role) {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, invalid("no user content to rewrite")
	}

	var err error
	if contents[idx]["parts"], err = replaceText(contents[idx]["parts"], text); err != nil {
		return nil, err
	}
	if doc["contents"], err = json.Marshal(contents); err != nil {
		return nil, err
	}
	return json.Marshal(doc)
}

func completion(body []byte) (string, error) {
	var resp generateResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", invalid("%v", err)
	}
	if len(resp.Candidates) == 0 {
		return "", invalid("response has no candidates")
	}
	return partsText(resp.Candidates[0].Content.Parts), nil
}

func rewriteCompletion(body []byte, text string) ([]byte, error) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, invalid("%v", err)
	}
	var candidates []map[string]json.RawMessage
	if err := json.Unmarshal(doc["candidates"], &candidates); err != nil || len(candidates) == 0 {
		return nil, invalid("response has no candidates")
	}
	var c map[string]json.RawMessage
	if err := json.Unmarshal(candidates[0]["content"], &c); err != nil || c == nil {
		return nil, invalid("candidate has no content")
	}

	var err error
	if c["parts"], err = replaceText(c["parts"], text); err != nil {
		return nil, err
	}
	if candidates[0]["content"], err = json.Marshal(c); err != nil {
		return nil, err
	}
	if doc["candidates"], err = json.Marshal(candidates); err != nil {
		return nil, err
	}
	return json.Marshal(doc)
}
