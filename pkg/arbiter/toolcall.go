package arbiter

import "strings"

// ToolCallSource is the finding source for intercepted tool invocations.
const ToolCallSource = "Zero-Trust Kernel"

var toolCallMarkers = []string{`"tool_call":`, `'tool_call':`}

// ContainsToolCall reports whether text carries a structured tool
// invocation marker. The check is engine-level and cannot be disabled by
// policy data.
func ContainsToolCall(text string) (string, bool) {
	for _, m := range toolCallMarkers {
		if strings.Contains(text, m) {
			return m, true
		}
	}
	return "", false
}

func toolCallFinding(marker string) (Finding, Evidence) {
	return Finding{
			Action: ActionBlock,
			Reason: "Agent Governance: Unauthorized TOOL EXECUTION detected.",
			Source: ToolCallSource,
		}, Evidence{
			Kind:   EvidenceToolCall,
			Source: ToolCallSource,
			Detail: marker,
			Action: ActionBlock,
		}
}
