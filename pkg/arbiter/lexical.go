package arbiter

import (
	"fmt"
	"strings"
)

// DefaultFinancialPhrases are the phrases that violate a Financial policy.
var DefaultFinancialPhrases = []string{
	"insider trading",
	"pump and dump",
	"evade taxes",
	"money laundering",
}

// matchPhrase returns the first phrase contained in lowered, or "".
// lowered must already be lower-cased.
func matchPhrase(lowered string, phrases []string) string {
	for _, phrase := range phrases {
		if phrase == "" {
			continue
		}
		if strings.Contains(lowered, strings.ToLower(phrase)) {
			return phrase
		}
	}
	return ""
}

// financialFinding checks the original prompt against a Financial policy.
func financialFinding(policy *Policy, lowered string, phrases []string) (Finding, Evidence, bool) {
	if policy.Category != CategoryFinancial {
		return Finding{}, Evidence{}, false
	}
	phrase := matchPhrase(lowered, phrases)
	if phrase == "" {
		return Finding{}, Evidence{}, false
	}
	return Finding{
			Action: ActionBlock,
			Reason: fmt.Sprintf("Policy Conflict: Financial Integrity violation in %s", policy.Name),
			Source: policy.Name,
		}, Evidence{
			Kind:   EvidenceFinancial,
			Source: policy.Name,
			Detail: phrase,
			Action: ActionBlock,
		}, true
}
