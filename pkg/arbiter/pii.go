package arbiter

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// piiPatterns are the fixed recognizers for each PII kind. Kinds without an
// entry are skipped during evaluation.
var piiPatterns = map[PIIKind]*regexp.Regexp{
	KindEmail:      regexp.MustCompile(`[a-zA-Z0-9_.+-]+@[a-zA-Z0-9-]+\.[a-zA-Z0-9.-]+`),
	KindSSN:        regexp.MustCompile(`\d{3}[ -]\d{2}[ -]\d{4}`),
	KindPhone:      regexp.MustCompile(`\b\d{3}[-.]?\d{3}[-.]?\d{4}\b`),
	KindCreditCard: regexp.MustCompile(`\b(?:\d[ -]*?){13,16}\b`),
	KindSecret:     regexp.MustCompile(`(?i)(api[_-]?key|secret|password|auth[_-]?token)[\s:=]+([a-zA-Z0-9_\-.]{16,})`),
}

// Pattern returns the compiled recognizer for kind.
func Pattern(kind PIIKind) (*regexp.Regexp, bool) {
	re, ok := piiPatterns[kind]
	return re, ok
}

// KnownKinds returns the PII kinds that have a recognizer, sorted.
func KnownKinds() []PIIKind {
	kinds := make([]PIIKind, 0, len(piiPatterns))
	for k := range piiPatterns {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// piiScan is the working state threaded through the pattern detector.
// Detection always runs against original so one policy's rewrite cannot
// hide a match from another policy. Rewrites apply to text.
type piiScan struct {
	original   string
	text       string
	redactions int
	findings   []Finding
	evidence   []Evidence
}

func newPIIScan(text string) *piiScan {
	return &piiScan{original: text, text: text}
}

// scanPolicy applies one policy's PII configuration to the working text.
// Kinds are visited in sorted order so results are deterministic.
func (s *piiScan) scanPolicy(policy *Policy) {
	kinds := make([]PIIKind, 0, len(policy.PIIConfig))
	for k := range policy.PIIConfig {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })

	for _, kind := range kinds {
		re, ok := piiPatterns[kind]
		if !ok {
			continue
		}
		matches := len(re.FindAllStringIndex(s.original, -1))
		if matches == 0 {
			continue
		}

		label := strings.ToUpper(string(kind))
		action := policy.PIIConfig[kind]
		ev := Evidence{
			Kind:    EvidencePII,
			Source:  policy.Name,
			Detail:  string(kind),
			Matches: matches,
		}

		switch action {
		case PIIBlock:
			ev.Action = ActionBlock
			s.findings = append(s.findings, Finding{
				Action: ActionBlock,
				Reason: fmt.Sprintf("Conflict Resolve: %s strictly forbidden by %s", label, policy.Name),
				Source: policy.Name,
			})
		case PIIRedact:
			ev.Action = ActionRedact
			if re.MatchString(s.text) {
				s.text = Redact(s.text, re, kind)
				s.redactions++
			}
			s.findings = append(s.findings, Finding{
				Action: ActionRedact,
				Reason: fmt.Sprintf("Metadata: %s redacted.", label),
				Source: policy.Name,
			})
		case PIIMask:
			ev.Action = ActionMask
			if re.MatchString(s.text) {
				s.text = re.ReplaceAllStringFunc(s.text, MaskValue)
				s.redactions++
			}
			s.findings = append(s.findings, Finding{
				Action: ActionMask,
				Reason: fmt.Sprintf("Metadata: %s masked.", label),
				Source: policy.Name,
			})
		default:
			// allow and tokenize leave the text untouched.
			ev.Action = ActionAllow
		}
		s.evidence = append(s.evidence, ev)
	}
}
