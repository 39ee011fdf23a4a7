package arbiter

import (
	"fmt"
	"math"
	"strings"
)

const (
	// EntropyThreshold is the word-level Shannon entropy, in bits per token,
	// below which a long input is treated as an entropy collapse. Natural
	// prose scores roughly 4.0 to 5.0.
	EntropyThreshold = 3.2

	// MinDriftTokens is the token count an input must exceed before the
	// entropy analysis runs.
	MinDriftTokens = 20

	// EntropySource is the finding source for drift blocks.
	EntropySource = "Information Theory Engine"
)

// ShannonEntropy computes H = -Σ p(w)·log2 p(w) over the frequency of the
// given tokens. It returns 0 for an empty slice.
func ShannonEntropy(tokens []string) float64 {
	if len(tokens) == 0 {
		return 0
	}
	counts := make(map[string]int, len(tokens))
	for _, t := range tokens {
		counts[t]++
	}
	total := float64(len(tokens))
	var h float64
	for _, c := range counts {
		p := float64(c) / total
		h -= p * math.Log2(p)
	}
	// A single distinct token yields -0.
	return math.Abs(h)
}

// AnalyzeDrift runs the entropy analysis over text. The boolean result is
// false when the input is too short for the analysis to apply.
//
// PValue is exp(-H), a monotonic significance proxy. It is a heuristic and
// not a calibrated statistic.
func AnalyzeDrift(text string) (Drift, bool) {
	tokens := strings.Fields(text)
	if len(tokens) <= MinDriftTokens {
		return Drift{PValue: 1.0}, false
	}
	h := ShannonEntropy(tokens)
	d := Drift{
		Entropy: round(h, 4),
		PValue:  1.0,
	}
	if h < EntropyThreshold {
		d.Detected = true
		d.PValue = round(math.Exp(-h), 6)
	}
	return d, true
}

func driftFinding(d Drift) (Finding, Evidence) {
	return Finding{
			Action: ActionBlock,
			Reason: "Logic Drift: Information density too low for legitimate natural language.",
			Source: EntropySource,
		}, Evidence{
			Kind:   EvidenceEntropy,
			Source: EntropySource,
			Detail: fmt.Sprintf("Entropy collapse detected (%.4f bits/word).", d.Entropy),
			Action: ActionBlock,
		}
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
