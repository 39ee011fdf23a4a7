package arbiter

import (
	"math"
	"strings"
	"testing"
)

func TestShannonEntropy(t *testing.T) {
	tests := []struct {
		name   string
		tokens []string
		want   float64
	}{
		{"empty", nil, 0},
		{"single token", []string{"x", "x", "x"}, 0},
		{"two equiprobable", []string{"a", "b"}, 1},
		{"four equiprobable", []string{"a", "b", "c", "d", "a", "b", "c", "d"}, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ShannonEntropy(tt.tokens)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("ShannonEntropy = %v, want %v", got, tt.want)
			}
			if math.Signbit(got) {
				t.Errorf("ShannonEntropy returned negative zero")
			}
		})
	}
}

func TestAnalyzeDrift(t *testing.T) {
	t.Run("short input is not analyzed", func(t *testing.T) {
		d, ok := AnalyzeDrift(strings.Repeat("ignore ", 20))
		if ok {
			t.Error("expected 20 tokens to be below the floor")
		}
		if d.Detected || d.PValue != 1.0 {
			t.Errorf("drift = %+v, want undetected with p_value 1", d)
		}
	})

	t.Run("repetition collapses", func(t *testing.T) {
		d, ok := AnalyzeDrift(strings.Repeat("ignore ", 30))
		if !ok || !d.Detected {
			t.Fatalf("drift = %+v, want detected", d)
		}
		if d.Entropy >= EntropyThreshold {
			t.Errorf("entropy = %v, want < %v", d.Entropy, EntropyThreshold)
		}
		if d.PValue != 1.0 {
			// exp(-0) is 1
			t.Errorf("p_value = %v, want 1", d.PValue)
		}
	})

	t.Run("low diversity reports heuristic p_value", func(t *testing.T) {
		text := strings.Repeat("a b c d ", 8)
		d, _ := AnalyzeDrift(text)
		if !d.Detected || d.Entropy != 2 {
			t.Fatalf("drift = %+v, want detected at 2 bits", d)
		}
		want := round(math.Exp(-2), 6)
		if d.PValue != want {
			t.Errorf("p_value = %v, want %v", d.PValue, want)
		}
	})

	t.Run("prose passes", func(t *testing.T) {
		d, ok := AnalyzeDrift(naturalParagraph)
		if !ok || d.Detected {
			t.Fatalf("drift = %+v, want analyzed and undetected", d)
		}
		if d.Entropy < EntropyThreshold {
			t.Errorf("entropy = %v, want >= %v", d.Entropy, EntropyThreshold)
		}
	})

	t.Run("binary input", func(t *testing.T) {
		text := strings.Repeat("\xff\xfe \x00 ", 40)
		if _, ok := AnalyzeDrift(text); !ok {
			t.Error("expected analysis to run")
		}
	})
}

// naturalParagraph is fifty words of ordinary prose.
const naturalParagraph = "The quick brown fox jumps over the lazy dog while a gentle breeze " +
	"moves through tall green grass near the quiet river bank where children often " +
	"play during warm summer afternoons and parents sit on wooden benches reading " +
	"books or talking softly about their plans for the coming weekend trip"

func TestNaturalParagraphLength(t *testing.T) {
	if n := len(strings.Fields(naturalParagraph)); n != 50 {
		t.Fatalf("paragraph has %d words, want 50", n)
	}
}
