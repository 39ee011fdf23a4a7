package arbiter

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// RedactionToken returns the placeholder that replaces a redacted match.
func RedactionToken(kind PIIKind) string {
	return "[REDACTED_" + strings.ToUpper(string(kind)) + "]"
}

// Redact replaces every match of re in text with the kind's redaction token.
func Redact(text string, re *regexp.Regexp, kind PIIKind) string {
	return re.ReplaceAllLiteralString(text, RedactionToken(kind))
}

// MaskValue keeps the first and last two characters of value and replaces
// the rest with asterisks. Values of four characters or fewer are masked
// entirely. Length is measured in runes.
func MaskValue(value string) string {
	n := utf8.RuneCountInString(value)
	if n <= 4 {
		return strings.Repeat("*", n)
	}
	runes := []rune(value)
	var b strings.Builder
	b.Grow(len(value))
	b.WriteString(string(runes[:2]))
	b.WriteString(strings.Repeat("*", n-4))
	b.WriteString(string(runes[n-2:]))
	return b.String()
}
