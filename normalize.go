package fieldcrypt

import "strings"

// Normalizer maps the canonical text of a value onto a lookup key before it
// is digested, so that e.g. "Alice@Example.com" and "alice@example.com"
// digest identically. The ciphertext is never normalised.
//
// A DualField must be written and queried with the same normalizer;
// changing it invalidates every stored digest.
type Normalizer func(string) string

// NormalizeNone leaves the value unchanged (exact, case-sensitive match).
var NormalizeNone Normalizer = func(s string) string { return s }

// NormalizeTrim strips leading and trailing whitespace, preserving case.
var NormalizeTrim Normalizer = strings.TrimSpace

// NormalizeLower lowercases without trimming.
var NormalizeLower Normalizer = strings.ToLower

// NormalizeEmail trims and lowercases: " Alice@Example.COM " -> "alice@example.com".
var NormalizeEmail Normalizer = func(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// NormalizePhone keeps ASCII digits only: "+1 (555) 123-4567" -> "15551234567".
var NormalizePhone Normalizer = func(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
