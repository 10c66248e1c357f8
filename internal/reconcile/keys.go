package reconcile

import (
	"strings"
	"unicode"
)

// Simplify reduces a slug or outcome to a case-folded alphanumeric key.
func Simplify(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// SlugsMatch reports whether either simplified slug contains the other.
// Empty keys never match.
func SlugsMatch(a, b string) bool {
	sa, sb := Simplify(a), Simplify(b)
	if sa == "" || sb == "" {
		return false
	}
	return strings.Contains(sa, sb) || strings.Contains(sb, sa)
}

// OutcomesConsistent rejects a pair only when both outcomes are binary and differ.
// An empty outcome on either side is consistent.
func OutcomesConsistent(a, b string) bool {
	sa, sb := Simplify(a), Simplify(b)
	if sa == "" || sb == "" {
		return true
	}
	if isBinary(sa) && isBinary(sb) {
		return sa == sb
	}
	return true
}

func isBinary(key string) bool {
	return key == "yes" || key == "no"
}
