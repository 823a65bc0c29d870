// Package strings provides string canonicalization utilities.
package strings

import (
	"strings"
)

// Sanitize reduces a raw menu name to its canonical key. Underscores become
// spaces, anything outside [A-Za-z0-9- ] is dropped, surrounding spaces are
// trimmed, inner runs of spaces collapse to one and the result is lowercased.
//
// An empty result means the input carried no usable name and must be rejected.
//
// Example:
//
//	Sanitize("  Chicken_Tikka   Masala!! ")
//	// Returns: "chicken tikka masala"
func Sanitize(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))

	pendingSpace := false
	for i := 0; i < len(raw); i++ {
		c := raw[i]
		switch {
		case c == '_' || c == ' ':
			pendingSpace = b.Len() > 0
		case c >= 'A' && c <= 'Z':
			if pendingSpace {
				b.WriteByte(' ')
				pendingSpace = false
			}
			b.WriteByte(c + ('a' - 'A'))
		case (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') || c == '-':
			if pendingSpace {
				b.WriteByte(' ')
				pendingSpace = false
			}
			b.WriteByte(c)
		}
	}
	return b.String()
}

// DedupeSanitized sanitizes every value, dropping empty results and
// duplicates. Order of first appearance is preserved.
//
// Example:
//
//	DedupeSanitized([]string{"Pizza", " pizza ", "!!", "Salad"})
//	// Returns: []string{"pizza", "salad"}
func DedupeSanitized(values []string) []string {
	if len(values) == 0 {
		return values
	}

	seen := make(map[string]struct{}, len(values))
	result := make([]string, 0, len(values))

	for _, v := range values {
		name := Sanitize(v)
		if name == "" {
			continue
		}
		if _, ok := seen[name]; !ok {
			seen[name] = struct{}{}
			result = append(result, name)
		}
	}

	return result
}
