// Package security holds input-hygiene helpers for values that end up in
// filesystem paths.
package security

import "strings"

// SanitizeFilename makes a safe filename component from an arbitrary
// string: anything outside ASCII letters, digits, dot, underscore and
// dash becomes an underscore, runs of underscores collapse, and the
// result is length-capped. Empty input yields "unknown".
func SanitizeFilename(s string) string {
	if s == "" {
		return "unknown"
	}

	const maxLen = 128
	var b strings.Builder
	lastUnderscore := false
	for _, r := range s {
		if b.Len() >= maxLen {
			break
		}
		switch {
		case (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9'):
			b.WriteRune(r)
			lastUnderscore = false
		case r == '.' || r == '_' || r == '-':
			b.WriteRune(r)
			lastUnderscore = false
		default:
			if !lastUnderscore {
				b.WriteByte('_')
				lastUnderscore = true
			}
		}
	}

	out := strings.Trim(b.String(), "_")
	if out == "" {
		return "unknown"
	}
	return out
}
