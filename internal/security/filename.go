// Package security holds helpers for turning untrusted labels into safe
// filesystem names.
package security

import "strings"

// maxFilenameLen bounds sanitised names well below common filesystem limits.
const maxFilenameLen = 128

// SanitizeFilename maps an arbitrary label (an algorithm name, a recording
// name) to a filename component. ASCII letters, digits, dot, underscore and
// dash are kept; every other run of characters becomes one underscore.
// Leading and trailing dots and underscores are trimmed, so the result can
// never be "." or "..". An empty result becomes "unknown".
func SanitizeFilename(s string) string {
	var b strings.Builder
	pendingSep := false
	for _, r := range s {
		if b.Len() >= maxFilenameLen {
			break
		}
		if isSafeRune(r) {
			if pendingSep && b.Len() > 0 {
				b.WriteByte('_')
			}
			pendingSep = false
			b.WriteRune(r)
			continue
		}
		pendingSep = true
	}

	out := strings.Trim(b.String(), "._")
	if out == "" {
		return "unknown"
	}
	return out
}

func isSafeRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	case r == '.', r == '_', r == '-':
		return true
	}
	return false
}
