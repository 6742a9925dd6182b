package util

import (
	"strings"
	"unicode"
)

// SnakeCase converts a display name such as "Billing Agent" or "RefundAgent"
// into a tool-name friendly snake_case identifier.
func SnakeCase(s string) string {
	var b strings.Builder
	prevLower := false
	pendingSep := false

	for _, r := range s {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if (pendingSep || (unicode.IsUpper(r) && prevLower)) && b.Len() > 0 {
				b.WriteByte('_')
			}
			pendingSep = false
			prevLower = unicode.IsLower(r) || unicode.IsDigit(r)
			b.WriteRune(unicode.ToLower(r))
		default:
			pendingSep = true
			prevLower = false
		}
	}

	return b.String()
}
