package compiler

import "strings"

const (
	maxBaseLen   = 50
	fallbackBase = "document"
)

// SanitizeTitle derives a file base name from a title: lowercased, every
// byte outside [a-z0-9] replaced by a dash, dash runs collapsed, cut to 50
// bytes and trimmed of dashes. An empty result becomes "document".
func SanitizeTitle(title string) string {
	var b strings.Builder
	b.Grow(len(title))

	lastDash := false
	for _, r := range strings.ToLower(title) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			lastDash = false
			continue
		}
		if !lastDash {
			b.WriteByte('-')
			lastDash = true
		}
	}

	s := b.String()
	if len(s) > maxBaseLen {
		s = s[:maxBaseLen]
	}
	s = strings.Trim(s, "-")
	if s == "" {
		return fallbackBase
	}
	return s
}
