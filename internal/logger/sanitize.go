package logger

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	// MaxTextLength bounds chat message text in log fields
	MaxTextLength = 500
	// MaxErrorLength bounds error messages in log fields
	MaxErrorLength = 1000
)

// SanitizeText prepares untrusted chat text for logging: fixes invalid
// UTF-8, strips control characters, and truncates to maxLen. Chat content
// is attacker-controlled, so it must never reach logs unfiltered.
func SanitizeText(s string, maxLen int) string {
	if s == "" {
		return ""
	}
	if maxLen <= 0 {
		maxLen = MaxTextLength
	}

	if !utf8.ValidString(s) {
		s = strings.ToValidUTF8(s, "")
	}

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsPrint(r) || r == ' ' || r == '\t' {
			b.WriteRune(r)
		}
	}
	s = b.String()

	if len(s) > maxLen {
		s = s[:maxLen] + "..."
	}
	return s
}

// SanitizeError sanitizes an error message for logging
func SanitizeError(err error) string {
	if err == nil {
		return ""
	}
	return SanitizeText(err.Error(), MaxErrorLength)
}
