package utils

import (
	"html"
	"net/mail"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var strict = bluemonday.StrictPolicy()

// maxDecodePasses bounds how many layers of entity encoding PlainText peels.
const maxDecodePasses = 8

// PlainText strips every HTML tag from s and trims it.  Entities are decoded
// and the text sanitized again until nothing changes, so encoded markup
// cannot come back as tags and PlainText(PlainText(s)) == PlainText(s).
// Input that is still changing after maxDecodePasses is returned escaped.
func PlainText(s string) string {
	s = strings.TrimSpace(s)
	for i := 0; i < maxDecodePasses; i++ {
		next := strings.TrimSpace(html.UnescapeString(strict.Sanitize(s)))
		if next == s {
			return s
		}
		s = next
	}
	return strings.TrimSpace(strict.Sanitize(s))
}

// NormalizeEmail trims and lower-cases an address.
func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// IsValidEmail accepts a bare address (no display name).
func IsValidEmail(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" || strings.ContainsAny(s, " <>") {
		return false
	}
	a, err := mail.ParseAddress(s)
	return err == nil && a.Address == s
}
