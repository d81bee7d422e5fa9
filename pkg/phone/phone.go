// Package phone validates and canonicalizes Russian phone numbers.
package phone

import (
	"regexp"
	"strings"
)

// pattern accepts an optional +7 or 8 prefix, a 3-digit code starting with
// 4, 8 or 9 (optionally in parentheses) and a 7-digit subscriber number with
// optional space or dash separators.
var pattern = regexp.MustCompile(`^(\+7|8)?[\s\-]?\(?[489][0-9]{2}\)?[\s\-]?[0-9]{3}[\s\-]?[0-9]{2}[\s\-]?[0-9]{2}$`)

// Valid reports whether s is an acceptable phone number for an order.
func Valid(s string) bool {
	s = strings.TrimSpace(s)
	if !pattern.MatchString(s) {
		return false
	}
	d := digits(s)
	switch len(d) {
	case 10:
		return true
	case 11:
		return d[0] == '7' || d[0] == '8'
	default:
		return false
	}
}

// Normalize rewrites s to +7XXXXXXXXXX. Inputs that cannot be mapped onto
// that shape are returned unchanged, so callers should check Valid first.
func Normalize(s string) string {
	d := digits(s)
	switch {
	case d == "":
		return ""
	case len(d) == 11 && d[0] == '8':
		return "+7" + d[1:]
	case len(d) == 11 && d[0] == '7':
		return "+" + d
	case len(d) == 10:
		return "+7" + d
	default:
		return s
	}
}

// Display formats a number as +7 (XXX) XXX-XX-XX for humans. Numbers that do
// not normalize to the canonical shape are returned as given.
func Display(s string) string {
	n := Normalize(s)
	if len(n) != 12 || !strings.HasPrefix(n, "+7") {
		return s
	}
	d := n[2:]
	return "+7 (" + d[0:3] + ") " + d[3:6] + "-" + d[6:8] + "-" + d[8:10]
}

func digits(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
