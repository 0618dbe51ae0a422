package domain

import (
	"errors"
	"strings"
)

// ErrInvalidPhone is returned when a phone number cannot be normalized.
var ErrInvalidPhone = errors.New("invalid phone number")

// NormalizePhone converts a raw phone number to the canonical international
// form: a single leading "+" followed by digits only. Spaces, dashes and
// parentheses are tolerated in the input.
func NormalizePhone(raw string) (string, error) {
	var b strings.Builder
	for _, r := range strings.TrimSpace(raw) {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '+' || r == ' ' || r == '-' || r == '(' || r == ')':
			// separators and the prefix are dropped; the prefix is re-added below
		default:
			return "", ErrInvalidPhone
		}
	}
	digits := b.String()
	if len(digits) < 7 {
		return "", ErrInvalidPhone
	}
	return "+" + digits, nil
}
