package registrations

import (
	"regexp"
	"strings"
)

var phonePattern = regexp.MustCompile(`^\(\d{2}\)\s?\d{4,5}-\d{4}$`)

// FormatPhone applies the Brazilian phone mask to whatever digits the input
// contains. Up to ten digits are masked progressively as (DD) DDDD-DDDD and
// eleven digits as (DD) DDDDD-DDDD. Longer input is returned trimmed so that
// validation rejects it.
func FormatPhone(raw string) string {
	digits := onlyDigits(raw)
	n := len(digits)
	switch {
	case n == 0:
		return ""
	case n > 11:
		return strings.TrimSpace(raw)
	case n <= 2:
		return "(" + digits
	case n <= 6:
		return "(" + digits[:2] + ") " + digits[2:]
	case n <= 10:
		return "(" + digits[:2] + ") " + digits[2:6] + "-" + digits[6:]
	default:
		return "(" + digits[:2] + ") " + digits[2:7] + "-" + digits[7:]
	}
}

// ValidPhone reports whether phone is a complete masked number.
func ValidPhone(phone string) bool {
	return phonePattern.MatchString(phone)
}

func onlyDigits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
