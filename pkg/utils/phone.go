package utils

import (
	"regexp"
	"strings"
)

var nonDigit = regexp.MustCompile(`\D`)

// CanonicalPhone strips every character that is not an ASCII digit.
// Country and area codes are kept as typed; no length or prefix validation is done.
func CanonicalPhone(phone string) string {
	return nonDigit.ReplaceAllString(phone, "")
}

// MaskPhone hides all but the last four digits, for logs.
func MaskPhone(phone string) string {
	if len(phone) <= 4 {
		return strings.Repeat("*", len(phone))
	}
	return strings.Repeat("*", len(phone)-4) + phone[len(phone)-4:]
}
