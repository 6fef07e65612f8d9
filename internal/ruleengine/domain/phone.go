package domain

import "strings"

// nationalNumberDigits is the number of trailing digits that identify a
// subscriber. Numbers differing only by a country-code prefix normalize to
// the same value.
const nationalNumberDigits = 10

// DigitsOnly strips every non-digit character from phone.
func DigitsOnly(phone string) string {
	var b strings.Builder
	b.Grow(len(phone))
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// NormalizePhone reduces a phone string to its national-number form: all
// non-digit characters stripped, then at most the last 10 digits kept.
// NormalizePhone is idempotent.
func NormalizePhone(phone string) string {
	digits := DigitsOnly(phone)
	if len(digits) <= nationalNumberDigits {
		return digits
	}
	return digits[len(digits)-nationalNumberDigits:]
}
