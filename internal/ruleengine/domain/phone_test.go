package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDigitsOnly(t *testing.T) {
	assert.Equal(t, "15551234567", DigitsOnly("+1 (555) 123-4567"))
	assert.Equal(t, "", DigitsOnly("no digits here"))
	assert.Equal(t, "12345", DigitsOnly("12345"))
}

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		name  string
		phone string
		want  string
	}{
		{"strips formatting", "(555) 123-4567", "5551234567"},
		{"keeps short numbers whole", "12345", "12345"},
		{"drops country code beyond 10 digits", "+1-555-123-4567", "5551234567"},
		{"longer international prefix", "+44 20 7946 0958 123", "9460958123"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizePhone(tt.phone))
		})
	}
}

func TestNormalizePhoneIsIdempotent(t *testing.T) {
	phones := []string{"+1 (555) 123-4567", "00441234567890", "123", "", "abc"}
	for _, p := range phones {
		once := NormalizePhone(p)
		assert.Equal(t, once, NormalizePhone(once), "normalize must be idempotent for %q", p)
	}
}

func TestNormalizePhoneCountryCodeEquivalence(t *testing.T) {
	// Numbers differing only by country-code prefix are the same subscriber.
	assert.Equal(t, NormalizePhone("5551234567"), NormalizePhone("+15551234567"))
}
