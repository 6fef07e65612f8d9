package domain

import "errors"

var (
	// ErrMalformedConfig indicates a config payload that could not be
	// parsed; the previous snapshot stays authoritative.
	ErrMalformedConfig = errors.New("malformed rule config payload")

	// ErrInvalidEvent indicates a call event missing its phone number or
	// carrying an unknown direction.
	ErrInvalidEvent = errors.New("invalid call event")
)
