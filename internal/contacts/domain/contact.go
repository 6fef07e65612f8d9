package domain

import "context"

// Directory answers whether a phone number belongs to a known contact.
// The directory itself is maintained by an external sync process; the
// engine only reads it.
type Directory interface {
	IsContact(ctx context.Context, phone string) (bool, error)
}

// NullDirectory is used when no contact directory is configured; every
// caller is treated as a non-contact.
type NullDirectory struct{}

func (NullDirectory) IsContact(ctx context.Context, phone string) (bool, error) {
	return false, nil
}
