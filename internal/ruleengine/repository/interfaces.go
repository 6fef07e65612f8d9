package repository

import "context"

// LedgerRepository persists the day-scoped set of normalized phone numbers
// already messaged. The whole set is overwritten on every save; entries
// always belong to the returned day key.
type LedgerRepository interface {
	// Load returns the persisted day key and number set. An empty day key
	// means nothing has been persisted yet.
	Load(ctx context.Context) (day string, numbers []string, err error)

	// Save overwrites the persisted state with the given day and set.
	Save(ctx context.Context, day string, numbers []string) error
}

// SnapshotRepository persists the most recent successfully parsed raw
// configuration payload so a restart can warm-start from it.
type SnapshotRepository interface {
	// Load returns the persisted payload, or nil when none exists.
	Load(ctx context.Context) ([]byte, error)

	// Save overwrites the persisted payload.
	Save(ctx context.Context, payload []byte) error
}
