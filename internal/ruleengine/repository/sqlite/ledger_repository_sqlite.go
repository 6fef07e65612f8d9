package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

// Fixed namespace for the day ledger row; the state is a single
// (day, numbers) pair overwritten wholesale.
const ledgerStateName = "sent_today"

const ledgerSchema = `
CREATE TABLE IF NOT EXISTS rule_state (
    name    TEXT PRIMARY KEY,
    day     TEXT NOT NULL,
    numbers TEXT NOT NULL
);`

// LedgerRepository stores the day-scoped dedup ledger in the local SQLite
// state database.
type LedgerRepository struct {
	db *sql.DB
}

// NewLedgerRepository creates the repository and ensures its table exists.
func NewLedgerRepository(db *sql.DB) (*LedgerRepository, error) {
	if _, err := db.Exec(ledgerSchema); err != nil {
		return nil, fmt.Errorf("failed to create rule_state table: %w", err)
	}
	return &LedgerRepository{db: db}, nil
}

// Load returns the persisted day key and number set.
func (r *LedgerRepository) Load(ctx context.Context) (string, []string, error) {
	var day, rawNumbers string
	err := r.db.QueryRowContext(ctx,
		`SELECT day, numbers FROM rule_state WHERE name = ?`, ledgerStateName,
	).Scan(&day, &rawNumbers)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil, nil
	}
	if err != nil {
		return "", nil, fmt.Errorf("failed to load day ledger: %w", err)
	}

	var numbers []string
	if err := json.Unmarshal([]byte(rawNumbers), &numbers); err != nil {
		return "", nil, fmt.Errorf("failed to decode day ledger numbers: %w", err)
	}
	return day, numbers, nil
}

// Save overwrites the persisted ledger state.
func (r *LedgerRepository) Save(ctx context.Context, day string, numbers []string) error {
	if numbers == nil {
		numbers = []string{}
	}
	raw, err := json.Marshal(numbers)
	if err != nil {
		return fmt.Errorf("failed to encode day ledger numbers: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO rule_state (name, day, numbers) VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET day = excluded.day, numbers = excluded.numbers`,
		ledgerStateName, day, string(raw),
	)
	if err != nil {
		return fmt.Errorf("failed to save day ledger: %w", err)
	}
	return nil
}
