package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const snapshotStateName = "rule_config"

const snapshotSchema = `
CREATE TABLE IF NOT EXISTS config_snapshot (
    name       TEXT PRIMARY KEY,
    payload    BLOB NOT NULL,
    updated_at TEXT NOT NULL
);`

// SnapshotRepository stores the last known good raw configuration payload
// so the engine can warm-start after a restart.
type SnapshotRepository struct {
	db *sql.DB
}

// NewSnapshotRepository creates the repository and ensures its table exists.
func NewSnapshotRepository(db *sql.DB) (*SnapshotRepository, error) {
	if _, err := db.Exec(snapshotSchema); err != nil {
		return nil, fmt.Errorf("failed to create config_snapshot table: %w", err)
	}
	return &SnapshotRepository{db: db}, nil
}

// Load returns the persisted payload, or nil when none has been saved.
func (r *SnapshotRepository) Load(ctx context.Context) ([]byte, error) {
	var payload []byte
	err := r.db.QueryRowContext(ctx,
		`SELECT payload FROM config_snapshot WHERE name = ?`, snapshotStateName,
	).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config snapshot: %w", err)
	}
	return payload, nil
}

// Save overwrites the persisted payload.
func (r *SnapshotRepository) Save(ctx context.Context, payload []byte) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO config_snapshot (name, payload, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at`,
		snapshotStateName, payload, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to save config snapshot: %w", err)
	}
	return nil
}
