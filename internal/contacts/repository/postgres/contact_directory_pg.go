package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	ruledomain "github.com/callflow/engine/internal/ruleengine/domain"
)

// PgContactDirectory answers contact lookups against the synced contacts
// table. Lookups match on the national-number form so country-code
// variants of the same subscriber resolve to the same contact.
type PgContactDirectory struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewPgContactDirectory creates a new PgContactDirectory.
func NewPgContactDirectory(pool *pgxpool.Pool, logger *slog.Logger) *PgContactDirectory {
	return &PgContactDirectory{
		pool:   pool,
		logger: logger.With("repository", "contact_directory_pg"),
	}
}

// IsContact reports whether the phone number belongs to a known contact.
func (d *PgContactDirectory) IsContact(ctx context.Context, phone string) (bool, error) {
	normalized := ruledomain.NormalizePhone(phone)
	if normalized == "" {
		return false, nil
	}

	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM contacts WHERE normalized_phone = $1)`
	if err := d.pool.QueryRow(ctx, query, normalized).Scan(&exists); err != nil {
		d.logger.ErrorContext(ctx, "Failed to query contact directory", "error", err)
		return false, fmt.Errorf("failed to query contact directory: %w", err)
	}
	return exists, nil
}
