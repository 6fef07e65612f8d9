package sqlite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotRepositoryEmptyState(t *testing.T) {
	repo, err := NewSnapshotRepository(openTestDB(t))
	require.NoError(t, err)

	payload, err := repo.Load(context.Background())
	require.NoError(t, err)
	assert.Nil(t, payload)
}

func TestSnapshotRepositorySaveAndLoad(t *testing.T) {
	repo, err := NewSnapshotRepository(openTestDB(t))
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, []byte(`{"plan": "sms"}`)))

	payload, err := repo.Load(ctx)
	require.NoError(t, err)
	assert.JSONEq(t, `{"plan": "sms"}`, string(payload))
}

func TestSnapshotRepositorySaveOverwrites(t *testing.T) {
	repo, err := NewSnapshotRepository(openTestDB(t))
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, []byte(`{"plan": "sms"}`)))
	require.NoError(t, repo.Save(ctx, []byte(`{"plan": "none"}`)))

	payload, err := repo.Load(ctx)
	require.NoError(t, err)
	assert.JSONEq(t, `{"plan": "none"}`, string(payload))
}

func TestSameDatabaseHoldsBothRepositories(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	ledger, err := NewLedgerRepository(db)
	require.NoError(t, err)
	snapshots, err := NewSnapshotRepository(db)
	require.NoError(t, err)

	require.NoError(t, ledger.Save(ctx, "2024-03-15", []string{"5551234567"}))
	require.NoError(t, snapshots.Save(ctx, []byte(`{"plan": "sms"}`)))

	day, _, err := ledger.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "2024-03-15", day)

	payload, err := snapshots.Load(ctx)
	require.NoError(t, err)
	assert.NotNil(t, payload)
}
