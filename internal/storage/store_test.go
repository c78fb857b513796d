package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"varulv/internal/domain"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "cache", "votes.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	store, err := New(db)
	require.NoError(t, err)
	return store
}

func TestOpenRejectsEmptyPath(t *testing.T) {
	_, err := Open("")
	assert.Error(t, err)
}

func TestMigrateIsIdempotent(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "votes.db"))
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, Migrate(db))
	var count int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM schema_migrations;`).Scan(&count))
	assert.Equal(t, 1, count)
}

func TestStoreRoundTrip(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	events := []domain.VoteEvent{
		{Voter: "Kalle", Target: "Anna", PostID: "1", Timestamp: domain.ParseTimestamp("2024-03-01T18:00:00+0100")},
		{Voter: "Anna", Target: "Kalle", PostID: "2", Timestamp: domain.ParseTimestamp("okänt")},
	}

	_, err := store.LoadThread(ctx, "byn.1", 2)
	assert.ErrorIs(t, err, domain.ErrCacheMiss)

	require.NoError(t, store.SaveThread(ctx, "byn.1", 2, events))

	loaded, err := store.LoadThread(ctx, "byn.1", 2)
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	assert.Equal(t, events[0].Voter, loaded[0].Voter)
	assert.Equal(t, events[0].Target, loaded[0].Target)
	assert.Equal(t, events[0].PostID, loaded[0].PostID)
	assert.Equal(t, 0, events[0].Timestamp.Compare(loaded[0].Timestamp))
	assert.False(t, loaded[1].Timestamp.Valid())

	t.Run("PageCountChanged", func(t *testing.T) {
		_, err := store.LoadThread(ctx, "byn.1", 3)
		assert.ErrorIs(t, err, domain.ErrCacheMiss)
	})

	t.Run("SaveReplaces", func(t *testing.T) {
		require.NoError(t, store.SaveThread(ctx, "byn.1", 3, events[:1]))
		loaded, err := store.LoadThread(ctx, "byn.1", 3)
		require.NoError(t, err)
		assert.Len(t, loaded, 1)
	})

	t.Run("EmptyThread", func(t *testing.T) {
		require.NoError(t, store.SaveThread(ctx, "tom.2", 1, nil))
		loaded, err := store.LoadThread(ctx, "tom.2", 1)
		require.NoError(t, err)
		assert.Empty(t, loaded)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, store.DeleteThread(ctx, "byn.1"))
		_, err := store.LoadThread(ctx, "byn.1", 3)
		assert.ErrorIs(t, err, domain.ErrCacheMiss)
	})
}
