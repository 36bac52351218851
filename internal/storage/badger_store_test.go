package storage

import (
	"testing"

	"sos/internal/errors"
	"sos/shared/types"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *badger.DB {
	opts := badger.DefaultOptions("").WithInMemory(true)
	opts.Logger = nil // Disable logging for tests

	db, err := badger.Open(opts)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestBadgerStore(t *testing.T) {
	db := setupTestDB(t)
	store := NewBadgerStore[shared.BranchInfo](db, "branch")

	name := "main"
	main := shared.BranchInfo{Number: 0, CTime: 100, Name: &name, InSync: true}

	t.Run("Create", func(t *testing.T) {
		require.NoError(t, store.Create(main))

		err := store.Create(main)
		assert.Error(t, err)
	})

	t.Run("Get", func(t *testing.T) {
		got, err := store.Get(main.GetID())
		require.NoError(t, err)
		assert.Equal(t, main, got)

		_, err = store.Get("42")
		assert.True(t, errors.IsNotFound(err))
	})

	t.Run("Update", func(t *testing.T) {
		changed := main
		changed.InSync = false
		require.NoError(t, store.Update(changed))

		got, err := store.Get(main.GetID())
		require.NoError(t, err)
		assert.False(t, got.InSync)

		err = store.Update(shared.BranchInfo{Number: 9})
		assert.True(t, errors.IsNotFound(err))
	})

	t.Run("Put and List", func(t *testing.T) {
		require.NoError(t, store.Put(shared.BranchInfo{Number: 1, CTime: 200}))
		require.NoError(t, store.Put(shared.BranchInfo{Number: 1, CTime: 300}))

		all, err := store.List()
		require.NoError(t, err)
		require.Len(t, all, 2)
		assert.Equal(t, int64(300), all[1].CTime)

		exists, err := store.Exists("1")
		require.NoError(t, err)
		assert.True(t, exists)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, store.Delete("1"))
		assert.True(t, errors.IsNotFound(store.Delete("1")))

		exists, err := store.Exists("1")
		require.NoError(t, err)
		assert.False(t, exists)
	})
}

func TestBadgerStoreListPrefix(t *testing.T) {
	db := setupTestDB(t)
	store := NewBadgerStore[shared.CommitInfo](db, "commit")

	for _, c := range []shared.CommitInfo{
		{Branch: 0, Number: 0},
		{Branch: 0, Number: 1},
		{Branch: 1, Number: 0},
	} {
		require.NoError(t, store.Create(c))
	}

	commits, err := store.ListPrefix("0:")
	require.NoError(t, err)
	require.Len(t, commits, 2)
	assert.Equal(t, 1, commits[1].Number)

	_, err = store.Get("0:00000001")
	require.NoError(t, err)
}
