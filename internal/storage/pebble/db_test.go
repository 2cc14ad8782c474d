package pebblestore

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(Options{DataDir: t.TempDir(), SyncWrites: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestDB_SetGetDelete(t *testing.T) {
	t.Parallel()

	db := openTestDB(t)

	_, ok, err := db.Get([]byte("missing"))
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, db.Set([]byte("k"), []byte("v1")))
	v, ok, err := db.Get([]byte("k"))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("v1"), v)

	require.NoError(t, db.Set([]byte("k"), []byte("v2")))
	v, _, err = db.Get([]byte("k"))
	require.NoError(t, err)
	require.Equal(t, []byte("v2"), v)

	require.NoError(t, db.Delete([]byte("k")))
	_, ok, err = db.Get([]byte("k"))
	require.NoError(t, err)
	require.False(t, ok)
}

func TestDB_ListPrefix(t *testing.T) {
	t.Parallel()

	db := openTestDB(t)
	require.NoError(t, db.Set([]byte("checkpoint/a"), []byte("1")))
	require.NoError(t, db.Set([]byte("checkpoint/b"), []byte("2")))
	require.NoError(t, db.Set([]byte("cache/x"), []byte("3")))

	got, err := db.ListPrefix([]byte("checkpoint/"))
	require.NoError(t, err)
	require.Equal(t, map[string][]byte{
		"a": []byte("1"),
		"b": []byte("2"),
	}, got)
}

func TestDB_OpenRequiresDataDir(t *testing.T) {
	t.Parallel()

	_, err := Open(Options{})
	require.Error(t, err)
}

func TestDB_SurvivesReopen(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	db, err := Open(Options{DataDir: dir, SyncWrites: true})
	require.NoError(t, err)
	require.NoError(t, db.Set([]byte("checkpoint/s"), []byte("2016-05-01T00:20:00Z")))
	require.NoError(t, db.Close())

	db, err = Open(Options{DataDir: dir, SyncWrites: true})
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	v, ok, err := db.Get([]byte("checkpoint/s"))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("2016-05-01T00:20:00Z"), v)
}
