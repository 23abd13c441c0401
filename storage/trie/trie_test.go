package trie

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"rentalchain/storage"
)

func TestTrieCommitFlushPersistsData(t *testing.T) {
	dir := t.TempDir()

	db1, err := storage.NewLevelDB(dir)
	require.NoError(t, err)

	tr, err := Open(db1, common.Hash{})
	require.NoError(t, err)

	key := []byte("rentals/rental/key")
	value := []byte("value")

	require.NoError(t, tr.Put(key, value))
	root, err := tr.Commit(0)
	require.NoError(t, err)

	db1.Close()

	db2, err := storage.NewLevelDB(dir)
	require.NoError(t, err)
	defer db2.Close()

	restored, err := Open(db2, root)
	require.NoError(t, err)

	require.Equal(t, root, restored.Committed())
	got, err := restored.Get(key)
	require.NoError(t, err)
	require.Equal(t, value, got)
}

func TestTrieCopyIsIndependent(t *testing.T) {
	db := storage.NewMemDB()
	defer db.Close()

	tr, err := Open(db, common.Hash{})
	require.NoError(t, err)

	key := []byte("k")
	require.NoError(t, tr.Put(key, []byte("before")))

	snapshot := tr.Clone()

	require.NoError(t, tr.Put(key, []byte("after")))
	require.NoError(t, tr.Delete([]byte("missing")))

	got, err := snapshot.Get(key)
	require.NoError(t, err)
	require.Equal(t, []byte("before"), got)

	got, err = tr.Get(key)
	require.NoError(t, err)
	require.Equal(t, []byte("after"), got)
	require.NotEqual(t, tr.Hash(), snapshot.Hash())
}

func TestTrieEmptyRootAndMissingKeys(t *testing.T) {
	db := storage.NewMemDB()
	defer db.Close()

	tr, err := Open(db, common.Hash{})
	require.NoError(t, err)
	require.Equal(t, tr.Hash(), tr.Committed())

	got, err := tr.Get([]byte("absent"))
	require.NoError(t, err)
	require.Nil(t, got)

	root, err := tr.Commit(1)
	require.NoError(t, err)
	require.Equal(t, tr.Committed(), root)
}
