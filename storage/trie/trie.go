package trie

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	gethtrie "github.com/ethereum/go-ethereum/trie"
	"github.com/ethereum/go-ethereum/trie/trienode"
	"github.com/ethereum/go-ethereum/triedb"

	"rentalchain/storage"
)

// Trie is a keccak-keyed Merkle Patricia trie over the node database. Keys
// are hashed on the way in so callers address state with readable keys.
//
// Trie is not safe for concurrent use.
type Trie struct {
	db        *triedb.Database
	inner     *gethtrie.Trie
	committed common.Hash
}

// Open loads the trie committed at root. The zero hash opens an empty trie.
func Open(store storage.Database, root common.Hash) (*Trie, error) {
	if root == (common.Hash{}) {
		root = gethtypes.EmptyRootHash
	}
	db := store.TrieDB()
	inner, err := gethtrie.New(gethtrie.TrieID(root), db)
	if err != nil {
		return nil, fmt.Errorf("trie: open %s: %w", root.Hex(), err)
	}
	return &Trie{db: db, inner: inner, committed: root}, nil
}

func hashed(key []byte) []byte { return crypto.Keccak256(key) }

// Get returns the value under key, or nil when absent.
func (t *Trie) Get(key []byte) ([]byte, error) {
	return t.inner.Get(hashed(key))
}

// Put stores value under key.
func (t *Trie) Put(key, value []byte) error {
	return t.inner.Update(hashed(key), value)
}

// Delete removes key. Missing keys are ignored.
func (t *Trie) Delete(key []byte) error {
	return t.inner.Delete(hashed(key))
}

// Hash returns the root including uncommitted writes.
func (t *Trie) Hash() common.Hash { return t.inner.Hash() }

// Committed returns the root of the last commit.
func (t *Trie) Committed() common.Hash { return t.committed }

// Clone returns an independent copy sharing the node database. Writes to
// either side are invisible to the other.
func (t *Trie) Clone() *Trie {
	return &Trie{db: t.db, inner: t.inner.Copy(), committed: t.committed}
}

// Commit flushes pending writes for block height to disk and reopens the
// trie at the new root.
func (t *Trie) Commit(height uint64) (common.Hash, error) {
	root, nodes := t.inner.Commit(false)
	if nodes != nil {
		set := trienode.NewMergedNodeSet()
		if err := set.Merge(nodes); err != nil {
			return common.Hash{}, err
		}
		if err := t.db.Update(root, t.committed, height, set, nil); err != nil {
			return common.Hash{}, fmt.Errorf("trie: update %d: %w", height, err)
		}
		if err := t.db.Commit(root, false); err != nil {
			return common.Hash{}, fmt.Errorf("trie: commit %d: %w", height, err)
		}
	}
	inner, err := gethtrie.New(gethtrie.TrieID(root), t.db)
	if err != nil {
		return common.Hash{}, err
	}
	t.inner = inner
	t.committed = root
	return root, nil
}
