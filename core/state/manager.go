package state

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"

	"rentalchain/storage/trie"
)

// Manager provides RLP key/value access to the state trie shared by the rentals
// module and its collaborators (payment token, asset registries, relay).
//
// Manager is not safe for concurrent use; core.Chain serialises access.
type Manager struct {
	trie      *trie.Trie
	snapshots []*trie.Trie
}

// NewManager creates a state manager operating on the provided trie.
func NewManager(tr *trie.Trie) *Manager {
	return &Manager{trie: tr}
}

// KVPut stores the RLP encoding of value under key.
func (m *Manager) KVPut(key []byte, value interface{}) error {
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return err
	}
	return m.trie.Put(key, encoded)
}

// KVGet retrieves the value stored under the supplied key and decodes it into
// the provided destination. The boolean return value indicates whether the key
// existed in state.
func (m *Manager) KVGet(key []byte, out interface{}) (bool, error) {
	if len(key) == 0 {
		return false, fmt.Errorf("kv: key must not be empty")
	}
	data, err := m.trie.Get(key)
	if err != nil {
		return false, err
	}
	if len(data) == 0 {
		return false, nil
	}
	if out == nil {
		return true, nil
	}
	if err := rlp.DecodeBytes(data, out); err != nil {
		return false, err
	}
	return true, nil
}

// KVDelete removes the value stored under the supplied key.
func (m *Manager) KVDelete(key []byte) error {
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	return m.trie.Delete(key)
}

// Snapshot records the current state and returns an identifier that can be
// passed to RevertToSnapshot. Snapshots nest: reverting to an identifier also
// discards every snapshot taken after it.
func (m *Manager) Snapshot() int {
	m.snapshots = append(m.snapshots, m.trie.Clone())
	return len(m.snapshots) - 1
}

// RevertToSnapshot restores the state captured by Snapshot(id).
func (m *Manager) RevertToSnapshot(id int) {
	if id < 0 || id >= len(m.snapshots) {
		return
	}
	m.trie = m.snapshots[id]
	m.snapshots = m.snapshots[:id]
}

// Finalise drops all outstanding snapshots once a call has completed.
func (m *Manager) Finalise() {
	m.snapshots = m.snapshots[:0]
}

// Root returns the state root including uncommitted mutations.
func (m *Manager) Root() common.Hash {
	return m.trie.Hash()
}

// Commit persists pending mutations and returns the new state root.
func (m *Manager) Commit(blockNumber uint64) (common.Hash, error) {
	m.Finalise()
	return m.trie.Commit(blockNumber)
}
