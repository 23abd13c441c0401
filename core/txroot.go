package core

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/rawdb"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethdb/memorydb"
	"github.com/ethereum/go-ethereum/rlp"
	gethtrie "github.com/ethereum/go-ethereum/trie"
	"github.com/ethereum/go-ethereum/triedb"

	"rentalchain/core/types"
)

// ComputeCallRoot builds the call trie for a block and returns its root hash.
// Calls are stored RLP-encoded, keyed by their index in RLP form.
func ComputeCallRoot(calls []*types.Call) (common.Hash, error) {
	if len(calls) == 0 {
		return gethtypes.EmptyRootHash, nil
	}
	db := rawdb.NewDatabase(memorydb.New())
	trieDB := triedb.NewDatabase(db, triedb.HashDefaults)
	trie, err := gethtrie.New(gethtrie.TrieID(gethtypes.EmptyRootHash), trieDB)
	if err != nil {
		return common.Hash{}, err
	}
	for i, call := range calls {
		key := rlp.AppendUint64(nil, uint64(i))
		payload, err := rlp.EncodeToBytes(call)
		if err != nil {
			return common.Hash{}, err
		}
		if err := trie.Update(key, payload); err != nil {
			return common.Hash{}, err
		}
	}
	return trie.Hash(), nil
}
