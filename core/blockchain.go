package core

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"rentalchain/core/types"
	"rentalchain/storage"
)

var (
	tipKey = []byte("chain/tip")

	ErrBlockNotFound = errors.New("core: block not found")
)

// Blockchain persists applied blocks and their receipts.
type Blockchain struct {
	db   storage.Database
	head *types.BlockHeader
	mu   sync.RWMutex
}

func blockKey(height uint64) []byte {
	key := make([]byte, 0, 14)
	key = append(key, "block/"...)
	return binary.BigEndian.AppendUint64(key, height)
}

func receiptsKey(height uint64) []byte {
	key := make([]byte, 0, 17)
	key = append(key, "receipts/"...)
	return binary.BigEndian.AppendUint64(key, height)
}

// NewBlockchain opens the block log kept in db. A nil head means no block has
// been applied yet.
func NewBlockchain(db storage.Database) (*Blockchain, error) {
	bc := &Blockchain{db: db}
	raw, err := db.Get(tipKey)
	if errors.Is(err, storage.ErrNotFound) {
		return bc, nil
	}
	if err != nil {
		return nil, err
	}
	if len(raw) != 8 {
		return nil, fmt.Errorf("core: corrupt tip record")
	}
	block, err := bc.loadBlock(binary.BigEndian.Uint64(raw))
	if err != nil {
		return nil, fmt.Errorf("core: load tip: %w", err)
	}
	bc.head = block.Header
	return bc, nil
}

// AddBlock validates a new block and appends it with its receipts.
func (bc *Blockchain) AddBlock(b *types.Block, receipts []*types.Receipt) error {
	bc.mu.Lock()
	defer bc.mu.Unlock()

	if bc.head != nil {
		prevHash, err := bc.head.Hash()
		if err != nil {
			return err
		}
		if string(b.Header.PrevHash) != string(prevHash) {
			return fmt.Errorf("block prevhash mismatch")
		}
		if b.Header.Height != bc.head.Height+1 {
			return fmt.Errorf("block height %d does not extend %d", b.Header.Height, bc.head.Height)
		}
	}

	blockBytes, err := json.Marshal(b)
	if err != nil {
		return err
	}
	receiptBytes, err := json.Marshal(receipts)
	if err != nil {
		return err
	}
	if err := bc.db.Put(blockKey(b.Header.Height), blockBytes); err != nil {
		return err
	}
	if err := bc.db.Put(receiptsKey(b.Header.Height), receiptBytes); err != nil {
		return err
	}
	if err := bc.db.Put(tipKey, binary.BigEndian.AppendUint64(nil, b.Header.Height)); err != nil {
		return err
	}
	bc.head = b.Header
	return nil
}

func (bc *Blockchain) loadBlock(height uint64) (*types.Block, error) {
	blockBytes, err := bc.db.Get(blockKey(height))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrBlockNotFound
	}
	if err != nil {
		return nil, err
	}
	var block types.Block
	if err := json.Unmarshal(blockBytes, &block); err != nil {
		return nil, err
	}
	return &block, nil
}

// GetBlockByHeight retrieves a block by its height.
func (bc *Blockchain) GetBlockByHeight(height uint64) (*types.Block, error) {
	return bc.loadBlock(height)
}

// GetReceipts returns the receipts of the block at height.
func (bc *Blockchain) GetReceipts(height uint64) ([]*types.Receipt, error) {
	raw, err := bc.db.Get(receiptsKey(height))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrBlockNotFound
	}
	if err != nil {
		return nil, err
	}
	var receipts []*types.Receipt
	if err := json.Unmarshal(raw, &receipts); err != nil {
		return nil, err
	}
	return receipts, nil
}

// Head returns the latest header, or nil before the first block.
func (bc *Blockchain) Head() *types.BlockHeader {
	bc.mu.RLock()
	defer bc.mu.RUnlock()
	if bc.head == nil {
		return nil
	}
	copied := *bc.head
	return &copied
}

// GetHeight returns the height of the latest block.
func (bc *Blockchain) GetHeight() uint64 {
	bc.mu.RLock()
	defer bc.mu.RUnlock()
	if bc.head == nil {
		return 0
	}
	return bc.head.Height
}
