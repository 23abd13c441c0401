package types

import (
	"crypto/sha256"
	"encoding/json"

	"github.com/ethereum/go-ethereum/common"
)

// BlockHeader commits to the calls applied in a block and the resulting state.
type BlockHeader struct {
	Height    uint64      `json:"height"`
	Timestamp int64       `json:"timestamp"`
	PrevHash  []byte      `json:"prevHash"`
	StateRoot common.Hash `json:"stateRoot"`
	CallRoot  common.Hash `json:"callRoot"`
}

// Block is a header plus the calls it applied, in order.
type Block struct {
	Header *BlockHeader `json:"header"`
	Calls  []*Call      `json:"calls"`
}

// Hash calculates and returns the SHA-256 hash of the block header.
func (h *BlockHeader) Hash() ([]byte, error) {
	b, err := json.Marshal(h)
	if err != nil {
		return nil, err
	}
	hash := sha256.Sum256(b)
	return hash[:], nil
}

const (
	ReceiptStatusFailed  uint8 = 0
	ReceiptStatusSuccess uint8 = 1
)

// Receipt records the outcome of one call. A failed call leaves no state
// change and no events behind.
type Receipt struct {
	CallHash common.Hash `json:"callHash"`
	Height   uint64      `json:"height"`
	Index    int         `json:"index"`
	Status   uint8       `json:"status"`
	Error    string      `json:"error,omitempty"`
	Events   []*Event    `json:"events,omitempty"`

	Err error `json:"-"`
}

// Succeeded reports whether the call was applied.
func (r *Receipt) Succeeded() bool { return r != nil && r.Status == ReceiptStatusSuccess }
