package types

import (
	"crypto/ecdsa"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
)

var (
	ErrMissingSignature = errors.New("call: missing signature")
	ErrSenderMismatch   = errors.New("call: signature does not match sender")
)

// Call is a signed invocation of a contract hosted by the chain. The sender
// is recovered from the signature; From is carried for convenience and must
// match it.
type Call struct {
	ChainID   *big.Int       `json:"chainId"`
	Nonce     uint64         `json:"nonce"`
	From      common.Address `json:"from"`
	To        common.Address `json:"to"`
	Data      []byte         `json:"data"`
	Signature []byte         `json:"signature"`
}

// SigningHash is the digest the sender signs.
func (c *Call) SigningHash() common.Hash {
	chainID := c.ChainID
	if chainID == nil {
		chainID = new(big.Int)
	}
	payload, _ := rlp.EncodeToBytes([]interface{}{chainID, c.Nonce, c.To, c.Data})
	return crypto.Keccak256Hash(payload)
}

// Hash identifies the call including its signature.
func (c *Call) Hash() common.Hash {
	chainID := c.ChainID
	if chainID == nil {
		chainID = new(big.Int)
	}
	payload, _ := rlp.EncodeToBytes([]interface{}{chainID, c.Nonce, c.From, c.To, c.Data, c.Signature})
	return crypto.Keccak256Hash(payload)
}

// Sign fills From and Signature using key.
func (c *Call) Sign(key *ecdsa.PrivateKey) error {
	digest := c.SigningHash()
	sig, err := crypto.Sign(digest.Bytes(), key)
	if err != nil {
		return err
	}
	c.From = crypto.PubkeyToAddress(key.PublicKey)
	c.Signature = sig
	return nil
}

// Sender recovers the signer and checks it against From.
func (c *Call) Sender() (common.Address, error) {
	if len(c.Signature) != crypto.SignatureLength {
		return common.Address{}, ErrMissingSignature
	}
	digest := c.SigningHash()
	pub, err := crypto.SigToPub(digest.Bytes(), c.Signature)
	if err != nil {
		return common.Address{}, err
	}
	sender := crypto.PubkeyToAddress(*pub)
	if c.From != (common.Address{}) && c.From != sender {
		return common.Address{}, ErrSenderMismatch
	}
	return sender, nil
}
