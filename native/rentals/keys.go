package rentals

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

const (
	paramsKind        = "params"
	contractNonceKind = "nonce/contract"
	signerNonceKind   = "nonce/signer"
	assetNonceKind    = "nonce/asset"
	rentalRecordKind  = "rental"
)

func tokenWord(id *big.Int) []byte {
	return common.BigToHash(cloneBig(id)).Bytes()
}

// key namespaces state under the engine's own address.
func (e *Engine) key(kind string, parts ...[]byte) []byte {
	buf := make([]byte, 0, 64+len(kind))
	buf = append(buf, "rentals/"...)
	buf = append(buf, e.address.Bytes()...)
	buf = append(buf, '/')
	buf = append(buf, kind...)
	for _, part := range parts {
		buf = append(buf, '/')
		buf = append(buf, part...)
	}
	return buf
}

func (e *Engine) paramsKey() []byte { return e.key(paramsKind) }

func (e *Engine) contractNonceKey() []byte { return e.key(contractNonceKind) }

func (e *Engine) signerNonceKey(signer common.Address) []byte {
	return e.key(signerNonceKind, signer.Bytes())
}

func (e *Engine) assetNonceKey(contract common.Address, tokenID *big.Int, signer common.Address) []byte {
	return e.key(assetNonceKind, contract.Bytes(), tokenWord(tokenID), signer.Bytes())
}

func (e *Engine) rentalKey(contract common.Address, tokenID *big.Int) []byte {
	return e.key(rentalRecordKind, contract.Bytes(), tokenWord(tokenID))
}
