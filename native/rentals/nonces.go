package rentals

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"rentalchain/core/types"
)

// Nonce scopes reported in events and metrics.
const (
	ScopeContract = "contract"
	ScopeSigner   = "signer"
	ScopeAsset    = "asset"
)

func (e *Engine) loadNonce(key []byte) (*big.Int, error) {
	if e.store == nil {
		return nil, ErrNilState
	}
	value := new(big.Int)
	ok, err := e.store.KVGet(key, value)
	if err != nil {
		return nil, err
	}
	if !ok {
		return big.NewInt(0), nil
	}
	return value, nil
}

func (e *Engine) incrementNonce(key []byte) (*big.Int, error) {
	current, err := e.loadNonce(key)
	if err != nil {
		return nil, err
	}
	next := new(big.Int).Add(current, big.NewInt(1))
	if err := e.store.KVPut(key, next); err != nil {
		return nil, err
	}
	return next, nil
}

// ContractNonce returns the global nonce.
func (e *Engine) ContractNonce() (*big.Int, error) {
	return e.loadNonce(e.contractNonceKey())
}

// SignerNonce returns the nonce shared by everything signer has signed.
func (e *Engine) SignerNonce(signer common.Address) (*big.Int, error) {
	return e.loadNonce(e.signerNonceKey(signer))
}

// AssetNonce returns the nonce scoped to one asset and one signer.
func (e *Engine) AssetNonce(contract common.Address, tokenID *big.Int, signer common.Address) (*big.Int, error) {
	return e.loadNonce(e.assetNonceKey(contract, tokenID, signer))
}

// Nonces returns the tuple a new message from signer for the asset must carry.
func (e *Engine) Nonces(contract common.Address, tokenID *big.Int, signer common.Address) (Nonces, error) {
	global, err := e.ContractNonce()
	if err != nil {
		return Nonces{}, err
	}
	own, err := e.SignerNonce(signer)
	if err != nil {
		return Nonces{}, err
	}
	asset, err := e.AssetNonce(contract, tokenID, signer)
	if err != nil {
		return Nonces{}, err
	}
	return Nonces{Contract: global, Signer: own, Asset: asset}, nil
}

// BumpContractNonce invalidates every message signed against the current
// global nonce. Only the owner may call it.
func (e *Engine) BumpContractNonce(caller common.Address) error {
	return e.atomic("bumpContractNonce", func() error {
		if err := e.requireOwner(caller); err != nil {
			return err
		}
		next, err := e.incrementNonce(e.contractNonceKey())
		if err != nil {
			return err
		}
		e.metrics.ObserveNonceBump(ScopeContract)
		e.emit(newContractNonceEvent(next, caller))
		return nil
	})
}

// BumpSignerNonce invalidates every message caller has signed.
func (e *Engine) BumpSignerNonce(caller common.Address) error {
	return e.atomic("bumpSignerNonce", func() error {
		next, err := e.incrementNonce(e.signerNonceKey(caller))
		if err != nil {
			return err
		}
		e.metrics.ObserveNonceBump(ScopeSigner)
		e.emit(newSignerNonceEvent(caller, next, caller))
		return nil
	})
}

// BumpAssetNonce invalidates every message caller has signed for one asset.
func (e *Engine) BumpAssetNonce(caller, contract common.Address, tokenID *big.Int) error {
	return e.atomic("bumpAssetNonce", func() error {
		evt, err := e.bumpAssetNonce(contract, tokenID, caller, caller)
		if err != nil {
			return err
		}
		e.emit(evt)
		return nil
	})
}

func (e *Engine) bumpAssetNonce(contract common.Address, tokenID *big.Int, signer, sender common.Address) (*types.Event, error) {
	next, err := e.incrementNonce(e.assetNonceKey(contract, tokenID, signer))
	if err != nil {
		return nil, err
	}
	e.metrics.ObserveNonceBump(ScopeAsset)
	return newAssetNonceEvent(contract, tokenID, signer, next, sender), nil
}

// verifyNonces checks the tuple carried by a message against current state,
// tier by tier: global, signer, asset.
func (e *Engine) verifyNonces(indexes [3]*big.Int, signer, contract common.Address, tokenID *big.Int) error {
	global, err := e.ContractNonce()
	if err != nil {
		return err
	}
	if cloneBig(indexes[NonceContract]).Cmp(global) != 0 {
		return ErrContractNonceMismatch
	}
	own, err := e.SignerNonce(signer)
	if err != nil {
		return err
	}
	if cloneBig(indexes[NonceSigner]).Cmp(own) != 0 {
		return ErrSignerNonceMismatch
	}
	asset, err := e.AssetNonce(contract, tokenID, signer)
	if err != nil {
		return err
	}
	if cloneBig(indexes[NonceAsset]).Cmp(asset) != 0 {
		return ErrAssetNonceMismatch
	}
	return nil
}
