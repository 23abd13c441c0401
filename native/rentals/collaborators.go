package rentals

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// Every collaborator method receives the immediate caller so the collaborator
// can apply its own authorization (approvals, allowances).

// Asset is the minimal non-fungible contract the engine can rent out.
type Asset interface {
	OwnerOf(tokenID *big.Int) (common.Address, error)
	TransferFrom(caller, from, to common.Address, tokenID *big.Int) error
	// SafeTransferFrom moves the asset and then invokes the receiver hook of
	// the recipient when it has one, failing if the hook fails.
	SafeTransferFrom(caller, from, to common.Address, tokenID *big.Int, data []byte) error
}

// Operatable assets accept a delegated update operator.
type Operatable interface {
	SetUpdateOperator(caller common.Address, tokenID *big.Int, operator common.Address) error
}

// BulkOperatable composite assets delegate many sub-components at once.
type BulkOperatable interface {
	SetManyLandUpdateOperator(caller common.Address, tokenID *big.Int, landIDs []*big.Int, operator common.Address) error
}

// InterfaceProber reports declared capabilities by ERC-165 interface id.
type InterfaceProber interface {
	SupportsInterface(id [4]byte) bool
}

// FingerprintVerifier is implemented by composite assets whose content can
// change while the token id stays the same.
type FingerprintVerifier interface {
	VerifyFingerprint(tokenID *big.Int, fingerprint []byte) (bool, error)
}

// PaymentToken is the fungible token rentals are paid in.
type PaymentToken interface {
	TransferFrom(caller, from, to common.Address, amount *big.Int) error
}

// Collaborators resolves contract addresses to the collaborators deployed at
// them.
type Collaborators interface {
	Asset(contract common.Address) (Asset, bool)
	PaymentToken(contract common.Address) (PaymentToken, bool)
}

// FingerprintInterfaceID is the capability id an asset declares when it
// supports fingerprint verification.
var FingerprintInterfaceID = selector("verifyFingerprint(uint256,bytes)")

// ERC721ReceivedSelector is returned by receiver hooks that accept a transfer.
var ERC721ReceivedSelector = selector("onERC721Received(address,address,uint256,bytes)")

func selector(signature string) [4]byte {
	var id [4]byte
	copy(id[:], ethcrypto.Keccak256([]byte(signature))[:4])
	return id
}

func (e *Engine) asset(contract common.Address) (Asset, error) {
	if e.collab == nil {
		return nil, ErrUnknownAsset
	}
	asset, ok := e.collab.Asset(contract)
	if !ok || asset == nil {
		return nil, ErrUnknownAsset
	}
	return asset, nil
}

// fingerprintVerifier probes the asset. declared is true when the asset
// claims fingerprint support, in which case a nil verifier means the claim
// cannot be honoured.
func fingerprintVerifier(asset Asset) (verifier FingerprintVerifier, declared bool) {
	prober, ok := asset.(InterfaceProber)
	if !ok || !prober.SupportsInterface(FingerprintInterfaceID) {
		return nil, false
	}
	verifier, _ = asset.(FingerprintVerifier)
	return verifier, true
}
