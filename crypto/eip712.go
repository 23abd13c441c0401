package crypto

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

// SignatureLength is the size of an r||s||v secp256k1 signature.
const SignatureLength = crypto.SignatureLength

var (
	// ErrSignatureLength indicates the signature is not 65 bytes long.
	ErrSignatureLength = errors.New("crypto: signature must be 65 bytes")
	// ErrSignatureValues indicates r, s or v fall outside the accepted range.
	ErrSignatureValues = errors.New("crypto: invalid signature values")
)

// DomainFields lists the EIP712Domain members every domain in this module
// carries. The order is part of the domain type hash.
var DomainFields = []apitypes.Type{
	{Name: "name", Type: "string"},
	{Name: "version", Type: "string"},
	{Name: "chainId", Type: "uint256"},
	{Name: "verifyingContract", Type: "address"},
}

// NewDomain builds the typed-data domain bound to a deployment.
func NewDomain(name, version string, chainID *big.Int, verifyingContract common.Address) apitypes.TypedDataDomain {
	id := new(big.Int)
	if chainID != nil {
		id.Set(chainID)
	}
	return apitypes.TypedDataDomain{
		Name:              name,
		Version:           version,
		ChainId:           (*math.HexOrDecimal256)(id),
		VerifyingContract: verifyingContract.Hex(),
	}
}

// HashTypedData returns the EIP-712 digest ("\x19\x01" || domainSeparator ||
// hashStruct(message)).
func HashTypedData(td apitypes.TypedData) (common.Hash, error) {
	digest, _, err := apitypes.TypedDataAndHash(td)
	if err != nil {
		return common.Hash{}, fmt.Errorf("crypto: typed data: %w", err)
	}
	return common.BytesToHash(digest), nil
}

// RecoverSigner recovers the address that produced sig over digest. Both
// v in {0,1} and v in {27,28} are accepted; malleable high-s signatures are
// rejected.
func RecoverSigner(digest common.Hash, sig []byte) (common.Address, error) {
	if len(sig) != SignatureLength {
		return common.Address{}, ErrSignatureLength
	}
	normalized := make([]byte, SignatureLength)
	copy(normalized, sig)
	if normalized[64] >= 27 {
		normalized[64] -= 27
	}
	r := new(big.Int).SetBytes(normalized[:32])
	s := new(big.Int).SetBytes(normalized[32:64])
	if !crypto.ValidateSignatureValues(normalized[64], r, s, true) {
		return common.Address{}, ErrSignatureValues
	}
	pub, err := crypto.SigToPub(digest.Bytes(), normalized)
	if err != nil {
		return common.Address{}, err
	}
	return crypto.PubkeyToAddress(*pub), nil
}

// SignDigest signs digest and returns the signature with v in {27,28}, the
// form produced by wallets for eth_signTypedData.
func SignDigest(digest common.Hash, key *ecdsa.PrivateKey) ([]byte, error) {
	if key == nil {
		return nil, errors.New("crypto: nil private key")
	}
	sig, err := crypto.Sign(digest.Bytes(), key)
	if err != nil {
		return nil, err
	}
	sig[64] += 27
	return sig, nil
}
