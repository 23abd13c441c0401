package crypto

import (
	"crypto/ecdsa"
	"crypto/rand"
	"fmt"
	"strings"

	"github.com/btcsuite/btcutil/bech32"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// AddressPrefix defines the human-readable part used when rendering addresses
// as bech32 strings.
type AddressPrefix string

const (
	RentPrefix AddressPrefix = "rent"
)

// Address is a 20-byte account identifier paired with its bech32 prefix. The
// underlying bytes are the same as the EVM-style hex address.
type Address struct {
	prefix AddressPrefix
	bytes  common.Address
}

func NewAddress(prefix AddressPrefix, b []byte) (Address, error) {
	if len(b) != common.AddressLength {
		return Address{}, fmt.Errorf("crypto: address must be %d bytes, got %d", common.AddressLength, len(b))
	}
	return Address{prefix: prefix, bytes: common.BytesToAddress(b)}, nil
}

// FromCommon wraps an EVM-style address using the default prefix.
func FromCommon(addr common.Address) Address {
	return Address{prefix: RentPrefix, bytes: addr}
}

func (a Address) String() string {
	conv, err := bech32.ConvertBits(a.bytes.Bytes(), 8, 5, true)
	if err != nil {
		return a.bytes.Hex()
	}
	encoded, err := bech32.Encode(string(a.prefix), conv)
	if err != nil {
		return a.bytes.Hex()
	}
	return encoded
}

func (a Address) Bytes() []byte { return a.bytes.Bytes() }

// Common returns the address as a go-ethereum address.
func (a Address) Common() common.Address { return a.bytes }

// Prefix returns the human-readable prefix associated with the address.
func (a Address) Prefix() AddressPrefix { return a.prefix }

// ParseAddress accepts either a 0x-prefixed hex address or a bech32 string.
func ParseAddress(value string) (Address, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return Address{}, fmt.Errorf("crypto: empty address")
	}
	if strings.HasPrefix(trimmed, "0x") || strings.HasPrefix(trimmed, "0X") {
		if !common.IsHexAddress(trimmed) {
			return Address{}, fmt.Errorf("crypto: invalid hex address %q", trimmed)
		}
		return FromCommon(common.HexToAddress(trimmed)), nil
	}
	return DecodeAddress(trimmed)
}

func DecodeAddress(addrStr string) (Address, error) {
	prefix, decoded, err := bech32.Decode(addrStr)
	if err != nil {
		return Address{}, fmt.Errorf("invalid bech32 string: %w", err)
	}
	conv, err := bech32.ConvertBits(decoded, 5, 8, false)
	if err != nil {
		return Address{}, fmt.Errorf("error converting bits: %w", err)
	}
	return NewAddress(AddressPrefix(prefix), conv)
}

// --- Key Management ---

type PrivateKey struct {
	*ecdsa.PrivateKey
}

func GeneratePrivateKey() (*PrivateKey, error) {
	key, err := ecdsa.GenerateKey(crypto.S256(), rand.Reader)
	if err != nil {
		return nil, err
	}
	return &PrivateKey{key}, nil
}

// Bytes returns the byte representation of the private key.
func (k *PrivateKey) Bytes() []byte {
	return crypto.FromECDSA(k.PrivateKey)
}

// Address returns the account controlled by the key.
func (k *PrivateKey) Address() common.Address {
	return crypto.PubkeyToAddress(k.PrivateKey.PublicKey)
}

func PrivateKeyFromBytes(b []byte) (*PrivateKey, error) {
	key, err := crypto.ToECDSA(b)
	if err != nil {
		return nil, err
	}
	return &PrivateKey{key}, nil
}

// PrivateKeyFromHex parses a hex encoded secp256k1 key with or without the 0x
// prefix.
func PrivateKeyFromHex(value string) (*PrivateKey, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(value), "0x"))
	if err != nil {
		return nil, err
	}
	return &PrivateKey{key}, nil
}
