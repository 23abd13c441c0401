package rentals

import (
	"crypto/ecdsa"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"

	rcrypto "rentalchain/crypto"
)

const (
	DomainName    = "Rentals"
	DomainVersion = "1"
)

// Domain binds signatures to one deployment of the engine on one chain.
type Domain struct {
	ChainID           *big.Int
	VerifyingContract common.Address
}

var typedDataTypes = apitypes.Types{
	"EIP712Domain": rcrypto.DomainFields,
	"Listing": {
		{Name: "signer", Type: "address"},
		{Name: "contractAddress", Type: "address"},
		{Name: "tokenId", Type: "uint256"},
		{Name: "expiration", Type: "uint256"},
		{Name: "indexes", Type: "uint256[3]"},
		{Name: "pricePerDay", Type: "uint256[]"},
		{Name: "maxDays", Type: "uint256[]"},
		{Name: "minDays", Type: "uint256[]"},
		{Name: "target", Type: "address"},
	},
	"Offer": {
		{Name: "signer", Type: "address"},
		{Name: "contractAddress", Type: "address"},
		{Name: "tokenId", Type: "uint256"},
		{Name: "expiration", Type: "uint256"},
		{Name: "indexes", Type: "uint256[3]"},
		{Name: "pricePerDay", Type: "uint256"},
		{Name: "rentalDays", Type: "uint256"},
		{Name: "operator", Type: "address"},
		{Name: "fingerprint", Type: "bytes32"},
	},
}

func (d Domain) typedData(primary string, message apitypes.TypedDataMessage) apitypes.TypedData {
	return apitypes.TypedData{
		Types:       typedDataTypes,
		PrimaryType: primary,
		Domain:      rcrypto.NewDomain(DomainName, DomainVersion, d.ChainID, d.VerifyingContract),
		Message:     message,
	}
}

func uintValues(values []*big.Int) []interface{} {
	out := make([]interface{}, len(values))
	for i, v := range values {
		out[i] = cloneBig(v).String()
	}
	return out
}

func listingMessage(l *Listing) apitypes.TypedDataMessage {
	return apitypes.TypedDataMessage{
		"signer":          l.Signer.Hex(),
		"contractAddress": l.ContractAddress.Hex(),
		"tokenId":         cloneBig(l.TokenID).String(),
		"expiration":      cloneBig(l.Expiration).String(),
		"indexes":         uintValues(l.Indexes[:]),
		"pricePerDay":     uintValues(l.PricePerDay),
		"maxDays":         uintValues(l.MaxDays),
		"minDays":         uintValues(l.MinDays),
		"target":          l.Target.Hex(),
	}
}

func offerMessage(o *Offer) apitypes.TypedDataMessage {
	return apitypes.TypedDataMessage{
		"signer":          o.Signer.Hex(),
		"contractAddress": o.ContractAddress.Hex(),
		"tokenId":         cloneBig(o.TokenID).String(),
		"expiration":      cloneBig(o.Expiration).String(),
		"indexes":         uintValues(o.Indexes[:]),
		"pricePerDay":     cloneBig(o.PricePerDay).String(),
		"rentalDays":      cloneBig(o.RentalDays).String(),
		"operator":        o.Operator.Hex(),
		"fingerprint":     o.Fingerprint[:],
	}
}

// HashListing returns the EIP-712 digest the lessor signs for l. The
// signature field is not part of the digest.
func HashListing(d Domain, l *Listing) (common.Hash, error) {
	return rcrypto.HashTypedData(d.typedData("Listing", listingMessage(l)))
}

// HashOffer returns the EIP-712 digest the tenant signs for o.
func HashOffer(d Domain, o *Offer) (common.Hash, error) {
	return rcrypto.HashTypedData(d.typedData("Offer", offerMessage(o)))
}

// RecoverListingSigner recovers the address that signed l.Signature. The
// caller compares it against l.Signer.
func RecoverListingSigner(d Domain, l *Listing) (common.Address, error) {
	digest, err := HashListing(d, l)
	if err != nil {
		return common.Address{}, err
	}
	return rcrypto.RecoverSigner(digest, l.Signature)
}

func RecoverOfferSigner(d Domain, o *Offer) (common.Address, error) {
	digest, err := HashOffer(d, o)
	if err != nil {
		return common.Address{}, err
	}
	return rcrypto.RecoverSigner(digest, o.Signature)
}

// SignListing fills l.Signature using key.
func SignListing(d Domain, l *Listing, key *ecdsa.PrivateKey) error {
	digest, err := HashListing(d, l)
	if err != nil {
		return err
	}
	sig, err := rcrypto.SignDigest(digest, key)
	if err != nil {
		return err
	}
	l.Signature = sig
	return nil
}

// SignOffer fills o.Signature using key.
func SignOffer(d Domain, o *Offer, key *ecdsa.PrivateKey) error {
	digest, err := HashOffer(d, o)
	if err != nil {
		return err
	}
	sig, err := rcrypto.SignDigest(digest, key)
	if err != nil {
		return err
	}
	o.Signature = sig
	return nil
}
