package rentals

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

const listingComponents = `[
	{"name":"signer","type":"address"},
	{"name":"contractAddress","type":"address"},
	{"name":"tokenId","type":"uint256"},
	{"name":"expiration","type":"uint256"},
	{"name":"indexes","type":"uint256[3]"},
	{"name":"pricePerDay","type":"uint256[]"},
	{"name":"maxDays","type":"uint256[]"},
	{"name":"minDays","type":"uint256[]"},
	{"name":"target","type":"address"},
	{"name":"signature","type":"bytes"}
]`

const offerComponents = `[
	{"name":"signer","type":"address"},
	{"name":"contractAddress","type":"address"},
	{"name":"tokenId","type":"uint256"},
	{"name":"expiration","type":"uint256"},
	{"name":"indexes","type":"uint256[3]"},
	{"name":"pricePerDay","type":"uint256"},
	{"name":"rentalDays","type":"uint256"},
	{"name":"operator","type":"address"},
	{"name":"fingerprint","type":"bytes32"},
	{"name":"signature","type":"bytes"}
]`

// EngineABI is the call surface of the engine. Dispatch accepts calls encoded
// against it.
const EngineABI = `[
{"type":"function","name":"acceptListing","stateMutability":"nonpayable","outputs":[],"inputs":[
	{"name":"listing","type":"tuple","internalType":"struct Rentals.Listing","components":` + listingComponents + `},
	{"name":"operator","type":"address"},
	{"name":"index","type":"uint256"},
	{"name":"rentalDays","type":"uint256"},
	{"name":"fingerprint","type":"bytes32"}]},
{"type":"function","name":"acceptOffer","stateMutability":"nonpayable","outputs":[],"inputs":[
	{"name":"offer","type":"tuple","internalType":"struct Rentals.Offer","components":` + offerComponents + `}]},
{"type":"function","name":"claim","stateMutability":"nonpayable","outputs":[],"inputs":[
	{"name":"contractAddresses","type":"address[]"},
	{"name":"tokenIds","type":"uint256[]"}]},
{"type":"function","name":"setUpdateOperator","stateMutability":"nonpayable","outputs":[],"inputs":[
	{"name":"contractAddresses","type":"address[]"},
	{"name":"tokenIds","type":"uint256[]"},
	{"name":"operators","type":"address[]"}]},
{"type":"function","name":"setManyLandUpdateOperator","stateMutability":"nonpayable","outputs":[],"inputs":[
	{"name":"contractAddress","type":"address"},
	{"name":"tokenId","type":"uint256"},
	{"name":"landIds","type":"uint256[][]"},
	{"name":"operators","type":"address[]"}]},
{"type":"function","name":"bumpContractNonce","stateMutability":"nonpayable","outputs":[],"inputs":[]},
{"type":"function","name":"bumpSignerNonce","stateMutability":"nonpayable","outputs":[],"inputs":[]},
{"type":"function","name":"bumpAssetNonce","stateMutability":"nonpayable","outputs":[],"inputs":[
	{"name":"contractAddress","type":"address"},
	{"name":"tokenId","type":"uint256"}]},
{"type":"function","name":"setToken","stateMutability":"nonpayable","outputs":[],"inputs":[
	{"name":"token","type":"address"}]},
{"type":"function","name":"setFeeCollector","stateMutability":"nonpayable","outputs":[],"inputs":[
	{"name":"feeCollector","type":"address"}]},
{"type":"function","name":"setFee","stateMutability":"nonpayable","outputs":[],"inputs":[
	{"name":"fee","type":"uint256"}]},
{"type":"function","name":"transferOwnership","stateMutability":"nonpayable","outputs":[],"inputs":[
	{"name":"newOwner","type":"address"}]},
{"type":"function","name":"executeMetaTransaction","stateMutability":"payable","outputs":[{"name":"","type":"bytes"}],"inputs":[
	{"name":"userAddress","type":"address"},
	{"name":"functionData","type":"bytes"},
	{"name":"signature","type":"bytes"}]}
]`

var engineABI = mustParseABI(EngineABI)

func mustParseABI(definition string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(definition))
	if err != nil {
		panic(fmt.Sprintf("rentals: invalid abi: %v", err))
	}
	return parsed
}

// ABI returns the parsed engine ABI.
func ABI() abi.ABI { return engineABI }

// listingTuple and offerTuple mirror the ABI components field by field; the
// decoder copies tuples positionally.
type listingTuple struct {
	Signer          common.Address
	ContractAddress common.Address
	TokenId         *big.Int
	Expiration      *big.Int
	Indexes         [3]*big.Int
	PricePerDay     []*big.Int
	MaxDays         []*big.Int
	MinDays         []*big.Int
	Target          common.Address
	Signature       []byte
}

type offerTuple struct {
	Signer          common.Address
	ContractAddress common.Address
	TokenId         *big.Int
	Expiration      *big.Int
	Indexes         [3]*big.Int
	PricePerDay     *big.Int
	RentalDays      *big.Int
	Operator        common.Address
	Fingerprint     [32]byte
	Signature       []byte
}

func indexesOf(in [3]*big.Int) [3]*big.Int {
	return [3]*big.Int{cloneBig(in[0]), cloneBig(in[1]), cloneBig(in[2])}
}

func bigs(in []*big.Int) []*big.Int {
	out := make([]*big.Int, len(in))
	for i, v := range in {
		out[i] = cloneBig(v)
	}
	return out
}

func toListingTuple(l *Listing) listingTuple {
	return listingTuple{
		Signer:          l.Signer,
		ContractAddress: l.ContractAddress,
		TokenId:         cloneBig(l.TokenID),
		Expiration:      cloneBig(l.Expiration),
		Indexes:         indexesOf(l.Indexes),
		PricePerDay:     bigs(l.PricePerDay),
		MaxDays:         bigs(l.MaxDays),
		MinDays:         bigs(l.MinDays),
		Target:          l.Target,
		Signature:       append([]byte(nil), l.Signature...),
	}
}

func (t listingTuple) listing() *Listing {
	return &Listing{
		Signer:          t.Signer,
		ContractAddress: t.ContractAddress,
		TokenID:         cloneBig(t.TokenId),
		Expiration:      cloneBig(t.Expiration),
		Indexes:         indexesOf(t.Indexes),
		PricePerDay:     bigs(t.PricePerDay),
		MaxDays:         bigs(t.MaxDays),
		MinDays:         bigs(t.MinDays),
		Target:          t.Target,
		Signature:       append([]byte(nil), t.Signature...),
	}
}

func toOfferTuple(o *Offer) offerTuple {
	return offerTuple{
		Signer:          o.Signer,
		ContractAddress: o.ContractAddress,
		TokenId:         cloneBig(o.TokenID),
		Expiration:      cloneBig(o.Expiration),
		Indexes:         indexesOf(o.Indexes),
		PricePerDay:     cloneBig(o.PricePerDay),
		RentalDays:      cloneBig(o.RentalDays),
		Operator:        o.Operator,
		Fingerprint:     o.Fingerprint,
		Signature:       append([]byte(nil), o.Signature...),
	}
}

func (t offerTuple) offer() *Offer {
	return &Offer{
		Signer:          t.Signer,
		ContractAddress: t.ContractAddress,
		TokenID:         cloneBig(t.TokenId),
		Expiration:      cloneBig(t.Expiration),
		Indexes:         indexesOf(t.Indexes),
		PricePerDay:     cloneBig(t.PricePerDay),
		RentalDays:      cloneBig(t.RentalDays),
		Operator:        t.Operator,
		Fingerprint:     t.Fingerprint,
		Signature:       append([]byte(nil), t.Signature...),
	}
}

// EncodeOfferPayload returns abi.encode(offer), the payload assets carry when
// transferring into the engine to settle an offer.
func EncodeOfferPayload(o *Offer) ([]byte, error) {
	if o == nil {
		return nil, errors.New("rentals: nil offer")
	}
	return engineABI.Methods["acceptOffer"].Inputs.Pack(toOfferTuple(o))
}

// DecodeOfferPayload parses a transfer payload produced by EncodeOfferPayload.
func DecodeOfferPayload(data []byte) (*Offer, error) {
	args := engineABI.Methods["acceptOffer"].Inputs
	values, err := args.Unpack(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCall, err)
	}
	var decoded struct{ Offer offerTuple }
	if err := args.Copy(&decoded, values); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCall, err)
	}
	return decoded.Offer.offer(), nil
}

func PackAcceptListing(l *Listing, operator common.Address, index, rentalDays *big.Int, fingerprint [32]byte) ([]byte, error) {
	if l == nil {
		return nil, errors.New("rentals: nil listing")
	}
	return engineABI.Pack("acceptListing", toListingTuple(l), operator, cloneBig(index), cloneBig(rentalDays), fingerprint)
}

func PackAcceptOffer(o *Offer) ([]byte, error) {
	if o == nil {
		return nil, errors.New("rentals: nil offer")
	}
	return engineABI.Pack("acceptOffer", toOfferTuple(o))
}

func PackClaim(contracts []common.Address, tokenIDs []*big.Int) ([]byte, error) {
	return engineABI.Pack("claim", contracts, bigs(tokenIDs))
}

func PackSetUpdateOperator(contracts []common.Address, tokenIDs []*big.Int, operators []common.Address) ([]byte, error) {
	return engineABI.Pack("setUpdateOperator", contracts, bigs(tokenIDs), operators)
}

func PackSetManyLandUpdateOperator(contract common.Address, tokenID *big.Int, landIDs [][]*big.Int, operators []common.Address) ([]byte, error) {
	groups := make([][]*big.Int, len(landIDs))
	for i, ids := range landIDs {
		groups[i] = bigs(ids)
	}
	return engineABI.Pack("setManyLandUpdateOperator", contract, cloneBig(tokenID), groups, operators)
}

func PackBumpContractNonce() ([]byte, error) { return engineABI.Pack("bumpContractNonce") }

func PackBumpSignerNonce() ([]byte, error) { return engineABI.Pack("bumpSignerNonce") }

func PackBumpAssetNonce(contract common.Address, tokenID *big.Int) ([]byte, error) {
	return engineABI.Pack("bumpAssetNonce", contract, cloneBig(tokenID))
}

func PackExecuteMetaTransaction(user common.Address, functionData, signature []byte) ([]byte, error) {
	return engineABI.Pack("executeMetaTransaction", user, functionData, signature)
}
