package rpc

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"rentalchain/core/types"
	"rentalchain/crypto"
	"rentalchain/native/rentals"
)

// CallAuth authorizes a mutating method. The signature covers the call the
// server rebuilds from the method parameters, as produced by Authorize.
type CallAuth struct {
	Nonce     hexutil.Uint64 `json:"nonce"`
	From      string         `json:"from"`
	Signature hexutil.Bytes  `json:"signature"`
}

// Authorize signs the call to contract with data for the holder of key.
func Authorize(chainID *big.Int, nonce uint64, contract common.Address, data []byte, key *ecdsa.PrivateKey) (CallAuth, error) {
	call := &types.Call{ChainID: chainID, Nonce: nonce, To: contract, Data: data}
	if err := call.Sign(key); err != nil {
		return CallAuth{}, err
	}
	return CallAuth{Nonce: hexutil.Uint64(nonce), From: call.From.Hex(), Signature: call.Signature}, nil
}

func (a CallAuth) call(chainID *big.Int, contract common.Address, data []byte) (*types.Call, error) {
	from, err := parseAddress("from", a.From)
	if err != nil {
		return nil, err
	}
	return &types.Call{
		ChainID:   chainID,
		Nonce:     uint64(a.Nonce),
		From:      from,
		To:        contract,
		Data:      data,
		Signature: a.Signature,
	}, nil
}

// CallJSON is a fully signed call to any hosted contract.
type CallJSON struct {
	ChainID   *hexutil.Big   `json:"chainId"`
	Nonce     hexutil.Uint64 `json:"nonce"`
	From      string         `json:"from"`
	To        string         `json:"to"`
	Data      hexutil.Bytes  `json:"data"`
	Signature hexutil.Bytes  `json:"signature"`
}

// NewCallJSON renders a signed call.
func NewCallJSON(c *types.Call) CallJSON {
	return CallJSON{
		ChainID:   (*hexutil.Big)(c.ChainID),
		Nonce:     hexutil.Uint64(c.Nonce),
		From:      c.From.Hex(),
		To:        c.To.Hex(),
		Data:      c.Data,
		Signature: c.Signature,
	}
}

// Call converts the JSON form back to a call.
func (j CallJSON) Call() (*types.Call, error) {
	from, err := parseAddress("from", j.From)
	if err != nil {
		return nil, err
	}
	to, err := parseAddress("to", j.To)
	if err != nil {
		return nil, err
	}
	return &types.Call{
		ChainID:   (*big.Int)(j.ChainID),
		Nonce:     uint64(j.Nonce),
		From:      from,
		To:        to,
		Data:      j.Data,
		Signature: j.Signature,
	}, nil
}

// ListingJSON is the wire form of a signed listing. Integers are decimal
// strings; addresses accept hex or bech32.
type ListingJSON struct {
	Signer          string        `json:"signer"`
	ContractAddress string        `json:"contractAddress"`
	TokenID         string        `json:"tokenId"`
	Expiration      string        `json:"expiration"`
	Indexes         [3]string     `json:"indexes"`
	PricePerDay     []string      `json:"pricePerDay"`
	MaxDays         []string      `json:"maxDays"`
	MinDays         []string      `json:"minDays"`
	Target          string        `json:"target,omitempty"`
	Signature       hexutil.Bytes `json:"signature"`
}

// NewListingJSON renders l.
func NewListingJSON(l *rentals.Listing) ListingJSON {
	out := ListingJSON{
		Signer:          l.Signer.Hex(),
		ContractAddress: l.ContractAddress.Hex(),
		TokenID:         decimal(l.TokenID),
		Expiration:      decimal(l.Expiration),
		PricePerDay:     decimals(l.PricePerDay),
		MaxDays:         decimals(l.MaxDays),
		MinDays:         decimals(l.MinDays),
		Signature:       l.Signature,
	}
	for i, idx := range l.Indexes {
		out.Indexes[i] = decimal(idx)
	}
	if l.Target != (common.Address{}) {
		out.Target = l.Target.Hex()
	}
	return out
}

// Listing parses the wire form.
func (j ListingJSON) Listing() (*rentals.Listing, error) {
	var (
		l   rentals.Listing
		err error
	)
	if l.Signer, err = parseAddress("signer", j.Signer); err != nil {
		return nil, err
	}
	if l.ContractAddress, err = parseAddress("contractAddress", j.ContractAddress); err != nil {
		return nil, err
	}
	if l.TokenID, err = parseUint("tokenId", j.TokenID); err != nil {
		return nil, err
	}
	if l.Expiration, err = parseUint("expiration", j.Expiration); err != nil {
		return nil, err
	}
	for i, raw := range j.Indexes {
		if l.Indexes[i], err = parseUint(fmt.Sprintf("indexes[%d]", i), raw); err != nil {
			return nil, err
		}
	}
	if l.PricePerDay, err = parseUints("pricePerDay", j.PricePerDay); err != nil {
		return nil, err
	}
	if l.MaxDays, err = parseUints("maxDays", j.MaxDays); err != nil {
		return nil, err
	}
	if l.MinDays, err = parseUints("minDays", j.MinDays); err != nil {
		return nil, err
	}
	if strings.TrimSpace(j.Target) != "" {
		if l.Target, err = parseAddress("target", j.Target); err != nil {
			return nil, err
		}
	}
	l.Signature = j.Signature
	return &l, nil
}

// OfferJSON is the wire form of a signed offer.
type OfferJSON struct {
	Signer          string        `json:"signer"`
	ContractAddress string        `json:"contractAddress"`
	TokenID         string        `json:"tokenId"`
	Expiration      string        `json:"expiration"`
	Indexes         [3]string     `json:"indexes"`
	PricePerDay     string        `json:"pricePerDay"`
	RentalDays      string        `json:"rentalDays"`
	Operator        string        `json:"operator"`
	Fingerprint     common.Hash   `json:"fingerprint"`
	Signature       hexutil.Bytes `json:"signature"`
}

// NewOfferJSON renders o.
func NewOfferJSON(o *rentals.Offer) OfferJSON {
	out := OfferJSON{
		Signer:          o.Signer.Hex(),
		ContractAddress: o.ContractAddress.Hex(),
		TokenID:         decimal(o.TokenID),
		Expiration:      decimal(o.Expiration),
		PricePerDay:     decimal(o.PricePerDay),
		RentalDays:      decimal(o.RentalDays),
		Operator:        o.Operator.Hex(),
		Fingerprint:     common.Hash(o.Fingerprint),
		Signature:       o.Signature,
	}
	for i, idx := range o.Indexes {
		out.Indexes[i] = decimal(idx)
	}
	return out
}

// Offer parses the wire form.
func (j OfferJSON) Offer() (*rentals.Offer, error) {
	var (
		o   rentals.Offer
		err error
	)
	if o.Signer, err = parseAddress("signer", j.Signer); err != nil {
		return nil, err
	}
	if o.ContractAddress, err = parseAddress("contractAddress", j.ContractAddress); err != nil {
		return nil, err
	}
	if o.TokenID, err = parseUint("tokenId", j.TokenID); err != nil {
		return nil, err
	}
	if o.Expiration, err = parseUint("expiration", j.Expiration); err != nil {
		return nil, err
	}
	for i, raw := range j.Indexes {
		if o.Indexes[i], err = parseUint(fmt.Sprintf("indexes[%d]", i), raw); err != nil {
			return nil, err
		}
	}
	if o.PricePerDay, err = parseUint("pricePerDay", j.PricePerDay); err != nil {
		return nil, err
	}
	if o.RentalDays, err = parseUint("rentalDays", j.RentalDays); err != nil {
		return nil, err
	}
	if o.Operator, err = parseAddress("operator", j.Operator); err != nil {
		return nil, err
	}
	o.Fingerprint = j.Fingerprint
	o.Signature = j.Signature
	return &o, nil
}

// RentalResult is the ledger record of one asset.
type RentalResult struct {
	Contract string `json:"contract"`
	TokenID  string `json:"tokenId"`
	Lessor   string `json:"lessor"`
	Tenant   string `json:"tenant"`
	EndDate  string `json:"endDate"`
	IsRented bool   `json:"isRented"`
}

// NoncesResult carries the three replay-protection counters in signing order.
type NoncesResult struct {
	Contract string    `json:"contract"`
	Signer   string    `json:"signer"`
	Asset    string    `json:"asset"`
	Indexes  [3]string `json:"indexes"`
}

// ParamsResult mirrors the administrative configuration.
type ParamsResult struct {
	Address      string `json:"address"`
	Owner        string `json:"owner"`
	Token        string `json:"token"`
	FeeCollector string `json:"feeCollector"`
	Fee          uint64 `json:"fee"`
	ChainID      string `json:"chainId"`
}

// ReceiptResult reflects the outcome of an applied call.
type ReceiptResult struct {
	CallHash string         `json:"callHash"`
	Height   uint64         `json:"height"`
	Index    int            `json:"index"`
	Status   string         `json:"status"`
	Error    string         `json:"error,omitempty"`
	Events   []*types.Event `json:"events"`
}

func newReceiptResult(r *types.Receipt) ReceiptResult {
	status := "success"
	if !r.Succeeded() {
		status = "failed"
	}
	events := r.Events
	if events == nil {
		events = []*types.Event{}
	}
	return ReceiptResult{
		CallHash: r.CallHash.Hex(),
		Height:   r.Height,
		Index:    r.Index,
		Status:   status,
		Error:    r.Error,
		Events:   events,
	}
}

func decimal(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func decimals(values []*big.Int) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = decimal(v)
	}
	return out
}

func parseAddress(field, value string) (common.Address, error) {
	addr, err := crypto.ParseAddress(value)
	if err != nil {
		return common.Address{}, fmt.Errorf("%s: %w", field, err)
	}
	return addr.Common(), nil
}

func parseAddresses(field string, values []string) ([]common.Address, error) {
	out := make([]common.Address, len(values))
	for i, v := range values {
		addr, err := parseAddress(fmt.Sprintf("%s[%d]", field, i), v)
		if err != nil {
			return nil, err
		}
		out[i] = addr
	}
	return out, nil
}

func parseUint(field, value string) (*big.Int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, fmt.Errorf("%s: value required", field)
	}
	v, ok := new(big.Int).SetString(trimmed, 0)
	if !ok || v.Sign() < 0 || v.BitLen() > 256 {
		return nil, fmt.Errorf("%s: invalid unsigned integer %q", field, value)
	}
	return v, nil
}

func parseUints(field string, values []string) ([]*big.Int, error) {
	out := make([]*big.Int, len(values))
	for i, v := range values {
		parsed, err := parseUint(fmt.Sprintf("%s[%d]", field, i), v)
		if err != nil {
			return nil, err
		}
		out[i] = parsed
	}
	return out, nil
}
