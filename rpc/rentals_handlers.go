package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"rentalchain/core/types"
	"rentalchain/native/rentals"
)

const (
	moduleRentals = "rentals"
	moduleChain   = "chain"
	moduleToken   = "token"
	moduleAsset   = "asset"
	moduleMetaTx  = "metatx"
)

func (s *Server) routes() map[string]method {
	mutating := func(module string, fn handlerFunc) method {
		return method{module: module, mutating: true, handle: fn}
	}
	read := func(module string, fn handlerFunc) method {
		return method{module: module, handle: fn}
	}
	return map[string]method{
		"rentals_acceptListing":             mutating(moduleRentals, s.handleAcceptListing),
		"rentals_acceptOffer":               mutating(moduleRentals, s.handleAcceptOffer),
		"rentals_claim":                     mutating(moduleRentals, s.handleClaim),
		"rentals_setUpdateOperator":         mutating(moduleRentals, s.handleSetUpdateOperator),
		"rentals_setManyLandUpdateOperator": mutating(moduleRentals, s.handleSetManyLandUpdateOperator),
		"rentals_bumpContractNonce":         mutating(moduleRentals, s.handleBumpContractNonce),
		"rentals_bumpSignerNonce":           mutating(moduleRentals, s.handleBumpSignerNonce),
		"rentals_bumpAssetNonce":            mutating(moduleRentals, s.handleBumpAssetNonce),
		"rentals_executeMetaTransaction":    mutating(moduleMetaTx, s.handleExecuteMetaTransaction),
		"chain_sendCall":                    mutating(moduleChain, s.handleSendCall),

		"rentals_getRental":   read(moduleRentals, s.handleGetRental),
		"rentals_isRented":    read(moduleRentals, s.handleIsRented),
		"rentals_canDelegate": read(moduleRentals, s.handleCanDelegate),
		"rentals_getNonces":   read(moduleRentals, s.handleGetNonces),
		"rentals_getParams":   read(moduleRentals, s.handleGetParams),
		"rentals_hashListing": read(moduleRentals, s.handleHashListing),
		"rentals_hashOffer":   read(moduleRentals, s.handleHashOffer),
		"chain_getNonce":      read(moduleChain, s.handleGetNonce),
		"chain_blockNumber":   read(moduleChain, s.handleBlockNumber),
		"chain_getBlock":      read(moduleChain, s.handleGetBlock),
		"chain_getReceipts":   read(moduleChain, s.handleGetReceipts),
		"token_balanceOf":     read(moduleToken, s.handleTokenBalanceOf),
		"token_allowance":     read(moduleToken, s.handleTokenAllowance),
		"asset_ownerOf":       read(moduleAsset, s.handleAssetOwnerOf),
		"metatx_getNonce":     read(moduleMetaTx, s.handleMetaTxNonce),
	}
}

func decodeParams(params []json.RawMessage, out interface{}) *RPCError {
	if len(params) != 1 {
		return invalidParams(errors.New("expected a single params object"))
	}
	dec := json.NewDecoder(bytes.NewReader(params[0]))
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return invalidParams(err)
	}
	return nil
}

// submit rebuilds the engine call the client authorized and applies it.
func (s *Server) submit(auth CallAuth, data []byte) (interface{}, *RPCError) {
	call, err := auth.call(s.node.Chain().ChainID(), s.node.Engine().Address(), data)
	if err != nil {
		return nil, invalidParams(err)
	}
	return s.send(call)
}

func (s *Server) send(call *types.Call) (interface{}, *RPCError) {
	receipt, err := s.node.Chain().Execute(call)
	if receipt == nil {
		if err == nil {
			err = errors.New("no receipt produced")
		}
		return nil, serverError(err)
	}
	if err != nil {
		return nil, callError(err, receipt)
	}
	return newReceiptResult(receipt), nil
}

func packed(data []byte, err error) ([]byte, *RPCError) {
	if err != nil {
		return nil, invalidParams(err)
	}
	return data, nil
}

type acceptListingParams struct {
	Call        CallAuth    `json:"call"`
	Listing     ListingJSON `json:"listing"`
	Operator    string      `json:"operator"`
	Index       string      `json:"index"`
	RentalDays  string      `json:"rentalDays"`
	Fingerprint common.Hash `json:"fingerprint"`
}

func (s *Server) handleAcceptListing(_ context.Context, raw []json.RawMessage) (interface{}, *RPCError) {
	var params acceptListingParams
	if rpcErr := decodeParams(raw, &params); rpcErr != nil {
		return nil, rpcErr
	}
	listing, err := params.Listing.Listing()
	if err != nil {
		return nil, invalidParams(err)
	}
	operator, err := parseAddress("operator", params.Operator)
	if err != nil {
		return nil, invalidParams(err)
	}
	index, err := parseUint("index", params.Index)
	if err != nil {
		return nil, invalidParams(err)
	}
	days, err := parseUint("rentalDays", params.RentalDays)
	if err != nil {
		return nil, invalidParams(err)
	}
	data, rpcErr := packed(rentals.PackAcceptListing(listing, operator, index, days, params.Fingerprint))
	if rpcErr != nil {
		return nil, rpcErr
	}
	return s.submit(params.Call, data)
}

type acceptOfferParams struct {
	Call  CallAuth  `json:"call"`
	Offer OfferJSON `json:"offer"`
}

func (s *Server) handleAcceptOffer(_ context.Context, raw []json.RawMessage) (interface{}, *RPCError) {
	var params acceptOfferParams
	if rpcErr := decodeParams(raw, &params); rpcErr != nil {
		return nil, rpcErr
	}
	offer, err := params.Offer.Offer()
	if err != nil {
		return nil, invalidParams(err)
	}
	data, rpcErr := packed(rentals.PackAcceptOffer(offer))
	if rpcErr != nil {
		return nil, rpcErr
	}
	return s.submit(params.Call, data)
}

type claimParams struct {
	Call      CallAuth `json:"call"`
	Contracts []string `json:"contracts"`
	TokenIDs  []string `json:"tokenIds"`
}

func (s *Server) handleClaim(_ context.Context, raw []json.RawMessage) (interface{}, *RPCError) {
	var params claimParams
	if rpcErr := decodeParams(raw, &params); rpcErr != nil {
		return nil, rpcErr
	}
	contracts, err := parseAddresses("contracts", params.Contracts)
	if err != nil {
		return nil, invalidParams(err)
	}
	ids, err := parseUints("tokenIds", params.TokenIDs)
	if err != nil {
		return nil, invalidParams(err)
	}
	data, rpcErr := packed(rentals.PackClaim(contracts, ids))
	if rpcErr != nil {
		return nil, rpcErr
	}
	return s.submit(params.Call, data)
}

type setUpdateOperatorParams struct {
	Call      CallAuth `json:"call"`
	Contracts []string `json:"contracts"`
	TokenIDs  []string `json:"tokenIds"`
	Operators []string `json:"operators"`
}

func (s *Server) handleSetUpdateOperator(_ context.Context, raw []json.RawMessage) (interface{}, *RPCError) {
	var params setUpdateOperatorParams
	if rpcErr := decodeParams(raw, &params); rpcErr != nil {
		return nil, rpcErr
	}
	contracts, err := parseAddresses("contracts", params.Contracts)
	if err != nil {
		return nil, invalidParams(err)
	}
	ids, err := parseUints("tokenIds", params.TokenIDs)
	if err != nil {
		return nil, invalidParams(err)
	}
	operators, err := parseAddresses("operators", params.Operators)
	if err != nil {
		return nil, invalidParams(err)
	}
	data, rpcErr := packed(rentals.PackSetUpdateOperator(contracts, ids, operators))
	if rpcErr != nil {
		return nil, rpcErr
	}
	return s.submit(params.Call, data)
}

type setManyLandUpdateOperatorParams struct {
	Call      CallAuth   `json:"call"`
	Contract  string     `json:"contract"`
	TokenID   string     `json:"tokenId"`
	LandIDs   [][]string `json:"landIds"`
	Operators []string   `json:"operators"`
}

func (s *Server) handleSetManyLandUpdateOperator(_ context.Context, raw []json.RawMessage) (interface{}, *RPCError) {
	var params setManyLandUpdateOperatorParams
	if rpcErr := decodeParams(raw, &params); rpcErr != nil {
		return nil, rpcErr
	}
	contract, err := parseAddress("contract", params.Contract)
	if err != nil {
		return nil, invalidParams(err)
	}
	tokenID, err := parseUint("tokenId", params.TokenID)
	if err != nil {
		return nil, invalidParams(err)
	}
	landIDs := make([][]*big.Int, len(params.LandIDs))
	for i, group := range params.LandIDs {
		if landIDs[i], err = parseUints(fmt.Sprintf("landIds[%d]", i), group); err != nil {
			return nil, invalidParams(err)
		}
	}
	operators, err := parseAddresses("operators", params.Operators)
	if err != nil {
		return nil, invalidParams(err)
	}
	data, rpcErr := packed(rentals.PackSetManyLandUpdateOperator(contract, tokenID, landIDs, operators))
	if rpcErr != nil {
		return nil, rpcErr
	}
	return s.submit(params.Call, data)
}

type callOnlyParams struct {
	Call CallAuth `json:"call"`
}

func (s *Server) handleBumpContractNonce(_ context.Context, raw []json.RawMessage) (interface{}, *RPCError) {
	var params callOnlyParams
	if rpcErr := decodeParams(raw, &params); rpcErr != nil {
		return nil, rpcErr
	}
	data, rpcErr := packed(rentals.PackBumpContractNonce())
	if rpcErr != nil {
		return nil, rpcErr
	}
	return s.submit(params.Call, data)
}

func (s *Server) handleBumpSignerNonce(_ context.Context, raw []json.RawMessage) (interface{}, *RPCError) {
	var params callOnlyParams
	if rpcErr := decodeParams(raw, &params); rpcErr != nil {
		return nil, rpcErr
	}
	data, rpcErr := packed(rentals.PackBumpSignerNonce())
	if rpcErr != nil {
		return nil, rpcErr
	}
	return s.submit(params.Call, data)
}

type bumpAssetNonceParams struct {
	Call     CallAuth `json:"call"`
	Contract string   `json:"contract"`
	TokenID  string   `json:"tokenId"`
}

func (s *Server) handleBumpAssetNonce(_ context.Context, raw []json.RawMessage) (interface{}, *RPCError) {
	var params bumpAssetNonceParams
	if rpcErr := decodeParams(raw, &params); rpcErr != nil {
		return nil, rpcErr
	}
	contract, err := parseAddress("contract", params.Contract)
	if err != nil {
		return nil, invalidParams(err)
	}
	tokenID, err := parseUint("tokenId", params.TokenID)
	if err != nil {
		return nil, invalidParams(err)
	}
	data, rpcErr := packed(rentals.PackBumpAssetNonce(contract, tokenID))
	if rpcErr != nil {
		return nil, rpcErr
	}
	return s.submit(params.Call, data)
}

type executeMetaTransactionParams struct {
	Call         CallAuth      `json:"call"`
	User         string        `json:"user"`
	FunctionData hexutil.Bytes `json:"functionData"`
	Signature    hexutil.Bytes `json:"signature"`
}

func (s *Server) handleExecuteMetaTransaction(_ context.Context, raw []json.RawMessage) (interface{}, *RPCError) {
	var params executeMetaTransactionParams
	if rpcErr := decodeParams(raw, &params); rpcErr != nil {
		return nil, rpcErr
	}
	user, err := parseAddress("user", params.User)
	if err != nil {
		return nil, invalidParams(err)
	}
	data, rpcErr := packed(rentals.PackExecuteMetaTransaction(user, params.FunctionData, params.Signature))
	if rpcErr != nil {
		return nil, rpcErr
	}
	return s.submit(params.Call, data)
}

func (s *Server) handleSendCall(_ context.Context, raw []json.RawMessage) (interface{}, *RPCError) {
	var params CallJSON
	if rpcErr := decodeParams(raw, &params); rpcErr != nil {
		return nil, rpcErr
	}
	call, err := params.Call()
	if err != nil {
		return nil, invalidParams(err)
	}
	return s.send(call)
}

type assetParams struct {
	Contract string `json:"contract"`
	TokenID  string `json:"tokenId"`
}

func (p assetParams) parse() (common.Address, *big.Int, *RPCError) {
	contract, err := parseAddress("contract", p.Contract)
	if err != nil {
		return common.Address{}, nil, invalidParams(err)
	}
	tokenID, err := parseUint("tokenId", p.TokenID)
	if err != nil {
		return common.Address{}, nil, invalidParams(err)
	}
	return contract, tokenID, nil
}

// query runs fn under the chain lock, mapping engine failures to server errors.
func (s *Server) query(fn func() error) *RPCError {
	if err := s.node.Chain().Query(fn); err != nil {
		var rpcErr *RPCError
		if errors.As(err, &rpcErr) {
			return rpcErr
		}
		return serverError(err)
	}
	return nil
}

func (s *Server) handleGetRental(_ context.Context, raw []json.RawMessage) (interface{}, *RPCError) {
	var params assetParams
	if rpcErr := decodeParams(raw, &params); rpcErr != nil {
		return nil, rpcErr
	}
	contract, tokenID, rpcErr := params.parse()
	if rpcErr != nil {
		return nil, rpcErr
	}
	var result RentalResult
	rpcErr = s.query(func() error {
		record, err := s.node.Engine().Rental(contract, tokenID)
		if err != nil {
			return err
		}
		rented, err := s.node.Engine().IsRented(contract, tokenID)
		if err != nil {
			return err
		}
		result = RentalResult{
			Contract: contract.Hex(),
			TokenID:  tokenID.String(),
			Lessor:   record.Lessor.Hex(),
			Tenant:   record.Tenant.Hex(),
			EndDate:  decimal(record.EndDate),
			IsRented: rented,
		}
		return nil
	})
	if rpcErr != nil {
		return nil, rpcErr
	}
	return result, nil
}

func (s *Server) handleIsRented(_ context.Context, raw []json.RawMessage) (interface{}, *RPCError) {
	var params assetParams
	if rpcErr := decodeParams(raw, &params); rpcErr != nil {
		return nil, rpcErr
	}
	contract, tokenID, rpcErr := params.parse()
	if rpcErr != nil {
		return nil, rpcErr
	}
	var rented bool
	rpcErr = s.query(func() (err error) {
		rented, err = s.node.Engine().IsRented(contract, tokenID)
		return err
	})
	if rpcErr != nil {
		return nil, rpcErr
	}
	return rented, nil
}

type canDelegateParams struct {
	Contract string `json:"contract"`
	TokenID  string `json:"tokenId"`
	Caller   string `json:"caller"`
}

func (s *Server) handleCanDelegate(_ context.Context, raw []json.RawMessage) (interface{}, *RPCError) {
	var params canDelegateParams
	if rpcErr := decodeParams(raw, &params); rpcErr != nil {
		return nil, rpcErr
	}
	contract, tokenID, rpcErr := assetParams{Contract: params.Contract, TokenID: params.TokenID}.parse()
	if rpcErr != nil {
		return nil, rpcErr
	}
	caller, err := parseAddress("caller", params.Caller)
	if err != nil {
		return nil, invalidParams(err)
	}
	var allowed bool
	rpcErr = s.query(func() (err error) {
		allowed, err = s.node.Engine().CanDelegate(contract, tokenID, caller)
		return err
	})
	if rpcErr != nil {
		return nil, rpcErr
	}
	return allowed, nil
}

type noncesParams struct {
	Contract string `json:"contract"`
	TokenID  string `json:"tokenId"`
	Signer   string `json:"signer"`
}

func (s *Server) handleGetNonces(_ context.Context, raw []json.RawMessage) (interface{}, *RPCError) {
	var params noncesParams
	if rpcErr := decodeParams(raw, &params); rpcErr != nil {
		return nil, rpcErr
	}
	contract, tokenID, rpcErr := assetParams{Contract: params.Contract, TokenID: params.TokenID}.parse()
	if rpcErr != nil {
		return nil, rpcErr
	}
	signer, err := parseAddress("signer", params.Signer)
	if err != nil {
		return nil, invalidParams(err)
	}
	var nonces rentals.Nonces
	rpcErr = s.query(func() (err error) {
		nonces, err = s.node.Engine().Nonces(contract, tokenID, signer)
		return err
	})
	if rpcErr != nil {
		return nil, rpcErr
	}
	result := NoncesResult{
		Contract: decimal(nonces.Contract),
		Signer:   decimal(nonces.Signer),
		Asset:    decimal(nonces.Asset),
	}
	for i, v := range nonces.Tuple() {
		result.Indexes[i] = v.String()
	}
	return result, nil
}

func (s *Server) handleGetParams(_ context.Context, _ []json.RawMessage) (interface{}, *RPCError) {
	var params rentals.Params
	rpcErr := s.query(func() (err error) {
		params, err = s.node.Engine().Params()
		return err
	})
	if rpcErr != nil {
		return nil, rpcErr
	}
	return ParamsResult{
		Address:      s.node.Engine().Address().Hex(),
		Owner:        params.Owner.Hex(),
		Token:        params.Token.Hex(),
		FeeCollector: params.FeeCollector.Hex(),
		Fee:          params.Fee,
		ChainID:      s.node.Chain().ChainID().String(),
	}, nil
}

type hashResult struct {
	Hash   common.Hash `json:"hash"`
	Signer string      `json:"signer,omitempty"`
}

type hashListingParams struct {
	Listing ListingJSON `json:"listing"`
}

func (s *Server) handleHashListing(_ context.Context, raw []json.RawMessage) (interface{}, *RPCError) {
	var params hashListingParams
	if rpcErr := decodeParams(raw, &params); rpcErr != nil {
		return nil, rpcErr
	}
	listing, err := params.Listing.Listing()
	if err != nil {
		return nil, invalidParams(err)
	}
	domain := s.node.Engine().Domain()
	hash, err := rentals.HashListing(domain, listing)
	if err != nil {
		return nil, invalidParams(err)
	}
	result := hashResult{Hash: hash}
	if len(listing.Signature) > 0 {
		if signer, err := rentals.RecoverListingSigner(domain, listing); err == nil {
			result.Signer = signer.Hex()
		}
	}
	return result, nil
}

type hashOfferParams struct {
	Offer OfferJSON `json:"offer"`
}

func (s *Server) handleHashOffer(_ context.Context, raw []json.RawMessage) (interface{}, *RPCError) {
	var params hashOfferParams
	if rpcErr := decodeParams(raw, &params); rpcErr != nil {
		return nil, rpcErr
	}
	offer, err := params.Offer.Offer()
	if err != nil {
		return nil, invalidParams(err)
	}
	domain := s.node.Engine().Domain()
	hash, err := rentals.HashOffer(domain, offer)
	if err != nil {
		return nil, invalidParams(err)
	}
	result := hashResult{Hash: hash}
	if len(offer.Signature) > 0 {
		if signer, err := rentals.RecoverOfferSigner(domain, offer); err == nil {
			result.Signer = signer.Hex()
		}
	}
	return result, nil
}
