package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"rentalchain/core"
	"rentalchain/core/types"
)

type addressParams struct {
	Address string `json:"address"`
}

type heightParams struct {
	Height uint64 `json:"height"`
}

func (s *Server) handleGetNonce(_ context.Context, raw []json.RawMessage) (interface{}, *RPCError) {
	var params addressParams
	if rpcErr := decodeParams(raw, &params); rpcErr != nil {
		return nil, rpcErr
	}
	addr, err := parseAddress("address", params.Address)
	if err != nil {
		return nil, invalidParams(err)
	}
	nonce, err := s.node.Chain().Nonce(addr)
	if err != nil {
		return nil, serverError(err)
	}
	return nonce, nil
}

func (s *Server) handleBlockNumber(_ context.Context, _ []json.RawMessage) (interface{}, *RPCError) {
	return s.node.Chain().Height(), nil
}

func notFound(err error) *RPCError {
	if errors.Is(err, core.ErrBlockNotFound) {
		return &RPCError{Code: codeInvalidParams, Message: err.Error(), status: http.StatusNotFound}
	}
	return serverError(err)
}

func (s *Server) handleGetBlock(_ context.Context, raw []json.RawMessage) (interface{}, *RPCError) {
	var params heightParams
	if rpcErr := decodeParams(raw, &params); rpcErr != nil {
		return nil, rpcErr
	}
	block, err := s.node.Chain().Block(params.Height)
	if err != nil {
		return nil, notFound(err)
	}
	calls := make([]CallJSON, len(block.Calls))
	for i, call := range block.Calls {
		calls[i] = NewCallJSON(call)
	}
	return struct {
		Header *types.BlockHeader `json:"header"`
		Hash   string             `json:"hash"`
		Calls  []CallJSON         `json:"calls"`
	}{Header: block.Header, Hash: hashHex(block.Header), Calls: calls}, nil
}

func hashHex(h *types.BlockHeader) string {
	hash, err := h.Hash()
	if err != nil {
		return ""
	}
	return hexutil.Encode(hash)
}

func (s *Server) handleGetReceipts(_ context.Context, raw []json.RawMessage) (interface{}, *RPCError) {
	var params heightParams
	if rpcErr := decodeParams(raw, &params); rpcErr != nil {
		return nil, rpcErr
	}
	receipts, err := s.node.Chain().Receipts(params.Height)
	if err != nil {
		return nil, notFound(err)
	}
	out := make([]ReceiptResult, len(receipts))
	for i, r := range receipts {
		out[i] = newReceiptResult(r)
	}
	return out, nil
}

func (s *Server) handleTokenBalanceOf(_ context.Context, raw []json.RawMessage) (interface{}, *RPCError) {
	var params addressParams
	if rpcErr := decodeParams(raw, &params); rpcErr != nil {
		return nil, rpcErr
	}
	holder, err := parseAddress("address", params.Address)
	if err != nil {
		return nil, invalidParams(err)
	}
	var balance *big.Int
	rpcErr := s.query(func() (err error) {
		balance, err = s.node.Token().BalanceOf(holder)
		return err
	})
	if rpcErr != nil {
		return nil, rpcErr
	}
	return decimal(balance), nil
}

type allowanceParams struct {
	Owner   string `json:"owner"`
	Spender string `json:"spender"`
}

func (s *Server) handleTokenAllowance(_ context.Context, raw []json.RawMessage) (interface{}, *RPCError) {
	var params allowanceParams
	if rpcErr := decodeParams(raw, &params); rpcErr != nil {
		return nil, rpcErr
	}
	owner, err := parseAddress("owner", params.Owner)
	if err != nil {
		return nil, invalidParams(err)
	}
	spender, err := parseAddress("spender", params.Spender)
	if err != nil {
		return nil, invalidParams(err)
	}
	var allowance *big.Int
	rpcErr := s.query(func() (err error) {
		allowance, err = s.node.Token().Allowance(owner, spender)
		return err
	})
	if rpcErr != nil {
		return nil, rpcErr
	}
	return decimal(allowance), nil
}

func (s *Server) handleAssetOwnerOf(_ context.Context, raw []json.RawMessage) (interface{}, *RPCError) {
	var params assetParams
	if rpcErr := decodeParams(raw, &params); rpcErr != nil {
		return nil, rpcErr
	}
	contract, tokenID, rpcErr := params.parse()
	if rpcErr != nil {
		return nil, rpcErr
	}
	registry, ok := s.node.Asset(contract)
	if !ok {
		if comp, isComposite := s.node.Composite(contract); isComposite {
			registry, ok = comp.Registry, true
		}
	}
	if !ok {
		return nil, &RPCError{Code: codeInvalidParams, Message: "unknown asset contract", Data: contract.Hex(), status: http.StatusNotFound}
	}
	var owner string
	rpcErr = s.query(func() error {
		addr, err := registry.OwnerOf(tokenID)
		if err != nil {
			return err
		}
		owner = addr.Hex()
		return nil
	})
	if rpcErr != nil {
		return nil, rpcErr
	}
	return owner, nil
}

func (s *Server) handleMetaTxNonce(_ context.Context, raw []json.RawMessage) (interface{}, *RPCError) {
	var params addressParams
	if rpcErr := decodeParams(raw, &params); rpcErr != nil {
		return nil, rpcErr
	}
	addr, err := parseAddress("address", params.Address)
	if err != nil {
		return nil, invalidParams(err)
	}
	var nonce *big.Int
	rpcErr := s.query(func() (err error) {
		nonce, err = s.node.Relay().Nonce(addr)
		return err
	})
	if rpcErr != nil {
		return nil, rpcErr
	}
	return decimal(nonce), nil
}
