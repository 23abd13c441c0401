package rpc

import (
	"errors"
	"net/http"

	"rentalchain/core"
	"rentalchain/core/types"
	"rentalchain/native/asset"
	"rentalchain/native/metatx"
	"rentalchain/native/rentals"
	"rentalchain/native/token"
)

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeUnauthorized   = -32001
	codeServerError    = -32000
	codeRateLimited    = -32020

	codeCallRejected = -32040
	codeReverted     = -32050
)

// RPCError is the JSON-RPC error object.
type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`

	status int
}

func (e *RPCError) Error() string { return e.Message }

// RevertData accompanies codeReverted errors.
type RevertData struct {
	ID       string           `json:"id,omitempty"`
	Category rentals.Category `json:"category,omitempty"`
	Receipt  *ReceiptResult   `json:"receipt,omitempty"`
}

func invalidParams(err error) *RPCError {
	return &RPCError{Code: codeInvalidParams, Message: "invalid params", Data: err.Error(), status: http.StatusBadRequest}
}

func serverError(err error) *RPCError {
	return &RPCError{Code: codeServerError, Message: "internal error", Data: err.Error(), status: http.StatusInternalServerError}
}

// isRejection reports envelope failures: the call never reached a contract.
func isRejection(err error) bool {
	switch {
	case errors.Is(err, core.ErrWrongChain),
		errors.Is(err, core.ErrNonceMismatch),
		errors.Is(err, core.ErrUnknownContract),
		errors.Is(err, types.ErrMissingSignature),
		errors.Is(err, types.ErrSenderMismatch):
		return true
	}
	return false
}

func isInvalidCall(err error) bool {
	return errors.Is(err, rentals.ErrInvalidCall) ||
		errors.Is(err, token.ErrInvalidCall) ||
		errors.Is(err, asset.ErrInvalidCall)
}

// callError maps the outcome of an applied call to a JSON-RPC error.
func callError(err error, receipt *types.Receipt) *RPCError {
	var result *ReceiptResult
	if receipt != nil {
		r := newReceiptResult(receipt)
		result = &r
	}
	switch {
	case isRejection(err):
		return &RPCError{Code: codeCallRejected, Message: err.Error(), Data: RevertData{Receipt: result}, status: http.StatusBadRequest}
	case isInvalidCall(err):
		return &RPCError{Code: codeInvalidParams, Message: err.Error(), Data: RevertData{Receipt: result}, status: http.StatusBadRequest}
	}
	data := RevertData{Receipt: result}
	if id := rentals.ErrorID(err); id != "" {
		data.ID = id
		data.Category = rentals.CategoryOf(err)
	} else if errors.Is(err, metatx.ErrSignerMismatch) {
		data.ID = "SIGNER_AND_SIGNATURE_DO_NOT_MATCH"
		data.Category = rentals.CategoryAuthorization
	} else if errors.Is(err, metatx.ErrInvalidSigner) {
		data.ID = "INVALID_SIGNER"
		data.Category = rentals.CategoryAuthorization
	}
	return &RPCError{Code: codeReverted, Message: err.Error(), Data: data, status: http.StatusUnprocessableEntity}
}
