package token

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// ErrInvalidCall reports call data that does not decode against the token ABI.
var ErrInvalidCall = errors.New("token: invalid call data")

// TokenABI is the call surface accepted by Dispatch.
const TokenABI = `[
	{"type":"function","name":"transfer","inputs":[{"name":"to","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[]},
	{"type":"function","name":"approve","inputs":[{"name":"spender","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[]},
	{"type":"function","name":"transferFrom","inputs":[{"name":"from","type":"address"},{"name":"to","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[]},
	{"type":"function","name":"mint","inputs":[{"name":"to","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[]}
]`

var tokenABI = func() abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(TokenABI))
	if err != nil {
		panic(err)
	}
	return parsed
}()

// ABI returns the parsed token ABI.
func ABI() abi.ABI { return tokenABI }

// PackApprove encodes approve(spender, amount).
func PackApprove(spender common.Address, amount *big.Int) ([]byte, error) {
	return tokenABI.Pack("approve", spender, amount)
}

// PackTransfer encodes transfer(to, amount).
func PackTransfer(to common.Address, amount *big.Int) ([]byte, error) {
	return tokenABI.Pack("transfer", to, amount)
}

// PackMint encodes mint(to, amount).
func PackMint(to common.Address, amount *big.Int) ([]byte, error) {
	return tokenABI.Pack("mint", to, amount)
}

// Dispatch decodes an ABI call and invokes the matching method for from.
func (t *Token) Dispatch(from common.Address, data []byte) error {
	if len(data) < 4 {
		return fmt.Errorf("%w: missing selector", ErrInvalidCall)
	}
	method, err := tokenABI.MethodById(data[:4])
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidCall, err)
	}
	var args struct {
		From    common.Address
		To      common.Address
		Spender common.Address
		Amount  *big.Int
	}
	if err := unpack(method, data[4:], &args); err != nil {
		return err
	}
	switch method.Name {
	case "transfer":
		return t.Transfer(from, args.To, args.Amount)
	case "approve":
		return t.Approve(from, args.Spender, args.Amount)
	case "transferFrom":
		return t.TransferFrom(from, args.From, args.To, args.Amount)
	case "mint":
		return t.Mint(from, args.To, args.Amount)
	default:
		return fmt.Errorf("%w: unsupported method %s", ErrInvalidCall, method.Name)
	}
}

func unpack(method *abi.Method, data []byte, out interface{}) error {
	values, err := method.Inputs.Unpack(data)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidCall, method.Name, err)
	}
	if err := method.Inputs.Copy(out, values); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidCall, method.Name, err)
	}
	return nil
}
