package asset

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// ErrInvalidCall reports call data that does not decode against the asset ABI.
var ErrInvalidCall = errors.New("asset: invalid call data")

// AssetABI is the call surface accepted by Dispatch. addLand and removeLand
// are only served by composite registries.
const AssetABI = `[
	{"type":"function","name":"mint","inputs":[{"name":"to","type":"address"},{"name":"tokenId","type":"uint256"}],"outputs":[]},
	{"type":"function","name":"setApprovalForAll","inputs":[{"name":"operator","type":"address"},{"name":"approved","type":"bool"}],"outputs":[]},
	{"type":"function","name":"transferFrom","inputs":[{"name":"from","type":"address"},{"name":"to","type":"address"},{"name":"tokenId","type":"uint256"}],"outputs":[]},
	{"type":"function","name":"safeTransferFrom","inputs":[{"name":"from","type":"address"},{"name":"to","type":"address"},{"name":"tokenId","type":"uint256"},{"name":"data","type":"bytes"}],"outputs":[]},
	{"type":"function","name":"setUpdateOperator","inputs":[{"name":"tokenId","type":"uint256"},{"name":"operator","type":"address"}],"outputs":[]},
	{"type":"function","name":"addLand","inputs":[{"name":"tokenId","type":"uint256"},{"name":"landId","type":"uint256"}],"outputs":[]},
	{"type":"function","name":"removeLand","inputs":[{"name":"tokenId","type":"uint256"},{"name":"landId","type":"uint256"}],"outputs":[]}
]`

var assetABI = func() abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(AssetABI))
	if err != nil {
		panic(err)
	}
	return parsed
}()

// ABI returns the parsed asset ABI.
func ABI() abi.ABI { return assetABI }

type callArgs struct {
	To       common.Address
	From     common.Address
	Operator common.Address
	Approved bool
	TokenId  *big.Int
	LandId   *big.Int
	Data     []byte
}

func decodeCall(data []byte) (string, callArgs, error) {
	var args callArgs
	if len(data) < 4 {
		return "", args, fmt.Errorf("%w: missing selector", ErrInvalidCall)
	}
	method, err := assetABI.MethodById(data[:4])
	if err != nil {
		return "", args, fmt.Errorf("%w: %v", ErrInvalidCall, err)
	}
	values, err := method.Inputs.Unpack(data[4:])
	if err != nil {
		return "", args, fmt.Errorf("%w: %s: %v", ErrInvalidCall, method.Name, err)
	}
	if err := method.Inputs.Copy(&args, values); err != nil {
		return "", args, fmt.Errorf("%w: %s: %v", ErrInvalidCall, method.Name, err)
	}
	return method.Name, args, nil
}

// PackSafeTransferFrom encodes safeTransferFrom(from, to, tokenId, data).
func PackSafeTransferFrom(from, to common.Address, tokenID *big.Int, data []byte) ([]byte, error) {
	return assetABI.Pack("safeTransferFrom", from, to, tokenID, data)
}

// PackSetApprovalForAll encodes setApprovalForAll(operator, approved).
func PackSetApprovalForAll(operator common.Address, approved bool) ([]byte, error) {
	return assetABI.Pack("setApprovalForAll", operator, approved)
}

// PackMint encodes mint(to, tokenId).
func PackMint(to common.Address, tokenID *big.Int) ([]byte, error) {
	return assetABI.Pack("mint", to, tokenID)
}

// Dispatch decodes an ABI call and invokes the matching method for from.
func (r *Registry) Dispatch(from common.Address, data []byte) error {
	name, args, err := decodeCall(data)
	if err != nil {
		return err
	}
	return r.dispatch(from, name, args)
}

func (r *Registry) dispatch(from common.Address, name string, args callArgs) error {
	switch name {
	case "mint":
		return r.Mint(from, args.To, args.TokenId)
	case "setApprovalForAll":
		return r.SetApprovalForAll(from, args.Operator, args.Approved)
	case "transferFrom":
		return r.TransferFrom(from, args.From, args.To, args.TokenId)
	case "safeTransferFrom":
		return r.SafeTransferFrom(from, args.From, args.To, args.TokenId, args.Data)
	case "setUpdateOperator":
		return r.SetUpdateOperator(from, args.TokenId, args.Operator)
	default:
		return fmt.Errorf("%w: unsupported method %s", ErrInvalidCall, name)
	}
}

// Dispatch adds the composition methods to the base registry surface.
func (c *Composite) Dispatch(from common.Address, data []byte) error {
	name, args, err := decodeCall(data)
	if err != nil {
		return err
	}
	switch name {
	case "addLand":
		return c.AddLand(from, args.TokenId, args.LandId)
	case "removeLand":
		return c.RemoveLand(from, args.TokenId, args.LandId)
	default:
		return c.Registry.dispatch(from, name, args)
	}
}
