package rentals

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Relayer executes meta transactions on the engine's behalf. The relayer
// calls back into Dispatch with the engine address as sender and the signer
// appended to the call data.
type Relayer interface {
	Execute(relayer, from common.Address, functionData, signature []byte) error
}

// SetRelayer enables executeMetaTransaction calls through Dispatch.
func (e *Engine) SetRelayer(r Relayer) { e.relayer = r }

// MsgSender resolves the logical caller of a call. Self calls made by the
// relay carry the signer in the trailing 20 bytes, which are stripped from
// the returned call data. The remainder may be empty.
func (e *Engine) MsgSender(from common.Address, data []byte) (common.Address, []byte) {
	if from == e.address && len(data) >= common.AddressLength {
		split := len(data) - common.AddressLength
		return common.BytesToAddress(data[split:]), data[:split]
	}
	return from, data
}

// Dispatch decodes an ABI call and invokes the matching entry point on behalf
// of from.
func (e *Engine) Dispatch(from common.Address, data []byte) error {
	sender, data := e.MsgSender(from, data)
	if len(data) < 4 {
		return fmt.Errorf("%w: missing selector", ErrInvalidCall)
	}
	method, err := engineABI.MethodById(data[:4])
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidCall, err)
	}
	values, err := method.Inputs.Unpack(data[4:])
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidCall, method.Name, err)
	}
	decode := func(out interface{}) error {
		if err := method.Inputs.Copy(out, values); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidCall, method.Name, err)
		}
		return nil
	}

	switch method.Name {
	case "acceptListing":
		var args struct {
			Listing     listingTuple
			Operator    common.Address
			Index       *big.Int
			RentalDays  *big.Int
			Fingerprint [32]byte
		}
		if err := decode(&args); err != nil {
			return err
		}
		return e.AcceptListing(sender, args.Listing.listing(), args.Operator, args.Index, args.RentalDays, args.Fingerprint)
	case "acceptOffer":
		var args struct{ Offer offerTuple }
		if err := decode(&args); err != nil {
			return err
		}
		return e.AcceptOffer(sender, args.Offer.offer())
	case "claim":
		var args struct {
			ContractAddresses []common.Address
			TokenIds          []*big.Int
		}
		if err := decode(&args); err != nil {
			return err
		}
		return e.Claim(sender, args.ContractAddresses, args.TokenIds)
	case "setUpdateOperator":
		var args struct {
			ContractAddresses []common.Address
			TokenIds          []*big.Int
			Operators         []common.Address
		}
		if err := decode(&args); err != nil {
			return err
		}
		return e.SetUpdateOperator(sender, args.ContractAddresses, args.TokenIds, args.Operators)
	case "setManyLandUpdateOperator":
		var args struct {
			ContractAddress common.Address
			TokenId         *big.Int
			LandIds         [][]*big.Int
			Operators       []common.Address
		}
		if err := decode(&args); err != nil {
			return err
		}
		return e.SetManyLandUpdateOperator(sender, args.ContractAddress, args.TokenId, args.LandIds, args.Operators)
	case "bumpContractNonce":
		return e.BumpContractNonce(sender)
	case "bumpSignerNonce":
		return e.BumpSignerNonce(sender)
	case "bumpAssetNonce":
		var args struct {
			ContractAddress common.Address
			TokenId         *big.Int
		}
		if err := decode(&args); err != nil {
			return err
		}
		return e.BumpAssetNonce(sender, args.ContractAddress, args.TokenId)
	case "setToken":
		var args struct{ Token common.Address }
		if err := decode(&args); err != nil {
			return err
		}
		return e.SetToken(sender, args.Token)
	case "setFeeCollector":
		var args struct{ FeeCollector common.Address }
		if err := decode(&args); err != nil {
			return err
		}
		return e.SetFeeCollector(sender, args.FeeCollector)
	case "setFee":
		var args struct{ Fee *big.Int }
		if err := decode(&args); err != nil {
			return err
		}
		if !args.Fee.IsUint64() {
			return ErrInvalidFee
		}
		return e.SetFee(sender, args.Fee.Uint64())
	case "transferOwnership":
		var args struct{ NewOwner common.Address }
		if err := decode(&args); err != nil {
			return err
		}
		return e.TransferOwnership(sender, args.NewOwner)
	case "executeMetaTransaction":
		if e.relayer == nil {
			return fmt.Errorf("%w: relay not configured", ErrInvalidCall)
		}
		var args struct {
			UserAddress  common.Address
			FunctionData []byte
			Signature    []byte
		}
		if err := decode(&args); err != nil {
			return err
		}
		return e.relayer.Execute(sender, args.UserAddress, args.FunctionData, args.Signature)
	default:
		return fmt.Errorf("%w: unsupported method %s", ErrInvalidCall, method.Name)
	}
}
