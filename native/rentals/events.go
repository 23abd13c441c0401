package rentals

import (
	"encoding/hex"
	"math/big"
	"strconv"

	"github.com/ethereum/go-ethereum/common"

	"rentalchain/core/types"
)

const (
	EventTypeAssetRented          = "rentals.asset_rented"
	EventTypeAssetClaimed         = "rentals.asset_claimed"
	EventTypeContractNonceUpdated = "rentals.nonce.contract"
	EventTypeSignerNonceUpdated   = "rentals.nonce.signer"
	EventTypeAssetNonceUpdated    = "rentals.nonce.asset"
	EventTypeTokenUpdated         = "rentals.token_updated"
	EventTypeFeeCollectorUpdated  = "rentals.fee_collector_updated"
	EventTypeFeeUpdated           = "rentals.fee_updated"
	EventTypeOwnershipTransferred = "rentals.ownership_transferred"
)

// rentedEvent carries the settlement outcome. Sender is the address that
// triggered the settlement: the direct caller, or the operator that moved the
// asset in when settlement came through a transfer.
type rentedEvent struct {
	Contract    common.Address
	TokenID     *big.Int
	Lessor      common.Address
	Tenant      common.Address
	Operator    common.Address
	RentalDays  *big.Int
	PricePerDay *big.Int
	EndDate     *big.Int
	Extension   bool
	Sender      common.Address
	Signature   []byte
}

func newAssetRentedEvent(r rentedEvent) *types.Event {
	return &types.Event{
		Type: EventTypeAssetRented,
		Attributes: map[string]string{
			"contract":    r.Contract.Hex(),
			"tokenId":     cloneBig(r.TokenID).String(),
			"lessor":      r.Lessor.Hex(),
			"tenant":      r.Tenant.Hex(),
			"operator":    r.Operator.Hex(),
			"rentalDays":  cloneBig(r.RentalDays).String(),
			"pricePerDay": cloneBig(r.PricePerDay).String(),
			"endDate":     cloneBig(r.EndDate).String(),
			"isExtension": strconv.FormatBool(r.Extension),
			"sender":      r.Sender.Hex(),
			"signature":   "0x" + hex.EncodeToString(r.Signature),
		},
	}
}

func newAssetClaimedEvent(contract common.Address, tokenID *big.Int, lessor common.Address) *types.Event {
	return &types.Event{
		Type: EventTypeAssetClaimed,
		Attributes: map[string]string{
			"contract": contract.Hex(),
			"tokenId":  cloneBig(tokenID).String(),
			"lessor":   lessor.Hex(),
			"sender":   lessor.Hex(),
		},
	}
}

func newContractNonceEvent(nonce *big.Int, sender common.Address) *types.Event {
	return &types.Event{
		Type: EventTypeContractNonceUpdated,
		Attributes: map[string]string{
			"scope":  ScopeContract,
			"nonce":  nonce.String(),
			"sender": sender.Hex(),
		},
	}
}

func newSignerNonceEvent(signer common.Address, nonce *big.Int, sender common.Address) *types.Event {
	return &types.Event{
		Type: EventTypeSignerNonceUpdated,
		Attributes: map[string]string{
			"scope":  ScopeSigner,
			"signer": signer.Hex(),
			"nonce":  nonce.String(),
			"sender": sender.Hex(),
		},
	}
}

func newAssetNonceEvent(contract common.Address, tokenID *big.Int, signer common.Address, nonce *big.Int, sender common.Address) *types.Event {
	return &types.Event{
		Type: EventTypeAssetNonceUpdated,
		Attributes: map[string]string{
			"scope":    ScopeAsset,
			"contract": contract.Hex(),
			"tokenId":  cloneBig(tokenID).String(),
			"signer":   signer.Hex(),
			"nonce":    nonce.String(),
			"sender":   sender.Hex(),
		},
	}
}

func newAddressUpdatedEvent(eventType string, value, sender common.Address) *types.Event {
	return &types.Event{
		Type: eventType,
		Attributes: map[string]string{
			"value":  value.Hex(),
			"sender": sender.Hex(),
		},
	}
}

func newFeeUpdatedEvent(fee uint64, sender common.Address) *types.Event {
	return &types.Event{
		Type: EventTypeFeeUpdated,
		Attributes: map[string]string{
			"fee":    strconv.FormatUint(fee, 10),
			"sender": sender.Hex(),
		},
	}
}

func newOwnershipTransferredEvent(previous, next common.Address) *types.Event {
	return &types.Event{
		Type: EventTypeOwnershipTransferred,
		Attributes: map[string]string{
			"previousOwner": previous.Hex(),
			"newOwner":      next.Hex(),
		},
	}
}
