package rentals

import (
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"rentalchain/core/types"
)

// Claim returns expired or never-activated assets to their lessor. Each pair
// must be out of its rental period and recorded under caller. A failing pair
// reverts the whole call.
func (e *Engine) Claim(caller common.Address, contracts []common.Address, tokenIDs []*big.Int) error {
	return e.guarded("claim", func() error {
		if len(contracts) != len(tokenIDs) {
			return ErrLengthMismatch
		}
		claimed := make([]*types.Event, 0, len(contracts))
		for i, contract := range contracts {
			tokenID := cloneBig(tokenIDs[i])
			record, err := e.Rental(contract, tokenID)
			if err != nil {
				return err
			}
			if e.active(record) {
				return ErrCurrentlyRented
			}
			if record.Lessor != caller || caller == (common.Address{}) {
				return ErrNotLessor
			}
			if err := e.clearRental(contract, tokenID); err != nil {
				return err
			}
			asset, err := e.asset(contract)
			if err != nil {
				return err
			}
			if err := asset.SafeTransferFrom(e.address, e.address, caller, tokenID, nil); err != nil {
				return err
			}
			claimed = append(claimed, newAssetClaimedEvent(contract, tokenID, caller))
		}
		for _, evt := range claimed {
			e.emit(evt)
			e.metrics.ObserveClaim()
		}
		if len(claimed) > 0 {
			e.logger.Info("assets claimed", slog.String("lessor", caller.Hex()), slog.Int("count", len(claimed)))
		}
		return nil
	})
}
