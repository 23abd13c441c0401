package rentals

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// CanDelegate reports whether caller may change the update operator of the
// asset right now. The tenant controls delegation while the rental is active
// and the lessor controls it otherwise. Nobody does before the first rental.
func (e *Engine) CanDelegate(contract common.Address, tokenID *big.Int, caller common.Address) (bool, error) {
	record, err := e.Rental(contract, tokenID)
	if err != nil {
		return false, err
	}
	if e.active(record) {
		return caller == record.Tenant, nil
	}
	return record.Lessor != (common.Address{}) && caller == record.Lessor, nil
}

func (e *Engine) requireDelegate(contract common.Address, tokenID *big.Int, caller common.Address) error {
	ok, err := e.CanDelegate(contract, tokenID, caller)
	if err != nil {
		return err
	}
	if !ok {
		return ErrCannotSetUpdateOperator
	}
	return nil
}

// SetUpdateOperator changes the delegate of each asset. contracts, tokenIDs
// and operators are parallel arrays.
func (e *Engine) SetUpdateOperator(caller common.Address, contracts []common.Address, tokenIDs []*big.Int, operators []common.Address) error {
	return e.guarded("setUpdateOperator", func() error {
		if len(contracts) != len(tokenIDs) || len(contracts) != len(operators) {
			return ErrLengthMismatch
		}
		for i, contract := range contracts {
			if err := e.requireDelegate(contract, tokenIDs[i], caller); err != nil {
				return err
			}
			asset, err := e.asset(contract)
			if err != nil {
				return err
			}
			operatable, ok := asset.(Operatable)
			if !ok {
				return ErrOperatorNotSupported
			}
			if err := operatable.SetUpdateOperator(e.address, tokenIDs[i], operators[i]); err != nil {
				return err
			}
		}
		return nil
	})
}

// SetManyLandUpdateOperator delegates groups of sub-components of one
// composite asset. landIDs[i] are delegated to operators[i]. The gate is
// evaluated once against the composite asset.
func (e *Engine) SetManyLandUpdateOperator(caller, contract common.Address, tokenID *big.Int, landIDs [][]*big.Int, operators []common.Address) error {
	return e.guarded("setManyLandUpdateOperator", func() error {
		if len(landIDs) != len(operators) {
			return ErrLengthMismatch
		}
		if err := e.requireDelegate(contract, tokenID, caller); err != nil {
			return err
		}
		asset, err := e.asset(contract)
		if err != nil {
			return err
		}
		bulk, ok := asset.(BulkOperatable)
		if !ok {
			return ErrOperatorNotSupported
		}
		for i, ids := range landIDs {
			if err := bulk.SetManyLandUpdateOperator(e.address, tokenID, ids, operators[i]); err != nil {
				return err
			}
		}
		return nil
	})
}
