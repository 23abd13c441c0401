package rentals

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Rental returns the ledger record for the asset. Assets the engine has never
// seen return a zero record.
func (e *Engine) Rental(contract common.Address, tokenID *big.Int) (*Rental, error) {
	if e.store == nil {
		return nil, ErrNilState
	}
	record := new(Rental)
	ok, err := e.store.KVGet(e.rentalKey(contract, tokenID), record)
	if err != nil {
		return nil, err
	}
	if !ok {
		return &Rental{EndDate: big.NewInt(0)}, nil
	}
	if record.EndDate == nil {
		record.EndDate = big.NewInt(0)
	}
	return record, nil
}

func (e *Engine) putRental(contract common.Address, tokenID *big.Int, record *Rental) error {
	if e.store == nil {
		return ErrNilState
	}
	return e.store.KVPut(e.rentalKey(contract, tokenID), record.Copy())
}

func (e *Engine) clearRental(contract common.Address, tokenID *big.Int) error {
	if e.store == nil {
		return ErrNilState
	}
	return e.store.KVDelete(e.rentalKey(contract, tokenID))
}

// IsRented reports whether the asset is inside an active rental. The end date
// itself is still part of the rental.
func (e *Engine) IsRented(contract common.Address, tokenID *big.Int) (bool, error) {
	record, err := e.Rental(contract, tokenID)
	if err != nil {
		return false, err
	}
	return e.active(record), nil
}

func (e *Engine) active(record *Rental) bool {
	if record == nil {
		return false
	}
	return big.NewInt(e.now()).Cmp(cloneBig(record.EndDate)) <= 0
}
