package rentals

import (
	"github.com/ethereum/go-ethereum/common"
)

// Params returns the administrator configuration.
func (e *Engine) Params() (Params, error) {
	if e.store == nil {
		return Params{}, ErrNilState
	}
	var params Params
	if _, err := e.store.KVGet(e.paramsKey(), &params); err != nil {
		return Params{}, err
	}
	return params, nil
}

func (e *Engine) putParams(params Params) error {
	return e.store.KVPut(e.paramsKey(), params)
}

func (e *Engine) Owner() (common.Address, error) {
	params, err := e.Params()
	return params.Owner, err
}

func (e *Engine) Token() (common.Address, error) {
	params, err := e.Params()
	return params.Token, err
}

func (e *Engine) FeeCollector() (common.Address, error) {
	params, err := e.Params()
	return params.FeeCollector, err
}

// Fee returns the collector share in parts per million.
func (e *Engine) Fee() (uint64, error) {
	params, err := e.Params()
	return params.Fee, err
}

// Initialize sets the initial configuration. It can run once per deployment.
func (e *Engine) Initialize(owner, token, feeCollector common.Address, fee uint64) error {
	return e.atomic("initialize", func() error {
		params, err := e.Params()
		if err != nil {
			return err
		}
		if params.Initialized {
			return ErrAlreadyInitialized
		}
		if fee > MaxFee {
			return ErrInvalidFee
		}
		params = Params{Owner: owner, Token: token, FeeCollector: feeCollector, Fee: fee, Initialized: true}
		if err := e.putParams(params); err != nil {
			return err
		}
		e.emit(newOwnershipTransferredEvent(common.Address{}, owner))
		e.emit(newAddressUpdatedEvent(EventTypeTokenUpdated, token, owner))
		e.emit(newAddressUpdatedEvent(EventTypeFeeCollectorUpdated, feeCollector, owner))
		e.emit(newFeeUpdatedEvent(fee, owner))
		return nil
	})
}

func (e *Engine) requireOwner(caller common.Address) error {
	params, err := e.Params()
	if err != nil {
		return err
	}
	if !params.Initialized || params.Owner != caller {
		return ErrNotOwner
	}
	return nil
}

func (e *Engine) updateParams(op string, caller common.Address, mutate func(*Params) error) error {
	return e.atomic(op, func() error {
		if err := e.requireOwner(caller); err != nil {
			return err
		}
		params, err := e.Params()
		if err != nil {
			return err
		}
		if err := mutate(&params); err != nil {
			return err
		}
		return e.putParams(params)
	})
}

// SetToken changes the payment token used by future settlements.
func (e *Engine) SetToken(caller, token common.Address) error {
	err := e.updateParams("setToken", caller, func(p *Params) error {
		p.Token = token
		return nil
	})
	if err == nil {
		e.emit(newAddressUpdatedEvent(EventTypeTokenUpdated, token, caller))
	}
	return err
}

// SetFeeCollector changes the recipient of the protocol fee.
func (e *Engine) SetFeeCollector(caller, collector common.Address) error {
	err := e.updateParams("setFeeCollector", caller, func(p *Params) error {
		p.FeeCollector = collector
		return nil
	})
	if err == nil {
		e.emit(newAddressUpdatedEvent(EventTypeFeeCollectorUpdated, collector, caller))
	}
	return err
}

// SetFee changes the fee charged on paid rentals, in parts per million.
func (e *Engine) SetFee(caller common.Address, fee uint64) error {
	err := e.updateParams("setFee", caller, func(p *Params) error {
		if fee > MaxFee {
			return ErrInvalidFee
		}
		p.Fee = fee
		return nil
	})
	if err == nil {
		e.emit(newFeeUpdatedEvent(fee, caller))
	}
	return err
}

// TransferOwnership hands the administrator role to next.
func (e *Engine) TransferOwnership(caller, next common.Address) error {
	err := e.updateParams("transferOwnership", caller, func(p *Params) error {
		p.Owner = next
		return nil
	})
	if err == nil {
		e.emit(newOwnershipTransferredEvent(caller, next))
	}
	return err
}
