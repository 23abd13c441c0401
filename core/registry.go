package core

import (
	"errors"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"rentalchain/native/asset"
	"rentalchain/native/rentals"
)

var (
	ErrUnknownContract   = errors.New("core: no contract deployed at target address")
	ErrContractCollision = errors.New("core: address already hosts a contract")
)

// Contract is a module addressable by signed calls.
type Contract interface {
	Dispatch(from common.Address, data []byte) error
}

// Registry maps contract addresses to the modules deployed there. It resolves
// rentals collaborators and asset receiver hooks.
type Registry struct {
	mu        sync.RWMutex
	contracts map[common.Address]Contract
	assets    map[common.Address]rentals.Asset
	tokens    map[common.Address]rentals.PaymentToken
	receivers map[common.Address]asset.Receiver
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		contracts: make(map[common.Address]Contract),
		assets:    make(map[common.Address]rentals.Asset),
		tokens:    make(map[common.Address]rentals.PaymentToken),
		receivers: make(map[common.Address]asset.Receiver),
	}
}

func (r *Registry) deploy(addr common.Address, contract Contract) error {
	if _, exists := r.contracts[addr]; exists {
		return ErrContractCollision
	}
	r.contracts[addr] = contract
	return nil
}

// RegisterRentals deploys the rentals engine, which also receives safe
// transfers.
func (r *Registry) RegisterRentals(engine *rentals.Engine) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.deploy(engine.Address(), engine); err != nil {
		return err
	}
	r.receivers[engine.Address()] = engine
	return nil
}

// AssetContract is a non-fungible registry that accepts calls.
type AssetContract interface {
	rentals.Asset
	Contract
}

// RegisterAsset deploys a non-fungible registry at addr.
func (r *Registry) RegisterAsset(addr common.Address, a AssetContract) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.deploy(addr, a); err != nil {
		return err
	}
	r.assets[addr] = a
	return nil
}

// TokenContract is a payment token that accepts calls.
type TokenContract interface {
	rentals.PaymentToken
	Contract
}

// RegisterToken deploys a payment token at addr.
func (r *Registry) RegisterToken(addr common.Address, t TokenContract) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.deploy(addr, t); err != nil {
		return err
	}
	r.tokens[addr] = t
	return nil
}

// Contract returns the module deployed at addr.
func (r *Registry) Contract(addr common.Address) (Contract, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.contracts[addr]
	return c, ok
}

// Asset implements rentals.Collaborators.
func (r *Registry) Asset(addr common.Address) (rentals.Asset, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.assets[addr]
	return a, ok
}

// PaymentToken implements rentals.Collaborators.
func (r *Registry) PaymentToken(addr common.Address) (rentals.PaymentToken, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tokens[addr]
	return t, ok
}

// Receiver resolves the receiver hook deployed at addr. It satisfies
// asset.ReceiverResolver.
func (r *Registry) Receiver(addr common.Address) (asset.Receiver, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	recv, ok := r.receivers[addr]
	return recv, ok
}
