package token

import (
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"rentalchain/core/events"
	"rentalchain/core/types"
)

const (
	EventTypeTransfer = "token.transfer"
	EventTypeApproval = "token.approval"
)

var (
	ErrInsufficientBalance   = errors.New("token: transfer amount exceeds balance")
	ErrInsufficientAllowance = errors.New("token: insufficient allowance")
	ErrNotMinter             = errors.New("token: caller is not the minter")
	ErrInvalidAmount         = errors.New("token: amount must not be negative")
	ErrZeroAddress           = errors.New("token: zero address")
	ErrNilState              = errors.New("token: state not configured")
)

// Storage abstracts the subset of state manager functionality required by the
// token.
type Storage interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
}

// Token is a fungible payment token with balances and allowances kept in the
// shared state store, namespaced by the token address.
type Token struct {
	address common.Address
	minter  common.Address
	store   Storage
	emitter events.Emitter
}

// New creates the token deployed at address. Only minter may mint.
func New(address, minter common.Address, store Storage) *Token {
	return &Token{address: address, minter: minter, store: store, emitter: events.NoopEmitter{}}
}

// Address returns the contract address of the token.
func (t *Token) Address() common.Address { return t.address }

// SetEmitter configures the event emitter used by the token.
func (t *Token) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		emitter = events.NoopEmitter{}
	}
	t.emitter = emitter
}

func (t *Token) key(kind string, parts ...common.Address) []byte {
	buf := make([]byte, 0, 8+len(kind)+common.AddressLength*(len(parts)+1))
	buf = append(buf, "token/"...)
	buf = append(buf, t.address.Bytes()...)
	buf = append(buf, '/')
	buf = append(buf, kind...)
	buf = append(buf, '/')
	for _, part := range parts {
		buf = append(buf, part.Bytes()...)
	}
	return buf
}

func (t *Token) load(key []byte) (*big.Int, error) {
	if t.store == nil {
		return nil, ErrNilState
	}
	value := new(big.Int)
	ok, err := t.store.KVGet(key, value)
	if err != nil {
		return nil, err
	}
	if !ok {
		return big.NewInt(0), nil
	}
	return value, nil
}

// BalanceOf returns holder's balance.
func (t *Token) BalanceOf(holder common.Address) (*big.Int, error) {
	return t.load(t.key("balance", holder))
}

// Allowance returns how much spender may move out of owner's balance.
func (t *Token) Allowance(owner, spender common.Address) (*big.Int, error) {
	return t.load(t.key("allowance", owner, spender))
}

// TotalSupply returns the amount minted so far.
func (t *Token) TotalSupply() (*big.Int, error) {
	return t.load(t.key("supply"))
}

// Mint credits amount to to. Only the minter may call it.
func (t *Token) Mint(caller, to common.Address, amount *big.Int) error {
	if caller != t.minter {
		return ErrNotMinter
	}
	if to == (common.Address{}) {
		return ErrZeroAddress
	}
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	supply, err := t.TotalSupply()
	if err != nil {
		return err
	}
	balance, err := t.BalanceOf(to)
	if err != nil {
		return err
	}
	if err := t.store.KVPut(t.key("supply"), supply.Add(supply, amount)); err != nil {
		return err
	}
	if err := t.store.KVPut(t.key("balance", to), balance.Add(balance, amount)); err != nil {
		return err
	}
	t.emitTransfer(common.Address{}, to, amount)
	return nil
}

// Approve sets the allowance of spender over caller's balance.
func (t *Token) Approve(caller, spender common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	if spender == (common.Address{}) {
		return ErrZeroAddress
	}
	if err := t.store.KVPut(t.key("allowance", caller, spender), new(big.Int).Set(amount)); err != nil {
		return err
	}
	t.emitter.Emit(events.Wrap(&types.Event{
		Type: EventTypeApproval,
		Attributes: map[string]string{
			"token":   t.address.Hex(),
			"owner":   caller.Hex(),
			"spender": spender.Hex(),
			"amount":  amount.String(),
		},
	}))
	return nil
}

// Transfer moves amount from caller to to.
func (t *Token) Transfer(caller, to common.Address, amount *big.Int) error {
	return t.move(caller, to, amount)
}

// TransferFrom moves amount from from to to, spending caller's allowance
// unless caller is from.
func (t *Token) TransferFrom(caller, from, to common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	if caller != from {
		allowance, err := t.Allowance(from, caller)
		if err != nil {
			return err
		}
		if allowance.Cmp(amount) < 0 {
			return ErrInsufficientAllowance
		}
		if err := t.store.KVPut(t.key("allowance", from, caller), allowance.Sub(allowance, amount)); err != nil {
			return err
		}
	}
	return t.move(from, to, amount)
}

func (t *Token) move(from, to common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	if to == (common.Address{}) {
		return ErrZeroAddress
	}
	fromBalance, err := t.BalanceOf(from)
	if err != nil {
		return err
	}
	if fromBalance.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	if err := t.store.KVPut(t.key("balance", from), fromBalance.Sub(fromBalance, amount)); err != nil {
		return err
	}
	toBalance, err := t.BalanceOf(to)
	if err != nil {
		return err
	}
	if err := t.store.KVPut(t.key("balance", to), toBalance.Add(toBalance, amount)); err != nil {
		return err
	}
	t.emitTransfer(from, to, amount)
	return nil
}

func (t *Token) emitTransfer(from, to common.Address, amount *big.Int) {
	t.emitter.Emit(events.Wrap(&types.Event{
		Type: EventTypeTransfer,
		Attributes: map[string]string{
			"token":  t.address.Hex(),
			"from":   from.Hex(),
			"to":     to.Hex(),
			"amount": amount.String(),
		},
	}))
}
