package asset

import (
	"errors"
	"math/big"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"rentalchain/core/events"
	"rentalchain/core/types"
)

const (
	EventTypeTransfer       = "asset.transfer"
	EventTypeApprovalForAll = "asset.approval_for_all"
	EventTypeUpdateOperator = "asset.update_operator"
)

var (
	ErrNonexistentToken = errors.New("asset: token does not exist")
	ErrTokenExists      = errors.New("asset: token already minted")
	ErrNotMinter        = errors.New("asset: caller is not the minter")
	ErrNotAuthorized    = errors.New("asset: caller is not owner nor approved")
	ErrWrongFrom        = errors.New("asset: transfer from incorrect owner")
	ErrZeroAddress      = errors.New("asset: zero address")
	ErrUnsafeRecipient  = errors.New("asset: transfer to non ERC721Receiver implementer")
	ErrNilState         = errors.New("asset: state not configured")
)

var (
	InterfaceERC165 = selectorOf("supportsInterface(bytes4)")
	// InterfaceERC721 is the XOR of the ERC-721 function selectors.
	InterfaceERC721        = [4]byte{0x80, 0xac, 0x58, 0xcd}
	InterfaceFingerprint   = selectorOf("verifyFingerprint(uint256,bytes)")
	ERC721ReceivedSelector = selectorOf("onERC721Received(address,address,uint256,bytes)")
)

func selectorOf(signature string) [4]byte {
	var id [4]byte
	copy(id[:], ethcrypto.Keccak256([]byte(signature))[:4])
	return id
}

// Storage abstracts the subset of state manager functionality required by the
// registry.
type Storage interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
	KVDelete(key []byte) error
}

// Journal is implemented by stores that can roll back a failed call.
type Journal interface {
	Snapshot() int
	RevertToSnapshot(id int)
}

// Receiver is implemented by contracts that accept safe transfers.
type Receiver interface {
	OnERC721Received(assetContract, operator, from common.Address, tokenID *big.Int, data []byte) ([4]byte, error)
}

// ReceiverResolver returns the receiver deployed at addr, if any. Plain
// accounts have no receiver.
type ReceiverResolver func(addr common.Address) (Receiver, bool)

// Registry is a non-fungible asset contract with per-token update operators.
type Registry struct {
	address   common.Address
	minter    common.Address
	store     Storage
	receivers ReceiverResolver
	emitter   events.Emitter
}

// NewRegistry creates the registry deployed at address. Only minter may mint.
func NewRegistry(address, minter common.Address, store Storage) *Registry {
	return &Registry{address: address, minter: minter, store: store, emitter: events.NoopEmitter{}}
}

func (r *Registry) Address() common.Address { return r.address }

// SetReceivers configures how safe transfers find receiver hooks.
func (r *Registry) SetReceivers(resolver ReceiverResolver) { r.receivers = resolver }

// SetEmitter configures the event emitter used by the registry.
func (r *Registry) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		emitter = events.NoopEmitter{}
	}
	r.emitter = emitter
}

func (r *Registry) key(kind string, parts ...[]byte) []byte {
	buf := make([]byte, 0, 64+len(kind))
	buf = append(buf, "asset/"...)
	buf = append(buf, r.address.Bytes()...)
	buf = append(buf, '/')
	buf = append(buf, kind...)
	buf = append(buf, '/')
	for _, part := range parts {
		buf = append(buf, part...)
	}
	return buf
}

func tokenWord(id *big.Int) []byte {
	if id == nil {
		id = new(big.Int)
	}
	return common.BigToHash(id).Bytes()
}

// SupportsInterface reports ERC-165 capabilities.
func (r *Registry) SupportsInterface(id [4]byte) bool {
	return id == InterfaceERC165 || id == InterfaceERC721
}

// Mint creates tokenID owned by to.
func (r *Registry) Mint(caller, to common.Address, tokenID *big.Int) error {
	if caller != r.minter {
		return ErrNotMinter
	}
	if to == (common.Address{}) {
		return ErrZeroAddress
	}
	if _, err := r.OwnerOf(tokenID); err == nil {
		return ErrTokenExists
	} else if !errors.Is(err, ErrNonexistentToken) {
		return err
	}
	if err := r.store.KVPut(r.key("owner", tokenWord(tokenID)), to); err != nil {
		return err
	}
	r.emitTransfer(common.Address{}, to, tokenID)
	return nil
}

// OwnerOf returns the current holder of tokenID.
func (r *Registry) OwnerOf(tokenID *big.Int) (common.Address, error) {
	if r.store == nil {
		return common.Address{}, ErrNilState
	}
	var owner common.Address
	ok, err := r.store.KVGet(r.key("owner", tokenWord(tokenID)), &owner)
	if err != nil {
		return common.Address{}, err
	}
	if !ok || owner == (common.Address{}) {
		return common.Address{}, ErrNonexistentToken
	}
	return owner, nil
}

// SetApprovalForAll lets operator move every token caller holds.
func (r *Registry) SetApprovalForAll(caller, operator common.Address, approved bool) error {
	if operator == (common.Address{}) {
		return ErrZeroAddress
	}
	if err := r.store.KVPut(r.key("approval", caller.Bytes(), operator.Bytes()), approved); err != nil {
		return err
	}
	r.emitter.Emit(events.Wrap(&types.Event{
		Type: EventTypeApprovalForAll,
		Attributes: map[string]string{
			"contract": r.address.Hex(),
			"owner":    caller.Hex(),
			"operator": operator.Hex(),
			"approved": strconv.FormatBool(approved),
		},
	}))
	return nil
}

func (r *Registry) IsApprovedForAll(owner, operator common.Address) (bool, error) {
	var approved bool
	if _, err := r.store.KVGet(r.key("approval", owner.Bytes(), operator.Bytes()), &approved); err != nil {
		return false, err
	}
	return approved, nil
}

func (r *Registry) authorize(caller common.Address, tokenID *big.Int) (common.Address, error) {
	owner, err := r.OwnerOf(tokenID)
	if err != nil {
		return common.Address{}, err
	}
	if caller == owner {
		return owner, nil
	}
	approved, err := r.IsApprovedForAll(owner, caller)
	if err != nil {
		return common.Address{}, err
	}
	if !approved {
		return common.Address{}, ErrNotAuthorized
	}
	return owner, nil
}

// TransferFrom moves tokenID without notifying the recipient. The update
// operator is cleared on every transfer.
func (r *Registry) TransferFrom(caller, from, to common.Address, tokenID *big.Int) error {
	owner, err := r.authorize(caller, tokenID)
	if err != nil {
		return err
	}
	if owner != from {
		return ErrWrongFrom
	}
	if to == (common.Address{}) {
		return ErrZeroAddress
	}
	if err := r.store.KVPut(r.key("owner", tokenWord(tokenID)), to); err != nil {
		return err
	}
	if err := r.store.KVDelete(r.key("operator", tokenWord(tokenID))); err != nil {
		return err
	}
	r.emitTransfer(from, to, tokenID)
	return nil
}

// SafeTransferFrom moves tokenID and invokes the recipient's receiver hook
// with data. The transfer is undone when the hook fails or answers with the
// wrong selector.
func (r *Registry) SafeTransferFrom(caller, from, to common.Address, tokenID *big.Int, data []byte) error {
	journal, _ := r.store.(Journal)
	snapshot := -1
	if journal != nil {
		snapshot = journal.Snapshot()
	}
	err := r.safeTransfer(caller, from, to, tokenID, data)
	if err != nil && journal != nil {
		journal.RevertToSnapshot(snapshot)
	}
	return err
}

func (r *Registry) safeTransfer(caller, from, to common.Address, tokenID *big.Int, data []byte) error {
	if err := r.TransferFrom(caller, from, to, tokenID); err != nil {
		return err
	}
	if r.receivers == nil {
		return nil
	}
	receiver, ok := r.receivers(to)
	if !ok || receiver == nil {
		return nil
	}
	answer, err := receiver.OnERC721Received(r.address, caller, from, new(big.Int).Set(tokenID), data)
	if err != nil {
		return err
	}
	if answer != ERC721ReceivedSelector {
		return ErrUnsafeRecipient
	}
	return nil
}

// SetUpdateOperator delegates functional use of tokenID to operator.
func (r *Registry) SetUpdateOperator(caller common.Address, tokenID *big.Int, operator common.Address) error {
	if _, err := r.authorize(caller, tokenID); err != nil {
		return err
	}
	if err := r.store.KVPut(r.key("operator", tokenWord(tokenID)), operator); err != nil {
		return err
	}
	r.emitter.Emit(events.Wrap(&types.Event{
		Type: EventTypeUpdateOperator,
		Attributes: map[string]string{
			"contract": r.address.Hex(),
			"tokenId":  tokenID.String(),
			"operator": operator.Hex(),
		},
	}))
	return nil
}

// UpdateOperator returns the delegate of tokenID, or the zero address.
func (r *Registry) UpdateOperator(tokenID *big.Int) (common.Address, error) {
	var operator common.Address
	if _, err := r.store.KVGet(r.key("operator", tokenWord(tokenID)), &operator); err != nil {
		return common.Address{}, err
	}
	return operator, nil
}

func (r *Registry) emitTransfer(from, to common.Address, tokenID *big.Int) {
	r.emitter.Emit(events.Wrap(&types.Event{
		Type: EventTypeTransfer,
		Attributes: map[string]string{
			"contract": r.address.Hex(),
			"from":     from.Hex(),
			"to":       to.Hex(),
			"tokenId":  tokenID.String(),
		},
	}))
}
