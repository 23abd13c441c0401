package metatx

import (
	"crypto/ecdsa"
	"encoding/hex"
	"errors"
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"

	"rentalchain/core/events"
	"rentalchain/core/types"
	rcrypto "rentalchain/crypto"
	"rentalchain/observability/metrics"
)

const (
	DomainName    = "RentalsMetaTransaction"
	DomainVersion = "1"

	EventTypeExecuted = "metatx.executed"
)

var (
	// ErrSignerMismatch indicates the signature was not produced by the
	// claimed sender over its current relay nonce.
	ErrSignerMismatch = errors.New("metatx: SIGNER_AND_SIGNATURE_DO_NOT_MATCH")
	ErrInvalidSigner  = errors.New("metatx: INVALID_SIGNER")
	ErrNilState       = errors.New("metatx: state not configured")
	// ErrReverted is returned when the relayed call failed without a reason.
	ErrReverted = errors.New("execution reverted")
)

var noncePrefix = []byte("metatx/nonce/")

// Storage abstracts the subset of state manager functionality required by the
// relay.
type Storage interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
}

// Journal is implemented by stores that can roll back a failed call.
type Journal interface {
	Snapshot() int
	RevertToSnapshot(id int)
}

// Dispatcher is the host contract the relay re-enters.
type Dispatcher interface {
	Dispatch(from common.Address, data []byte) error
}

var typedDataTypes = apitypes.Types{
	"EIP712Domain": rcrypto.DomainFields,
	"MetaTransaction": {
		{Name: "nonce", Type: "uint256"},
		{Name: "from", Type: "address"},
		{Name: "functionData", Type: "bytes"},
	},
}

// Relay verifies signed call payloads and replays them against the host as
// self calls carrying the signer address.
type Relay struct {
	host    common.Address
	chainID *big.Int
	store   Storage
	target  Dispatcher
	emitter events.Emitter
	logger  *slog.Logger
	metrics *metrics.RentalsMetrics
}

// NewRelay creates a relay for the host contract deployed at host.
func NewRelay(host common.Address, chainID *big.Int, store Storage, target Dispatcher) *Relay {
	id := new(big.Int)
	if chainID != nil {
		id.Set(chainID)
	}
	return &Relay{
		host:    host,
		chainID: id,
		store:   store,
		target:  target,
		emitter: events.NoopEmitter{},
		logger:  slog.Default(),
		metrics: metrics.Rentals(),
	}
}

// SetEmitter configures the event emitter used by the relay.
func (r *Relay) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		emitter = events.NoopEmitter{}
	}
	r.emitter = emitter
}

func (r *Relay) SetLogger(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	r.logger = logger
}

// nonceKey is scoped to the host so relays of different contracts keep
// separate counters.
func (r *Relay) nonceKey(addr common.Address) []byte {
	buf := make([]byte, 0, len(noncePrefix)+2*common.AddressLength+1)
	buf = append(buf, noncePrefix...)
	buf = append(buf, r.host.Bytes()...)
	buf = append(buf, '/')
	return append(buf, addr.Bytes()...)
}

// Nonce returns the relay nonce the next meta transaction from addr must sign.
func (r *Relay) Nonce(addr common.Address) (*big.Int, error) {
	if r.store == nil {
		return nil, ErrNilState
	}
	nonce := new(big.Int)
	ok, err := r.store.KVGet(r.nonceKey(addr), nonce)
	if err != nil {
		return nil, err
	}
	if !ok {
		return big.NewInt(0), nil
	}
	return nonce, nil
}

// Hash returns the digest from signs to authorize functionData at nonce.
func (r *Relay) Hash(nonce *big.Int, from common.Address, functionData []byte) (common.Hash, error) {
	if nonce == nil {
		nonce = big.NewInt(0)
	}
	return rcrypto.HashTypedData(apitypes.TypedData{
		Types:       typedDataTypes,
		PrimaryType: "MetaTransaction",
		Domain:      rcrypto.NewDomain(DomainName, DomainVersion, r.chainID, r.host),
		Message: apitypes.TypedDataMessage{
			"nonce":        nonce.String(),
			"from":         from.Hex(),
			"functionData": functionData,
		},
	})
}

// Sign produces the signature Execute expects for functionData from the owner
// of key at its current nonce.
func (r *Relay) Sign(functionData []byte, key *ecdsa.PrivateKey) ([]byte, error) {
	if key == nil {
		return nil, errors.New("metatx: nil private key")
	}
	from := rcrypto.PrivateKey{PrivateKey: key}
	nonce, err := r.Nonce(from.Address())
	if err != nil {
		return nil, err
	}
	digest, err := r.Hash(nonce, from.Address(), functionData)
	if err != nil {
		return nil, err
	}
	return rcrypto.SignDigest(digest, key)
}

// Execute verifies that from signed functionData at its current nonce, bumps
// the nonce and dispatches the call to the host on from's behalf. The inner
// error is returned unchanged; an inner failure without a message surfaces as
// ErrReverted.
func (r *Relay) Execute(relayer, from common.Address, functionData, signature []byte) error {
	if r.store == nil || r.target == nil {
		return ErrNilState
	}
	if from == (common.Address{}) {
		return ErrInvalidSigner
	}
	journal, _ := r.store.(Journal)
	snapshot := -1
	if journal != nil {
		snapshot = journal.Snapshot()
	}
	err := r.execute(relayer, from, functionData, signature)
	if err != nil && journal != nil {
		journal.RevertToSnapshot(snapshot)
	}
	r.metrics.ObserveRelay(err == nil)
	return err
}

func (r *Relay) execute(relayer, from common.Address, functionData, signature []byte) error {
	nonce, err := r.Nonce(from)
	if err != nil {
		return err
	}
	digest, err := r.Hash(nonce, from, functionData)
	if err != nil {
		return err
	}
	signer, err := rcrypto.RecoverSigner(digest, signature)
	if err != nil || signer != from {
		return ErrSignerMismatch
	}
	if err := r.store.KVPut(r.nonceKey(from), new(big.Int).Add(nonce, big.NewInt(1))); err != nil {
		return err
	}

	call := make([]byte, 0, len(functionData)+common.AddressLength)
	call = append(call, functionData...)
	call = append(call, from.Bytes()...)
	if err := r.target.Dispatch(r.host, call); err != nil {
		if err.Error() == "" {
			return ErrReverted
		}
		r.logger.Info("meta transaction reverted",
			slog.String("signer", from.Hex()),
			slog.String("relayer", relayer.Hex()),
			slog.String("reason", err.Error()))
		return err
	}

	r.emitter.Emit(events.Wrap(&types.Event{
		Type: EventTypeExecuted,
		Attributes: map[string]string{
			"userAddress":    from.Hex(),
			"relayerAddress": relayer.Hex(),
			"functionData":   "0x" + hex.EncodeToString(functionData),
			"nonce":          nonce.String(),
		},
	}))
	return nil
}
