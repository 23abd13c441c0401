package rentals

import (
	"context"
	"errors"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"rentalchain/core/events"
	"rentalchain/core/types"
	"rentalchain/observability/metrics"
)

// Storage abstracts the subset of state manager functionality required by the
// rentals engine.
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

type rentalsEvent struct {
	evt *types.Event
}

func (e rentalsEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e rentalsEvent) Event() *types.Event { return e.evt }

// Engine settles signature-authorized rentals against injected state and
// collaborators. The engine is addressed like a contract: it owns custody of
// rented assets at Address() and is the spender of tenant allowances.
type Engine struct {
	address common.Address
	domain  Domain
	store   Storage
	collab  Collaborators
	emitter events.Emitter
	logger  *slog.Logger
	metrics *metrics.RentalsMetrics
	nowFn   func() int64
	lock    guard
	relayer Relayer
}

// NewEngine creates an engine deployed at address on the given chain. Callers
// must configure state and collaborators before use.
func NewEngine(address common.Address, chainID *big.Int) *Engine {
	return &Engine{
		address: address,
		domain:  Domain{ChainID: cloneBig(chainID), VerifyingContract: address},
		emitter: events.NoopEmitter{},
		logger:  slog.Default(),
		metrics: metrics.Rentals(),
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

// Address returns the account the engine holds custody under.
func (e *Engine) Address() common.Address { return e.address }

// Domain returns the typed-data domain listings and offers are signed under.
func (e *Engine) Domain() Domain {
	return Domain{ChainID: cloneBig(e.domain.ChainID), VerifyingContract: e.domain.VerifyingContract}
}

// SetState configures the state backend used by the engine. When the backend
// also implements Journal every call becomes all-or-nothing.
func (e *Engine) SetState(store Storage) { e.store = store }

// SetCollaborators configures contract resolution for assets and the payment
// token.
func (e *Engine) SetCollaborators(c Collaborators) { e.collab = c }

// SetEmitter configures the event emitter used by the engine. Passing nil resets
// the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetLogger overrides the structured logger.
func (e *Engine) SetLogger(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	e.logger = logger
}

// SetNowFunc overrides the time source used by the engine. Primarily intended
// for tests to provide deterministic timestamps.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

func (e *Engine) emit(event *types.Event) {
	if e == nil || e.emitter == nil || event == nil {
		return
	}
	e.emitter.Emit(rentalsEvent{evt: event})
}

// atomic runs fn and rolls back every state change when it fails.
func (e *Engine) atomic(op string, fn func() error) error {
	if e.store == nil {
		return ErrNilState
	}
	journal, _ := e.store.(Journal)
	snapshot := -1
	if journal != nil {
		snapshot = journal.Snapshot()
	}
	err := fn()
	if err != nil {
		if journal != nil {
			journal.RevertToSnapshot(snapshot)
		}
		e.fail(op, err)
	}
	return err
}

// guarded is atomic behind the reentrancy lock.
func (e *Engine) guarded(op string, fn func() error) error {
	if !e.lock.tryEnter() {
		e.fail(op, ErrReentrantCall)
		return ErrReentrantCall
	}
	defer e.lock.exit()
	return e.atomic(op, fn)
}

func (e *Engine) fail(op string, err error) {
	id := ErrorID(err)
	if id == "" {
		id = "EXTERNAL"
	}
	e.metrics.ObserveFailure(id)
	level := slog.LevelInfo
	if CategoryOf(err) == CategoryInternal && !errors.Is(err, ErrInvalidCall) {
		level = slog.LevelWarn
	}
	e.logger.Log(context.Background(), level, "rentals call rejected",
		slog.String("method", op),
		slog.String("reason", id),
		slog.String("category", string(CategoryOf(err))),
		slog.Any("error", err))
}
