package core

import (
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"rentalchain/core/events"
	"rentalchain/core/state"
	"rentalchain/core/types"
	"rentalchain/observability"
	"rentalchain/storage"
	"rentalchain/storage/trie"
)

var (
	ErrWrongChain    = errors.New("core: call signed for another chain")
	ErrNonceMismatch = errors.New("core: call nonce does not match sender nonce")
	ErrAlreadyBooted = errors.New("core: genesis already applied")
)

var nonceKeyPrefix = []byte("chain/nonce/")

// Chain applies signed calls one at a time against the shared state. Every
// call runs under a state snapshot and an event buffer mark so a failing call
// leaves neither state changes nor events behind. Blocks group calls under a
// single timestamp.
type Chain struct {
	mu       sync.Mutex
	chainID  *big.Int
	blocks   *Blockchain
	state    *state.Manager
	registry *Registry
	buffer   *events.Buffer
	feed     *events.Feed
	emitter  events.Emitter
	clock    func() time.Time
	now      int64
	logger   *slog.Logger
}

// Option customises a Chain.
type Option func(*Chain)

// WithClock overrides the wall clock used to timestamp blocks.
func WithClock(clock func() time.Time) Option {
	return func(c *Chain) {
		if clock != nil {
			c.clock = clock
		}
	}
}

// WithLogger sets the logger used by the chain.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Chain) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithEmitter forwards the events of every sealed block to emitter.
func WithEmitter(emitter events.Emitter) Option {
	return func(c *Chain) {
		if emitter != nil {
			c.emitter = emitter
		}
	}
}

// NewChain opens the chain stored in db, resuming from the last sealed block.
func NewChain(db storage.Database, chainID *big.Int, registry *Registry, opts ...Option) (*Chain, error) {
	if db == nil {
		return nil, fmt.Errorf("core: database must not be nil")
	}
	if chainID == nil || chainID.Sign() <= 0 {
		return nil, fmt.Errorf("core: chain id must be positive")
	}
	if registry == nil {
		registry = NewRegistry()
	}
	blocks, err := NewBlockchain(db)
	if err != nil {
		return nil, err
	}
	var root common.Hash
	var now int64
	if head := blocks.Head(); head != nil {
		root = head.StateRoot
		now = head.Timestamp
	}
	tr, err := trie.Open(db, root)
	if err != nil {
		return nil, fmt.Errorf("core: open state: %w", err)
	}
	c := &Chain{
		chainID:  new(big.Int).Set(chainID),
		blocks:   blocks,
		state:    state.NewManager(tr),
		registry: registry,
		buffer:   &events.Buffer{},
		feed:     events.NewFeed(0),
		emitter:  events.NoopEmitter{},
		clock:    time.Now,
		now:      now,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// ChainID returns the id calls must be signed for.
func (c *Chain) ChainID() *big.Int { return new(big.Int).Set(c.chainID) }

// State exposes the state store contracts are built on.
func (c *Chain) State() *state.Manager { return c.state }

// Emitter is the emitter contracts must publish through so their events are
// tied to the outcome of the call.
func (c *Chain) Emitter() events.Emitter { return c.buffer }

// Feed streams the events of sealed blocks.
func (c *Chain) Feed() *events.Feed { return c.feed }

// Registry returns the contract registry.
func (c *Chain) Registry() *Registry { return c.registry }

// Now returns the timestamp of the block being applied. Contracts call it
// while the chain lock is held.
func (c *Chain) Now() int64 { return c.now }

// Head returns the latest sealed header, or nil before genesis.
func (c *Chain) Head() *types.BlockHeader { return c.blocks.Head() }

// Height returns the height of the latest sealed block.
func (c *Chain) Height() uint64 { return c.blocks.GetHeight() }

// Block returns the sealed block at height.
func (c *Chain) Block(height uint64) (*types.Block, error) {
	return c.blocks.GetBlockByHeight(height)
}

// Receipts returns the receipts of the block at height.
func (c *Chain) Receipts(height uint64) ([]*types.Receipt, error) {
	return c.blocks.GetReceipts(height)
}

func nonceKey(addr common.Address) []byte {
	key := make([]byte, 0, len(nonceKeyPrefix)+common.AddressLength)
	key = append(key, nonceKeyPrefix...)
	return append(key, addr.Bytes()...)
}

func (c *Chain) nonce(addr common.Address) (uint64, error) {
	var nonce uint64
	if _, err := c.state.KVGet(nonceKey(addr), &nonce); err != nil {
		return 0, err
	}
	return nonce, nil
}

// Nonce returns the nonce the next call from addr must carry.
func (c *Chain) Nonce(addr common.Address) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.nonce(addr)
}

// Query runs fn against the current state with the clock advanced to now.
// fn must not mutate state.
func (c *Chain) Query(fn func() error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tick()
	return fn()
}

func (c *Chain) tick() {
	now := c.clock().Unix()
	if head := c.blocks.Head(); head != nil && now < head.Timestamp {
		now = head.Timestamp
	}
	c.now = now
}

// Genesis applies fn as block zero. It fails with ErrAlreadyBooted once any
// block has been sealed.
func (c *Chain) Genesis(fn func() error) (*types.Block, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.blocks.Head() != nil {
		return nil, ErrAlreadyBooted
	}
	c.tick()
	snapshot := c.state.Snapshot()
	mark := c.buffer.Mark()
	if err := fn(); err != nil {
		c.state.RevertToSnapshot(snapshot)
		c.buffer.Rollback(mark)
		return nil, err
	}
	block, _, err := c.seal(nil, nil)
	return block, err
}

// Execute applies call in a block of its own and returns its receipt. The
// returned error is the reason the call failed, if it did.
func (c *Chain) Execute(call *types.Call) (*types.Receipt, error) {
	_, receipts, err := c.ApplyBlock([]*types.Call{call})
	if err != nil {
		return nil, err
	}
	return receipts[0], receipts[0].Err
}

// ApplyBlock applies calls in order under one timestamp and seals the block.
// Failed calls are reported in their receipts; the error is reserved for
// failures to seal.
func (c *Chain) ApplyBlock(calls []*types.Call) (*types.Block, []*types.Receipt, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tick()
	height := c.nextHeight()
	receipts := make([]*types.Receipt, 0, len(calls))
	for i, call := range calls {
		receipts = append(receipts, c.apply(height, i, call))
	}
	return c.seal(calls, receipts)
}

func (c *Chain) nextHeight() uint64 {
	if head := c.blocks.Head(); head != nil {
		return head.Height + 1
	}
	return 0
}

func (c *Chain) apply(height uint64, index int, call *types.Call) *types.Receipt {
	receipt := &types.Receipt{Height: height, Index: index}
	if call == nil {
		receipt.Err = fmt.Errorf("core: nil call")
		receipt.Error = receipt.Err.Error()
		return receipt
	}
	receipt.CallHash = call.Hash()
	if err := c.applyCall(call, receipt); err != nil {
		receipt.Status = types.ReceiptStatusFailed
		receipt.Err = err
		receipt.Error = err.Error()
		c.logger.Info("call failed",
			slog.Uint64("height", height),
			slog.Int("index", index),
			slog.String("contract", call.To.Hex()),
			slog.String("from", call.From.Hex()),
			slog.Any("error", err))
		return receipt
	}
	receipt.Status = types.ReceiptStatusSuccess
	return receipt
}

func (c *Chain) applyCall(call *types.Call, receipt *types.Receipt) error {
	if call.ChainID == nil || call.ChainID.Cmp(c.chainID) != 0 {
		return ErrWrongChain
	}
	sender, err := call.Sender()
	if err != nil {
		return err
	}
	expected, err := c.nonce(sender)
	if err != nil {
		return err
	}
	if call.Nonce != expected {
		return fmt.Errorf("%w: have %d, want %d", ErrNonceMismatch, call.Nonce, expected)
	}
	contract, ok := c.registry.Contract(call.To)
	if !ok {
		return ErrUnknownContract
	}
	if err := c.state.KVPut(nonceKey(sender), expected+1); err != nil {
		return err
	}

	snapshot := c.state.Snapshot()
	mark := c.buffer.Mark()
	if err := contract.Dispatch(sender, call.Data); err != nil {
		c.state.RevertToSnapshot(snapshot)
		c.buffer.Rollback(mark)
		return err
	}
	for _, evt := range c.buffer.Since(mark) {
		receipt.Events = append(receipt.Events, evt.Event())
	}
	return nil
}

func (c *Chain) seal(calls []*types.Call, receipts []*types.Receipt) (*types.Block, []*types.Receipt, error) {
	height := c.nextHeight()
	root, err := c.state.Commit(height)
	if err != nil {
		return nil, nil, fmt.Errorf("core: commit state: %w", err)
	}
	callRoot, err := ComputeCallRoot(calls)
	if err != nil {
		return nil, nil, err
	}
	header := &types.BlockHeader{
		Height:    height,
		Timestamp: c.now,
		StateRoot: root,
		CallRoot:  callRoot,
	}
	if head := c.blocks.Head(); head != nil {
		prev, err := head.Hash()
		if err != nil {
			return nil, nil, err
		}
		header.PrevHash = prev
	}
	block := &types.Block{Header: header, Calls: calls}
	if err := c.blocks.AddBlock(block, receipts); err != nil {
		return nil, nil, err
	}

	pending := c.buffer.Since(0)
	c.buffer.Flush(c.emitter)
	c.feed.Publish(height, pending)
	failed := 0
	for _, receipt := range receipts {
		if !receipt.Succeeded() {
			failed++
		}
	}
	metrics := observability.Chain()
	metrics.RecordBlock(height, len(calls), failed)
	for _, evt := range pending {
		metrics.RecordEvent(evt.EventType())
	}
	c.logger.Info("block sealed",
		slog.Uint64("height", height),
		slog.Int64("timestamp", c.now),
		slog.Int("calls", len(calls)),
		slog.Int("failed", failed),
		slog.String("root", root.Hex()))
	return block, receipts, nil
}
