package core

import (
	"fmt"
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"rentalchain/native/asset"
	"rentalchain/native/metatx"
	"rentalchain/native/rentals"
	"rentalchain/native/token"
	"rentalchain/observability/logging"
	"rentalchain/storage"
)

// AssetKind selects the registry flavour deployed for a genesis asset.
type AssetKind string

const (
	AssetKindRegistry  AssetKind = "registry"
	AssetKindComposite AssetKind = "composite"
)

// GenesisAsset describes a non-fungible registry deployed at boot.
type GenesisAsset struct {
	Address common.Address
	Kind    AssetKind
	Minter  common.Address
}

// Genesis describes the contracts a node hosts and the initial rentals
// configuration applied in block zero.
type Genesis struct {
	ChainID      *big.Int
	Rentals      common.Address
	Owner        common.Address
	Token        common.Address
	TokenMinter  common.Address
	FeeCollector common.Address
	Fee          uint64
	Assets       []GenesisAsset
}

// Node bundles the chain with the contracts deployed on it.
type Node struct {
	chain      *Chain
	engine     *rentals.Engine
	relay      *metatx.Relay
	token      *token.Token
	assets     map[common.Address]*asset.Registry
	composites map[common.Address]*asset.Composite
}

// NewNode opens the chain in db, deploys the genesis contracts and applies the
// initial configuration when the chain is empty.
func NewNode(db storage.Database, genesis Genesis, opts ...Option) (*Node, error) {
	registry := NewRegistry()
	chain, err := NewChain(db, genesis.ChainID, registry, opts...)
	if err != nil {
		return nil, err
	}
	store := chain.State()
	emitter := chain.Emitter()

	engine := rentals.NewEngine(genesis.Rentals, genesis.ChainID)
	engine.SetState(store)
	engine.SetCollaborators(registry)
	engine.SetEmitter(emitter)
	engine.SetLogger(logging.Component(chain.logger, "rentals"))
	engine.SetNowFunc(chain.Now)

	relay := metatx.NewRelay(genesis.Rentals, genesis.ChainID, store, engine)
	relay.SetEmitter(emitter)
	relay.SetLogger(logging.Component(chain.logger, "metatx"))
	engine.SetRelayer(relay)
	if err := registry.RegisterRentals(engine); err != nil {
		return nil, fmt.Errorf("deploy rentals at %s: %w", genesis.Rentals.Hex(), err)
	}

	tok := token.New(genesis.Token, genesis.TokenMinter, store)
	tok.SetEmitter(emitter)
	if err := registry.RegisterToken(genesis.Token, tok); err != nil {
		return nil, fmt.Errorf("deploy token at %s: %w", genesis.Token.Hex(), err)
	}

	n := &Node{
		chain:      chain,
		engine:     engine,
		relay:      relay,
		token:      tok,
		assets:     make(map[common.Address]*asset.Registry),
		composites: make(map[common.Address]*asset.Composite),
	}
	for _, def := range genesis.Assets {
		if err := n.deployAsset(def); err != nil {
			return nil, err
		}
	}

	if chain.Head() == nil {
		_, err := chain.Genesis(func() error {
			return engine.Initialize(genesis.Owner, genesis.Token, genesis.FeeCollector, genesis.Fee)
		})
		if err != nil {
			return nil, fmt.Errorf("apply genesis: %w", err)
		}
		chain.logger.Info("genesis applied",
			slog.String("contract", genesis.Rentals.Hex()),
			slog.String("owner", genesis.Owner.Hex()),
			slog.Uint64("fee", genesis.Fee))
	}
	return n, nil
}

func (n *Node) deployAsset(def GenesisAsset) error {
	store := n.chain.State()
	registry := n.chain.Registry()
	switch def.Kind {
	case AssetKindRegistry, "":
		reg := asset.NewRegistry(def.Address, def.Minter, store)
		reg.SetReceivers(registry.Receiver)
		reg.SetEmitter(n.chain.Emitter())
		if err := registry.RegisterAsset(def.Address, reg); err != nil {
			return fmt.Errorf("deploy asset at %s: %w", def.Address.Hex(), err)
		}
		n.assets[def.Address] = reg
	case AssetKindComposite:
		comp := asset.NewComposite(def.Address, def.Minter, store)
		comp.SetReceivers(registry.Receiver)
		comp.SetEmitter(n.chain.Emitter())
		if err := registry.RegisterAsset(def.Address, comp); err != nil {
			return fmt.Errorf("deploy composite at %s: %w", def.Address.Hex(), err)
		}
		n.composites[def.Address] = comp
	default:
		return fmt.Errorf("asset %s: unknown kind %q", def.Address.Hex(), def.Kind)
	}
	return nil
}

// Chain returns the underlying chain.
func (n *Node) Chain() *Chain { return n.chain }

// Engine returns the rentals engine.
func (n *Node) Engine() *rentals.Engine { return n.engine }

// Relay returns the meta-transaction relay bound to the engine.
func (n *Node) Relay() *metatx.Relay { return n.relay }

// Token returns the payment token.
func (n *Node) Token() *token.Token { return n.token }

// Asset returns the plain registry deployed at addr.
func (n *Node) Asset(addr common.Address) (*asset.Registry, bool) {
	reg, ok := n.assets[addr]
	return reg, ok
}

// Composite returns the composite registry deployed at addr.
func (n *Node) Composite(addr common.Address) (*asset.Composite, bool) {
	comp, ok := n.composites[addr]
	return comp, ok
}
