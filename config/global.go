package config

import (
	"fmt"
	"math/big"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"rentalchain/core"
	"rentalchain/crypto"
)

// KeystorePassphrase returns the owner keystore passphrase from the
// environment variable named by KeystorePassEnv. It is empty when unset.
func (c *Config) KeystorePassphrase() string {
	if strings.TrimSpace(c.KeystorePassEnv) == "" {
		return ""
	}
	return os.Getenv(c.KeystorePassEnv)
}

// RPCAuthToken returns the bearer token protecting mutating RPC methods.
func (c *Config) RPCAuthToken() string {
	return strings.TrimSpace(os.Getenv(c.RPCAuthTokenEnv))
}

// RPCJWTSecret returns the HMAC secret for JWT bearers, empty when unset.
func (c *Config) RPCJWTSecret() string {
	if strings.TrimSpace(c.RPCJWT.SecretEnv) == "" {
		return ""
	}
	return strings.TrimSpace(os.Getenv(c.RPCJWT.SecretEnv))
}

func addressOr(value string, fallback common.Address) (common.Address, error) {
	if strings.TrimSpace(value) == "" {
		return fallback, nil
	}
	addr, err := crypto.ParseAddress(value)
	if err != nil {
		return common.Address{}, err
	}
	return addr.Common(), nil
}

// Genesis converts the configuration into the node genesis. owner is the
// address of the owner keystore and fills every unset authority.
func (c *Config) Genesis(owner common.Address) (core.Genesis, error) {
	if err := c.Validate(); err != nil {
		return core.Genesis{}, err
	}
	g := core.Genesis{
		ChainID:     new(big.Int).SetUint64(c.ChainID),
		TokenMinter: owner,
		Fee:         c.Rentals.Fee,
	}
	var err error
	if g.Rentals, err = addressOr(c.Rentals.Contract, common.Address{}); err != nil {
		return core.Genesis{}, fmt.Errorf("rentals.Contract: %w", err)
	}
	if g.Owner, err = addressOr(c.Rentals.Owner, owner); err != nil {
		return core.Genesis{}, fmt.Errorf("rentals.Owner: %w", err)
	}
	if g.Token, err = addressOr(c.Rentals.Token, common.Address{}); err != nil {
		return core.Genesis{}, fmt.Errorf("rentals.Token: %w", err)
	}
	if g.FeeCollector, err = addressOr(c.Rentals.FeeCollector, owner); err != nil {
		return core.Genesis{}, fmt.Errorf("rentals.FeeCollector: %w", err)
	}
	for i, a := range c.Assets {
		addr, err := addressOr(a.Address, common.Address{})
		if err != nil {
			return core.Genesis{}, fmt.Errorf("assets[%d].Address: %w", i, err)
		}
		minter, err := addressOr(a.Minter, owner)
		if err != nil {
			return core.Genesis{}, fmt.Errorf("assets[%d].Minter: %w", i, err)
		}
		kind := core.AssetKind(strings.ToLower(strings.TrimSpace(a.Kind)))
		if kind == "" {
			kind = core.AssetKindRegistry
		}
		g.Assets = append(g.Assets, core.GenesisAsset{Address: addr, Kind: kind, Minter: minter})
	}
	return g, nil
}
