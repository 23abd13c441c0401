package config

import (
	"fmt"
	"strings"

	"rentalchain/crypto"
	"rentalchain/native/rentals"
)

// Validate checks the configuration for values the node cannot start with.
func (c *Config) Validate() error {
	if c.ChainID == 0 {
		return fmt.Errorf("ChainID must be positive")
	}
	if c.Rentals.Fee > rentals.MaxFee {
		return fmt.Errorf("rentals: Fee %d exceeds %d", c.Rentals.Fee, rentals.MaxFee)
	}
	if c.RPCRateLimit < 0 || c.RPCRateBurst < 0 {
		return fmt.Errorf("rpc: rate limits must not be negative")
	}
	if c.LogFile.MaxSizeMB < 0 || c.LogFile.MaxBackups < 0 || c.LogFile.MaxAgeDays < 0 {
		return fmt.Errorf("log_file: rotation limits must not be negative")
	}
	if (c.Telemetry.Traces || c.Telemetry.Metrics) && strings.TrimSpace(c.Telemetry.Endpoint) == "" {
		return fmt.Errorf("telemetry: Endpoint required when exporting")
	}
	seen := make(map[string]string)
	claim := func(field, value string) error {
		addr, err := crypto.ParseAddress(value)
		if err != nil {
			return fmt.Errorf("%s: %w", field, err)
		}
		key := addr.Common().Hex()
		if prev, ok := seen[key]; ok {
			return fmt.Errorf("%s: address already used by %s", field, prev)
		}
		seen[key] = field
		return nil
	}
	if err := claim("rentals.Contract", c.Rentals.Contract); err != nil {
		return err
	}
	if err := claim("rentals.Token", c.Rentals.Token); err != nil {
		return err
	}
	for field, value := range map[string]string{
		"rentals.FeeCollector": c.Rentals.FeeCollector,
		"rentals.Owner":        c.Rentals.Owner,
	} {
		if strings.TrimSpace(value) == "" {
			continue
		}
		if _, err := crypto.ParseAddress(value); err != nil {
			return fmt.Errorf("%s: %w", field, err)
		}
	}
	for i, a := range c.Assets {
		field := fmt.Sprintf("assets[%d]", i)
		if err := claim(field+".Address", a.Address); err != nil {
			return err
		}
		switch strings.ToLower(strings.TrimSpace(a.Kind)) {
		case "", "registry", "composite":
		default:
			return fmt.Errorf("%s.Kind: unknown asset kind %q", field, a.Kind)
		}
		if strings.TrimSpace(a.Minter) != "" {
			if _, err := crypto.ParseAddress(a.Minter); err != nil {
				return fmt.Errorf("%s.Minter: %w", field, err)
			}
		}
	}
	return nil
}
