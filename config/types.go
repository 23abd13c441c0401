package config

const (
	DefaultRPCAddress      = "127.0.0.1:8545"
	DefaultMetricsAddress  = "127.0.0.1:9100"
	DefaultChainID         = uint64(31337)
	DefaultAuthTokenEnv    = "RENTALS_RPC_TOKEN"
	DefaultKeystorePassEnv = "RENTALS_OWNER_PASS"
	DefaultJWTSecretEnv    = "RENTALS_RPC_JWT_SECRET"
)

// RentalsConfig configures the rentals engine applied at genesis. Addresses
// accept hex or bech32. An empty Owner defaults to the owner keystore
// address.
type RentalsConfig struct {
	Contract     string `toml:"Contract"`
	Owner        string `toml:"Owner"`
	Token        string `toml:"Token"`
	FeeCollector string `toml:"FeeCollector"`
	// Fee is the collector share in parts per million of the rental amount.
	Fee uint64 `toml:"Fee"`
}

// AssetConfig describes a non-fungible registry hosted by the node. Kind is
// "registry" or "composite". An empty Minter defaults to the owner.
type AssetConfig struct {
	Address string `toml:"Address"`
	Kind    string `toml:"Kind"`
	Minter  string `toml:"Minter"`
}

// JWTConfig enables HMAC-signed bearer tokens on mutating RPC methods. The
// secret is read from the environment variable named by SecretEnv.
type JWTConfig struct {
	SecretEnv string `toml:"SecretEnv"`
	Issuer    string `toml:"Issuer"`
	Audience  string `toml:"Audience"`
}

// TelemetryConfig wires OTLP exporters. Nothing is exported unless Traces or
// Metrics is set.
type TelemetryConfig struct {
	Endpoint string `toml:"Endpoint"`
	Insecure bool   `toml:"Insecure"`
	// Headers uses the OTEL form key=value,other=value.
	Headers string `toml:"Headers"`
	Traces  bool   `toml:"Traces"`
	Metrics bool   `toml:"Metrics"`
}

// LogFileConfig mirrors logs into a size-rotated file when Path is set.
type LogFileConfig struct {
	Path       string `toml:"Path"`
	MaxSizeMB  int    `toml:"MaxSizeMB"`
	MaxBackups int    `toml:"MaxBackups"`
	MaxAgeDays int    `toml:"MaxAgeDays"`
	Compress   bool   `toml:"Compress"`
}
