package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"rentalchain/crypto"

	"github.com/BurntSushi/toml"
)

type Config struct {
	RPCAddress          string          `toml:"RPCAddress"`
	MetricsAddress      string          `toml:"MetricsAddress"`
	DataDir             string          `toml:"DataDir"`
	Environment         string          `toml:"Environment"`
	ChainID             uint64          `toml:"ChainID"`
	OwnerKeystorePath   string          `toml:"OwnerKeystorePath"`
	KeystorePassEnv     string          `toml:"KeystorePassEnv"`
	RPCAuthTokenEnv     string          `toml:"RPCAuthTokenEnv"`
	RPCRateLimit        float64         `toml:"RPCRateLimit"`
	RPCRateBurst        int             `toml:"RPCRateBurst"`
	RPCReadTimeoutSecs  int             `toml:"RPCReadTimeout"`
	RPCWriteTimeoutSecs int             `toml:"RPCWriteTimeout"`
	Rentals             RentalsConfig   `toml:"rentals"`
	Assets              []AssetConfig   `toml:"assets"`
	RPCJWT              JWTConfig       `toml:"rpc_jwt"`
	Telemetry           TelemetryConfig `toml:"telemetry"`
	LogFile             LogFileConfig   `toml:"log_file"`
}

// Load loads the configuration from the given path, writing a default file
// and owner keystore when the path does not exist yet.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()

	if err := ensureKeystore(path, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if strings.TrimSpace(c.RPCAddress) == "" {
		c.RPCAddress = DefaultRPCAddress
	}
	if strings.TrimSpace(c.DataDir) == "" {
		c.DataDir = "./rentals-data"
	}
	if strings.TrimSpace(c.Environment) == "" {
		c.Environment = "dev"
	}
	if c.ChainID == 0 {
		c.ChainID = DefaultChainID
	}
	if strings.TrimSpace(c.KeystorePassEnv) == "" {
		c.KeystorePassEnv = DefaultKeystorePassEnv
	}
	if strings.TrimSpace(c.RPCAuthTokenEnv) == "" {
		c.RPCAuthTokenEnv = DefaultAuthTokenEnv
	}
	if c.RPCRateLimit == 0 {
		c.RPCRateLimit = 5
	}
	if c.RPCRateBurst == 0 {
		c.RPCRateBurst = 10
	}
	if c.RPCReadTimeoutSecs == 0 {
		c.RPCReadTimeoutSecs = 10
	}
	if c.RPCWriteTimeoutSecs == 0 {
		c.RPCWriteTimeoutSecs = 15
	}
	if c.Assets == nil {
		c.Assets = []AssetConfig{}
	}
	if strings.TrimSpace(c.RPCJWT.SecretEnv) == "" {
		c.RPCJWT.SecretEnv = DefaultJWTSecretEnv
	}
	if c.LogFile.Path != "" {
		if c.LogFile.MaxSizeMB == 0 {
			c.LogFile.MaxSizeMB = 100
		}
		if c.LogFile.MaxBackups == 0 {
			c.LogFile.MaxBackups = 5
		}
		if c.LogFile.MaxAgeDays == 0 {
			c.LogFile.MaxAgeDays = 28
		}
	}
}

func ensureKeystore(configPath string, cfg *Config) error {
	keystorePath := cfg.OwnerKeystorePath
	if keystorePath == "" {
		keystorePath = defaultKeystorePath(configPath)
	}

	if _, err := os.Stat(keystorePath); os.IsNotExist(err) {
		key, genErr := crypto.GeneratePrivateKey()
		if genErr != nil {
			return genErr
		}
		if err := crypto.SaveToKeystore(keystorePath, key, cfg.KeystorePassphrase(), false); err != nil {
			return err
		}
	} else if err != nil {
		return err
	}

	if cfg.OwnerKeystorePath != keystorePath {
		cfg.OwnerKeystorePath = keystorePath
		return persist(configPath, cfg)
	}
	return nil
}

// createDefault creates and saves a default configuration file. The
// generated owner key also mints the payment token and the default assets.
func createDefault(path string) (*Config, error) {
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		return nil, err
	}

	cfg := &Config{}
	cfg.applyDefaults()
	keystorePath := defaultKeystorePath(path)
	if err := crypto.SaveToKeystore(keystorePath, key, cfg.KeystorePassphrase(), false); err != nil {
		return nil, err
	}
	owner := crypto.FromCommon(key.Address()).String()
	cfg.OwnerKeystorePath = keystorePath
	cfg.MetricsAddress = DefaultMetricsAddress
	cfg.Rentals = RentalsConfig{
		Contract:     "0x00000000000000000000000000000000000000e1",
		Token:        "0x00000000000000000000000000000000000000a1",
		FeeCollector: owner,
		Fee:          25_000,
	}
	cfg.Assets = []AssetConfig{
		{Address: "0x00000000000000000000000000000000000000a2", Kind: "registry"},
		{Address: "0x00000000000000000000000000000000000000a3", Kind: "composite"},
	}

	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}

func defaultKeystorePath(configPath string) string {
	dir := filepath.Dir(configPath)
	if dir == "." || dir == "" {
		dir = ""
	}
	return filepath.Join(dir, "owner.keystore")
}
