package crypto

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

var errNoKeystorePath = errors.New("crypto: empty keystore path")

// SaveToKeystore encrypts key into a v3 keystore at path, creating missing
// directories with 0700. Light scrypt parameters are for tests and throwaway
// development keys only.
func SaveToKeystore(path string, key *PrivateKey, passphrase string, light bool) error {
	if key == nil {
		return errors.New("crypto: nil private key")
	}
	if path == "" {
		return errNoKeystorePath
	}
	n, p := keystore.StandardScryptN, keystore.StandardScryptP
	if light {
		n, p = keystore.LightScryptN, keystore.LightScryptP
	}
	id, err := uuid.NewRandom()
	if err != nil {
		return err
	}
	blob, err := keystore.EncryptKey(&keystore.Key{Id: id, Address: key.Address(), PrivateKey: key.PrivateKey}, passphrase, n, p)
	if err != nil {
		return fmt.Errorf("crypto: encrypt keystore: %w", err)
	}
	return writeFileAtomic(path, blob)
}

// writeFileAtomic replaces path with data through a 0600 temp file in the
// same directory.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".keystore-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// LoadFromKeystore decrypts the v3 keystore at path.
func LoadFromKeystore(path, passphrase string) (*PrivateKey, error) {
	if path == "" {
		return nil, errNoKeystorePath
	}
	blob, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	decrypted, err := keystore.DecryptKey(blob, passphrase)
	if err != nil {
		return nil, err
	}
	return &PrivateKey{PrivateKey: decrypted.PrivateKey}, nil
}

// KeystoreAddress reads the account address recorded in a v3 keystore
// without decrypting it.
func KeystoreAddress(path string) (common.Address, error) {
	if path == "" {
		return common.Address{}, errNoKeystorePath
	}
	blob, err := os.ReadFile(path)
	if err != nil {
		return common.Address{}, err
	}
	var header struct {
		Address string `json:"address"`
	}
	if err := json.Unmarshal(blob, &header); err != nil {
		return common.Address{}, fmt.Errorf("crypto: decode keystore: %w", err)
	}
	if !common.IsHexAddress(header.Address) {
		return common.Address{}, fmt.Errorf("crypto: keystore %s has no address", path)
	}
	return common.HexToAddress(header.Address), nil
}
