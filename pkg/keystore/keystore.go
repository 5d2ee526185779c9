// Package keystore loads the funds account key from a geth data directory.
package keystore

import (
	"crypto/ecdsa"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
)

// ErrKeyNotFound is returned when no key file for the account exists
var ErrKeyNotFound = errors.New("key file not found")

// FindKeyFile returns the key file of account under dataDir/keystore or
// dataDir itself. Files are matched by the address in their name or, failing
// that, by the address recorded inside them.
func FindKeyFile(dataDir string, account common.Address) (string, error) {
	want := strings.ToLower(strings.TrimPrefix(account.Hex(), "0x"))

	for _, dir := range []string{filepath.Join(dataDir, "keystore"), dataDir} {
		entries, err := os.ReadDir(dir)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return "", fmt.Errorf("failed to read %s: %w", dir, err)
		}

		var byContent string
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			path := filepath.Join(dir, entry.Name())
			if strings.Contains(strings.ToLower(entry.Name()), want) {
				return path, nil
			}
			if byContent == "" && keyFileAddress(path) == want {
				byContent = path
			}
		}
		if byContent != "" {
			return byContent, nil
		}
	}

	return "", fmt.Errorf("%w: %s in %s", ErrKeyNotFound, account.Hex(), dataDir)
}

func keyFileAddress(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	var header struct {
		Address string `json:"address"`
	}
	if json.Unmarshal(data, &header) != nil {
		return ""
	}
	return strings.ToLower(strings.TrimPrefix(header.Address, "0x"))
}

// LoadKey finds and decrypts the key of account
func LoadKey(dataDir string, account common.Address, passphrase string) (*ecdsa.PrivateKey, error) {
	path, err := FindKeyFile(dataDir, account)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read key file: %w", err)
	}

	key, err := keystore.DecryptKey(data, passphrase)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt key %s: %w", filepath.Base(path), err)
	}
	if key.Address != account {
		return nil, fmt.Errorf("key file %s holds %s, not %s", filepath.Base(path), key.Address.Hex(), account.Hex())
	}

	return key.PrivateKey, nil
}
