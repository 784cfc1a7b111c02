// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"crypto/rand"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/crypto/chacha20poly1305"

	"github.com/jeranaias/chatterm/internal/util"
)

// ErrNoAPIKey indicates no API key has been stored yet.
var ErrNoAPIKey = errors.New("no API key stored")

const (
	secretFilename = "secret.key"
	apiKeyFilename = "apikey.enc"
)

// =============================================================================
// KEYRING
// =============================================================================

// Keyring stores the API key encrypted at rest. The sealing key lives in
// a separate 0600 file next to the ciphertext; this keeps the key out of
// casual reads, grep, and backups of the chat data, though a local
// attacker with the same UID can of course recover it.
type Keyring struct {
	dir string
}

// NewKeyring creates a keyring rooted at dir.
func NewKeyring(dir string) (*Keyring, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("%w: creating keyring directory: %v", ErrStorage, err)
	}
	return &Keyring{dir: dir}, nil
}

// sealingKey loads the secret, generating it on first use.
func (k *Keyring) sealingKey() ([]byte, error) {
	path := filepath.Join(k.dir, secretFilename)

	key, err := os.ReadFile(path)
	if err == nil {
		if len(key) != chacha20poly1305.KeySize {
			return nil, fmt.Errorf("%w: secret file has wrong size", ErrStorage)
		}
		return key, nil
	}
	if !os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: reading secret: %v", ErrStorage, err)
	}

	key = make([]byte, chacha20poly1305.KeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("%w: generating secret: %v", ErrStorage, err)
	}
	if err := util.AtomicWriteFile(path, key, 0o600); err != nil {
		return nil, fmt.Errorf("%w: writing secret: %v", ErrStorage, err)
	}
	return key, nil
}

// StoreAPIKey encrypts and persists the API key.
func (k *Keyring) StoreAPIKey(apiKey string) error {
	secret, err := k.sealingKey()
	if err != nil {
		return err
	}

	aead, err := chacha20poly1305.NewX(secret)
	if err != nil {
		return fmt.Errorf("%w: initializing cipher: %v", ErrStorage, err)
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return fmt.Errorf("%w: generating nonce: %v", ErrStorage, err)
	}

	sealed := aead.Seal(nonce, nonce, []byte(apiKey), nil)
	if err := util.AtomicWriteFile(filepath.Join(k.dir, apiKeyFilename), sealed, 0o600); err != nil {
		return fmt.Errorf("%w: writing API key: %v", ErrStorage, err)
	}
	return nil
}

// LoadAPIKey decrypts and returns the stored API key.
func (k *Keyring) LoadAPIKey() (string, error) {
	sealed, err := os.ReadFile(filepath.Join(k.dir, apiKeyFilename))
	if err != nil {
		if os.IsNotExist(err) {
			return "", ErrNoAPIKey
		}
		return "", fmt.Errorf("%w: reading API key: %v", ErrStorage, err)
	}

	secret, err := k.sealingKey()
	if err != nil {
		return "", err
	}
	aead, err := chacha20poly1305.NewX(secret)
	if err != nil {
		return "", fmt.Errorf("%w: initializing cipher: %v", ErrStorage, err)
	}

	if len(sealed) < aead.NonceSize() {
		return "", fmt.Errorf("%w: API key file truncated", ErrStorage)
	}
	nonce, ciphertext := sealed[:aead.NonceSize()], sealed[aead.NonceSize():]

	plain, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("%w: decrypting API key: %v", ErrStorage, err)
	}
	return string(plain), nil
}

// DeleteAPIKey removes the stored key. Missing key is not an error.
func (k *Keyring) DeleteAPIKey() error {
	if err := os.Remove(filepath.Join(k.dir, apiKeyFilename)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("%w: deleting API key: %v", ErrStorage, err)
	}
	return nil
}
