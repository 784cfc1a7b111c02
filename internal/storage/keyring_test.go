// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage persists chats and the API key.
//
// This file contains tests for the encrypted API key store:
// - Round-trip store/load
// - Ciphertext at rest (no plaintext leakage)
// - Tamper detection
// - Key file permissions
package storage

import (
	"bytes"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKeyring_RoundTrip(t *testing.T) {
	k, err := NewKeyring(t.TempDir())
	require.NoError(t, err)

	_, err = k.LoadAPIKey()
	require.ErrorIs(t, err, ErrNoAPIKey, "load before store should report no key")

	require.NoError(t, k.StoreAPIKey("sk-test-12345"))

	got, err := k.LoadAPIKey()
	require.NoError(t, err)
	require.Equal(t, "sk-test-12345", got)
}

func TestKeyring_CiphertextAtRest(t *testing.T) {
	dir := t.TempDir()
	k, err := NewKeyring(dir)
	require.NoError(t, err)
	require.NoError(t, k.StoreAPIKey("sk-very-secret"))

	data, err := os.ReadFile(filepath.Join(dir, "apikey.enc"))
	require.NoError(t, err)
	require.False(t, bytes.Contains(data, []byte("sk-very-secret")), "API key must not appear in the stored file")
}

func TestKeyring_DetectsTampering(t *testing.T) {
	dir := t.TempDir()
	k, err := NewKeyring(dir)
	require.NoError(t, err)
	require.NoError(t, k.StoreAPIKey("sk-tamper-test"))

	path := filepath.Join(dir, "apikey.enc")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	data[len(data)-1] ^= 0xff
	require.NoError(t, os.WriteFile(path, data, 0o600))

	_, err = k.LoadAPIKey()
	require.Error(t, err, "tampered ciphertext must not decrypt")
}

func TestKeyring_SecretFilePermissions(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("unix permissions only")
	}

	dir := t.TempDir()
	k, err := NewKeyring(dir)
	require.NoError(t, err)
	require.NoError(t, k.StoreAPIKey("sk-perm-check"))

	for _, name := range []string{"secret.key", "apikey.enc"} {
		info, err := os.Stat(filepath.Join(dir, name))
		require.NoError(t, err)
		require.Equal(t, os.FileMode(0o600), info.Mode().Perm(), "%s should be owner-only", name)
	}
}

func TestKeyring_Delete(t *testing.T) {
	k, err := NewKeyring(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, k.StoreAPIKey("sk-doomed"))

	require.NoError(t, k.DeleteAPIKey())
	_, err = k.LoadAPIKey()
	require.ErrorIs(t, err, ErrNoAPIKey)

	// Deleting again is fine.
	require.NoError(t, k.DeleteAPIKey())
}

func TestKeyring_FreshSecretPerDirectory(t *testing.T) {
	dirA, dirB := t.TempDir(), t.TempDir()
	ka, err := NewKeyring(dirA)
	require.NoError(t, err)
	kb, err := NewKeyring(dirB)
	require.NoError(t, err)

	require.NoError(t, ka.StoreAPIKey("sk-shared-value"))
	require.NoError(t, kb.StoreAPIKey("sk-shared-value"))

	a, err := os.ReadFile(filepath.Join(dirA, "secret.key"))
	require.NoError(t, err)
	b, err := os.ReadFile(filepath.Join(dirB, "secret.key"))
	require.NoError(t, err)
	require.False(t, bytes.Equal(a, b), "each data directory should get its own secret")
}
