// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config loads and watches the application settings.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/jeranaias/chatterm/internal/model"
	"github.com/jeranaias/chatterm/internal/storage"
	"github.com/jeranaias/chatterm/internal/util"
)

// ErrInvalidConfig wraps validation failures.
var ErrInvalidConfig = errors.New("invalid configuration")

// DefaultPreamble seeds every new chat's system message.
const DefaultPreamble = "You are a helpful assistant. Answer as concisely as possible."

// =============================================================================
// CONFIG TYPES
// =============================================================================

// Config is the full application configuration.
type Config struct {
	Chat    ChatConfig    `toml:"chat"`
	API     APIConfig     `toml:"api"`
	Storage StorageConfig `toml:"storage"`
	Log     LogConfig     `toml:"log"`
}

// ChatConfig controls conversation behavior.
type ChatConfig struct {
	// Model is the completion model identifier.
	Model string `toml:"model"`
	// Preamble is the system message seeded into new chats.
	Preamble string `toml:"preamble"`
}

// APIConfig controls the completion endpoint.
type APIConfig struct {
	// BaseURL overrides the API endpoint, for proxies and self-hosted
	// gateways. Empty means the production endpoint.
	BaseURL string `toml:"base_url"`
}

// StorageConfig controls chat persistence.
type StorageConfig struct {
	// Backend picks the storage implementation: "sqlite", "file", or
	// empty to probe the data directory.
	Backend string `toml:"backend"`
	// DataDir overrides where chats and secrets live.
	DataDir string `toml:"data_dir"`
}

// LogConfig controls diagnostic logging.
type LogConfig struct {
	// Level is one of trace, debug, info, warn, error, or off.
	Level string `toml:"level"`
	// File is the log destination. Empty disables logging; stderr is
	// never used, it would fight the terminal UI.
	File string `toml:"file"`
}

// Default returns the configuration used when no file exists.
func Default() Config {
	return Config{
		Chat: ChatConfig{
			Model:    model.DefaultModel,
			Preamble: DefaultPreamble,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// =============================================================================
// PATHS
// =============================================================================

const appDirName = "chatterm"

// DefaultPath returns the standard config file location.
func DefaultPath() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolving config directory: %w", err)
	}
	return filepath.Join(base, appDirName, "config.toml"), nil
}

// DataDir resolves the data directory, honoring the configured override.
func (c Config) DataDir() (string, error) {
	if c.Storage.DataDir != "" {
		return c.Storage.DataDir, nil
	}
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolving data directory: %w", err)
	}
	return filepath.Join(base, appDirName, "data"), nil
}

// =============================================================================
// LOAD / SAVE
// =============================================================================

// Load reads the config file at path. A missing file yields defaults;
// present values are validated, absent ones fall back to defaults.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config: %w", err)
	}

	if _, err := toml.Decode(string(data), &cfg); err != nil {
		return Default(), fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if cfg.Chat.Model == "" {
		cfg.Chat.Model = model.DefaultModel
	}
	if cfg.Chat.Preamble == "" {
		cfg.Chat.Preamble = DefaultPreamble
	}

	if err := cfg.Validate(); err != nil {
		return Default(), err
	}
	return cfg, nil
}

// Save writes the config to path, creating parent directories.
func (c Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(c); err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	return util.AtomicWriteFile(path, buf.Bytes(), 0o600)
}

// Validate checks cross-field constraints.
func (c Config) Validate() error {
	if !model.KnownModel(c.Chat.Model) {
		return fmt.Errorf("%w: unknown model %q", ErrInvalidConfig, c.Chat.Model)
	}

	switch storage.Backend(c.Storage.Backend) {
	case storage.BackendAuto, storage.BackendSQLite, storage.BackendFile:
	default:
		return fmt.Errorf("%w: unknown storage backend %q", ErrInvalidConfig, c.Storage.Backend)
	}

	switch c.Log.Level {
	case "", "trace", "debug", "info", "warn", "error", "off":
	default:
		return fmt.Errorf("%w: unknown log level %q", ErrInvalidConfig, c.Log.Level)
	}
	return nil
}
