// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage persists chats and secrets across runs.
package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"github.com/jeranaias/chatterm/internal/model"
)

// ErrStorage wraps backend failures so callers can detect them without
// caring which backend is in use.
var ErrStorage = errors.New("storage error")

// Backend selects the persistence implementation.
type Backend string

const (
	// BackendAuto probes the data directory: an existing database wins,
	// otherwise JSON files are used.
	BackendAuto Backend = ""
	// BackendSQLite stores chats in a single SQLite database.
	BackendSQLite Backend = "sqlite"
	// BackendFile stores one JSON file per chat.
	BackendFile Backend = "file"
)

// Store is the durable chat storage surface.
type Store interface {
	// LoadChats returns all persisted chats. Corrupted records are
	// skipped, not fatal.
	LoadChats() ([]*model.Chat, error)
	SaveChat(chat *model.Chat) error
	DeleteChat(id string) error
	Close() error
}

// sqliteFilename is the database file probed for by BackendAuto.
const sqliteFilename = "chats.db"

// Open creates the configured storage backend rooted at dataDir,
// creating the directory if needed.
func Open(dataDir string, backend Backend) (Store, error) {
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return nil, fmt.Errorf("%w: creating data directory: %v", ErrStorage, err)
	}

	if backend == BackendAuto {
		if _, err := os.Stat(filepath.Join(dataDir, sqliteFilename)); err == nil {
			backend = BackendSQLite
		} else {
			backend = BackendFile
		}
	}

	switch backend {
	case BackendSQLite:
		log.Debug().Str("dir", dataDir).Msg("Opening SQLite chat storage")
		return OpenSQLiteStore(filepath.Join(dataDir, sqliteFilename))
	case BackendFile:
		log.Debug().Str("dir", dataDir).Msg("Opening file chat storage")
		return NewFileStore(dataDir)
	default:
		return nil, fmt.Errorf("%w: unknown backend %q", ErrStorage, backend)
	}
}
