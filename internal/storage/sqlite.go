// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"

	"github.com/jeranaias/chatterm/internal/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS chats (
	id       TEXT PRIMARY KEY,
	summary  TEXT NOT NULL,
	draft    TEXT NOT NULL DEFAULT '',
	history  TEXT NOT NULL,
	saved_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_chats_saved_at ON chats(saved_at);
`

// =============================================================================
// SQLITE STORE
// =============================================================================

// SQLiteStore persists chats in a single database file. Message history
// is stored as a JSON column: chats are always loaded and saved whole,
// so relational message rows would buy nothing.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLiteStore opens or creates the database at path.
func OpenSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("%w: opening database: %v", ErrStorage, err)
	}
	// The driver is in-process; a single connection avoids SQLITE_BUSY
	// on concurrent saves.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: applying schema: %v", ErrStorage, err)
	}
	return &SQLiteStore{db: db}, nil
}

// LoadChats returns all chats, oldest save first. Rows with corrupted
// history JSON are skipped with a warning.
func (s *SQLiteStore) LoadChats() ([]*model.Chat, error) {
	rows, err := s.db.Query(`SELECT id, summary, draft, history FROM chats ORDER BY saved_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("%w: querying chats: %v", ErrStorage, err)
	}
	defer rows.Close()

	var chats []*model.Chat
	for rows.Next() {
		var chat model.Chat
		var historyJSON string
		if err := rows.Scan(&chat.ID, &chat.Summary, &chat.Draft, &historyJSON); err != nil {
			return nil, fmt.Errorf("%w: scanning chat row: %v", ErrStorage, err)
		}
		if err := json.Unmarshal([]byte(historyJSON), &chat.Messages); err != nil {
			log.Warn().Err(err).Str("chat_id", chat.ID).Msg("Skipping chat with corrupted history")
			continue
		}
		if !chat.Valid() {
			log.Warn().Str("chat_id", chat.ID).Msg("Skipping invalid chat record")
			continue
		}
		chats = append(chats, &chat)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating chats: %v", ErrStorage, err)
	}
	return chats, nil
}

// SaveChat upserts a chat.
func (s *SQLiteStore) SaveChat(chat *model.Chat) error {
	historyJSON, err := json.Marshal(chat.Messages)
	if err != nil {
		return fmt.Errorf("%w: encoding history for %s: %v", ErrStorage, chat.ID, err)
	}

	_, err = s.db.Exec(`
		INSERT INTO chats (id, summary, draft, history, saved_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			summary = excluded.summary,
			draft = excluded.draft,
			history = excluded.history,
			saved_at = excluded.saved_at`,
		chat.ID, chat.Summary, chat.Draft, string(historyJSON), time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("%w: saving chat %s: %v", ErrStorage, chat.ID, err)
	}
	return nil
}

// DeleteChat removes a chat row. Unknown IDs are not an error.
func (s *SQLiteStore) DeleteChat(id string) error {
	if _, err := s.db.Exec(`DELETE FROM chats WHERE id = ?`, id); err != nil {
		return fmt.Errorf("%w: deleting chat %s: %v", ErrStorage, id, err)
	}
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
