// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/jeranaias/chatterm/internal/model"
	"github.com/jeranaias/chatterm/internal/util"
)

// chatRecord is the on-disk schema for one chat. The streaming fields of
// model.Chat are deliberately absent: they never survive a restart.
type chatRecord struct {
	ID       string           `json:"id"`
	Summary  string           `json:"summary"`
	Draft    string           `json:"draft"`
	Messages []*model.Message `json:"history"`
	SavedAt  int64            `json:"savedAt"`
}

// =============================================================================
// FILE STORE
// =============================================================================

// FileStore persists each chat as one JSON file under its directory.
// Writes are atomic, so a crash mid-save leaves the previous version
// intact.
type FileStore struct {
	dir string
}

// NewFileStore creates a file-backed store rooted at dir.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("%w: creating chat directory: %v", ErrStorage, err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) chatPath(id string) string {
	return filepath.Join(s.dir, id+".json")
}

// LoadChats reads every chat file in the directory. Files that fail to
// parse or validate are skipped with a warning so one corrupted chat
// never takes the rest down.
func (s *FileStore) LoadChats() ([]*model.Chat, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("%w: reading chat directory: %v", ErrStorage, err)
	}

	type loaded struct {
		chat    *model.Chat
		savedAt int64
	}
	var all []loaded

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(s.dir, entry.Name()))
		if err != nil {
			log.Warn().Err(err).Str("file", entry.Name()).Msg("Skipping unreadable chat file")
			continue
		}

		var rec chatRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			log.Warn().Err(err).Str("file", entry.Name()).Msg("Skipping corrupted chat file")
			continue
		}

		chat := &model.Chat{
			ID:       rec.ID,
			Summary:  rec.Summary,
			Draft:    rec.Draft,
			Messages: rec.Messages,
		}
		if !chat.Valid() {
			log.Warn().Str("file", entry.Name()).Msg("Skipping invalid chat record")
			continue
		}
		all = append(all, loaded{chat: chat, savedAt: rec.SavedAt})
	}

	// Oldest first, so the most recently saved chat ends up active.
	sort.SliceStable(all, func(a, b int) bool {
		return all[a].savedAt < all[b].savedAt
	})

	chats := make([]*model.Chat, len(all))
	for i, l := range all {
		chats[i] = l.chat
	}
	return chats, nil
}

// SaveChat writes a chat to its file atomically.
func (s *FileStore) SaveChat(chat *model.Chat) error {
	rec := chatRecord{
		ID:       chat.ID,
		Summary:  chat.Summary,
		Draft:    chat.Draft,
		Messages: chat.Messages,
		SavedAt:  time.Now().UnixMilli(),
	}

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encoding chat %s: %v", ErrStorage, chat.ID, err)
	}
	if err := util.AtomicWriteFile(s.chatPath(chat.ID), data, 0o600); err != nil {
		return fmt.Errorf("%w: saving chat %s: %v", ErrStorage, chat.ID, err)
	}
	return nil
}

// DeleteChat removes a chat's file. Deleting a chat that was never saved
// is not an error.
func (s *FileStore) DeleteChat(id string) error {
	if err := os.Remove(s.chatPath(id)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("%w: deleting chat %s: %v", ErrStorage, id, err)
	}
	return nil
}

// Close is a no-op for the file backend.
func (s *FileStore) Close() error { return nil }
