// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package store holds the in-memory conversation state and applies all
// mutations to it.
package store

import (
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/jeranaias/chatterm/internal/model"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrChatNotFound indicates an operation referenced an unknown chat.
	ErrChatNotFound = errors.New("chat not found")

	// ErrMessageNotFound indicates an operation referenced an unknown
	// message within an existing chat.
	ErrMessageNotFound = errors.New("message not found")
)

// =============================================================================
// PERSISTER
// =============================================================================

// Persister writes chats through to durable storage. The store treats
// persistence as best-effort: a failed save is logged and reported, but
// the in-memory mutation stands.
type Persister interface {
	SaveChat(chat *model.Chat) error
	DeleteChat(id string) error
}

// NopPersister discards all writes, for tests and ephemeral sessions.
type NopPersister struct{}

func (NopPersister) SaveChat(*model.Chat) error { return nil }
func (NopPersister) DeleteChat(string) error    { return nil }

// =============================================================================
// STORE
// =============================================================================

// Store is the single owner of conversation state. All reads hand out
// deep copies; all writes go through its methods under the lock, so the
// streaming goroutine and the UI never share mutable data.
type Store struct {
	mu        sync.RWMutex
	chats     map[string]*model.Chat
	order     []string
	activeID  string
	preamble  string
	persister Persister
}

// New creates a store seeded with previously persisted chats. Invalid
// records are skipped. When no chat survives loading, a fresh one is
// created so there is always an active chat.
func New(persister Persister, preamble string, existing []*model.Chat) *Store {
	s := &Store{
		chats:     make(map[string]*model.Chat),
		preamble:  preamble,
		persister: persister,
	}

	for _, chat := range existing {
		if !chat.Valid() {
			log.Warn().Str("chat_id", chat.ID).Msg("Skipping invalid chat record")
			continue
		}
		// Streaming state is transient and never resumes across runs.
		chat.BotTyping = false
		chat.BotTypingMessage = nil
		s.chats[chat.ID] = chat
		s.order = append(s.order, chat.ID)
	}

	if len(s.order) == 0 {
		chat := model.NewChat(preamble)
		s.chats[chat.ID] = chat
		s.order = append(s.order, chat.ID)
	}
	s.activeID = s.order[len(s.order)-1]
	return s
}

// persist saves a chat, logging failures. Caller holds the lock.
func (s *Store) persist(chat *model.Chat) error {
	if err := s.persister.SaveChat(chat.Clone()); err != nil {
		log.Error().Err(err).Str("chat_id", chat.ID).Msg("Failed to persist chat")
		return fmt.Errorf("persisting chat: %w", err)
	}
	return nil
}

// =============================================================================
// CHAT LIFECYCLE
// =============================================================================

// NewChat creates a chat, makes it active, and persists it.
func (s *Store) NewChat() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	chat := model.NewChat(s.preamble)
	s.chats[chat.ID] = chat
	s.order = append(s.order, chat.ID)
	s.activeID = chat.ID
	return chat.ID, s.persist(chat)
}

// DeleteChat removes a chat. Deleting the active chat activates the most
// recently created remaining one; deleting the last chat creates a fresh
// replacement.
func (s *Store) DeleteChat(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.chats[id]; !ok {
		return fmt.Errorf("%w: %s", ErrChatNotFound, id)
	}

	delete(s.chats, id)
	for i, oid := range s.order {
		if oid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}

	if err := s.persister.DeleteChat(id); err != nil {
		log.Error().Err(err).Str("chat_id", id).Msg("Failed to delete persisted chat")
	}

	if len(s.order) == 0 {
		chat := model.NewChat(s.preamble)
		s.chats[chat.ID] = chat
		s.order = append(s.order, chat.ID)
		s.activeID = chat.ID
		return s.persist(chat)
	}
	if s.activeID == id {
		s.activeID = s.order[len(s.order)-1]
	}
	return nil
}

// ClearChats deletes every chat, including their persisted records, and
// seeds a fresh chat so there is always an active one.
func (s *Store) ClearChats() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range s.order {
		if err := s.persister.DeleteChat(id); err != nil {
			log.Error().Err(err).Str("chat_id", id).Msg("Failed to delete persisted chat")
		}
	}
	s.chats = make(map[string]*model.Chat)
	s.order = nil

	chat := model.NewChat(s.preamble)
	s.chats[chat.ID] = chat
	s.order = append(s.order, chat.ID)
	s.activeID = chat.ID
	return s.persist(chat)
}

// SetActive switches the active chat.
func (s *Store) SetActive(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.chats[id]; !ok {
		return fmt.Errorf("%w: %s", ErrChatNotFound, id)
	}
	s.activeID = id
	return nil
}

// ActiveID returns the ID of the active chat.
func (s *Store) ActiveID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activeID
}

// Snapshot returns a deep copy of a chat, or nil if it does not exist.
func (s *Store) Snapshot(id string) *model.Chat {
	s.mu.RLock()
	defer s.mu.RUnlock()

	chat, ok := s.chats[id]
	if !ok {
		return nil
	}
	return chat.Clone()
}

// Active returns a deep copy of the active chat.
func (s *Store) Active() *model.Chat {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.chats[s.activeID].Clone()
}

// Chats returns deep copies of all chats in creation order.
func (s *Store) Chats() []*model.Chat {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*model.Chat, len(s.order))
	for i, id := range s.order {
		out[i] = s.chats[id].Clone()
	}
	return out
}

// =============================================================================
// MESSAGE MUTATIONS
// =============================================================================

// withChat runs fn against a chat under the write lock.
func (s *Store) withChat(id string, fn func(*model.Chat) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	chat, ok := s.chats[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrChatNotFound, id)
	}
	return fn(chat)
}

// PushMessage appends a message to a chat and persists it.
func (s *Store) PushMessage(chatID string, msg *model.Message) error {
	return s.withChat(chatID, func(chat *model.Chat) error {
		chat.PushMessage(msg)
		return s.persist(chat)
	})
}

// EditMessageContent replaces a message's content and persists.
func (s *Store) EditMessageContent(chatID, messageID, content string) error {
	return s.withChat(chatID, func(chat *model.Chat) error {
		msg := chat.MessageByID(messageID)
		if msg == nil {
			return fmt.Errorf("%w: %s", ErrMessageNotFound, messageID)
		}
		msg.Content = content
		return s.persist(chat)
	})
}

// ToggleImportant flips a message's truncation protection and persists.
func (s *Store) ToggleImportant(chatID, messageID string) error {
	return s.withChat(chatID, func(chat *model.Chat) error {
		msg := chat.MessageByID(messageID)
		if msg == nil {
			return fmt.Errorf("%w: %s", ErrMessageNotFound, messageID)
		}
		msg.IsImportant = !msg.IsImportant
		return s.persist(chat)
	})
}

// DeleteMessage removes a message from a chat. The removal is applied in
// memory only; it reaches storage with the next persisted mutation.
func (s *Store) DeleteMessage(chatID, messageID string) error {
	return s.withChat(chatID, func(chat *model.Chat) error {
		if !chat.DeleteMessage(messageID) {
			return fmt.Errorf("%w: %s", ErrMessageNotFound, messageID)
		}
		return nil
	})
}

// SetDraft stores the chat's unsent input text. Drafts are ephemeral UI
// state: they are not written through on their own and only reach
// storage piggybacked on the next persisted mutation.
func (s *Store) SetDraft(chatID, draft string) error {
	return s.withChat(chatID, func(chat *model.Chat) error {
		chat.Draft = draft
		return nil
	})
}

// EditSummary replaces the chat's summary and persists.
func (s *Store) EditSummary(chatID, summary string) error {
	return s.withChat(chatID, func(chat *model.Chat) error {
		chat.Summary = summary
		return s.persist(chat)
	})
}

// =============================================================================
// STREAMING STATE
// =============================================================================

// StartTyping marks a chat as receiving a completion and resets its
// streaming buffer. Transient state, never persisted.
func (s *Store) StartTyping(chatID string) error {
	return s.withChat(chatID, func(chat *model.Chat) error {
		chat.BotTyping = true
		chat.BotTypingMessage = &model.PartialMessage{}
		return nil
	})
}

// UpdateTyping replaces the streaming buffer with the latest cumulative
// snapshot. Updates arriving after the chat stopped typing are dropped:
// an abort may race the last few events out of the network.
func (s *Store) UpdateTyping(chatID string, partial model.PartialMessage) error {
	return s.withChat(chatID, func(chat *model.Chat) error {
		if !chat.BotTyping {
			return nil
		}
		p := partial
		chat.BotTypingMessage = &p
		return nil
	})
}

// Typing reports whether a chat has an in-flight completion.
func (s *Store) Typing(chatID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	chat, ok := s.chats[chatID]
	return ok && chat.BotTyping
}

// Settle ends a chat's streaming state. With keepPartial, a committable
// buffer is materialized into a permanent assistant message and the chat
// is persisted; otherwise the buffer is discarded. Settling an idle chat
// is a no-op, so completion and abort paths may both call it.
func (s *Store) Settle(chatID string, keepPartial bool) error {
	return s.withChat(chatID, func(chat *model.Chat) error {
		if !chat.BotTyping {
			return nil
		}
		partial := chat.BotTypingMessage
		chat.BotTyping = false
		chat.BotTypingMessage = nil

		if !keepPartial || partial == nil || !partial.Committable() {
			return nil
		}
		chat.PushMessage(model.NewMessage(partial.Role, partial.Content))
		return s.persist(chat)
	})
}
