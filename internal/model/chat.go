// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for chats and messages.
package model

import (
	"github.com/google/uuid"
)

// DefaultSummary is the summary assigned to a chat before the first
// assistant reply has been summarized.
const DefaultSummary = "New Chat"

// =============================================================================
// CHAT TYPE
// =============================================================================

// Chat holds one conversation: an insertion-ordered message history plus
// the transient streaming projection.
//
// BotTypingMessage exists only while BotTyping is true. It is never
// persisted; on stream completion or abort it is materialized into a new
// permanent Message and then cleared.
type Chat struct {
	ID      string `json:"id"`
	Summary string `json:"summary"`
	Draft   string `json:"draft"`

	// Messages is the history in insertion order. Lookup by ID goes
	// through MessageByID; the order is never re-sorted.
	Messages []*Message `json:"history"`

	BotTyping        bool            `json:"botTyping"`
	BotTypingMessage *PartialMessage `json:"botTypingMessage"`
}

// NewChat creates a chat seeded with its system preamble message.
func NewChat(preamble string) *Chat {
	return &Chat{
		ID:       uuid.NewString(),
		Summary:  DefaultSummary,
		Messages: []*Message{NewPreambleMessage(preamble)},
	}
}

// =============================================================================
// MESSAGE MANAGEMENT
// =============================================================================

// PushMessage appends a message to the history.
func (c *Chat) PushMessage(msg *Message) {
	c.Messages = append(c.Messages, msg)
}

// MessageByID returns the message with the given ID, or nil.
func (c *Chat) MessageByID(id string) *Message {
	for _, msg := range c.Messages {
		if msg.ID == id {
			return msg
		}
	}
	return nil
}

// DeleteMessage removes a message by ID. Returns false if absent.
func (c *Chat) DeleteMessage(id string) bool {
	for i, msg := range c.Messages {
		if msg.ID == id {
			c.Messages = append(c.Messages[:i], c.Messages[i+1:]...)
			return true
		}
	}
	return false
}

// FirstAssistantMessage returns the earliest assistant message, or nil.
// Used to derive the chat summary.
func (c *Chat) FirstAssistantMessage() *Message {
	for _, msg := range c.Messages {
		if msg.Role == RoleAssistant {
			return msg
		}
	}
	return nil
}

// MessageCount returns the number of messages in the history.
func (c *Chat) MessageCount() int {
	return len(c.Messages)
}

// =============================================================================
// VALIDATION
// =============================================================================

// Valid reports whether a loaded chat record satisfies the schema.
// Invalid records are skipped by the storage layer.
func (c *Chat) Valid() bool {
	if c == nil || c.ID == "" {
		return false
	}
	for _, msg := range c.Messages {
		if !msg.Valid() {
			return false
		}
	}
	return true
}

// =============================================================================
// COPYING
// =============================================================================

// Clone creates a deep copy of the chat. The UI renders from clones so
// the streaming goroutine can keep mutating the original under the
// store's lock.
func (c *Chat) Clone() *Chat {
	clone := &Chat{
		ID:        c.ID,
		Summary:   c.Summary,
		Draft:     c.Draft,
		BotTyping: c.BotTyping,
		Messages:  make([]*Message, len(c.Messages)),
	}

	for i, msg := range c.Messages {
		msgCopy := *msg
		clone.Messages[i] = &msgCopy
	}

	if c.BotTypingMessage != nil {
		typing := *c.BotTypingMessage
		clone.BotTypingMessage = &typing
	}

	return clone
}
