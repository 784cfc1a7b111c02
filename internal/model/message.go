// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for chats and messages.
package model

import (
	"github.com/google/uuid"
)

// =============================================================================
// ROLE TYPE
// =============================================================================

// Role represents the sender of a message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleFunction  Role = "function"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// Valid reports whether the role is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant, RoleFunction:
		return true
	}
	return false
}

// DisplayName returns a human-readable name for the role.
func (r Role) DisplayName() string {
	switch r {
	case RoleUser:
		return "You"
	case RoleAssistant:
		return "Assistant"
	case RoleSystem:
		return "System"
	case RoleFunction:
		return "Function"
	default:
		return string(r)
	}
}

// =============================================================================
// MESSAGE TYPE
// =============================================================================

// Message represents a single message in a chat.
//
// The ID is immutable once created. Content and IsImportant may be changed
// by user edits; IsPreamble is set once at creation time.
type Message struct {
	ID          string `json:"id"`
	Role        Role   `json:"role"`
	Content     string `json:"content"`
	IsPreamble  bool   `json:"isPreamble,omitempty"`
	IsImportant bool   `json:"isImportant,omitempty"`
}

// NewMessage creates a new message with a generated ID.
func NewMessage(role Role, content string) *Message {
	return &Message{
		ID:      uuid.NewString(),
		Role:    role,
		Content: content,
	}
}

// NewPreambleMessage creates the system message seeded at chat creation.
func NewPreambleMessage(preamble string) *Message {
	msg := NewMessage(RoleSystem, preamble)
	msg.IsPreamble = true
	return msg
}

// Valid reports whether the message satisfies the persistence schema.
// Records that fail this check are dropped on load rather than
// poisoning the in-memory state.
func (m *Message) Valid() bool {
	return m != nil && m.ID != "" && m.Role.Valid()
}

// MustSurviveTruncation reports whether the message is always included in
// the payload sent to the model, regardless of the token budget.
func (m *Message) MustSurviveTruncation() bool {
	return m.Role == RoleSystem || m.IsImportant
}

// =============================================================================
// PARTIAL MESSAGE
// =============================================================================

// PartialMessage is the cumulative message-so-far of an in-flight
// completion stream. An empty Role means no usable content has arrived yet;
// an empty Content means no text has been streamed.
type PartialMessage struct {
	Role    Role   `json:"role,omitempty"`
	Content string `json:"content,omitempty"`
}

// HasRole reports whether the stream has announced a role.
func (p PartialMessage) HasRole() bool {
	return p.Role != ""
}

// Committable reports whether the partial holds enough state to be
// materialized into a permanent message.
func (p PartialMessage) Committable() bool {
	return p.Role != "" && p.Content != ""
}
