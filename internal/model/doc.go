// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for chats and messages.
//
// This package defines the core domain types used throughout the
// application for representing conversations, messages, streaming
// projections, and model metadata.
//
// # Key Types
//
//   - Chat: one conversation with ordered history and streaming state
//   - Message: single message with role, content and truncation flags
//   - PartialMessage: cumulative message-so-far of an in-flight stream
//   - Role: message role enumeration (system, user, assistant, function)
//   - ModelInfo: registry entry mapping a model ID to its token limit
//
// # Usage
//
// Create a new chat seeded with its preamble:
//
//	chat := model.NewChat("You are a helpful assistant.")
//	chat.PushMessage(model.NewMessage(model.RoleUser, "Hello!"))
package model
