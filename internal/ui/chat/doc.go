// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat provides the chat view component for the TUI.
//
// The view follows the Bubble Tea architecture: a Model holding all UI
// state, an Update function processing messages, and a View function
// rendering the screen. Conversation state lives in the store, never in
// the UI; the view renders from snapshots and is woken by
// StoreUpdatedMsg when a streaming goroutine changes something.
//
// Interaction is keyboard-only: plain text is sent as a chat message,
// lines starting with "/" run commands (/new, /switch, /model,
// /important, ...), and Esc stops an in-flight reply while keeping the
// partial text.
package chat
