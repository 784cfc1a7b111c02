// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat provides the chat view component for the TUI.
//
// This file defines the Bubble Tea message types used by the chat
// interface. Messages fall into three categories:
//   - Store: conversation state changed outside the update loop
//   - Notices: transient user-facing notifications
//   - Config: settings changed on disk
//
// All message types follow Bubble Tea conventions and are immutable.
package chat

import (
	"time"

	"github.com/jeranaias/chatterm/internal/config"
)

// =============================================================================
// STORE MESSAGES
// =============================================================================

// StoreUpdatedMsg signals that conversation state changed on another
// goroutine, typically the streaming consumer, and the view must
// re-render from a fresh snapshot.
type StoreUpdatedMsg struct{}

// =============================================================================
// NOTICE MESSAGES
// =============================================================================

// NoticeMsg displays a transient notification banner.
type NoticeMsg struct {
	Text string
}

// noticeExpiredMsg clears a notification after its display period.
type noticeExpiredMsg struct {
	seq int
}

// =============================================================================
// CONFIG MESSAGES
// =============================================================================

// ConfigChangedMsg delivers a settings file reload.
type ConfigChangedMsg struct {
	Config config.Config
}

// =============================================================================
// ANIMATION MESSAGES
// =============================================================================

// spinnerTickMsg advances the typing indicator animation.
type spinnerTickMsg struct {
	Time time.Time
}
