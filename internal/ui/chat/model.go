// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat provides the chat view component for the TUI.
package chat

import (
	"time"

	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/rs/zerolog/log"

	"github.com/jeranaias/chatterm/internal/completion"
	"github.com/jeranaias/chatterm/internal/store"
)

// noticeDuration is how long a notification banner stays visible.
const noticeDuration = 4 * time.Second

// typingFrames animate the streaming indicator.
var typingFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// =============================================================================
// OPTIONS
// =============================================================================

// Options wires the chat view to the rest of the application.
type Options struct {
	Store   *store.Store
	Session *completion.Session

	// ModelID returns the configured completion model.
	ModelID func() string
	// SetModel persists a model change from the /model command.
	SetModel func(id string) error
	// StoreKey persists a new API key from the /key command.
	StoreKey func(key string) error
	// ExportDir is where /export writes transcripts. Empty means
	// "exports" under the working directory.
	ExportDir string
}

// =============================================================================
// MODEL
// =============================================================================

// Model is the Bubble Tea model for the chat screen.
type Model struct {
	opts   Options
	keys   KeyMap
	styles Styles

	viewport viewport.Model
	input    textarea.Model
	renderer *glamour.TermRenderer

	width  int
	height int
	ready  bool

	// notice is the active notification banner; noticeSeq invalidates
	// stale expiry timers after a newer notice replaced the old one.
	notice    string
	noticeSeq int

	typingFrame int
	showHelp    bool
	quitting    bool
}

// New creates the chat screen model.
func New(opts Options) Model {
	input := textarea.New()
	input.Placeholder = "Send a message, or /help for commands"
	input.CharLimit = 0
	input.SetHeight(3)
	input.ShowLineNumbers = false
	input.Focus()

	m := Model{
		opts:   opts,
		keys:   DefaultKeyMap(),
		styles: DefaultStyles(),
		input:  input,
	}
	m.loadDraft()
	return m
}

// Init starts the typing animation ticker.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textarea.Blink, typingTickCmd())
}

// typingTickCmd schedules the next animation frame.
func typingTickCmd() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg {
		return spinnerTickMsg{Time: t}
	})
}

// noticeExpireCmd schedules a banner teardown.
func noticeExpireCmd(seq int) tea.Cmd {
	return tea.Tick(noticeDuration, func(time.Time) tea.Msg {
		return noticeExpiredMsg{seq: seq}
	})
}

// =============================================================================
// DRAFT HANDLING
// =============================================================================

// loadDraft fills the input with the active chat's saved draft.
func (m *Model) loadDraft() {
	if chat := m.opts.Store.Active(); chat != nil {
		m.input.SetValue(chat.Draft)
	}
}

// saveDraft stores the current input as the active chat's draft.
func (m *Model) saveDraft() {
	chatID := m.opts.Store.ActiveID()
	if err := m.opts.Store.SetDraft(chatID, m.input.Value()); err != nil {
		log.Warn().Err(err).Str("chat_id", chatID).Msg("Failed to save draft")
	}
}

// switchChat saves the outgoing draft, activates the target chat, and
// restores its draft.
func (m *Model) switchChat(id string) {
	m.saveDraft()
	if err := m.opts.Store.SetActive(id); err != nil {
		log.Warn().Err(err).Str("chat_id", id).Msg("Failed to switch chat")
		return
	}
	m.loadDraft()
	m.refreshViewport(true)
}

// cycleChat moves the active chat forward or backward in creation order.
func (m *Model) cycleChat(step int) {
	chats := m.opts.Store.Chats()
	if len(chats) < 2 {
		return
	}
	active := m.opts.Store.ActiveID()
	for i, chat := range chats {
		if chat.ID == active {
			next := (i + step + len(chats)) % len(chats)
			m.switchChat(chats[next].ID)
			return
		}
	}
}

// =============================================================================
// NOTICES
// =============================================================================

// setNotice replaces the notification banner.
func (m *Model) setNotice(text string) tea.Cmd {
	m.notice = text
	m.noticeSeq++
	return noticeExpireCmd(m.noticeSeq)
}
