// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat provides the chat view component for the TUI.
package chat

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/rs/zerolog/log"
)

// Update handles all incoming messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)

	case tea.KeyMsg:
		newModel, cmd, handled := m.handleKey(msg)
		if handled {
			return newModel, cmd
		}
		m = newModel

	case StoreUpdatedMsg:
		m.refreshViewport(true)

	case NoticeMsg:
		cmds = append(cmds, m.setNotice(msg.Text))

	case noticeExpiredMsg:
		if msg.seq == m.noticeSeq {
			m.notice = ""
		}

	case ConfigChangedMsg:
		cmds = append(cmds, m.setNotice("Settings reloaded"))

	case spinnerTickMsg:
		if m.opts.Session.State().InFlight() {
			m.typingFrame = (m.typingFrame + 1) % len(typingFrames)
			m.refreshViewport(true)
		}
		cmds = append(cmds, typingTickCmd())
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)

	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

// handleKey processes key bindings before they reach the input. The
// third return value reports whether the key was consumed.
func (m Model) handleKey(msg tea.KeyMsg) (Model, tea.Cmd, bool) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.saveDraft()
		m.opts.Session.Abort()
		m.quitting = true
		return m, tea.Quit, true

	case key.Matches(msg, m.keys.Abort):
		if m.opts.Session.State().InFlight() {
			m.opts.Session.Abort()
			return m, nil, true
		}
		return m, nil, false

	case key.Matches(msg, m.keys.Submit):
		return m.handleSubmit()

	case key.Matches(msg, m.keys.NextChat):
		m.cycleChat(1)
		return m, nil, true

	case key.Matches(msg, m.keys.PrevChat):
		m.cycleChat(-1)
		return m, nil, true

	case key.Matches(msg, m.keys.Help):
		m.showHelp = !m.showHelp
		m.resize(m.width, m.height)
		return m, nil, true

	case key.Matches(msg, m.keys.PageUp), key.Matches(msg, m.keys.PageDown):
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd, true
	}
	return m, nil, false
}

// handleSubmit sends the input as a message or runs it as a command.
func (m Model) handleSubmit() (Model, tea.Cmd, bool) {
	text := strings.TrimSpace(m.input.Value())
	if text == "" {
		return m, nil, true
	}

	if strings.HasPrefix(text, "/") {
		m.input.Reset()
		m.saveDraft()
		newModel, cmd := m.runCommand(text)
		return newModel, cmd, true
	}

	if m.opts.Session.State().InFlight() {
		return m, m.setNotice("Wait for the current reply to finish, or press Esc to stop it"), true
	}

	chatID := m.opts.Store.ActiveID()
	m.input.Reset()
	m.saveDraft()

	if err := m.opts.Session.Send(chatID, text); err != nil {
		// The session already notified the user; just log the detail.
		log.Debug().Err(err).Str("chat_id", chatID).Msg("Send failed")
	}
	m.refreshViewport(true)
	return m, nil, true
}

// resize recomputes the layout and rebuilds the markdown renderer for
// the new wrap width.
func (m *Model) resize(width, height int) {
	m.width = width
	m.height = height

	m.input.SetWidth(width - 4)

	contentHeight := height - m.chromeHeight()
	if contentHeight < 1 {
		contentHeight = 1
	}

	if !m.ready {
		m.viewport = viewport.New(width, contentHeight)
		m.ready = true
	} else {
		m.viewport.Width = width
		m.viewport.Height = contentHeight
	}

	wrap := width - 2
	if wrap < 20 {
		wrap = 20
	}
	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(wrap),
	)
	if err != nil {
		log.Warn().Err(err).Msg("Markdown renderer unavailable")
		m.renderer = nil
	} else {
		m.renderer = renderer
	}

	m.refreshViewport(false)
}
