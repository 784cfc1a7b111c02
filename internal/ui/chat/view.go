// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat provides the chat view component for the TUI.
package chat

import (
	"fmt"
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/jeranaias/chatterm/internal/model"
)

// View renders the full screen.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if !m.ready {
		return "Loading..."
	}

	var b strings.Builder
	b.WriteString(m.headerView())
	b.WriteByte('\n')
	b.WriteString(m.viewport.View())
	b.WriteByte('\n')

	if m.notice != "" {
		b.WriteString(m.styles.Notice.Render(m.notice))
		b.WriteByte('\n')
	}

	b.WriteString(m.styles.InputFrame.Width(m.width - 2).Render(m.input.View()))
	b.WriteByte('\n')
	b.WriteString(m.footerView())
	return b.String()
}

// chromeHeight is the number of rows used by everything except the
// message viewport.
func (m Model) chromeHeight() int {
	// header + input frame (3 rows content + 2 border) + footer
	h := 1 + 5 + 1
	if m.notice != "" {
		h++
	}
	if m.showHelp {
		h += 2
	}
	return h
}

// headerView renders the chat summary and active model.
func (m Model) headerView() string {
	chat := m.opts.Store.Active()
	summary := runewidth.Truncate(chat.Summary, m.width/2, "…")

	left := m.styles.Header.Render(summary)
	right := m.styles.HeaderModel.Render(m.opts.ModelID())

	gap := m.width - runewidth.StringWidth(left) - runewidth.StringWidth(right)
	if gap < 1 {
		gap = 1
	}
	return left + strings.Repeat(" ", gap) + right
}

// footerView renders the key hints.
func (m Model) footerView() string {
	if m.showHelp {
		return m.styles.Help.Render(
			"Enter send · Esc stop streaming · C-n/C-p switch chat · C-h help · C-c quit\n" +
				"/new /chats /switch /clear /model /important /edit /rename /retry /export /key /help")
	}
	return m.styles.Help.Render("C-h help · C-c quit")
}

// =============================================================================
// TRANSCRIPT RENDERING
// =============================================================================

// refreshViewport re-renders the transcript. With follow set, the view
// snaps to the bottom so new tokens stay visible.
func (m *Model) refreshViewport(follow bool) {
	if !m.ready {
		return
	}
	m.viewport.SetContent(m.renderTranscript())
	if follow {
		m.viewport.GotoBottom()
	}
}

// renderTranscript builds the full message view for the active chat.
func (m *Model) renderTranscript() string {
	chat := m.opts.Store.Active()

	var b strings.Builder
	for i, msg := range chat.Messages {
		if msg.IsPreamble {
			continue
		}
		b.WriteString(m.renderMessage(i, msg))
		b.WriteByte('\n')
	}

	if chat.BotTyping {
		frame := typingFrames[m.typingFrame]
		b.WriteString(m.styles.BotLabel.Render(model.RoleAssistant.DisplayName()))
		b.WriteByte('\n')
		if chat.BotTypingMessage != nil && chat.BotTypingMessage.Content != "" {
			b.WriteString(m.renderBody(chat.BotTypingMessage.Content))
			b.WriteByte('\n')
		}
		b.WriteString(m.styles.Typing.Render(frame + " thinking"))
		b.WriteByte('\n')
	}
	return b.String()
}

// renderMessage renders one message with its numbered label. The number
// is what /edit, /important, and /delmsg address.
func (m *Model) renderMessage(index int, msg *model.Message) string {
	label := fmt.Sprintf("[%d] %s", index, msg.Role.DisplayName())

	var styled string
	switch msg.Role {
	case model.RoleUser:
		styled = m.styles.UserLabel.Render(label)
	case model.RoleAssistant:
		styled = m.styles.BotLabel.Render(label)
	default:
		styled = m.styles.SystemLabel.Render(label)
	}
	if msg.IsImportant {
		styled += " " + m.styles.Important.Render("★")
	}

	body := msg.Content
	if msg.Role == model.RoleAssistant {
		body = m.renderBody(body)
	}
	return styled + "\n" + body + "\n"
}

// renderBody formats assistant markdown, falling back to the raw text
// when the renderer is unavailable or chokes.
func (m *Model) renderBody(content string) string {
	if m.renderer == nil {
		return content
	}
	rendered, err := m.renderer.Render(content)
	if err != nil {
		return content
	}
	return strings.TrimRight(rendered, "\n")
}
