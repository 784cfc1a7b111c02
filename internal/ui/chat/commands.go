// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat provides the chat view component for the TUI.
//
// This file implements the slash commands typed into the input field.
package chat

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/chatterm/internal/export"
	"github.com/jeranaias/chatterm/internal/model"
)

// parseCommand splits "/name arg text" into its name and argument rest.
func parseCommand(text string) (name, args string) {
	text = strings.TrimPrefix(strings.TrimSpace(text), "/")
	name, args, _ = strings.Cut(text, " ")
	return strings.ToLower(name), strings.TrimSpace(args)
}

// runCommand executes a slash command against the active chat.
func (m Model) runCommand(text string) (Model, tea.Cmd) {
	name, args := parseCommand(text)
	chatID := m.opts.Store.ActiveID()

	switch name {
	case "help":
		m.showHelp = !m.showHelp
		m.resize(m.width, m.height)
		return m, nil

	case "new":
		m.saveDraft()
		if _, err := m.opts.Store.NewChat(); err != nil {
			return m, m.setNotice("Could not create the chat")
		}
		m.loadDraft()
		m.refreshViewport(true)
		return m, nil

	case "chats":
		return m, m.setNotice(m.chatListLine())

	case "switch":
		chats := m.opts.Store.Chats()
		n, err := strconv.Atoi(args)
		if err != nil || n < 1 || n > len(chats) {
			return m, m.setNotice(fmt.Sprintf("Usage: /switch <1-%d>", len(chats)))
		}
		m.switchChat(chats[n-1].ID)
		return m, nil

	case "delete":
		if m.opts.Session.State().InFlight() {
			return m, m.setNotice("Stop the current reply before deleting the chat")
		}
		if err := m.opts.Store.DeleteChat(chatID); err != nil {
			return m, m.setNotice("Could not delete the chat")
		}
		m.loadDraft()
		m.refreshViewport(true)
		return m, m.setNotice("Chat deleted")

	case "clear":
		if m.opts.Session.State().InFlight() {
			return m, m.setNotice("Stop the current reply before clearing chats")
		}
		if err := m.opts.Store.ClearChats(); err != nil {
			return m, m.setNotice("Could not clear the chats")
		}
		m.loadDraft()
		m.refreshViewport(true)
		return m, m.setNotice("All chats deleted")

	case "rename":
		if args == "" {
			return m, m.setNotice("Usage: /rename <new name>")
		}
		if err := m.opts.Store.EditSummary(chatID, args); err != nil {
			return m, m.setNotice("Could not rename the chat")
		}
		return m, nil

	case "model", "models":
		if args == "" {
			return m, m.setNotice("Models: " + strings.Join(model.ModelIDs(), ", "))
		}
		if !model.KnownModel(args) {
			return m, m.setNotice(fmt.Sprintf("Unknown model %q", args))
		}
		if err := m.opts.SetModel(args); err != nil {
			return m, m.setNotice("Could not save the model setting")
		}
		return m, m.setNotice("Model set to " + args)

	case "important":
		msgID, notice := m.resolveMessage(args, "/important <message number>")
		if msgID == "" {
			return m, notice
		}
		if err := m.opts.Store.ToggleImportant(chatID, msgID); err != nil {
			return m, m.setNotice("Could not update the message")
		}
		m.refreshViewport(false)
		return m, nil

	case "edit":
		numArg, rest, _ := strings.Cut(args, " ")
		rest = strings.TrimSpace(rest)
		msgID, notice := m.resolveMessage(numArg, "/edit <message number> <new text>")
		if msgID == "" {
			return m, notice
		}
		if rest == "" {
			return m, m.setNotice("Usage: /edit <message number> <new text>")
		}
		if err := m.opts.Store.EditMessageContent(chatID, msgID, rest); err != nil {
			return m, m.setNotice("Could not edit the message")
		}
		m.refreshViewport(false)
		return m, nil

	case "delmsg":
		msgID, notice := m.resolveMessage(args, "/delmsg <message number>")
		if msgID == "" {
			return m, notice
		}
		if err := m.opts.Store.DeleteMessage(chatID, msgID); err != nil {
			return m, m.setNotice("Could not delete the message")
		}
		m.refreshViewport(true)
		return m, nil

	case "retry":
		if m.opts.Session.State().InFlight() {
			return m, m.setNotice("A reply is already in progress")
		}
		if err := m.opts.Session.Start(chatID); err != nil {
			return m, nil
		}
		m.refreshViewport(true)
		return m, nil

	case "export":
		format, err := export.ParseFormat(args)
		if err != nil {
			return m, m.setNotice("Usage: /export [md|json]")
		}
		dir := m.opts.ExportDir
		if dir == "" {
			dir = "exports"
		}
		path, err := export.WriteChat(dir, m.opts.Store.Active(), format)
		if err != nil {
			if errors.Is(err, export.ErrEmptyChat) {
				return m, m.setNotice("Nothing to export yet")
			}
			return m, m.setNotice("Export failed")
		}
		return m, m.setNotice("Exported to " + path)

	case "key":
		if args == "" {
			return m, m.setNotice("Usage: /key <your API key>")
		}
		if err := m.opts.StoreKey(args); err != nil {
			return m, m.setNotice("Could not store the API key")
		}
		return m, m.setNotice("API key updated")

	default:
		return m, m.setNotice(fmt.Sprintf("Unknown command /%s", name))
	}
}

// chatListLine formats the chat list for the notice banner.
func (m Model) chatListLine() string {
	chats := m.opts.Store.Chats()
	active := m.opts.Store.ActiveID()

	parts := make([]string, len(chats))
	for i, chat := range chats {
		marker := ""
		if chat.ID == active {
			marker = "*"
		}
		parts[i] = fmt.Sprintf("%d%s:%s", i+1, marker, chat.Summary)
	}
	return strings.Join(parts, "  ")
}

// resolveMessage maps a transcript number argument to a message ID in
// the active chat. On failure it returns an empty ID and a usage notice.
func (m *Model) resolveMessage(arg, usage string) (string, tea.Cmd) {
	chat := m.opts.Store.Active()
	n, err := strconv.Atoi(arg)
	if err != nil || n < 0 || n >= len(chat.Messages) {
		return "", m.setNotice("Usage: " + usage)
	}
	msg := chat.Messages[n]
	if msg.IsPreamble {
		return "", m.setNotice("The system preamble cannot be changed here")
	}
	return msg.ID, nil
}
