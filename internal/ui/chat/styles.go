// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat provides the chat view component for the TUI.
package chat

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// =============================================================================
// THEME
// =============================================================================

// Styles holds the lipgloss styles for the chat view.
type Styles struct {
	Header      lipgloss.Style
	HeaderModel lipgloss.Style
	UserLabel   lipgloss.Style
	BotLabel    lipgloss.Style
	SystemLabel lipgloss.Style
	Important   lipgloss.Style
	Typing      lipgloss.Style
	Notice      lipgloss.Style
	Help        lipgloss.Style
	InputFrame  lipgloss.Style
}

// DefaultStyles builds the theme. Colors degrade gracefully on
// terminals without truecolor support via termenv's profile detection.
func DefaultStyles() Styles {
	profile := termenv.ColorProfile()
	accent := lipgloss.Color("69")
	if profile == termenv.Ascii {
		accent = lipgloss.Color("")
	}

	return Styles{
		Header: lipgloss.NewStyle().
			Bold(true).
			Foreground(accent).
			Padding(0, 1),
		HeaderModel: lipgloss.NewStyle().
			Faint(true).
			Padding(0, 1),
		UserLabel: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("42")),
		BotLabel: lipgloss.NewStyle().
			Bold(true).
			Foreground(accent),
		SystemLabel: lipgloss.NewStyle().
			Bold(true).
			Faint(true),
		Important: lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")),
		Typing: lipgloss.NewStyle().
			Faint(true).
			Italic(true),
		Notice: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("203")).
			Padding(0, 1),
		Help: lipgloss.NewStyle().
			Faint(true).
			Padding(0, 1),
		InputFrame: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(accent).
			Padding(0, 1),
	}
}
