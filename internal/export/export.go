// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package export writes chat transcripts to files.
package export

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jeranaias/chatterm/internal/model"
	"github.com/jeranaias/chatterm/internal/util"
)

// ErrEmptyChat indicates there is nothing to export: a chat holding only
// its preamble has no transcript.
var ErrEmptyChat = errors.New("chat has no messages to export")

// Format selects the transcript file format.
type Format string

const (
	FormatMarkdown Format = "md"
	FormatJSON     Format = "json"
)

// ParseFormat maps a user-supplied format argument, defaulting to
// Markdown for an empty string.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "", "md", "markdown":
		return FormatMarkdown, nil
	case "json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("unknown export format %q", s)
	}
}

// =============================================================================
// RENDERING
// =============================================================================

// Chat renders a transcript in the given format.
func Chat(chat *model.Chat, format Format) ([]byte, error) {
	if !hasTranscript(chat) {
		return nil, ErrEmptyChat
	}

	switch format {
	case FormatJSON:
		return renderJSON(chat)
	default:
		return renderMarkdown(chat), nil
	}
}

// hasTranscript reports whether anything besides the preamble exists.
func hasTranscript(chat *model.Chat) bool {
	for _, msg := range chat.Messages {
		if !msg.IsPreamble {
			return true
		}
	}
	return false
}

func renderMarkdown(chat *model.Chat) []byte {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("# %s\n\n", escapeHeading(chat.Summary)))

	for _, msg := range chat.Messages {
		if msg.IsPreamble {
			continue
		}
		label := msg.Role.DisplayName()
		if msg.IsImportant {
			label += " ★"
		}
		sb.WriteString(fmt.Sprintf("### %s\n\n", label))
		sb.WriteString(strings.TrimSpace(msg.Content))
		sb.WriteString("\n\n")
	}

	sb.WriteString(fmt.Sprintf("*Exported %s*\n", time.Now().Format("January 2, 2006 at 3:04 PM")))
	return []byte(sb.String())
}

func renderJSON(chat *model.Chat) ([]byte, error) {
	doc := struct {
		ID       string           `json:"id"`
		Summary  string           `json:"summary"`
		Messages []*model.Message `json:"messages"`
		Exported time.Time        `json:"exported"`
	}{
		ID:       chat.ID,
		Summary:  chat.Summary,
		Messages: chat.Messages,
		Exported: time.Now(),
	}
	return json.MarshalIndent(doc, "", "  ")
}

// escapeHeading escapes characters that would break a Markdown heading.
func escapeHeading(s string) string {
	replacer := strings.NewReplacer("#", "\\#", "*", "\\*", "_", "\\_", "[", "\\[", "]", "\\]")
	return replacer.Replace(s)
}

// =============================================================================
// FILE OUTPUT
// =============================================================================

// WriteChat renders the transcript and writes it under dir, returning
// the file path. The file name is derived from the chat summary and the
// current time, so repeated exports never clobber each other.
func WriteChat(dir string, chat *model.Chat, format Format) (string, error) {
	data, err := Chat(chat, format)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating export directory: %w", err)
	}

	name := fmt.Sprintf("%s-%s.%s", slugify(chat.Summary), time.Now().Format("20060102-150405"), format)
	path := filepath.Join(dir, name)
	if err := util.AtomicWriteFile(path, data, 0o644); err != nil {
		return "", err
	}
	return path, nil
}

// slugify turns a summary into a safe file name fragment.
func slugify(s string) string {
	var sb strings.Builder
	lastDash := true
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			sb.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				sb.WriteByte('-')
				lastDash = true
			}
		}
	}
	slug := strings.TrimSuffix(sb.String(), "-")
	if slug == "" {
		return "chat"
	}
	if len(slug) > 40 {
		slug = slug[:40]
	}
	return slug
}
