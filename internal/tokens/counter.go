// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package tokens provides token counting for budget enforcement.
package tokens

import (
	"github.com/pkoukk/tiktoken-go"
	"github.com/rs/zerolog/log"
)

// Encoding used by the chat model family.
const encoding = "cl100k_base"

// =============================================================================
// COUNTER INTERFACE
// =============================================================================

// Counter estimates how many tokens a piece of text occupies in the
// model's context window.
type Counter interface {
	Count(text string) int
}

// NewCounter returns the best available counter: a real BPE tokenizer
// when its encoding data can be loaded, otherwise a character-length
// heuristic. The caller never has to care which one it got.
func NewCounter() Counter {
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		log.Warn().Err(err).Str("encoding", encoding).
			Msg("Tokenizer unavailable, falling back to heuristic counting")
		return HeuristicCounter{}
	}
	return &TiktokenCounter{enc: enc}
}

// =============================================================================
// TIKTOKEN COUNTER
// =============================================================================

// TiktokenCounter counts tokens with the cl100k_base BPE encoding.
type TiktokenCounter struct {
	enc *tiktoken.Tiktoken
}

// Count returns the number of BPE tokens in text.
func (c *TiktokenCounter) Count(text string) int {
	if text == "" {
		return 0
	}
	return len(c.enc.Encode(text, nil, nil))
}

// =============================================================================
// HEURISTIC COUNTER
// =============================================================================

// HeuristicCounter approximates token counts as one token per four
// characters, rounded up. It overestimates short strings, which errs on
// the safe side for budget enforcement.
type HeuristicCounter struct{}

// Count returns the approximate number of tokens in text.
func (HeuristicCounter) Count(text string) int {
	if text == "" {
		return 0
	}
	return (len(text) + 3) / 4
}
