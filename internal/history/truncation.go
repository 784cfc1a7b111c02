// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package history selects which messages fit a model's context window.
package history

import (
	"sort"

	"github.com/jeranaias/chatterm/internal/model"
	"github.com/jeranaias/chatterm/internal/tokens"
)

// Per-message framing overhead in the chat wire format. Every message
// carries its role plus delimiter tokens on top of the content.
const messageOverhead = 4

// Per-request overhead: the reply is primed with a fixed token pair.
const requestOverhead = 2

// =============================================================================
// COST MODEL
// =============================================================================

// MessageCost returns the token footprint of a single message in a chat
// completion request.
func MessageCost(counter tokens.Counter, msg *model.Message) int {
	return counter.Count(msg.Content) + counter.Count(msg.Role.String()) + messageOverhead
}

// PayloadCost returns the token footprint of a full request payload.
func PayloadCost(counter tokens.Counter, msgs []*model.Message) int {
	total := requestOverhead
	for _, msg := range msgs {
		total += MessageCost(counter, msg)
	}
	return total
}

// =============================================================================
// TRUNCATION
// =============================================================================

type tagged struct {
	index int
	msg   *model.Message
}

// Truncate selects the subset of history to send for a completion
// request, preserving the original message order.
//
// System and important messages are always kept, even when they alone
// exceed the budget. The remaining messages are considered newest-first;
// each candidate's cost is charged against the running total before the
// budget check, whether or not the candidate is kept, and the walk
// visits every candidate rather than stopping at the first exclusion.
// An oversized message therefore ends inclusion for everything older
// than it.
func Truncate(counter tokens.Counter, msgs []*model.Message, limit int) []*model.Message {
	var mustKeep []tagged
	var candidates []tagged

	for i, msg := range msgs {
		t := tagged{index: i, msg: msg}
		if msg.MustSurviveTruncation() {
			mustKeep = append(mustKeep, t)
		} else {
			candidates = append(candidates, t)
		}
	}

	total := requestOverhead
	for _, t := range mustKeep {
		total += MessageCost(counter, t.msg)
	}

	kept := mustKeep
	for i := len(candidates) - 1; i >= 0; i-- {
		total += MessageCost(counter, candidates[i].msg)
		if total < limit {
			kept = append(kept, candidates[i])
		}
	}

	sort.Slice(kept, func(a, b int) bool {
		return kept[a].index < kept[b].index
	})

	result := make([]*model.Message, len(kept))
	for i, t := range kept {
		result[i] = t.msg
	}
	return result
}
