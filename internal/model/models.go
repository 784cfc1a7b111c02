// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for chats and messages.
package model

import "sort"

// =============================================================================
// MODEL REGISTRY
// =============================================================================

// ModelInfo describes a selectable completion model.
type ModelInfo struct {
	Label      string
	TokenLimit int
}

// DefaultModel is used when no model has been configured.
const DefaultModel = "gpt-3.5-turbo"

// Models maps model identifiers to their display label and context size.
// The token limit is the hard budget handed to the history truncator.
var Models = map[string]ModelInfo{
	"gpt-3.5-turbo":      {Label: "GPT-3.5 turbo", TokenLimit: 4096},
	"gpt-3.5-turbo-16k":  {Label: "GPT-3.5 turbo 16k", TokenLimit: 16384},
	"gpt-3.5-turbo-0301": {Label: "GPT-3.5 turbo 0301", TokenLimit: 4096},
	"gpt-4":              {Label: "GPT-4", TokenLimit: 8192},
	"gpt-4-0314":         {Label: "GPT-4 0314", TokenLimit: 8192},
	"gpt-4-32k":          {Label: "GPT-4 32k", TokenLimit: 32768},
	"gpt-4-32k-0314":     {Label: "GPT-4 32k 0314", TokenLimit: 32768},
}

// SummaryModel is the model used for the cheap post-completion summary
// request.
const SummaryModel = "gpt-3.5-turbo-0301"

// KnownModel reports whether the identifier is in the registry.
func KnownModel(id string) bool {
	_, ok := Models[id]
	return ok
}

// TokenLimitFor returns the token budget for a model, falling back to the
// default model's limit for unknown identifiers.
func TokenLimitFor(id string) int {
	if info, ok := Models[id]; ok {
		return info.TokenLimit
	}
	return Models[DefaultModel].TokenLimit
}

// ModelIDs returns the registry keys in sorted order, for display.
func ModelIDs() []string {
	ids := make([]string, 0, len(Models))
	for id := range Models {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
