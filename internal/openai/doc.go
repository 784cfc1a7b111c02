// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package openai implements the chat completion API client.
//
// The client supports two request shapes: a blocking Complete call used
// for cheap one-shot requests like chat summaries, and StreamCompletion,
// which decodes the server-sent event stream into cumulative
// model.PartialMessage snapshots delivered over a channel.
//
// Error conditions are exposed as sentinel errors (ErrMissingAPIKey,
// ErrInvalidAPIKey, ErrUnknownModel, ErrRequestFailed) so callers can
// map them to user-facing notifications with errors.Is.
package openai
