// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package openai implements the chat completion API client.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/jeranaias/chatterm/internal/model"
)

// DefaultBaseURL is the production API endpoint.
const DefaultBaseURL = "https://api.openai.com/v1"

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrMissingAPIKey indicates no API key has been configured.
	ErrMissingAPIKey = errors.New("no API key configured")

	// ErrInvalidAPIKey indicates the API rejected the configured key.
	ErrInvalidAPIKey = errors.New("invalid API key")

	// ErrUnknownModel indicates the requested model does not exist for
	// this account.
	ErrUnknownModel = errors.New("unknown model")

	// ErrRequestFailed covers every other request failure.
	ErrRequestFailed = errors.New("completion request failed")
)

// =============================================================================
// WIRE TYPES
// =============================================================================

// WireMessage is a message in the request payload.
type WireMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// WireMessages converts domain messages to the request schema.
func WireMessages(msgs []*model.Message) []WireMessage {
	out := make([]WireMessage, len(msgs))
	for i, m := range msgs {
		out[i] = WireMessage{Role: m.Role.String(), Content: m.Content}
	}
	return out
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []WireMessage `json:"messages"`
	Stream   bool          `json:"stream,omitempty"`
}

type chatDelta struct {
	Role    string `json:"role,omitempty"`
	Content string `json:"content,omitempty"`
}

type chatChoice struct {
	Delta        chatDelta   `json:"delta"`
	Message      WireMessage `json:"message"`
	FinishReason string      `json:"finish_reason"`
}

type chatResponse struct {
	ID      string       `json:"id"`
	Choices []chatChoice `json:"choices"`
}

type apiError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}

// =============================================================================
// CLIENT
// =============================================================================

// KeySource supplies the API key at request time, so a key changed in
// the settings takes effect without rebuilding the client.
type KeySource interface {
	APIKey() string
}

// StaticKey is a KeySource holding a fixed key.
type StaticKey string

func (k StaticKey) APIKey() string { return string(k) }

// Client talks to the chat completion API.
//
// The HTTP client deliberately has no overall timeout: a streaming
// response stays open as long as tokens keep arriving. Cancellation is
// the caller's job via context.
type Client struct {
	baseURL    string
	keys       KeySource
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewClient creates a client reading its key from the given source.
func NewClient(keys KeySource) *Client {
	return &Client{
		baseURL: DefaultBaseURL,
		keys:    keys,
		httpClient: &http.Client{
			Transport: &http.Transport{
				ResponseHeaderTimeout: 30 * time.Second,
			},
		},
		// The API throttles aggressively on free tiers; 3 req/s with a
		// small burst keeps interactive use under the radar.
		limiter: rate.NewLimiter(rate.Limit(3), 5),
	}
}

// SetBaseURL overrides the API endpoint, used by tests and proxies.
func (c *Client) SetBaseURL(url string) {
	c.baseURL = url
}

// newRequest builds an authenticated POST to the completions endpoint.
func (c *Client) newRequest(ctx context.Context, payload chatRequest) (*http.Request, error) {
	key := c.keys.APIKey()
	if key == "" {
		return nil, ErrMissingAPIKey
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+key)
	return req, nil
}

// handleErrorResponse maps a non-200 status to a sentinel error,
// draining the body for the API's error message.
func handleErrorResponse(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	var detail apiError
	message := ""
	if err := json.Unmarshal(body, &detail); err == nil {
		message = detail.Error.Message
	}

	log.Warn().Int("status", resp.StatusCode).Str("message", message).
		Msg("Completion API returned an error")

	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return ErrInvalidAPIKey
	case http.StatusNotFound:
		return ErrUnknownModel
	default:
		if message != "" {
			return fmt.Errorf("%w: %s (status %d)", ErrRequestFailed, message, resp.StatusCode)
		}
		return fmt.Errorf("%w: status %d", ErrRequestFailed, resp.StatusCode)
	}
}

// =============================================================================
// NON-STREAMING COMPLETION
// =============================================================================

// Complete performs a blocking completion request and returns the full
// reply content. Used for the chat summary, where streaming buys nothing.
func (c *Client) Complete(ctx context.Context, modelID string, msgs []WireMessage) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}

	req, err := c.newRequest(ctx, chatRequest{Model: modelID, Messages: msgs})
	if err != nil {
		return "", err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", handleErrorResponse(resp)
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("%w: decoding response: %v", ErrRequestFailed, err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("%w: empty response", ErrRequestFailed)
	}
	return parsed.Choices[0].Message.Content, nil
}
