// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/jeranaias/chatterm/internal/model"
)

// =============================================================================
// STREAM EVENTS
// =============================================================================

// StreamEvent is one update from an in-flight completion. Exactly one of
// Partial or Err is meaningful; an event with a non-nil Err is always the
// last one before the channel closes.
type StreamEvent struct {
	Partial model.PartialMessage
	Err     error
}

// =============================================================================
// EVENT PARSER
// =============================================================================

// eventParser decodes the server-sent event stream into cumulative
// partial messages. Reads from the network split events at arbitrary
// byte boundaries, so the parser keeps any trailing incomplete line in
// a carry-over buffer and only ever decodes complete lines.
type eventParser struct {
	buf  []byte
	cur  model.PartialMessage
	done bool
}

var dataPrefix = []byte("data: ")

// feed consumes a chunk of the response body and returns a snapshot of
// the cumulative message for every event decoded from it. A malformed
// event payload is a terminal error.
func (p *eventParser) feed(chunk []byte) ([]model.PartialMessage, error) {
	p.buf = append(p.buf, chunk...)

	var snapshots []model.PartialMessage
	for !p.done {
		nl := bytes.IndexByte(p.buf, '\n')
		if nl < 0 {
			break
		}
		line := bytes.TrimRight(p.buf[:nl], "\r")
		p.buf = p.buf[nl+1:]

		if !bytes.HasPrefix(line, dataPrefix) {
			// Blank separator lines and SSE comments carry no payload.
			continue
		}
		payload := bytes.TrimSpace(line[len(dataPrefix):])

		if bytes.Equal(payload, []byte("[DONE]")) {
			p.done = true
			break
		}

		var event chatResponse
		if err := json.Unmarshal(payload, &event); err != nil {
			return snapshots, fmt.Errorf("%w: malformed stream event: %v", ErrRequestFailed, err)
		}

		for _, choice := range event.Choices {
			if choice.Delta.Role != "" {
				p.cur.Role = model.Role(choice.Delta.Role)
				p.cur.Content = ""
			}
			if choice.Delta.Content != "" {
				p.cur.Content += choice.Delta.Content
			}
		}

		// Every decoded event yields a snapshot, even an empty delta:
		// consumers use the cadence as a liveness signal.
		snapshots = append(snapshots, p.cur)
	}
	return snapshots, nil
}

// finished reports whether the terminator event has been seen.
func (p *eventParser) finished() bool { return p.done }

// =============================================================================
// STREAMING COMPLETION
// =============================================================================

// StreamCompletion starts a streaming completion request. Events arrive
// on the returned channel, which is closed when the stream ends for any
// reason. The channel is unbuffered so the producer runs at the
// consumer's pace. Cancel ctx to abort; the partial consumed so far
// remains valid.
func (c *Client) StreamCompletion(ctx context.Context, modelID string, msgs []WireMessage) (<-chan StreamEvent, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := c.newRequest(ctx, chatRequest{Model: modelID, Messages: msgs, Stream: true})
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, handleErrorResponse(resp)
	}

	log.Debug().Str("model", modelID).Int("messages", len(msgs)).
		Msg("Completion stream opened")

	events := make(chan StreamEvent)
	go c.consumeStream(ctx, resp.Body, events)
	return events, nil
}

// consumeStream reads the response body to completion, forwarding
// decoded snapshots. Runs on its own goroutine; owns body and events.
func (c *Client) consumeStream(ctx context.Context, body io.ReadCloser, events chan<- StreamEvent) {
	defer close(events)
	defer body.Close()

	send := func(ev StreamEvent) bool {
		select {
		case events <- ev:
			return true
		case <-ctx.Done():
			return false
		}
	}

	parser := &eventParser{}
	chunk := make([]byte, 4096)
	for {
		n, err := body.Read(chunk)
		if n > 0 {
			snapshots, perr := parser.feed(chunk[:n])
			for _, snap := range snapshots {
				if !send(StreamEvent{Partial: snap}) {
					return
				}
			}
			if perr != nil {
				send(StreamEvent{Err: perr})
				return
			}
			if parser.finished() {
				return
			}
		}
		if err != nil {
			if err == io.EOF || ctx.Err() != nil {
				// EOF without [DONE] happens when the server hangs up
				// early; the partial consumed so far stands.
				return
			}
			send(StreamEvent{Err: fmt.Errorf("%w: reading stream: %v", ErrRequestFailed, err)})
			return
		}
	}
}
