// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jeranaias/chatterm/internal/model"
)

func deltaEvent(role, content string) string {
	return fmt.Sprintf(`data: {"choices":[{"delta":{"role":%q,"content":%q}}]}`+"\n\n", role, content)
}

func contentEvent(content string) string {
	return fmt.Sprintf(`data: {"choices":[{"delta":{"content":%q}}]}`+"\n\n", content)
}

// =============================================================================
// PARSER
// =============================================================================

func TestParserAccumulatesContent(t *testing.T) {
	p := &eventParser{}

	snaps, err := p.feed([]byte(deltaEvent("assistant", "") + contentEvent("Hel") + contentEvent("lo")))
	if err != nil {
		t.Fatalf("feed: %v", err)
	}
	if len(snaps) != 3 {
		t.Fatalf("expected 3 snapshots, got %d", len(snaps))
	}

	want := []model.PartialMessage{
		{Role: model.RoleAssistant},
		{Role: model.RoleAssistant, Content: "Hel"},
		{Role: model.RoleAssistant, Content: "Hello"},
	}
	for i := range want {
		if snaps[i] != want[i] {
			t.Errorf("snapshot %d: got %+v, want %+v", i, snaps[i], want[i])
		}
	}
}

func TestParserHandlesSplitEvents(t *testing.T) {
	p := &eventParser{}

	full := deltaEvent("assistant", "") + contentEvent("Hello, world")
	// Feed one byte at a time to simulate worst-case network framing.
	var snaps []model.PartialMessage
	for i := 0; i < len(full); i++ {
		got, err := p.feed([]byte{full[i]})
		if err != nil {
			t.Fatalf("feed at byte %d: %v", i, err)
		}
		snaps = append(snaps, got...)
	}

	if len(snaps) != 2 {
		t.Fatalf("expected 2 snapshots, got %d", len(snaps))
	}
	last := snaps[len(snaps)-1]
	if last.Content != "Hello, world" {
		t.Errorf("expected full content, got %q", last.Content)
	}
}

func TestParserRoleDeltaResetsContent(t *testing.T) {
	p := &eventParser{}

	snaps, err := p.feed([]byte(deltaEvent("assistant", "") + contentEvent("stale") + deltaEvent("assistant", "")))
	if err != nil {
		t.Fatalf("feed: %v", err)
	}
	last := snaps[len(snaps)-1]
	if last.Content != "" {
		t.Errorf("expected role delta to reset content, got %q", last.Content)
	}
}

func TestParserDoneSentinel(t *testing.T) {
	p := &eventParser{}

	snaps, err := p.feed([]byte(contentEvent("hi") + "data: [DONE]\n\n" + contentEvent("ignored")))
	if err != nil {
		t.Fatalf("feed: %v", err)
	}
	if !p.finished() {
		t.Error("expected parser to be finished")
	}
	if len(snaps) != 1 {
		t.Errorf("expected events after [DONE] to be ignored, got %d snapshots", len(snaps))
	}
}

func TestParserEmptyChoicesYieldsUnchangedSnapshot(t *testing.T) {
	p := &eventParser{}

	snaps, err := p.feed([]byte(contentEvent("hi") + `data: {"choices":[]}` + "\n\n"))
	if err != nil {
		t.Fatalf("feed: %v", err)
	}
	if len(snaps) != 2 {
		t.Fatalf("expected 2 snapshots, got %d", len(snaps))
	}
	if snaps[1] != snaps[0] {
		t.Errorf("expected unchanged snapshot, got %+v vs %+v", snaps[1], snaps[0])
	}
}

func TestParserMalformedEventIsTerminal(t *testing.T) {
	p := &eventParser{}

	_, err := p.feed([]byte("data: {not json}\n\n"))
	if err == nil {
		t.Fatal("expected error for malformed payload")
	}
	if !errors.Is(err, ErrRequestFailed) {
		t.Errorf("expected ErrRequestFailed, got %v", err)
	}
}

func TestParserIgnoresCommentsAndBlankLines(t *testing.T) {
	p := &eventParser{}

	snaps, err := p.feed([]byte(": keepalive\n\n" + contentEvent("hi")))
	if err != nil {
		t.Fatalf("feed: %v", err)
	}
	if len(snaps) != 1 {
		t.Errorf("expected 1 snapshot, got %d", len(snaps))
	}
}

// =============================================================================
// CLIENT
// =============================================================================

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c := NewClient(StaticKey("test-key"))
	c.SetBaseURL(srv.URL)
	return c
}

func TestStreamCompletionEndToEnd(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("unexpected auth header %q", got)
		}
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, deltaEvent("assistant", ""))
		fmt.Fprint(w, contentEvent("Hello"))
		fmt.Fprint(w, contentEvent(" there"))
		fmt.Fprint(w, "data: [DONE]\n\n")
	})

	events, err := c.StreamCompletion(context.Background(), "gpt-4", nil)
	if err != nil {
		t.Fatalf("StreamCompletion: %v", err)
	}

	var last model.PartialMessage
	for ev := range events {
		if ev.Err != nil {
			t.Fatalf("stream error: %v", ev.Err)
		}
		last = ev.Partial
	}

	if last.Role != model.RoleAssistant || last.Content != "Hello there" {
		t.Errorf("unexpected final partial: %+v", last)
	}
}

func TestStreamCompletionMissingKey(t *testing.T) {
	c := NewClient(StaticKey(""))
	_, err := c.StreamCompletion(context.Background(), "gpt-4", nil)
	if !errors.Is(err, ErrMissingAPIKey) {
		t.Errorf("expected ErrMissingAPIKey, got %v", err)
	}
}

func TestStreamCompletionErrorMapping(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{http.StatusUnauthorized, ErrInvalidAPIKey},
		{http.StatusNotFound, ErrUnknownModel},
		{http.StatusInternalServerError, ErrRequestFailed},
	}

	for _, tt := range tests {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tt.status)
			fmt.Fprint(w, `{"error":{"message":"nope"}}`)
		})

		_, err := c.StreamCompletion(context.Background(), "gpt-4", nil)
		if !errors.Is(err, tt.want) {
			t.Errorf("status %d: expected %v, got %v", tt.status, tt.want, err)
		}
	}
}

func TestStreamCompletionAbort(t *testing.T) {
	blocker := make(chan struct{})
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, deltaEvent("assistant", ""))
		fmt.Fprint(w, contentEvent("partial"))
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
		<-blocker
	})
	defer close(blocker)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events, err := c.StreamCompletion(ctx, "gpt-4", nil)
	if err != nil {
		t.Fatalf("StreamCompletion: %v", err)
	}

	var last model.PartialMessage
	for ev := range events {
		if ev.Err != nil {
			t.Fatalf("stream error: %v", ev.Err)
		}
		last = ev.Partial
		if last.Content == "partial" {
			cancel()
		}
	}

	if last.Content != "partial" {
		t.Errorf("expected partial content to survive abort, got %q", last.Content)
	}
}

func TestComplete(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"choices":[{"message":{"role":"assistant","content":"A summary"}}]}`)
	})

	got, err := c.Complete(context.Background(), "gpt-3.5-turbo-0301", []WireMessage{
		{Role: "user", Content: "Summarize this"},
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if got != "A summary" {
		t.Errorf("expected summary content, got %q", got)
	}
}

func TestWireMessages(t *testing.T) {
	msgs := []*model.Message{
		model.NewMessage(model.RoleSystem, "sys"),
		model.NewMessage(model.RoleUser, "hi"),
	}

	wire := WireMessages(msgs)
	if len(wire) != 2 {
		t.Fatalf("expected 2 wire messages, got %d", len(wire))
	}
	if wire[0].Role != "system" || wire[0].Content != "sys" {
		t.Errorf("unexpected wire message: %+v", wire[0])
	}
}
