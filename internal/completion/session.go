// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package completion drives a chat completion from request to settled
// history.
package completion

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/jeranaias/chatterm/internal/history"
	"github.com/jeranaias/chatterm/internal/model"
	"github.com/jeranaias/chatterm/internal/openai"
	"github.com/jeranaias/chatterm/internal/store"
	"github.com/jeranaias/chatterm/internal/tokens"
)

// =============================================================================
// NOTIFICATIONS
// =============================================================================

// User-facing notification texts for completion failures.
const (
	NoticeMissingKey   = "Please configure your API key in the settings"
	NoticeInvalidKey   = "Your API key is invalid. Please check your settings"
	NoticeUnknownModel = "The model you selected does not exist. Please check your settings"
	NoticeGenericError = "Something went wrong while fetching the completion"
)

// noticeFor maps a completion error to its notification text.
func noticeFor(err error) string {
	switch {
	case errors.Is(err, openai.ErrMissingAPIKey):
		return NoticeMissingKey
	case errors.Is(err, openai.ErrInvalidAPIKey):
		return NoticeInvalidKey
	case errors.Is(err, openai.ErrUnknownModel):
		return NoticeUnknownModel
	default:
		return NoticeGenericError
	}
}

// Notifier surfaces transient messages to the user.
type Notifier interface {
	Notify(message string)
}

// NopNotifier drops all notifications.
type NopNotifier struct{}

func (NopNotifier) Notify(string) {}

// =============================================================================
// STATE MACHINE
// =============================================================================

// State is the lifecycle phase of a completion run.
type State int

const (
	// StateIdle means no completion is running.
	StateIdle State = iota
	// StatePending means the request was sent but no event has arrived.
	StatePending
	// StateStreaming means events are being consumed.
	StateStreaming
	// StateCompleted means the last run finished normally.
	StateCompleted
	// StateAborted means the last run was cancelled by the user; the
	// partial reply was kept.
	StateAborted
	// StateFailed means the last run errored; the partial was discarded.
	StateFailed
)

// String returns the state name for logging.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePending:
		return "pending"
	case StateStreaming:
		return "streaming"
	case StateCompleted:
		return "completed"
	case StateAborted:
		return "aborted"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// InFlight reports whether the state admits stream events.
func (s State) InFlight() bool {
	return s == StatePending || s == StateStreaming
}

// ErrBusy indicates a completion is already running.
var ErrBusy = errors.New("a completion is already in flight")

// =============================================================================
// COMPLETER
// =============================================================================

// Completer is the API surface the session needs from the client.
type Completer interface {
	StreamCompletion(ctx context.Context, modelID string, msgs []openai.WireMessage) (<-chan openai.StreamEvent, error)
	Complete(ctx context.Context, modelID string, msgs []openai.WireMessage) (string, error)
}

// =============================================================================
// SESSION
// =============================================================================

// Session owns the one in-flight completion and applies its lifecycle to
// the store: request, stream, and settle. At most one run exists at a
// time; Send while in flight returns ErrBusy.
type Session struct {
	store    *store.Store
	client   Completer
	counter  tokens.Counter
	notifier Notifier

	// ModelID returns the currently configured model. Read per run, so
	// settings changes apply to the next request.
	modelID func() string

	// onUpdate fires after every state-visible change, on the session's
	// consumer goroutine. Used to wake the UI.
	onUpdate func()

	mu      sync.Mutex
	state   State
	chatID  string
	cancel  context.CancelFunc
	aborted bool
	wg      sync.WaitGroup
}

// New creates a session. onUpdate may be nil.
func New(st *store.Store, client Completer, counter tokens.Counter, notifier Notifier, modelID func() string, onUpdate func()) *Session {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	if onUpdate == nil {
		onUpdate = func() {}
	}
	return &Session{
		store:    st,
		client:   client,
		counter:  counter,
		notifier: notifier,
		modelID:  modelID,
		onUpdate: onUpdate,
	}
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// ChatID returns the chat the current or last run belongs to.
func (s *Session) ChatID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.chatID
}

// Send pushes a user message onto the chat and starts a completion run
// for it.
func (s *Session) Send(chatID, content string) error {
	s.mu.Lock()
	if s.state.InFlight() {
		s.mu.Unlock()
		return ErrBusy
	}
	s.mu.Unlock()

	if err := s.store.PushMessage(chatID, model.NewMessage(model.RoleUser, content)); err != nil {
		return err
	}
	return s.Start(chatID)
}

// Start begins a completion run over the chat's current history, for
// example to retry after a failure without re-sending a message.
func (s *Session) Start(chatID string) error {
	s.mu.Lock()
	if s.state.InFlight() {
		s.mu.Unlock()
		return ErrBusy
	}

	chat := s.store.Snapshot(chatID)
	if chat == nil {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", store.ErrChatNotFound, chatID)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.state = StatePending
	s.chatID = chatID
	s.cancel = cancel
	s.aborted = false
	s.mu.Unlock()

	modelID := s.modelID()
	limit := model.TokenLimitFor(modelID)
	payload := history.Truncate(s.counter, chat.Messages, limit)

	log.Debug().Str("chat_id", chatID).Str("model", modelID).
		Int("history", len(chat.Messages)).Int("sent", len(payload)).
		Msg("Starting completion run")

	if err := s.store.StartTyping(chatID); err != nil {
		s.fail(chatID, err)
		return err
	}
	s.onUpdate()

	events, err := s.client.StreamCompletion(ctx, modelID, openai.WireMessages(payload))
	if err != nil {
		s.fail(chatID, err)
		s.onUpdate()
		return err
	}

	s.setState(StateStreaming)

	s.wg.Add(1)
	go s.consume(chatID, events)
	return nil
}

// consume drains the event stream and settles the run.
func (s *Session) consume(chatID string, events <-chan openai.StreamEvent) {
	defer s.wg.Done()

	for ev := range events {
		if ev.Err != nil {
			s.fail(chatID, ev.Err)
			s.onUpdate()
			return
		}
		if !ev.Partial.HasRole() {
			// Nothing usable accumulates until the role announcement.
			continue
		}
		if err := s.store.UpdateTyping(chatID, ev.Partial); err != nil {
			log.Warn().Err(err).Str("chat_id", chatID).Msg("Dropping stream update")
		}
		s.onUpdate()
	}

	// Channel closed: either the stream finished or the user aborted.
	// Both keep the partial.
	if err := s.store.Settle(chatID, true); err != nil {
		log.Error().Err(err).Str("chat_id", chatID).Msg("Failed to settle completion")
	}

	s.mu.Lock()
	if s.aborted {
		s.state = StateAborted
	} else {
		s.state = StateCompleted
	}
	wasAborted := s.aborted
	s.cancel = nil
	s.mu.Unlock()
	s.onUpdate()

	if !wasAborted {
		s.maybeSummarize(chatID)
	}
}

// fail discards the partial and records the failure.
func (s *Session) fail(chatID string, err error) {
	if serr := s.store.Settle(chatID, false); serr != nil {
		log.Error().Err(serr).Str("chat_id", chatID).Msg("Failed to settle after error")
	}

	s.mu.Lock()
	s.state = StateFailed
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.mu.Unlock()

	log.Error().Err(err).Str("chat_id", chatID).Msg("Completion failed")
	s.notifier.Notify(noticeFor(err))
}

// Abort cancels the in-flight run. The partial streamed so far is kept
// and committed like a normal reply. Aborting an idle session is a no-op.
func (s *Session) Abort() {
	s.mu.Lock()
	if !s.state.InFlight() || s.cancel == nil {
		s.mu.Unlock()
		return
	}
	s.aborted = true
	s.cancel()
	s.mu.Unlock()
}

// Wait blocks until the consumer goroutine of the current run exits.
// Used by tests and shutdown.
func (s *Session) Wait() {
	s.wg.Wait()
}

func (s *Session) setState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

// =============================================================================
// SUMMARY
// =============================================================================

const summaryPrompt = "Summarize the following message in at most five words, with no punctuation at the end:\n\n"

// maybeSummarize derives a chat title from the first assistant reply.
// Runs after a completed stream; a chat that was already renamed keeps
// its name. Failures are logged and swallowed, a title is cosmetic.
func (s *Session) maybeSummarize(chatID string) {
	chat := s.store.Snapshot(chatID)
	if chat == nil || chat.Summary != model.DefaultSummary {
		return
	}
	first := chat.FirstAssistantMessage()
	if first == nil || first.Content == "" {
		return
	}

	summary, err := s.client.Complete(context.Background(), model.SummaryModel, []openai.WireMessage{
		{Role: model.RoleUser.String(), Content: summaryPrompt + first.Content},
	})
	if err != nil || summary == "" {
		log.Debug().Err(err).Str("chat_id", chatID).Msg("Summary request failed")
		return
	}

	if err := s.store.EditSummary(chatID, summary); err != nil {
		log.Warn().Err(err).Str("chat_id", chatID).Msg("Failed to store summary")
		return
	}
	s.onUpdate()
}
