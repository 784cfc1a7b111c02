// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"errors"
	"sync"
	"testing"

	"github.com/jeranaias/chatterm/internal/model"
)

// recordingPersister tracks which chats were saved and deleted.
type recordingPersister struct {
	mu      sync.Mutex
	saved   []string
	deleted []string
}

func (p *recordingPersister) SaveChat(chat *model.Chat) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.saved = append(p.saved, chat.ID)
	return nil
}

func (p *recordingPersister) DeleteChat(id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.deleted = append(p.deleted, id)
	return nil
}

func (p *recordingPersister) saveCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.saved)
}

func newTestStore() (*Store, *recordingPersister) {
	p := &recordingPersister{}
	return New(p, "You are a helpful assistant.", nil), p
}

func TestNewStoreCreatesInitialChat(t *testing.T) {
	s, _ := newTestStore()

	if s.ActiveID() == "" {
		t.Fatal("expected an active chat")
	}
	active := s.Active()
	if active.Summary != model.DefaultSummary {
		t.Errorf("expected default summary, got %q", active.Summary)
	}
	if len(active.Messages) != 1 || !active.Messages[0].IsPreamble {
		t.Error("expected chat seeded with preamble")
	}
}

func TestNewStoreSkipsInvalidRecords(t *testing.T) {
	valid := model.NewChat("p")
	invalid := &model.Chat{} // missing ID

	s := New(&recordingPersister{}, "p", []*model.Chat{valid, invalid})
	if len(s.Chats()) != 1 {
		t.Errorf("expected 1 chat, got %d", len(s.Chats()))
	}
}

func TestNewStoreClearsStaleTypingState(t *testing.T) {
	chat := model.NewChat("p")
	chat.BotTyping = true
	chat.BotTypingMessage = &model.PartialMessage{Role: model.RoleAssistant, Content: "stale"}

	s := New(&recordingPersister{}, "p", []*model.Chat{chat})
	loaded := s.Snapshot(chat.ID)
	if loaded.BotTyping || loaded.BotTypingMessage != nil {
		t.Error("expected typing state cleared on load")
	}
}

func TestNewChatBecomesActiveAndPersists(t *testing.T) {
	s, p := newTestStore()

	id, err := s.NewChat()
	if err != nil {
		t.Fatalf("NewChat: %v", err)
	}
	if s.ActiveID() != id {
		t.Error("expected new chat to become active")
	}
	if p.saveCount() != 1 {
		t.Errorf("expected 1 save, got %d", p.saveCount())
	}
}

func TestDeleteChatFallsBackToMostRecent(t *testing.T) {
	s, p := newTestStore()
	first := s.ActiveID()
	second, _ := s.NewChat()

	if err := s.DeleteChat(second); err != nil {
		t.Fatalf("DeleteChat: %v", err)
	}
	if s.ActiveID() != first {
		t.Error("expected active to fall back to remaining chat")
	}
	if len(p.deleted) != 1 || p.deleted[0] != second {
		t.Errorf("expected deletion persisted, got %v", p.deleted)
	}
}

func TestDeleteLastChatCreatesReplacement(t *testing.T) {
	s, _ := newTestStore()
	only := s.ActiveID()

	if err := s.DeleteChat(only); err != nil {
		t.Fatalf("DeleteChat: %v", err)
	}
	if s.ActiveID() == only || s.ActiveID() == "" {
		t.Error("expected a fresh replacement chat to be active")
	}
	if len(s.Chats()) != 1 {
		t.Errorf("expected exactly 1 chat, got %d", len(s.Chats()))
	}
}

func TestClearChatsSchedulesDeletesAndSeedsFreshChat(t *testing.T) {
	s, p := newTestStore()
	first := s.ActiveID()
	second, _ := s.NewChat()

	if err := s.ClearChats(); err != nil {
		t.Fatalf("ClearChats: %v", err)
	}
	if len(p.deleted) != 2 {
		t.Fatalf("expected both chats deleted from storage, got %v", p.deleted)
	}
	if s.ActiveID() == first || s.ActiveID() == second {
		t.Error("expected a fresh chat to be active")
	}
	if len(s.Chats()) != 1 {
		t.Errorf("expected exactly 1 chat, got %d", len(s.Chats()))
	}
	if len(s.Active().Messages) != 1 || !s.Active().Messages[0].IsPreamble {
		t.Error("expected replacement chat seeded with preamble")
	}
}

func TestDeleteUnknownChat(t *testing.T) {
	s, _ := newTestStore()
	if err := s.DeleteChat("nope"); !errors.Is(err, ErrChatNotFound) {
		t.Errorf("expected ErrChatNotFound, got %v", err)
	}
}

func TestPushMessagePersists(t *testing.T) {
	s, p := newTestStore()
	id := s.ActiveID()

	msg := model.NewMessage(model.RoleUser, "hello")
	if err := s.PushMessage(id, msg); err != nil {
		t.Fatalf("PushMessage: %v", err)
	}

	chat := s.Snapshot(id)
	if chat.MessageByID(msg.ID) == nil {
		t.Error("expected pushed message in snapshot")
	}
	if p.saveCount() != 1 {
		t.Errorf("expected 1 save, got %d", p.saveCount())
	}
}

func TestEditMessageContent(t *testing.T) {
	s, _ := newTestStore()
	id := s.ActiveID()
	msg := model.NewMessage(model.RoleUser, "typo")
	s.PushMessage(id, msg)

	if err := s.EditMessageContent(id, msg.ID, "fixed"); err != nil {
		t.Fatalf("EditMessageContent: %v", err)
	}
	if got := s.Snapshot(id).MessageByID(msg.ID).Content; got != "fixed" {
		t.Errorf("expected edited content, got %q", got)
	}

	err := s.EditMessageContent(id, "nope", "x")
	if !errors.Is(err, ErrMessageNotFound) {
		t.Errorf("expected ErrMessageNotFound, got %v", err)
	}
}

func TestToggleImportant(t *testing.T) {
	s, _ := newTestStore()
	id := s.ActiveID()
	msg := model.NewMessage(model.RoleUser, "keep me")
	s.PushMessage(id, msg)

	s.ToggleImportant(id, msg.ID)
	if !s.Snapshot(id).MessageByID(msg.ID).IsImportant {
		t.Error("expected message marked important")
	}
	s.ToggleImportant(id, msg.ID)
	if s.Snapshot(id).MessageByID(msg.ID).IsImportant {
		t.Error("expected importance toggled back off")
	}
}

func TestDeleteMessageDoesNotPersist(t *testing.T) {
	s, p := newTestStore()
	id := s.ActiveID()
	msg := model.NewMessage(model.RoleUser, "remove me")
	s.PushMessage(id, msg)
	before := p.saveCount()

	if err := s.DeleteMessage(id, msg.ID); err != nil {
		t.Fatalf("DeleteMessage: %v", err)
	}
	if s.Snapshot(id).MessageByID(msg.ID) != nil {
		t.Error("expected message removed from memory")
	}
	if p.saveCount() != before {
		t.Error("expected no save from DeleteMessage")
	}
}

func TestSetDraftAndEditSummary(t *testing.T) {
	s, p := newTestStore()
	id := s.ActiveID()

	s.SetDraft(id, "half-typed thought")
	if p.saveCount() != 0 {
		t.Error("expected draft update not to persist")
	}
	s.EditSummary(id, "Travel plans")
	if p.saveCount() != 1 {
		t.Errorf("expected summary edit to persist, got %d saves", p.saveCount())
	}

	chat := s.Snapshot(id)
	if chat.Draft != "half-typed thought" {
		t.Errorf("unexpected draft %q", chat.Draft)
	}
	if chat.Summary != "Travel plans" {
		t.Errorf("unexpected summary %q", chat.Summary)
	}
}

func TestTypingLifecycleCommit(t *testing.T) {
	s, p := newTestStore()
	id := s.ActiveID()

	s.StartTyping(id)
	if !s.Typing(id) {
		t.Fatal("expected typing state")
	}

	s.UpdateTyping(id, model.PartialMessage{Role: model.RoleAssistant, Content: "Hel"})
	s.UpdateTyping(id, model.PartialMessage{Role: model.RoleAssistant, Content: "Hello"})

	before := p.saveCount()
	if err := s.Settle(id, true); err != nil {
		t.Fatalf("Settle: %v", err)
	}

	chat := s.Snapshot(id)
	if chat.BotTyping || chat.BotTypingMessage != nil {
		t.Error("expected typing state cleared")
	}
	last := chat.Messages[len(chat.Messages)-1]
	if last.Role != model.RoleAssistant || last.Content != "Hello" {
		t.Errorf("expected committed assistant message, got %+v", last)
	}
	if p.saveCount() != before+1 {
		t.Error("expected commit to persist")
	}
}

func TestTypingLifecycleDiscard(t *testing.T) {
	s, p := newTestStore()
	id := s.ActiveID()

	s.StartTyping(id)
	s.UpdateTyping(id, model.PartialMessage{Role: model.RoleAssistant, Content: "doomed"})
	before := p.saveCount()

	if err := s.Settle(id, false); err != nil {
		t.Fatalf("Settle: %v", err)
	}

	chat := s.Snapshot(id)
	if len(chat.Messages) != 1 {
		t.Errorf("expected partial discarded, got %d messages", len(chat.Messages))
	}
	if p.saveCount() != before {
		t.Error("expected no save on discard")
	}
}

func TestSettleSkipsUncommittablePartial(t *testing.T) {
	s, _ := newTestStore()
	id := s.ActiveID()

	s.StartTyping(id)
	s.UpdateTyping(id, model.PartialMessage{Role: model.RoleAssistant})

	s.Settle(id, true)
	if got := len(s.Snapshot(id).Messages); got != 1 {
		t.Errorf("expected no message from content-less partial, got %d", got)
	}
}

func TestUpdateTypingAfterSettleIsDropped(t *testing.T) {
	s, _ := newTestStore()
	id := s.ActiveID()

	s.StartTyping(id)
	s.Settle(id, false)
	s.UpdateTyping(id, model.PartialMessage{Role: model.RoleAssistant, Content: "late"})

	chat := s.Snapshot(id)
	if chat.BotTypingMessage != nil {
		t.Error("expected late update to be dropped")
	}
}

func TestSettleIdleChatIsNoOp(t *testing.T) {
	s, _ := newTestStore()
	if err := s.Settle(s.ActiveID(), true); err != nil {
		t.Errorf("expected no-op, got %v", err)
	}
}

func TestSnapshotIsolation(t *testing.T) {
	s, _ := newTestStore()
	id := s.ActiveID()

	snap := s.Snapshot(id)
	snap.Messages[0].Content = "mutated"

	if s.Snapshot(id).Messages[0].Content == "mutated" {
		t.Error("snapshot mutation leaked into store")
	}
}

func TestConcurrentMutations(t *testing.T) {
	s, _ := newTestStore()
	id := s.ActiveID()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			s.PushMessage(id, model.NewMessage(model.RoleUser, "msg"))
		}()
		go func() {
			defer wg.Done()
			_ = s.Snapshot(id)
		}()
	}
	wg.Wait()

	if got := len(s.Snapshot(id).Messages); got != 11 {
		t.Errorf("expected 11 messages, got %d", got)
	}
}
