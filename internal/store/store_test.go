// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"path/filepath"
	"testing"

	"github.com/jeranaias/slipstream/internal/model"
	"github.com/jeranaias/slipstream/internal/storage"
)

func newTestStore(t *testing.T) (*Store, *storage.StateStore) {
	t.Helper()
	state, err := storage.OpenStateStore(filepath.Join(t.TempDir(), "state.json"))
	if err != nil {
		t.Fatalf("failed to open state store: %v", err)
	}
	st, err := Open(state, "")
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	return st, state
}

func TestOpenSeedsDefaultConversation(t *testing.T) {
	st, _ := newTestStore(t)
	if st.Count() != 1 {
		t.Fatalf("expected one seeded conversation, got %d", st.Count())
	}
	conv, err := st.Conversation(0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if conv.AssistantRole != model.DefaultSystemRole {
		t.Errorf("expected default role, got %q", conv.AssistantRole)
	}
}

func TestOpenReloadsPersistedConversations(t *testing.T) {
	st, state := newTestStore(t)
	if err := st.AppendMessage(model.NewUserMessage("Hello"), 0); err != nil {
		t.Fatalf("append failed: %v", err)
	}
	if err := st.SetTitle(0, "Greeting"); err != nil {
		t.Fatalf("set title failed: %v", err)
	}

	// Re-open over the same file.
	reopened, err := storage.OpenStateStore(state.Path())
	if err != nil {
		t.Fatalf("failed to reopen state: %v", err)
	}
	st2, err := Open(reopened, "")
	if err != nil {
		t.Fatalf("failed to reopen store: %v", err)
	}

	conv, err := st2.Conversation(0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if conv.Title != "Greeting" {
		t.Errorf("expected persisted title, got %q", conv.Title)
	}
	if len(conv.History) != 1 || conv.History[0].Content.Display() != "Hello" {
		t.Errorf("expected persisted history, got %+v", conv.History)
	}
}

func TestSetHistoryReplacesWholesale(t *testing.T) {
	st, _ := newTestStore(t)
	first := []model.Message{model.NewUserMessage("a"), model.NewAssistantMessage("b")}
	if err := st.SetHistory(first, 0); err != nil {
		t.Fatalf("set history failed: %v", err)
	}
	second := []model.Message{model.NewUserMessage("only")}
	if err := st.SetHistory(second, 0); err != nil {
		t.Fatalf("set history failed: %v", err)
	}

	history, err := st.History(0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(history) != 1 || history[0].Content.Display() != "only" {
		t.Errorf("expected wholesale replacement, got %+v", history)
	}
}

func TestSetHistoryUnknownConversation(t *testing.T) {
	st, _ := newTestStore(t)
	err := st.SetHistory(nil, 7)
	if err == nil {
		t.Fatal("expected error for unknown conversation")
	}
	if _, ok := err.(ErrNoConversation); !ok {
		t.Errorf("expected ErrNoConversation, got %T", err)
	}
}

func TestDeleteMessageShiftsIndices(t *testing.T) {
	st, _ := newTestStore(t)
	history := []model.Message{
		model.NewUserMessage("one"),
		model.NewAssistantMessage("two"),
		model.NewUserMessage("three"),
	}
	if err := st.SetHistory(history, 0); err != nil {
		t.Fatalf("set history failed: %v", err)
	}

	if err := st.DeleteMessage(1); err != nil {
		t.Fatalf("delete failed: %v", err)
	}

	got, _ := st.History(0)
	if len(got) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(got))
	}
	if got[0].Content.Display() != "one" || got[1].Content.Display() != "three" {
		t.Errorf("expected later messages to shift down, got %+v", got)
	}

	if err := st.DeleteMessage(5); err == nil {
		t.Error("expected error for out-of-range index")
	}
}

func TestNewConversationReusesTrailingEmpty(t *testing.T) {
	st, _ := newTestStore(t)

	// The seeded conversation is empty, so "new" reuses it.
	id, err := st.NewConversation("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != 0 || st.Count() != 1 {
		t.Errorf("expected reuse of the empty conversation, got id=%d count=%d", id, st.Count())
	}

	if err := st.AppendMessage(model.NewUserMessage("hi"), 0); err != nil {
		t.Fatalf("append failed: %v", err)
	}
	id, err = st.NewConversation("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != 1 || st.Count() != 2 {
		t.Errorf("expected a fresh conversation, got id=%d count=%d", id, st.Count())
	}
	if st.Selected() != 1 {
		t.Errorf("new conversation should be selected, got %d", st.Selected())
	}
}

func TestDeleteConversationAdjustsSelection(t *testing.T) {
	st, _ := newTestStore(t)
	st.AppendMessage(model.NewUserMessage("a"), 0)
	st.NewConversation("")
	st.AppendMessage(model.NewUserMessage("b"), 1)
	st.NewConversation("")

	if st.Count() != 3 {
		t.Fatalf("expected 3 conversations, got %d", st.Count())
	}
	st.Select(2)

	if err := st.DeleteConversation(0, ""); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if st.Count() != 2 {
		t.Errorf("expected 2 conversations, got %d", st.Count())
	}
	if st.Selected() != 1 {
		t.Errorf("selection should shift down with the list, got %d", st.Selected())
	}
}

func TestDeleteLastConversationReseeds(t *testing.T) {
	st, _ := newTestStore(t)
	if err := st.DeleteConversation(0, "custom role"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if st.Count() != 1 {
		t.Fatalf("expected reseeded conversation, got %d", st.Count())
	}
	conv, _ := st.Conversation(0)
	if conv.AssistantRole != "custom role" {
		t.Errorf("expected reseed with given role, got %q", conv.AssistantRole)
	}
}

func TestAddTokensAccumulates(t *testing.T) {
	st, _ := newTestStore(t)
	st.AddTokens(0, 10.5)
	st.AddTokens(0, 2.25)
	conv, _ := st.Conversation(0)
	if conv.ConversationTokens != 12.75 {
		t.Errorf("expected 12.75 tokens, got %f", conv.ConversationTokens)
	}
}

func TestHistoryReturnsCopy(t *testing.T) {
	st, _ := newTestStore(t)
	st.SetHistory([]model.Message{model.NewUserMessage("orig")}, 0)

	history, _ := st.History(0)
	history[0] = model.NewUserMessage("mutated")

	fresh, _ := st.History(0)
	if fresh[0].Content.Display() != "orig" {
		t.Error("mutating a returned history must not affect the store")
	}
}
