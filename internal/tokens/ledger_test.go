// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tokens

import (
	"path/filepath"
	"testing"

	"github.com/jeranaias/slipstream/internal/model"
	"github.com/jeranaias/slipstream/internal/storage"
	"github.com/jeranaias/slipstream/internal/store"
)

func newTestLedger(t *testing.T) (*Ledger, *store.Store, *storage.StateStore) {
	t.Helper()
	state, err := storage.OpenStateStore(filepath.Join(t.TempDir(), "state.json"))
	if err != nil {
		t.Fatalf("failed to open state store: %v", err)
	}
	st, err := store.Open(state, "")
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	l, err := NewLedger(st, state)
	if err != nil {
		t.Fatalf("failed to create ledger: %v", err)
	}
	return l, st, state
}

func TestRecordCreditsBothCounters(t *testing.T) {
	l, st, _ := newTestLedger(t)

	if err := l.Record(0, Usage{TotalTokens: 30}); err != nil {
		t.Fatalf("record failed: %v", err)
	}
	if err := l.Record(0, Usage{TotalTokens: 12}); err != nil {
		t.Fatalf("record failed: %v", err)
	}

	conv, _ := st.Conversation(0)
	if conv.ConversationTokens != 42 {
		t.Errorf("expected 42 conversation tokens, got %f", conv.ConversationTokens)
	}
	if l.Combined() != 42 {
		t.Errorf("expected 42 combined tokens, got %f", l.Combined())
	}
}

func TestEstimateCharacterHeuristic(t *testing.T) {
	l, st, _ := newTestLedger(t)

	messages := []model.Message{
		model.NewSystemMessage("12345678"), // 8 chars
		model.NewUserMessage("1234"),       // 4 chars
	}
	if err := l.Estimate(0, messages, 10); err != nil {
		t.Fatalf("estimate failed: %v", err)
	}

	// (8 + 4 + 10) / 4 = 5.5, fractions kept.
	conv, _ := st.Conversation(0)
	if conv.ConversationTokens != 5.5 {
		t.Errorf("expected 5.5 estimated tokens, got %f", conv.ConversationTokens)
	}
	if l.Combined() != 5.5 {
		t.Errorf("expected 5.5 combined, got %f", l.Combined())
	}
}

func TestEstimateSkipsStructuredParts(t *testing.T) {
	l, st, _ := newTestLedger(t)

	parts := model.Message{
		Role: model.RoleUser,
		Content: model.PartsContent(
			model.TextPart("this text is not counted"),
			model.ImagePart("data:image/png;base64,AAAA"),
		),
	}
	if err := l.Estimate(0, []model.Message{parts}, 8); err != nil {
		t.Fatalf("estimate failed: %v", err)
	}

	// Only the stream buffer contributes: 8 / 4 = 2.
	conv, _ := st.Conversation(0)
	if conv.ConversationTokens != 2 {
		t.Errorf("expected 2 tokens from buffer only, got %f", conv.ConversationTokens)
	}
}

func TestCombinedPersistsAcrossReopen(t *testing.T) {
	l, _, state := newTestLedger(t)
	if err := l.Record(0, Usage{TotalTokens: 17}); err != nil {
		t.Fatalf("record failed: %v", err)
	}

	reopened, err := storage.OpenStateStore(state.Path())
	if err != nil {
		t.Fatalf("failed to reopen state: %v", err)
	}
	st2, err := store.Open(reopened, "")
	if err != nil {
		t.Fatalf("failed to reopen store: %v", err)
	}
	l2, err := NewLedger(st2, reopened)
	if err != nil {
		t.Fatalf("failed to reopen ledger: %v", err)
	}
	if l2.Combined() != 17 {
		t.Errorf("expected persisted combined total 17, got %f", l2.Combined())
	}
}

func TestZeroAddIsNoop(t *testing.T) {
	l, st, _ := newTestLedger(t)
	if err := l.Record(0, Usage{}); err != nil {
		t.Fatalf("record failed: %v", err)
	}
	conv, _ := st.Conversation(0)
	if conv.ConversationTokens != 0 || l.Combined() != 0 {
		t.Error("zero usage should not change counters")
	}
}
