// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package title

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/jeranaias/slipstream/internal/model"
	"github.com/jeranaias/slipstream/internal/openai"
	"github.com/jeranaias/slipstream/internal/store"
	"github.com/jeranaias/slipstream/internal/storage"
	"github.com/jeranaias/slipstream/internal/tokens"
)

func newTestFixtures(t *testing.T) (*store.Store, *tokens.Ledger) {
	t.Helper()
	state, err := storage.OpenStateStore(filepath.Join(t.TempDir(), "state.json"))
	if err != nil {
		t.Fatalf("failed to open state store: %v", err)
	}
	st, err := store.Open(state, model.DefaultSystemRole)
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	ledger, err := tokens.NewLedger(st, state)
	if err != nil {
		t.Fatalf("failed to open ledger: %v", err)
	}
	return st, ledger
}

func TestGeneratePersistsTrimmedTitle(t *testing.T) {
	var gotReq openai.ChatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}
		fmt.Fprint(w, `{
			"choices": [{"message": {"role": "assistant", "content": "  Fox Facts  "}, "finish_reason": "stop"}],
			"usage": {"prompt_tokens": 20, "completion_tokens": 3, "total_tokens": 23}
		}`)
	}))
	defer srv.Close()

	st, ledger := newTestFixtures(t)
	client := openai.NewClient("sk-test").WithBaseURL(srv.URL)
	gen := NewGenerator(client, st, ledger, "")

	if err := gen.Generate(context.Background(), 0, model.DefaultSystemRole, "Tell me about foxes"); err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	conv, err := st.Conversation(0)
	if err != nil {
		t.Fatalf("failed to load conversation: %v", err)
	}
	if conv.Title != "Fox Facts" {
		t.Errorf("expected trimmed title %q, got %q", "Fox Facts", conv.Title)
	}
	if conv.ConversationTokens != 23 {
		t.Errorf("expected 23 tokens credited, got %v", conv.ConversationTokens)
	}

	if gotReq.Model != DefaultModel {
		t.Errorf("expected default title model, got %q", gotReq.Model)
	}
	if len(gotReq.Messages) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(gotReq.Messages))
	}
	if gotReq.Messages[2].Content.Text != Prompt {
		t.Errorf("last message must be the title prompt, got %q", gotReq.Messages[2].Content.Text)
	}
	if gotReq.Stream {
		t.Error("title generation must not stream")
	}
}

func TestGenerateEmptyTitleIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{
			"choices": [{"message": {"role": "assistant", "content": "   "}, "finish_reason": "stop"}],
			"usage": {"prompt_tokens": 20, "completion_tokens": 0, "total_tokens": 20}
		}`)
	}))
	defer srv.Close()

	st, ledger := newTestFixtures(t)
	client := openai.NewClient("sk-test").WithBaseURL(srv.URL)
	gen := NewGenerator(client, st, ledger, "gpt-4o")

	if err := gen.Generate(context.Background(), 0, model.DefaultSystemRole, "hi"); err == nil {
		t.Fatal("expected error for empty title")
	}

	conv, err := st.Conversation(0)
	if err != nil {
		t.Fatalf("failed to load conversation: %v", err)
	}
	if conv.Title != "" {
		t.Errorf("title must stay empty, got %q", conv.Title)
	}
}

func TestGenerateRequestFailureLeavesTitleUnset(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, `{"error": {"message": "boom"}}`)
	}))
	defer srv.Close()

	st, ledger := newTestFixtures(t)
	client := openai.NewClient("sk-test").WithBaseURL(srv.URL)
	gen := NewGenerator(client, st, ledger, "gpt-4o")

	if err := gen.Generate(context.Background(), 0, model.DefaultSystemRole, "hi"); err == nil {
		t.Fatal("expected error")
	}

	conv, err := st.Conversation(0)
	if err != nil {
		t.Fatalf("failed to load conversation: %v", err)
	}
	if conv.Title != "" || conv.ConversationTokens != 0 {
		t.Errorf("failed generation must leave conversation untouched: %+v", conv)
	}
}
