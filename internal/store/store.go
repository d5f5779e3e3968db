// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package store holds the in-memory conversation list and keeps it in
// sync with the persistent state store.
//
// All mutations go through the Store so that every change is written back
// under the "conversations" key before the in-memory view is updated.
package store

import (
	"fmt"
	"sync"

	"github.com/jeranaias/slipstream/internal/model"
	"github.com/jeranaias/slipstream/internal/storage"
)

// =============================================================================
// ERRORS
// =============================================================================

// ErrNoConversation is returned when a conversation index is out of range.
type ErrNoConversation struct {
	ID int
}

func (e ErrNoConversation) Error() string {
	return fmt.Sprintf("no conversation with index %d", e.ID)
}

// =============================================================================
// STORE
// =============================================================================

// Store is the conversation store. The zero-based slice index is the
// conversation identity; deleting a conversation shifts later identifiers.
type Store struct {
	mu            sync.Mutex
	conversations []model.Conversation
	selected      int
	state         *storage.StateStore
}

// Open loads the conversation list from the state store. A missing or
// empty list is seeded with a single default conversation.
func Open(state *storage.StateStore, defaultRole string) (*Store, error) {
	s := &Store{state: state}

	if err := state.Get(storage.KeyConversations, &s.conversations); err != nil {
		if err != storage.ErrKeyNotFound {
			return nil, fmt.Errorf("failed to load conversations: %w", err)
		}
	}
	if len(s.conversations) == 0 {
		s.conversations = []model.Conversation{model.NewConversation(defaultRole)}
		if err := s.persistLocked(); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// persistLocked writes the whole conversation list back to the state store.
// Callers must hold s.mu.
func (s *Store) persistLocked() error {
	return s.state.Set(storage.KeyConversations, s.conversations)
}

// Count returns the number of conversations.
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conversations)
}

// Selected returns the index of the active conversation.
func (s *Store) Selected() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selected
}

// Select makes the conversation at index id the active one.
func (s *Store) Select(id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id < 0 || id >= len(s.conversations) {
		return ErrNoConversation{ID: id}
	}
	s.selected = id
	return nil
}

// Conversation returns a copy of the conversation at index id.
func (s *Store) Conversation(id int) (model.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id < 0 || id >= len(s.conversations) {
		return model.Conversation{}, ErrNoConversation{ID: id}
	}
	return s.copyLocked(id), nil
}

// Conversations returns a copy of the full conversation list.
func (s *Store) Conversations() []model.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Conversation, len(s.conversations))
	for i := range s.conversations {
		out[i] = s.copyLocked(i)
	}
	return out
}

// copyLocked deep-copies one conversation so callers cannot alias the
// store's history slice. Callers must hold s.mu.
func (s *Store) copyLocked(id int) model.Conversation {
	c := s.conversations[id]
	c.History = append([]model.Message(nil), c.History...)
	return c
}

// History returns a copy of the message history for conversation id.
func (s *Store) History(id int) ([]model.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id < 0 || id >= len(s.conversations) {
		return nil, ErrNoConversation{ID: id}
	}
	return append([]model.Message(nil), s.conversations[id].History...), nil
}

// SetHistory wholesale-replaces the message history for conversation id
// and persists the change. On a persist failure the in-memory history is
// rolled back so memory and disk stay consistent.
func (s *Store) SetHistory(history []model.Message, id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id < 0 || id >= len(s.conversations) {
		return ErrNoConversation{ID: id}
	}

	prev := s.conversations[id].History
	s.conversations[id].History = append([]model.Message(nil), history...)
	if err := s.persistLocked(); err != nil {
		s.conversations[id].History = prev
		return err
	}
	return nil
}

// AppendMessage appends one message to conversation id and persists.
func (s *Store) AppendMessage(msg model.Message, id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id < 0 || id >= len(s.conversations) {
		return ErrNoConversation{ID: id}
	}

	prev := s.conversations[id].History
	s.conversations[id].History = append(append([]model.Message(nil), prev...), msg)
	if err := s.persistLocked(); err != nil {
		s.conversations[id].History = prev
		return err
	}
	return nil
}

// DeleteMessage removes the message at index from the active conversation.
// Later messages shift down by one.
func (s *Store) DeleteMessage(index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv := &s.conversations[s.selected]
	if index < 0 || index >= len(conv.History) {
		return fmt.Errorf("no message with index %d", index)
	}

	prev := conv.History
	next := make([]model.Message, 0, len(prev)-1)
	next = append(next, prev[:index]...)
	next = append(next, prev[index+1:]...)
	conv.History = next

	if err := s.persistLocked(); err != nil {
		conv.History = prev
		return err
	}
	return nil
}

// NewConversation appends a fresh conversation and selects it. If the
// last conversation is still empty it is reused instead of stacking
// another blank one.
func (s *Store) NewConversation(defaultRole string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if n := len(s.conversations); n > 0 && s.conversations[n-1].IsEmpty() {
		s.selected = n - 1
		return s.selected, nil
	}

	s.conversations = append(s.conversations, model.NewConversation(defaultRole))
	if err := s.persistLocked(); err != nil {
		s.conversations = s.conversations[:len(s.conversations)-1]
		return 0, err
	}
	s.selected = len(s.conversations) - 1
	return s.selected, nil
}

// DeleteConversation removes the conversation at index id. Identifiers of
// later conversations shift down by one. Deleting the last remaining
// conversation replaces it with a fresh default one.
func (s *Store) DeleteConversation(id int, defaultRole string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id < 0 || id >= len(s.conversations) {
		return ErrNoConversation{ID: id}
	}

	prev := s.conversations
	next := make([]model.Conversation, 0, len(prev)-1)
	next = append(next, prev[:id]...)
	next = append(next, prev[id+1:]...)
	if len(next) == 0 {
		next = append(next, model.NewConversation(defaultRole))
	}
	s.conversations = next

	if err := s.persistLocked(); err != nil {
		s.conversations = prev
		return err
	}

	if s.selected >= len(s.conversations) {
		s.selected = len(s.conversations) - 1
	} else if s.selected > id {
		s.selected--
	}
	return nil
}

// SetTitle sets the title of conversation id and persists.
func (s *Store) SetTitle(id int, title string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id < 0 || id >= len(s.conversations) {
		return ErrNoConversation{ID: id}
	}

	prev := s.conversations[id].Title
	s.conversations[id].Title = title
	if err := s.persistLocked(); err != nil {
		s.conversations[id].Title = prev
		return err
	}
	return nil
}

// SetAssistantRole sets the system prompt of conversation id and persists.
func (s *Store) SetAssistantRole(id int, role string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id < 0 || id >= len(s.conversations) {
		return ErrNoConversation{ID: id}
	}

	prev := s.conversations[id].AssistantRole
	s.conversations[id].AssistantRole = role
	if err := s.persistLocked(); err != nil {
		s.conversations[id].AssistantRole = prev
		return err
	}
	return nil
}

// AddTokens adds n to the per-conversation token counter and persists.
// The counter only ever grows; callers never subtract.
func (s *Store) AddTokens(id int, n float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id < 0 || id >= len(s.conversations) {
		return ErrNoConversation{ID: id}
	}

	prev := s.conversations[id].ConversationTokens
	s.conversations[id].ConversationTokens = prev + n
	if err := s.persistLocked(); err != nil {
		s.conversations[id].ConversationTokens = prev
		return err
	}
	return nil
}
