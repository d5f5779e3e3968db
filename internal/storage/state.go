// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage provides persistent state for slipstream: a key-value
// state file holding all session state, and a blob store for synthesized
// audio.
package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/jeranaias/slipstream/internal/util"
)

// =============================================================================
// STATE KEYS
// =============================================================================

// Fixed keys of the persisted state layout. Every value is stored as
// serialized JSON text; the set of names is the on-disk contract.
const (
	KeyAPIKey               = "api_key"
	KeyCombinedTokens       = "combined_tokens"
	KeyDefaultAssistantRole = "default_assistant_role"
	KeyConversations        = "conversations"
	KeySelectedModel        = "selectedModel"
	KeySelectedVoice        = "selectedVoice"
	KeySelectedSize         = "selectedSize"
	KeySelectedQuality      = "selectedQuality"
	KeySelectedMode         = "selectedMode"
	KeyShowTokens           = "show_tokens"
)

// ErrKeyNotFound is returned when a state key has never been written.
var ErrKeyNotFound = errors.New("state key not found")

// =============================================================================
// STATE STORE
// =============================================================================

// StateStore is a small persistent key-value store, one JSON document on
// disk. Every Set persists the whole document atomically, so callers get
// exactly one deliberate persistence point per mutation and a
// PersistenceError surfaces there instead of inside an ambient
// subscription side effect.
type StateStore struct {
	mu     sync.Mutex
	path   string
	values map[string]json.RawMessage
}

// OpenStateStore loads the state file at path, creating an empty store if
// the file does not exist yet.
func OpenStateStore(path string) (*StateStore, error) {
	s := &StateStore{
		path:   path,
		values: make(map[string]json.RawMessage),
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("failed to read state file: %w", err)
	}

	if err := json.Unmarshal(data, &s.values); err != nil {
		return nil, fmt.Errorf("failed to parse state file: %w", err)
	}

	return s, nil
}

// DefaultStatePath returns the state file path under the config directory.
func DefaultStatePath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".slipstream", "state.json"), nil
}

// Get unmarshals the value stored under key into out. Returns
// ErrKeyNotFound if the key has never been set.
func (s *StateStore) Get(key string, out interface{}) error {
	s.mu.Lock()
	raw, ok := s.values[key]
	s.mu.Unlock()

	if !ok {
		return ErrKeyNotFound
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to decode state key %q: %w", key, err)
	}
	return nil
}

// Set stores value under key and persists the whole store. The in-memory
// value is only committed once the write succeeds, keeping memory and disk
// in agreement.
func (s *StateStore) Set(key string, value interface{}) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode state key %q: %w", key, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	prev, hadPrev := s.values[key]
	s.values[key] = raw

	if err := s.persistLocked(); err != nil {
		// Roll back so a failed write does not leave memory ahead of disk.
		if hadPrev {
			s.values[key] = prev
		} else {
			delete(s.values, key)
		}
		return err
	}
	return nil
}

// Has reports whether key has been written.
func (s *StateStore) Has(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.values[key]
	return ok
}

// Path returns the backing file path.
func (s *StateStore) Path() string {
	return s.path
}

// persistLocked writes the store to disk. Caller holds s.mu.
func (s *StateStore) persistLocked() error {
	data, err := json.MarshalIndent(s.values, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode state: %w", err)
	}
	if err := util.AtomicWriteFile(s.path, data, 0600); err != nil {
		return fmt.Errorf("failed to persist state: %w", err)
	}
	return nil
}
