// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"errors"
	"sync"
)

// =============================================================================
// SETTINGS
// =============================================================================

// Built-in defaults used when a setting has never been persisted.
const (
	DefaultModel   = "gpt-3.5-turbo"
	DefaultVoice   = "alloy"
	DefaultSize    = "1024x1024"
	DefaultQuality = "standard"
	DefaultMode    = "GPT"
)

// Settings exposes the user-selected model, voice, image size/quality,
// mode and display toggles, each persisted under its own state key.
type Settings struct {
	mu    sync.Mutex
	state *StateStore

	model      string
	voice      string
	size       string
	quality    string
	mode       string
	showTokens bool
}

// LoadSettings reads selections from the state store, falling back to
// defaults for keys that were never written.
func LoadSettings(state *StateStore) *Settings {
	s := &Settings{
		state:   state,
		model:   DefaultModel,
		voice:   DefaultVoice,
		size:    DefaultSize,
		quality: DefaultQuality,
		mode:    DefaultMode,
	}
	loadString(state, KeySelectedModel, &s.model)
	loadString(state, KeySelectedVoice, &s.voice)
	loadString(state, KeySelectedSize, &s.size)
	loadString(state, KeySelectedQuality, &s.quality)
	loadString(state, KeySelectedMode, &s.mode)

	var show bool
	if err := state.Get(KeyShowTokens, &show); err == nil {
		s.showTokens = show
	}
	return s
}

func loadString(state *StateStore, key string, dst *string) {
	var v string
	if err := state.Get(key, &v); err == nil && v != "" {
		*dst = v
	} else if err != nil && !errors.Is(err, ErrKeyNotFound) {
		// Corrupt value: keep default rather than fail startup.
		return
	}
}

// Model returns the selected completion model.
func (s *Settings) Model() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.model
}

// SetModel selects a model and persists the choice.
func (s *Settings) SetModel(model string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.state.Set(KeySelectedModel, model); err != nil {
		return err
	}
	s.model = model
	return nil
}

// Voice returns the selected speech synthesis voice.
func (s *Settings) Voice() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.voice
}

// SetVoice selects a voice and persists the choice.
func (s *Settings) SetVoice(voice string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.state.Set(KeySelectedVoice, voice); err != nil {
		return err
	}
	s.voice = voice
	return nil
}

// Size returns the selected image generation size.
func (s *Settings) Size() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.size
}

// SetSize selects an image size and persists the choice.
func (s *Settings) SetSize(size string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.state.Set(KeySelectedSize, size); err != nil {
		return err
	}
	s.size = size
	return nil
}

// Quality returns the selected image generation quality.
func (s *Settings) Quality() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.quality
}

// SetQuality selects an image quality and persists the choice.
func (s *Settings) SetQuality(quality string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.state.Set(KeySelectedQuality, quality); err != nil {
		return err
	}
	s.quality = quality
	return nil
}

// Mode returns the selected client mode.
func (s *Settings) Mode() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// SetMode selects a mode and persists the choice.
func (s *Settings) SetMode(mode string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.state.Set(KeySelectedMode, mode); err != nil {
		return err
	}
	s.mode = mode
	return nil
}

// ShowTokens returns the token display toggle.
func (s *Settings) ShowTokens() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.showTokens
}

// SetShowTokens persists the token display toggle.
func (s *Settings) SetShowTokens(show bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.state.Set(KeyShowTokens, show); err != nil {
		return err
	}
	s.showTokens = show
	return nil
}
