// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/slipstream/internal/model"
)

func newTestState(t *testing.T) *StateStore {
	t.Helper()
	s, err := OpenStateStore(filepath.Join(t.TempDir(), "state.json"))
	require.NoError(t, err)
	return s
}

func TestStateSetGetRoundTrip(t *testing.T) {
	s := newTestState(t)

	require.NoError(t, s.Set(KeyAPIKey, "sk-test"))
	var key string
	require.NoError(t, s.Get(KeyAPIKey, &key))
	assert.Equal(t, "sk-test", key)

	require.NoError(t, s.Set(KeyCombinedTokens, 12.5))
	var combined float64
	require.NoError(t, s.Get(KeyCombinedTokens, &combined))
	assert.Equal(t, 12.5, combined)
}

func TestStateMissingKey(t *testing.T) {
	s := newTestState(t)
	var out string
	err := s.Get("nonexistent", &out)
	assert.ErrorIs(t, err, ErrKeyNotFound)
	assert.False(t, s.Has("nonexistent"))
}

func TestStatePersistsAcrossReopen(t *testing.T) {
	s := newTestState(t)
	require.NoError(t, s.Set(KeySelectedModel, "gpt-4-turbo"))

	reopened, err := OpenStateStore(s.Path())
	require.NoError(t, err)
	var m string
	require.NoError(t, reopened.Get(KeySelectedModel, &m))
	assert.Equal(t, "gpt-4-turbo", m)
}

// Conversation round-trip must be lossless: every schema field survives
// serialization through the state store.
func TestStateConversationRoundTripLossless(t *testing.T) {
	s := newTestState(t)

	conv := model.Conversation{
		History: []model.Message{
			model.NewSystemMessage("You are terse."),
			model.NewUserMessage("Hello"),
			model.NewAssistantMessage("Hi there"),
			model.NewAudioMessage("audio-1700000000000-42"),
			{
				Role: model.RoleUser,
				Content: model.PartsContent(
					model.TextPart("what is this"),
					model.ImagePart("data:image/png;base64,AAAA"),
				),
			},
		},
		ConversationTokens: 13.75,
		AssistantRole:      "You are terse.",
		Title:              "Greetings",
	}

	require.NoError(t, s.Set(KeyConversations, []model.Conversation{conv}))

	reopened, err := OpenStateStore(s.Path())
	require.NoError(t, err)

	var got []model.Conversation
	require.NoError(t, reopened.Get(KeyConversations, &got))
	require.Len(t, got, 1)
	assert.Equal(t, conv, got[0])
}

func TestStateDefaultAssistantRole(t *testing.T) {
	s := newTestState(t)
	role := model.AssistantRole{Role: "You are a pirate.", Type: "system"}
	require.NoError(t, s.Set(KeyDefaultAssistantRole, role))

	var got model.AssistantRole
	require.NoError(t, s.Get(KeyDefaultAssistantRole, &got))
	assert.Equal(t, role, got)
}

func TestSettingsDefaultsAndPersistence(t *testing.T) {
	s := newTestState(t)

	settings := LoadSettings(s)
	assert.Equal(t, DefaultModel, settings.Model())
	assert.Equal(t, DefaultVoice, settings.Voice())
	assert.Equal(t, DefaultSize, settings.Size())
	assert.Equal(t, DefaultQuality, settings.Quality())
	assert.Equal(t, DefaultMode, settings.Mode())
	assert.False(t, settings.ShowTokens())

	require.NoError(t, settings.SetModel("gpt-4-vision-preview"))
	require.NoError(t, settings.SetShowTokens(true))

	reopened, err := OpenStateStore(s.Path())
	require.NoError(t, err)
	fresh := LoadSettings(reopened)
	assert.Equal(t, "gpt-4-vision-preview", fresh.Model())
	assert.True(t, fresh.ShowTokens())
}
