// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import "strings"

// =============================================================================
// ROLE TYPE
// =============================================================================

// Role represents the sender of a message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// =============================================================================
// SENTINEL GLYPH
// =============================================================================

// Sentinel is the single reserved glyph appended to an in-progress
// assistant message so the renderer can show "still streaming". It is
// transient display state and never part of finalized content.
const Sentinel = "█"

// SentinelRune is Sentinel as a rune for per-character checks.
const SentinelRune = '█'

// StripSentinel removes a trailing run of sentinel glyphs.
func StripSentinel(s string) string {
	return strings.TrimRight(s, Sentinel)
}

// =============================================================================
// MESSAGE TYPE
// =============================================================================

// Message is a single turn in a conversation. History is stored and
// replaced wholesale as []Message, so Message stays a value type.
type Message struct {
	Role    Role    `json:"role"`
	Content Content `json:"content"`

	// Audio reference for synthesized speech replies.
	AudioID string `json:"audioId,omitempty"`
	IsAudio bool   `json:"isAudio,omitempty"`
}

// NewUserMessage creates a user message with scalar text content.
func NewUserMessage(text string) Message {
	return Message{Role: RoleUser, Content: TextContent(text)}
}

// NewAssistantMessage creates an assistant message with scalar text content.
func NewAssistantMessage(text string) Message {
	return Message{Role: RoleAssistant, Content: TextContent(text)}
}

// NewSystemMessage creates a system message.
func NewSystemMessage(text string) Message {
	return Message{Role: RoleSystem, Content: TextContent(text)}
}

// NewAudioMessage creates the assistant reply that references a stored
// audio blob.
func NewAudioMessage(audioID string) Message {
	return Message{
		Role:    RoleAssistant,
		Content: TextContent("Your audio file is ready."),
		AudioID: audioID,
		IsAudio: true,
	}
}

// Cleansed reduces the message to role and content only, the shape the
// completion API accepts. Structured parts pass through unmodified.
func (m Message) Cleansed() Message {
	return Message{Role: m.Role, Content: m.Content}
}

// InProgress reports whether the message content ends with the streaming
// sentinel, i.e. it is the transient live message of an open stream.
func (m Message) InProgress() bool {
	return m.Content.Kind == ContentText && strings.HasSuffix(m.Content.Text, Sentinel)
}

// Preview returns a one-line truncated preview of the message.
func (m Message) Preview(maxLen int) string {
	content := m.Content.Display()
	runes := []rune(content)
	if len(runes) <= maxLen {
		return content
	}
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}
