// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

// =============================================================================
// CONVERSATION TYPE
// =============================================================================

// DefaultSystemRole is the seed role text for new conversations when the
// user has not configured one.
const DefaultSystemRole = "You are a helpful assistant."

// Conversation is one chat thread. Identity is positional: a conversation
// is addressed by its index in the stored list, which is only safe while
// the list is not reordered. The JSON field names are the persisted wire
// format and must stay stable across versions.
type Conversation struct {
	History            []Message `json:"history"`
	ConversationTokens float64   `json:"conversationTokens"`
	AssistantRole      string    `json:"assistantRole"`
	Title              string    `json:"title"`
}

// NewConversation creates an empty conversation seeded with a system role.
func NewConversation(assistantRole string) Conversation {
	if assistantRole == "" {
		assistantRole = DefaultSystemRole
	}
	return Conversation{
		History:       make([]Message, 0),
		AssistantRole: assistantRole,
	}
}

// IsEmpty reports whether the conversation has no messages yet.
func (c *Conversation) IsEmpty() bool {
	return len(c.History) == 0
}

// LastMessage returns the most recent message and true, or false if empty.
func (c *Conversation) LastMessage() (Message, bool) {
	if len(c.History) == 0 {
		return Message{}, false
	}
	return c.History[len(c.History)-1], true
}

// DisplayTitle returns the title or a placeholder for untitled threads.
func (c *Conversation) DisplayTitle() string {
	if c.Title != "" {
		return c.Title
	}
	return "New conversation"
}

// =============================================================================
// DEFAULT ASSISTANT ROLE
// =============================================================================

// AssistantRole is the persisted default system role: the prompt text and
// the role tag it is sent under.
type AssistantRole struct {
	Role string `json:"role"`
	Type string `json:"type"`
}

// DefaultAssistantRole returns the built-in default role.
func DefaultAssistantRole() AssistantRole {
	return AssistantRole{
		Role: DefaultSystemRole,
		Type: string(RoleSystem),
	}
}
