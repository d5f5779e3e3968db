// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package title labels conversations after their first exchange with a
// one-shot, non-streamed completion.
package title

import (
	"context"
	"fmt"
	"strings"

	"github.com/jeranaias/slipstream/internal/model"
	"github.com/jeranaias/slipstream/internal/openai"
	"github.com/jeranaias/slipstream/internal/store"
	"github.com/jeranaias/slipstream/internal/tokens"
)

// Prompt asks the model for a short reference title.
const Prompt = "Generate a title for this conversation, so I can easily reference it later. Maximum 6 words. Don't provide anything other than the title. Don't use quotes."

// DefaultModel is the one-shot model used for title generation.
const DefaultModel = "gpt-4-turbo-preview"

// Generator produces and stores conversation titles.
type Generator struct {
	client *openai.Client
	store  *store.Store
	ledger *tokens.Ledger
	model  string
}

// NewGenerator creates a generator using the given completion client.
// An empty titleModel falls back to DefaultModel.
func NewGenerator(client *openai.Client, st *store.Store, ledger *tokens.Ledger, titleModel string) *Generator {
	if titleModel == "" {
		titleModel = DefaultModel
	}
	return &Generator{
		client: client,
		store:  st,
		ledger: ledger,
		model:  titleModel,
	}
}

// Generate requests a title for conversation id from its opening user
// input and persists it. Server-reported usage is credited to the
// ledger. Callers run this asynchronously and must not surface failures
// into chat history.
func (g *Generator) Generate(ctx context.Context, id int, systemRole, userInput string) error {
	messages := []openai.ChatMessage{
		{Role: string(model.RoleSystem), Content: model.TextContent(systemRole)},
		{Role: string(model.RoleUser), Content: model.TextContent(userInput)},
		{Role: string(model.RoleUser), Content: model.TextContent(Prompt)},
	}

	resp, err := g.client.CreateCompletion(ctx, g.model, messages)
	if err != nil {
		return fmt.Errorf("title generation failed: %w", err)
	}

	if err := g.ledger.Record(id, tokens.Usage{
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		TotalTokens:      resp.Usage.TotalTokens,
	}); err != nil {
		return err
	}

	title := strings.TrimSpace(resp.Content())
	if title == "" {
		return fmt.Errorf("title generation returned empty content")
	}
	return g.store.SetTitle(id, title)
}
