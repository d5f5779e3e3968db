// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"context"

	"github.com/jeranaias/slipstream/internal/openai"
)

// ClientTransport adapts the API client to the Transport interface.
type ClientTransport struct {
	Client *openai.Client
}

// OpenStream opens a streaming completion on the wrapped client.
func (t ClientTransport) OpenStream(ctx context.Context, chatModel string, messages []openai.ChatMessage) (EventSource, error) {
	s, err := t.Client.OpenStream(ctx, chatModel, messages)
	if err != nil {
		return nil, err
	}
	return s, nil
}
