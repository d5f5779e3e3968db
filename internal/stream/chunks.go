// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"encoding/json"
	"io"
	"strings"
)

// DoneMarker is the literal end-of-stream event payload.
const DoneMarker = "[DONE]"

// Chunk is one parsed streaming completion event.
type Chunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
			Role    string `json:"role,omitempty"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage *struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage,omitempty"`
}

// Delta returns the incremental text of the first choice, or "".
// Role-only and finish-reason-only events carry no delta.
func (c *Chunk) Delta() string {
	if len(c.Choices) > 0 {
		return c.Choices[0].Delta.Content
	}
	return ""
}

// extractChunks splits one event payload into its constituent JSON
// objects. The transport may coalesce several server events into a
// single delivery, so the payload can hold one or more concatenated
// objects; each is decoded independently.
func extractChunks(payload string) ([]Chunk, error) {
	dec := json.NewDecoder(strings.NewReader(payload))

	var chunks []Chunk
	for {
		var c Chunk
		if err := dec.Decode(&c); err != nil {
			if err == io.EOF {
				return chunks, nil
			}
			return nil, err
		}
		chunks = append(chunks, c)
	}
}
