// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package openai

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// STREAMING: Robust SSE parsing with error handling

// MaxChunkSize is the maximum allowed size for a single SSE event (64KB)
const MaxChunkSize = 64 * 1024

// =============================================================================
// SSE READER
// =============================================================================

// SSEReader parses Server-Sent Events from a stream.
type SSEReader struct {
	reader *bufio.Reader
}

// NewSSEReader creates a new SSE reader from an io.Reader.
func NewSSEReader(r io.Reader) *SSEReader {
	return &SSEReader{
		reader: bufio.NewReader(r),
	}
}

// ReadEvent reads the next SSE event and returns its joined data payload.
// Returns io.EOF when the stream ends.
func (s *SSEReader) ReadEvent() ([]byte, error) {
	var dataLines [][]byte

	for {
		line, err := s.reader.ReadBytes('\n')
		if err != nil {
			if err == io.EOF {
				// If we have data, return it before EOF
				if len(dataLines) > 0 {
					return bytes.Join(dataLines, []byte("\n")), nil
				}
				return nil, io.EOF
			}
			return nil, err
		}

		line = bytes.TrimRight(line, "\r\n")

		// Empty line signals end of event
		if len(line) == 0 {
			if len(dataLines) > 0 {
				return bytes.Join(dataLines, []byte("\n")), nil
			}
			continue
		}

		if bytes.HasPrefix(line, []byte("data:")) {
			data := bytes.TrimSpace(line[5:])
			if len(data) > MaxChunkSize {
				return nil, fmt.Errorf("SSE event exceeds %d bytes", MaxChunkSize)
			}
			dataLines = append(dataLines, data)
		}
		// Ignore other fields (event:, id:, retry:, comments starting with :)
	}
}

// =============================================================================
// STREAM HANDLE
// =============================================================================

// Stream is an open streaming completion response. Callers must Close it.
type Stream struct {
	body   io.ReadCloser
	reader *SSEReader
}

// ReadEvent returns the next raw SSE data payload as a string.
// Returns io.EOF when the underlying stream ends.
func (s *Stream) ReadEvent() (string, error) {
	data, err := s.reader.ReadEvent()
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Close closes the underlying response body. Closing mid-stream makes a
// pending ReadEvent return an error, which is how cancellation unblocks
// the reader.
func (s *Stream) Close() error {
	return s.body.Close()
}

// OpenStream performs a streaming chat completion request and returns the
// open stream. The caller drains events until "[DONE]" or an error.
func (c *Client) OpenStream(ctx context.Context, chatModel string, messages []ChatMessage) (*Stream, error) {
	if !c.IsConfigured() {
		return nil, ErrNotConfigured
	}
	if err := c.wait(ctx); err != nil {
		return nil, err
	}

	reqBody := ChatRequest{
		Model:    chatModel,
		Messages: messages,
		Stream:   true,
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	c.setHeaders(req)
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	// PERFORMANCE: Shared streaming client with connection pooling (timeout handled via context)
	resp, err := sharedStreamingClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize))
		resp.Body.Close()
		return nil, handleErrorResponse(resp.StatusCode, body)
	}

	return &Stream{
		body:   resp.Body,
		reader: NewSSEReader(resp.Body),
	}, nil
}
