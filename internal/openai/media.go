// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// =============================================================================
// SPEECH SYNTHESIS
// =============================================================================

// speechRequest is the request body for the speech endpoint.
type speechRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
	Voice string `json:"voice"`
}

// Speech synthesizes input text and returns the raw audio bytes.
// A non-2xx response is an error; no audio is returned in that case.
func (c *Client) Speech(ctx context.Context, speechModel, voice, input string) ([]byte, error) {
	if !c.IsConfigured() {
		return nil, ErrNotConfigured
	}
	if err := c.wait(ctx); err != nil {
		return nil, err
	}

	reqBody := speechRequest{
		Model: speechModel,
		Input: input,
		Voice: voice,
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/audio/speech", bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(req)

	resp, err := sharedHTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, handleErrorResponse(resp.StatusCode, body)
	}
	return body, nil
}

// =============================================================================
// IMAGE GENERATION
// =============================================================================

// imageRequest is the request body for the image generation endpoint.
type imageRequest struct {
	Model   string `json:"model"`
	Prompt  string `json:"prompt"`
	N       int    `json:"n"`
	Size    string `json:"size"`
	Quality string `json:"quality,omitempty"`
}

// imageResponse is the response body for the image generation endpoint.
type imageResponse struct {
	Data []struct {
		URL           string `json:"url"`
		RevisedPrompt string `json:"revised_prompt"`
	} `json:"data"`
}

// GeneratedImage holds one image generation result.
type GeneratedImage struct {
	URL           string
	RevisedPrompt string
}

// GenerateImage requests a single image for the prompt and returns its URL.
func (c *Client) GenerateImage(ctx context.Context, imageModel, prompt, size, quality string) (*GeneratedImage, error) {
	if !c.IsConfigured() {
		return nil, ErrNotConfigured
	}
	if err := c.wait(ctx); err != nil {
		return nil, err
	}

	reqBody := imageRequest{
		Model:   imageModel,
		Prompt:  prompt,
		N:       1,
		Size:    size,
		Quality: quality,
	}

	body, err := c.post(ctx, "/images/generations", reqBody)
	if err != nil {
		return nil, err
	}

	var imgResp imageResponse
	if err := json.Unmarshal(body, &imgResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if len(imgResp.Data) == 0 {
		return nil, fmt.Errorf("image response contained no data")
	}

	return &GeneratedImage{
		URL:           imgResp.Data[0].URL,
		RevisedPrompt: imgResp.Data[0].RevisedPrompt,
	}, nil
}
