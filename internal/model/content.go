// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for conversations and messages.
package model

import (
	"encoding/json"
	"strings"
)

// =============================================================================
// CONTENT VARIANT
// =============================================================================

// ContentKind tags the two shapes message content can take on the wire:
// a plain string, or an array of typed parts (vision messages mix text
// and image parts in one message).
type ContentKind int

const (
	// ContentText is scalar string content.
	ContentText ContentKind = iota
	// ContentParts is structured multi-part content.
	ContentParts
)

// Part types used in structured content.
const (
	PartTypeText     = "text"
	PartTypeImageURL = "image_url"
)

// ImageRef holds an image reference, typically a base64 data URI.
type ImageRef struct {
	URL string `json:"url"`
}

// Part is one element of structured message content.
type Part struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageRef `json:"image_url,omitempty"`
}

// TextPart builds a text part.
func TextPart(text string) Part {
	return Part{Type: PartTypeText, Text: text}
}

// ImagePart builds an image part from a data URI or URL.
func ImagePart(url string) Part {
	return Part{Type: PartTypeImageURL, ImageURL: &ImageRef{URL: url}}
}

// Content is a tagged variant over the string-or-parts union the API uses
// for message content. All cleansing and length logic switches on Kind
// instead of probing runtime shapes.
type Content struct {
	Kind  ContentKind
	Text  string
	Parts []Part
}

// TextContent builds scalar string content.
func TextContent(text string) Content {
	return Content{Kind: ContentText, Text: text}
}

// PartsContent builds structured content from parts.
func PartsContent(parts ...Part) Content {
	return Content{Kind: ContentParts, Parts: parts}
}

// IsEmpty reports whether the content carries nothing.
func (c Content) IsEmpty() bool {
	switch c.Kind {
	case ContentParts:
		return len(c.Parts) == 0
	default:
		return c.Text == ""
	}
}

// ScalarLen returns the character count that feeds the token heuristic.
// Structured parts are not traversed; only scalar string content counts.
func (c Content) ScalarLen() int {
	if c.Kind == ContentText {
		return len(c.Text)
	}
	return 0
}

// Display returns a human-readable rendition of the content. Image parts
// collapse to a placeholder so previews stay one line of text.
func (c Content) Display() string {
	if c.Kind == ContentText {
		return c.Text
	}
	var sb strings.Builder
	for i, p := range c.Parts {
		if i > 0 {
			sb.WriteString(" ")
		}
		switch p.Type {
		case PartTypeText:
			sb.WriteString(p.Text)
		case PartTypeImageURL:
			sb.WriteString("[image]")
		}
	}
	return sb.String()
}

// AsParts returns the content in parts form, wrapping scalar text in a
// single text part. Vision requests send history in this shape.
func (c Content) AsParts() Content {
	if c.Kind == ContentParts {
		return c
	}
	return PartsContent(TextPart(c.Text))
}

// MarshalJSON writes scalar content as a JSON string and structured
// content as a JSON array, matching the wire format.
func (c Content) MarshalJSON() ([]byte, error) {
	if c.Kind == ContentParts {
		return json.Marshal(c.Parts)
	}
	return json.Marshal(c.Text)
}

// UnmarshalJSON accepts either wire shape. Non-string scalars are coerced
// to their literal text so round-trips never lose a value.
func (c *Content) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "[") {
		var parts []Part
		if err := json.Unmarshal(data, &parts); err != nil {
			return err
		}
		*c = Content{Kind: ContentParts, Parts: parts}
		return nil
	}

	var text string
	if err := json.Unmarshal(data, &text); err == nil {
		*c = Content{Kind: ContentText, Text: text}
		return nil
	}

	// Scalar but not a string (number, bool, null): keep its literal form.
	if trimmed == "null" {
		trimmed = ""
	}
	*c = Content{Kind: ContentText, Text: trimmed}
	return nil
}
