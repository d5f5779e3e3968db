// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package document turns uploaded files into opaque text blobs for
// document-grounded messages. The router only ever sees the finished
// summary string.
package document

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"
)

// Extractor produces a text summary from an uploaded file.
type Extractor interface {
	Extract(path string) (string, error)
}

// =============================================================================
// PLAIN TEXT
// =============================================================================

// TextExtractor reads plain text files verbatim.
type TextExtractor struct{}

// Extract returns the file's contents.
func (TextExtractor) Extract(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read document: %w", err)
	}
	return string(data), nil
}

// =============================================================================
// PDF METADATA SUMMARY
// =============================================================================

// Summary describes an extracted PDF for the model.
type Summary struct {
	Title        string
	FileName     string
	Pages        int
	Words        int
	Author       string
	CreationDate string
	Text         string
}

// String formats the summary sentence handed to the model as the
// document blob.
func (s Summary) String() string {
	return fmt.Sprintf(
		"The user uploaded a PDF titled %q with a file name of %q. It has %d pages and %d words. File metadata includes Author: %q and creation date: %s. The extracted text is as follows: %s",
		s.Title, s.FileName, s.Pages, s.Words, s.Author, s.CreationDate, s.Text,
	)
}

// Summarize builds a Summary from extracted text and PDF metadata.
// Missing title falls back to the file name; missing author to "Unknown".
func Summarize(path, title, author, rawDate, text string) Summary {
	name := filepath.Base(path)
	if title == "" {
		title = name
	}
	if author == "" {
		author = "Unknown"
	}
	return Summary{
		Title:        title,
		FileName:     name,
		Words:        CountWords(text),
		Author:       author,
		CreationDate: ParsePDFDate(rawDate),
		Text:         text,
	}
}

// CountWords counts whitespace-separated words.
func CountWords(text string) int {
	return len(strings.FieldsFunc(text, unicode.IsSpace))
}

// ParsePDFDate converts a PDF creation date ("D:YYYYMMDDHHmmSS...") to
// "YYYY-MM-DD". Anything unparseable yields "Unknown Date".
func ParsePDFDate(raw string) string {
	raw = strings.TrimPrefix(raw, "D:")
	if len(raw) < 8 {
		return "Unknown Date"
	}
	t, err := time.Parse("20060102", raw[:8])
	if err != nil {
		return "Unknown Date"
	}
	return t.Format("2006-01-02")
}
