// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package document

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestTextExtractorReadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.txt")
	if err := os.WriteFile(path, []byte("line one\nline two"), 0600); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}

	text, err := TextExtractor{}.Extract(path)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if text != "line one\nline two" {
		t.Errorf("unexpected text %q", text)
	}
}

func TestTextExtractorMissingFile(t *testing.T) {
	if _, err := (TextExtractor{}).Extract(filepath.Join(t.TempDir(), "gone.txt")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestParsePDFDate(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"D:20240315120000Z", "2024-03-15"},
		{"D:20240315", "2024-03-15"},
		{"20240315", "2024-03-15"},
		{"D:2024", "Unknown Date"},
		{"", "Unknown Date"},
		{"D:notadate", "Unknown Date"},
		{"D:99999999", "Unknown Date"},
	}
	for _, tt := range tests {
		if got := ParsePDFDate(tt.in); got != tt.want {
			t.Errorf("ParsePDFDate(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestCountWords(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"", 0},
		{"   ", 0},
		{"one", 1},
		{"one two\tthree\nfour", 4},
		{"  padded   words  ", 2},
	}
	for _, tt := range tests {
		if got := CountWords(tt.in); got != tt.want {
			t.Errorf("CountWords(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestSummarizeFallbacks(t *testing.T) {
	s := Summarize("/tmp/report.pdf", "", "", "", "some body text")
	if s.Title != "report.pdf" {
		t.Errorf("missing title should fall back to file name, got %q", s.Title)
	}
	if s.Author != "Unknown" {
		t.Errorf("missing author should be Unknown, got %q", s.Author)
	}
	if s.CreationDate != "Unknown Date" {
		t.Errorf("missing date should be Unknown Date, got %q", s.CreationDate)
	}
	if s.Words != 3 {
		t.Errorf("expected 3 words, got %d", s.Words)
	}
}

func TestSummaryString(t *testing.T) {
	s := Summary{
		Title:        "Q3 Report",
		FileName:     "q3.pdf",
		Pages:        12,
		Words:        4500,
		Author:       "Finance",
		CreationDate: "2024-03-15",
		Text:         "Revenue grew.",
	}
	out := s.String()

	for _, want := range []string{
		`PDF titled "Q3 Report"`,
		`file name of "q3.pdf"`,
		"12 pages and 4500 words",
		`Author: "Finance"`,
		"creation date: 2024-03-15",
		"The extracted text is as follows: Revenue grew.",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q in %q", want, out)
		}
	}
}
