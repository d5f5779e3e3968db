// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package openai

import (
	"io"
	"strings"
	"testing"
)

func TestSSEReaderSingleEvent(t *testing.T) {
	r := NewSSEReader(strings.NewReader("data: hello\n\n"))
	data, err := r.ReadEvent()
	if err != nil {
		t.Fatalf("ReadEvent failed: %v", err)
	}
	if string(data) != "hello" {
		t.Errorf("expected %q, got %q", "hello", data)
	}
	if _, err := r.ReadEvent(); err != io.EOF {
		t.Errorf("expected io.EOF after stream end, got %v", err)
	}
}

func TestSSEReaderJoinsMultipleDataLines(t *testing.T) {
	r := NewSSEReader(strings.NewReader("data: line1\ndata: line2\n\n"))
	data, err := r.ReadEvent()
	if err != nil {
		t.Fatalf("ReadEvent failed: %v", err)
	}
	if string(data) != "line1\nline2" {
		t.Errorf("multi-line data should join with newline, got %q", data)
	}
}

func TestSSEReaderMultipleEvents(t *testing.T) {
	r := NewSSEReader(strings.NewReader("data: one\n\ndata: two\n\n"))
	for _, want := range []string{"one", "two"} {
		data, err := r.ReadEvent()
		if err != nil {
			t.Fatalf("ReadEvent failed: %v", err)
		}
		if string(data) != want {
			t.Errorf("expected %q, got %q", want, data)
		}
	}
}

func TestSSEReaderIgnoresNonDataFields(t *testing.T) {
	input := ": comment\nevent: message\nid: 7\ndata: payload\nretry: 1000\n\n"
	r := NewSSEReader(strings.NewReader(input))
	data, err := r.ReadEvent()
	if err != nil {
		t.Fatalf("ReadEvent failed: %v", err)
	}
	if string(data) != "payload" {
		t.Errorf("only data: lines should contribute, got %q", data)
	}
}

func TestSSEReaderHandlesCRLF(t *testing.T) {
	r := NewSSEReader(strings.NewReader("data: crlf\r\n\r\n"))
	data, err := r.ReadEvent()
	if err != nil {
		t.Fatalf("ReadEvent failed: %v", err)
	}
	if string(data) != "crlf" {
		t.Errorf("CR must be stripped, got %q", data)
	}
}

func TestSSEReaderFlushesPendingDataOnEOF(t *testing.T) {
	// Final event terminated by EOF instead of a blank line.
	r := NewSSEReader(strings.NewReader("data: [DONE]\n"))
	data, err := r.ReadEvent()
	if err != nil {
		t.Fatalf("ReadEvent failed: %v", err)
	}
	if string(data) != "[DONE]" {
		t.Errorf("pending data should flush at EOF, got %q", data)
	}
	if _, err := r.ReadEvent(); err != io.EOF {
		t.Errorf("expected io.EOF, got %v", err)
	}
}

func TestSSEReaderSkipsLeadingBlankLines(t *testing.T) {
	r := NewSSEReader(strings.NewReader("\n\ndata: late\n\n"))
	data, err := r.ReadEvent()
	if err != nil {
		t.Fatalf("ReadEvent failed: %v", err)
	}
	if string(data) != "late" {
		t.Errorf("expected %q, got %q", "late", data)
	}
}
