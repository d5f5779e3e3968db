// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"errors"
	"fmt"
)

// ErrStreamActive is returned when a stream is started while another is
// still open. Only one session may be active system-wide.
var ErrStreamActive = errors.New("a stream is already active")

// OpenError indicates the stream failed to start. There is no partial
// text to reconcile; callers substitute a fixed apologetic assistant
// message into history.
type OpenError struct {
	Err error
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("failed to open stream: %v", e.Err)
}

func (e *OpenError) Unwrap() error {
	return e.Err
}

// ParseError indicates a malformed chunk arrived mid-stream. Terminal
// for the stream; the partial buffer is discarded.
type ParseError struct {
	Payload string
	Err     error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse stream chunk: %v", e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// TransportError indicates the connection failed mid-stream before the
// done marker. Handled like a parse error: partial buffer discarded.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("stream transport failed: %v", e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
