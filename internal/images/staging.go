// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package images holds the attachment staging area for vision messages.
//
// Images are staged as base64 data URIs before a send; the vision path
// attaches everything staged and clears the area once the exchange
// settles.
package images

import "sync"

// Staging is the image attachment staging area.
type Staging struct {
	mu   sync.Mutex
	uris []string
}

// NewStaging creates an empty staging area.
func NewStaging() *Staging {
	return &Staging{}
}

// Add stages one image data URI for the next vision send.
func (s *Staging) Add(dataURI string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.uris = append(s.uris, dataURI)
}

// List returns a copy of the currently staged URIs in staging order.
func (s *Staging) List() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.uris...)
}

// Len returns the number of staged images.
func (s *Staging) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.uris)
}

// Clear releases all staged images.
func (s *Staging) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.uris = nil
}
