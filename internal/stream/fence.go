// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

// FenceSuffix is appended to live-published text while a code fence is
// open, so a block truncated mid-stream still renders as a block. It is
// cosmetic only and never persisted.
const FenceSuffix = "\n```"

// FenceTracker tracks whether streamed text currently sits inside an
// open markdown code fence.
//
// A run of three consecutive backticks toggles the fence; any
// non-backtick character resets the pending run without toggling, so
// six consecutive backticks toggle twice and land back where they
// started.
type FenceTracker struct {
	run  int
	open bool
}

// Feed advances the tracker over one delta, character by character.
func (f *FenceTracker) Feed(delta string) {
	for _, r := range delta {
		if r != '`' {
			f.run = 0
			continue
		}
		f.run++
		if f.run == 3 {
			f.open = !f.open
			f.run = 0
		}
	}
}

// Open reports whether a fence is currently open.
func (f *FenceTracker) Open() bool {
	return f.open
}

// Suffix returns the cosmetic closing fence for live display, or "".
func (f *FenceTracker) Suffix() string {
	if f.open {
		return FenceSuffix
	}
	return ""
}

// Reset returns the tracker to its initial closed state.
func (f *FenceTracker) Reset() {
	f.run = 0
	f.open = false
}
