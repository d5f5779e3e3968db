// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import "testing"

func TestFenceToggleOnTripleBacktick(t *testing.T) {
	var f FenceTracker

	f.Feed("```")
	if !f.Open() {
		t.Error("expected fence open after three backticks")
	}
	if f.Suffix() != FenceSuffix {
		t.Errorf("expected suffix %q, got %q", FenceSuffix, f.Suffix())
	}

	f.Feed("```")
	if f.Open() {
		t.Error("expected fence closed after second triple")
	}
	if f.Suffix() != "" {
		t.Errorf("expected empty suffix, got %q", f.Suffix())
	}
}

func TestFenceSixConsecutiveBackticksNetClosed(t *testing.T) {
	var f FenceTracker
	f.Feed("``````")
	if f.Open() {
		t.Error("six consecutive backticks should toggle twice, net closed")
	}
}

func TestFenceNonBacktickResetsRun(t *testing.T) {
	var f FenceTracker

	f.Feed("``")
	f.Feed("x")
	f.Feed("`")
	if f.Open() {
		t.Error("interrupted run must not toggle")
	}

	// Completing a fresh run after the reset still toggles.
	f.Feed("``")
	if !f.Open() {
		t.Error("expected toggle from fresh triple after reset")
	}
}

func TestFenceSingleDeltaWithLanguage(t *testing.T) {
	var f FenceTracker
	f.Feed("```python")
	if !f.Open() {
		t.Error("expected fence open for delta starting a code block")
	}
}

func TestFenceRunSpansDeltas(t *testing.T) {
	var f FenceTracker
	f.Feed("`")
	f.Feed("`")
	f.Feed("`")
	if !f.Open() {
		t.Error("a triple split across deltas must still toggle")
	}
}

func TestFenceReset(t *testing.T) {
	var f FenceTracker
	f.Feed("```")
	f.Reset()
	if f.Open() || f.Suffix() != "" {
		t.Error("reset should restore closed state")
	}
}
