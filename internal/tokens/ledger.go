// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package tokens tracks token consumption per conversation and across
// the lifetime of the install.
//
// Two sources feed the ledger: exact usage totals reported by the API on
// non-streaming calls, and a character-count estimate for streamed
// completions, which never report usage.
package tokens

import (
	"fmt"
	"sync"

	"github.com/jeranaias/slipstream/internal/model"
	"github.com/jeranaias/slipstream/internal/storage"
	"github.com/jeranaias/slipstream/internal/store"
)

// EstimateDivisor converts character counts to approximate tokens.
// Roughly four characters per token for English text.
const EstimateDivisor = 4

// Usage mirrors the usage block of a completion response.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Ledger is the token accountant. Counters only ever grow: aborted and
// failed requests never roll tokens back.
type Ledger struct {
	mu       sync.Mutex
	store    *store.Store
	state    *storage.StateStore
	combined float64
}

// NewLedger loads the combined counter from the state store. A missing
// key starts the counter at zero.
func NewLedger(st *store.Store, state *storage.StateStore) (*Ledger, error) {
	l := &Ledger{store: st, state: state}
	if err := state.Get(storage.KeyCombinedTokens, &l.combined); err != nil {
		if err != storage.ErrKeyNotFound {
			return nil, fmt.Errorf("failed to load combined tokens: %w", err)
		}
	}
	return l, nil
}

// Combined returns the lifetime token total across all conversations.
func (l *Ledger) Combined() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.combined
}

// Record credits an exact usage total to conversation id and to the
// combined counter, persisting both.
func (l *Ledger) Record(id int, usage Usage) error {
	return l.add(id, float64(usage.TotalTokens))
}

// Estimate credits an approximate total for a streamed exchange: the
// scalar characters of the submitted messages plus the length of the
// streamed reply, divided by the estimate divisor. Fractions are kept.
func (l *Ledger) Estimate(id int, submitted []model.Message, streamLen int) error {
	chars := streamLen
	for _, m := range submitted {
		chars += m.Content.ScalarLen()
	}
	return l.add(id, float64(chars)/EstimateDivisor)
}

func (l *Ledger) add(id int, n float64) error {
	if n == 0 {
		return nil
	}

	if err := l.store.AddTokens(id, n); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	next := l.combined + n
	if err := l.state.Set(storage.KeyCombinedTokens, next); err != nil {
		return err
	}
	l.combined = next
	return nil
}
