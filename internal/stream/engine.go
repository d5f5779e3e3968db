// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package stream implements the streaming completion engine: it opens a
// streamed completion request, incrementally parses chunked JSON
// events, accumulates visible text, tracks an open/closed code-fence
// toggle, republishes a live partial message after every delta, and
// finalizes conversation history exactly once on stream end, error, or
// cancellation.
//
// At most one session is active system-wide; starting a second returns
// ErrStreamActive.
package stream

import (
	"context"
	"io"
	"log"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/jeranaias/slipstream/internal/model"
	"github.com/jeranaias/slipstream/internal/openai"
	"github.com/jeranaias/slipstream/internal/store"
	"github.com/jeranaias/slipstream/internal/tokens"
)

// ErrorFallback is the assistant message substituted into history when
// the stream cannot even be opened.
const ErrorFallback = "There was an error. Maybe the API key is wrong? Or the servers could be down?"

// =============================================================================
// STATES
// =============================================================================

// State is the engine's lifecycle state.
type State int

const (
	StateIdle State = iota
	StateRequested
	StateStreaming
	StateCompleted
	StateErrored
	StateCancelled
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateRequested:
		return "REQUESTED"
	case StateStreaming:
		return "STREAMING"
	case StateCompleted:
		return "COMPLETED"
	case StateErrored:
		return "ERRORED"
	case StateCancelled:
		return "CANCELLED"
	default:
		return "UNKNOWN"
	}
}

// =============================================================================
// TRANSPORT
// =============================================================================

// EventSource yields raw SSE event payloads from an open stream.
type EventSource interface {
	// ReadEvent returns the next event payload, or io.EOF at stream end.
	ReadEvent() (string, error)

	// Close tears down the stream. A blocked ReadEvent returns an error.
	Close() error
}

// Transport opens streaming completion requests.
type Transport interface {
	OpenStream(ctx context.Context, chatModel string, messages []openai.ChatMessage) (EventSource, error)
}

// =============================================================================
// REQUEST / SESSION
// =============================================================================

// Request describes one streamed completion.
type Request struct {
	// ConvID is the owning conversation's index.
	ConvID int

	// Model is the completion model identifier.
	Model string

	// SystemRole is prepended as a system message.
	SystemRole string

	// Messages is the conversation history at stream start, including
	// the just-appended user message. It is also the rollback snapshot.
	Messages []model.Message

	// Vision marks the vision path, which clears the image staging
	// area on completion and on errors.
	Vision bool

	// ClearStaging releases staged image attachments. May be nil.
	ClearStaging func()
}

// session is the ephemeral state of one active stream.
type session struct {
	id     uuid.UUID
	convID int

	buffer strings.Builder
	fence  FenceTracker

	cancelRequested atomic.Bool
	source          EventSource
}

// =============================================================================
// ENGINE
// =============================================================================

// Engine drives streamed completions and owns the single active session.
type Engine struct {
	store     *store.Store
	ledger    *tokens.Ledger
	transport Transport

	mu     sync.Mutex
	active *session
	state  State
}

// NewEngine creates an engine writing into st and crediting usage to ledger.
func NewEngine(st *store.Store, ledger *tokens.Ledger, transport Transport) *Engine {
	return &Engine{
		store:     st,
		ledger:    ledger,
		transport: transport,
		state:     StateIdle,
	}
}

// State returns the engine's current lifecycle state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Streaming reports whether a session is currently active.
func (e *Engine) Streaming() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.active != nil
}

// Cancel requests cooperative cancellation of the active session, if
// any. The already-buffered text is kept and finalized sentinel-free at
// the next event boundary.
func (e *Engine) Cancel() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.active == nil {
		return
	}
	e.active.cancelRequested.Store(true)
	if e.active.source != nil {
		// Unblocks a pending ReadEvent.
		e.active.source.Close()
	}
}

// Send runs one streamed completion to a terminal state, blocking until
// history has been finalized. Returns ErrStreamActive if a session is
// already open.
func (e *Engine) Send(ctx context.Context, req Request) error {
	sess := &session{
		id:     uuid.New(),
		convID: req.ConvID,
	}

	e.mu.Lock()
	if e.active != nil {
		e.mu.Unlock()
		return ErrStreamActive
	}
	e.active = sess
	e.state = StateRequested
	e.mu.Unlock()

	err := e.run(ctx, sess, req)

	e.mu.Lock()
	e.active = nil
	e.state = StateIdle
	e.mu.Unlock()

	return err
}

// run executes the REQUESTED and STREAMING phases for one session.
func (e *Engine) run(ctx context.Context, sess *session, req Request) error {
	// Snapshot is the committed history this stream builds on. Error
	// paths roll back to it; the final message is appended to it.
	snapshot := append([]model.Message(nil), req.Messages...)

	// Outgoing messages: system role first, then history reduced to
	// role and content only. Structured content passes through.
	submitted := make([]model.Message, 0, len(req.Messages)+1)
	submitted = append(submitted, model.NewSystemMessage(req.SystemRole))
	for _, m := range req.Messages {
		submitted = append(submitted, m.Cleansed())
	}

	outgoing := make([]openai.ChatMessage, len(submitted))
	for i, m := range submitted {
		outgoing[i] = openai.ChatMessage{Role: string(m.Role), Content: m.Content}
	}

	source, err := e.transport.OpenStream(ctx, req.Model, outgoing)
	if err != nil {
		// No partial text to reconcile. Substitute the fixed fallback
		// so the user's turn still gets an answer slot.
		e.setState(StateErrored)
		fallback := append(snapshot, model.NewAssistantMessage(ErrorFallback))
		if serr := e.store.SetHistory(fallback, sess.convID); serr != nil {
			log.Printf("stream: failed to record error fallback: %v", serr)
		}
		return &OpenError{Err: err}
	}

	e.mu.Lock()
	sess.source = source
	e.state = StateStreaming
	e.mu.Unlock()

	for {
		payload, err := source.ReadEvent()
		if err != nil {
			if sess.cancelRequested.Load() {
				return e.finalizeCancelled(sess, snapshot)
			}
			if err == io.EOF {
				// Stream ended without the done marker.
				return e.discard(sess, source, snapshot, req, &TransportError{Err: io.ErrUnexpectedEOF})
			}
			return e.discard(sess, source, snapshot, req, &TransportError{Err: err})
		}

		if payload == DoneMarker {
			return e.finalizeCompleted(sess, source, snapshot, submitted, req)
		}

		chunks, err := extractChunks(payload)
		if err != nil {
			return e.discard(sess, source, snapshot, req, &ParseError{Payload: payload, Err: err})
		}

		for _, c := range chunks {
			delta := c.Delta()
			if delta == "" {
				continue
			}
			sess.fence.Feed(delta)
			sess.buffer.WriteString(delta)

			// Live publish: accumulated text, in-progress sentinel,
			// and a cosmetic closing fence while a fence is open.
			live := sess.buffer.String() + model.Sentinel + sess.fence.Suffix()
			liveHistory := append(snapshot, model.NewAssistantMessage(live))
			if serr := e.store.SetHistory(liveHistory, sess.convID); serr != nil {
				// Non-fatal: the next delta republishes.
				log.Printf("stream: live publish failed: %v", serr)
			}
		}

		if sess.cancelRequested.Load() {
			return e.finalizeCancelled(sess, snapshot)
		}
	}
}

// finalizeCompleted writes the final assistant message exactly once and
// credits the heuristic token estimate.
func (e *Engine) finalizeCompleted(sess *session, source EventSource, snapshot, submitted []model.Message, req Request) error {
	source.Close()
	e.setState(StateCompleted)

	text := sess.buffer.String()
	if sess.cancelRequested.Load() {
		text = model.StripSentinel(text)
	}

	final := append(snapshot, model.NewAssistantMessage(text))
	if err := e.store.SetHistory(final, sess.convID); err != nil {
		return err
	}

	if err := e.ledger.Estimate(sess.convID, submitted, sess.buffer.Len()); err != nil {
		log.Printf("stream: token estimate failed: %v", err)
	}

	if req.Vision && req.ClearStaging != nil {
		req.ClearStaging()
	}
	return nil
}

// finalizeCancelled rewrites the buffered text as a final sentinel-free
// message. No token estimate is credited.
func (e *Engine) finalizeCancelled(sess *session, snapshot []model.Message) error {
	e.setState(StateCancelled)

	text := model.StripSentinel(sess.buffer.String())
	final := append(snapshot, model.NewAssistantMessage(text))
	if err := e.store.SetHistory(final, sess.convID); err != nil {
		return err
	}
	return nil
}

// discard handles mid-stream parse and transport failures: the partial
// buffer is dropped and history rolls back to the snapshot, so a
// message is either fully captured or not persisted at all.
func (e *Engine) discard(sess *session, source EventSource, snapshot []model.Message, req Request, cause error) error {
	source.Close()
	e.setState(StateErrored)

	if err := e.store.SetHistory(snapshot, sess.convID); err != nil {
		log.Printf("stream: rollback failed: %v", err)
	}

	// The vision path clears staged attachments on errors; the plain
	// path does not. Preserved per path.
	if req.Vision && req.ClearStaging != nil {
		req.ClearStaging()
	}

	log.Printf("stream: session %s discarded: %v", sess.id, cause)
	return cause
}

func (e *Engine) setState(s State) {
	e.mu.Lock()
	e.state = s
	e.mu.Unlock()
}
