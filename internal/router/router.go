// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package router classifies outgoing user messages by target capability
// and dispatches each to exactly one completion strategy.
//
// Precedence, evaluated in order against the selected model identifier
// and the presence of document text:
//
//	speech -> vision -> image generation -> document-grounded -> plain
//
// The user's message is appended to history synchronously before
// dispatch, so a strategy failure still leaves the user's turn recorded.
package router

import (
	"context"
	"log"
	"strings"

	"github.com/jeranaias/slipstream/internal/model"
	"github.com/jeranaias/slipstream/internal/openai"
	"github.com/jeranaias/slipstream/internal/storage"
	"github.com/jeranaias/slipstream/internal/store"
	"github.com/jeranaias/slipstream/internal/stream"
	"github.com/jeranaias/slipstream/internal/title"
)

// Capability markers matched against the selected model identifier.
const (
	MarkerSpeech   = "tts"
	MarkerVision   = "vision"
	MarkerImageGen = "dall"
)

// Strategy names one downstream completion path.
type Strategy int

const (
	StrategyPlain Strategy = iota
	StrategySpeech
	StrategyVision
	StrategyImageGen
	StrategyDocument
)

// String returns the strategy name.
func (s Strategy) String() string {
	switch s {
	case StrategySpeech:
		return "speech"
	case StrategyVision:
		return "vision"
	case StrategyImageGen:
		return "image-generation"
	case StrategyDocument:
		return "document-grounded"
	default:
		return "plain"
	}
}

// Classify resolves the strategy for a model identifier and an optional
// document text blob.
func Classify(modelID, docText string) Strategy {
	id := strings.ToLower(modelID)
	switch {
	case strings.Contains(id, MarkerSpeech):
		return StrategySpeech
	case strings.Contains(id, MarkerVision):
		return StrategyVision
	case strings.Contains(id, MarkerImageGen):
		return StrategyImageGen
	case docText != "":
		return StrategyDocument
	default:
		return StrategyPlain
	}
}

// =============================================================================
// STAGING / SETTINGS INTERFACES
// =============================================================================

// ImageStaging is the vision attachment staging area.
type ImageStaging interface {
	List() []string
	Clear()
}

// Settings supplies the currently selected model and media options.
type Settings interface {
	Model() string
	Voice() string
	Size() string
	Quality() string
}

// =============================================================================
// ROUTER
// =============================================================================

// Router dispatches user messages to completion strategies.
type Router struct {
	store    *store.Store
	engine   *stream.Engine
	client   *openai.Client
	blobs    *storage.BlobStore
	staging  ImageStaging
	settings Settings
	titles   *title.Generator
}

// New creates a router over the given collaborators. titles may be nil
// to disable title generation.
func New(st *store.Store, engine *stream.Engine, client *openai.Client, blobs *storage.BlobStore, staging ImageStaging, settings Settings, titles *title.Generator) *Router {
	return &Router{
		store:    st,
		engine:   engine,
		client:   client,
		blobs:    blobs,
		staging:  staging,
		settings: settings,
		titles:   titles,
	}
}

// Route records input as the user's turn in the active conversation and
// runs exactly one strategy to completion. docText is an optional
// document-extracted blob; when present (and no media marker matches)
// it grounds the exchange.
func (r *Router) Route(ctx context.Context, input, docText string) error {
	// An active stream owns the conversation history wholesale; a user
	// turn appended now would be overwritten by its next publish. Reject
	// before recording anything.
	if r.engine.Streaming() {
		return stream.ErrStreamActive
	}

	convID := r.store.Selected()
	conv, err := r.store.Conversation(convID)
	if err != nil {
		return err
	}

	// The user's turn is recorded before dispatch so a strategy failure
	// still leaves it in history.
	if err := r.store.AppendMessage(model.NewUserMessage(input), convID); err != nil {
		return err
	}

	modelID := r.settings.Model()
	strategy := Classify(modelID, docText)

	switch strategy {
	case StrategySpeech:
		err = r.speech(ctx, convID, modelID, input)
	case StrategyVision:
		err = r.vision(ctx, convID, modelID, conv.AssistantRole, input)
	case StrategyImageGen:
		err = r.generateImage(ctx, convID, modelID, input)
	case StrategyDocument:
		err = r.document(ctx, convID, modelID, conv.AssistantRole, docText)
	default:
		err = r.plain(ctx, convID, modelID, conv.AssistantRole)
	}

	// First exchange of an untitled conversation triggers async title
	// generation. Failures never surface to the user.
	if r.titles != nil && conv.Title == "" {
		go func() {
			if terr := r.titles.Generate(context.Background(), convID, conv.AssistantRole, input); terr != nil {
				log.Printf("router: title generation: %v", terr)
			}
		}()
	}

	return err
}

// plain streams a text completion over the conversation history.
func (r *Router) plain(ctx context.Context, convID int, modelID, systemRole string) error {
	history, err := r.store.History(convID)
	if err != nil {
		return err
	}
	return r.engine.Send(ctx, stream.Request{
		ConvID:     convID,
		Model:      modelID,
		SystemRole: systemRole,
		Messages:   history,
	})
}

// speech synthesizes the input and appends an audio-reference message.
// On transport failure nothing is stored and nothing is appended.
func (r *Router) speech(ctx context.Context, convID int, modelID, input string) error {
	audio, err := r.client.Speech(ctx, modelID, r.settings.Voice(), input)
	if err != nil {
		log.Printf("router: speech synthesis failed: %v", err)
		return err
	}

	id := storage.NewAudioID()
	if err := r.blobs.Put(id, audio, convID); err != nil {
		return err
	}
	return r.store.AppendMessage(model.NewAudioMessage(id), convID)
}

// vision streams a completion with the staged images attached to the
// user's turn as structured content parts.
func (r *Router) vision(ctx context.Context, convID int, modelID, systemRole, input string) error {
	history, err := r.store.History(convID)
	if err != nil {
		return err
	}

	// Rebuild the just-appended user turn as text + image parts.
	parts := []model.Part{model.TextPart(input)}
	for _, uri := range r.staging.List() {
		parts = append(parts, model.ImagePart(uri))
	}
	if n := len(history); n > 0 {
		history[n-1] = model.Message{
			Role:    model.RoleUser,
			Content: model.PartsContent(parts...),
		}
	}

	return r.engine.Send(ctx, stream.Request{
		ConvID:       convID,
		Model:        modelID,
		SystemRole:   systemRole,
		Messages:     history,
		Vision:       true,
		ClearStaging: r.staging.Clear,
	})
}

// generateImage requests one image and appends it as an assistant turn.
func (r *Router) generateImage(ctx context.Context, convID int, modelID, prompt string) error {
	img, err := r.client.GenerateImage(ctx, modelID, prompt, r.settings.Size(), r.settings.Quality())
	if err != nil {
		log.Printf("router: image generation failed: %v", err)
		if aerr := r.store.AppendMessage(model.NewAssistantMessage(stream.ErrorFallback), convID); aerr != nil {
			return aerr
		}
		return err
	}

	msg := model.Message{
		Role:    model.RoleAssistant,
		Content: model.PartsContent(model.ImagePart(img.URL)),
	}
	return r.store.AppendMessage(msg, convID)
}

// document grounds a plain streamed completion on an extracted text
// blob, inserted as an extra user message ahead of the question.
func (r *Router) document(ctx context.Context, convID int, modelID, systemRole, docText string) error {
	history, err := r.store.History(convID)
	if err != nil {
		return err
	}

	// The blob precedes the question so the model reads context first.
	messages := make([]model.Message, 0, len(history)+1)
	if n := len(history); n > 0 {
		messages = append(messages, history[:n-1]...)
		messages = append(messages, model.NewUserMessage(docText))
		messages = append(messages, history[n-1])
	} else {
		messages = append(messages, model.NewUserMessage(docText))
	}

	return r.engine.Send(ctx, stream.Request{
		ConvID:     convID,
		Model:      modelID,
		SystemRole: systemRole,
		Messages:   messages,
	})
}
