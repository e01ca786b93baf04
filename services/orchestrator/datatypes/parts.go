// Copyright (C) 2025 Grok-STEM contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package datatypes provides data structures for the orchestrator service.
//
// This file contains the ResponsePart model: every message fragment the
// answer pipeline streams to a client or persists in the answer cache is
// one ResponsePart. Parts are appended to a stream, never mutated after
// emission.
package datatypes

import (
	"encoding/json"
	"time"
)

// PartType discriminates the kind of a ResponsePart.
type PartType string

const (
	// PartProgress reports the processing phase currently running.
	// Progress parts are informational and never cached.
	PartProgress PartType = "progress"

	// PartText carries the generated answer prose.
	PartText PartType = "text"

	// PartSteps carries the structured outline extracted from the answer.
	PartSteps PartType = "steps"

	// PartPlot carries a chart specification document (data + layout).
	PartPlot PartType = "plot"

	// PartImage carries the URL of a generated or cached illustration.
	PartImage PartType = "image"

	// PartImageRetry reports a failed illustration attempt that will be
	// retried. Informational only; never cached.
	PartImageRetry PartType = "image_retry"

	// PartImageError reports that illustration generation was abandoned
	// after exhausting all attempts. Non-fatal to the stream.
	PartImageError PartType = "image_error"

	// PartError reports a fatal pipeline failure. Always followed by
	// exactly one PartEnd.
	PartError PartType = "error"

	// PartEnd terminates a stream. Every stream ends with exactly one.
	PartEnd PartType = "end"
)

// Progress phases emitted by the pipeline, in causal order.
const (
	PhaseReasoning = "reasoning"
	PhaseSteps     = "steps"
	PhasePlotting  = "plotting"
)

// StepInfo is a single entry of the reasoning outline.
//
// # Fields
//
//   - Id: "step-<n>" where <n> is the step number as written by the model.
//     The number is kept verbatim, not renumbered, so a model that skips
//     or repeats numbers keeps its own ordering.
//   - Title: Display title. Already includes the "Step <n>:" prefix.
//
// Ids must be unique within one Steps part.
type StepInfo struct {
	Id    string `json:"id"`
	Title string `json:"title"`
}

// ResponsePart is one fragment of a streamed answer.
//
// # Description
//
// ResponsePart is a tagged union serialized with a "type" discriminator.
// Only the fields relevant to a given Type are populated; all optional
// fields are omitted from JSON when empty. Every part carries the stream
// id (one question/answer exchange) and the session id (the long-lived
// connection).
//
// # Wire Shape
//
//	{"type":"text","id":"<stream>","session_id":"<session>","content":"..."}
//	{"type":"steps","id":"...","session_id":"...","steps":[{"id":"step-1","title":"Step 1: ..."}]}
//	{"type":"image_retry","id":"...","attempt":1,"max_attempts":3}
//
// # Thread Safety
//
// ResponsePart values are treated as immutable once emitted. Restamping
// for cache replay copies the value rather than mutating it.
type ResponsePart struct {
	Type      PartType `json:"type"`
	Id        string   `json:"id,omitempty"`
	SessionId string   `json:"session_id,omitempty"`

	// Phase is set for progress parts only.
	Phase string `json:"phase,omitempty"`

	// Content carries answer text for text parts and a human-readable
	// description for error and image_error parts.
	Content string `json:"content,omitempty"`

	// Steps is set for steps parts only.
	Steps []StepInfo `json:"steps,omitempty"`

	// Figure is the opaque chart document for plot parts. The pipeline
	// guarantees it contains top-level "data" and "layout" members but
	// otherwise does not interpret it.
	Figure json.RawMessage `json:"figure,omitempty"`

	// URL and Prompt are set for image parts.
	URL    string `json:"url,omitempty"`
	Prompt string `json:"prompt,omitempty"`

	// Attempt and MaxAttempts are set for image_retry parts.
	Attempt     int `json:"attempt,omitempty"`
	MaxAttempts int `json:"max_attempts,omitempty"`
}

// NewProgressPart builds a progress part for the given phase.
func NewProgressPart(streamID, sessionID, phase string) ResponsePart {
	return ResponsePart{Type: PartProgress, Id: streamID, SessionId: sessionID, Phase: phase}
}

// NewTextPart builds a text part carrying answer prose.
func NewTextPart(streamID, sessionID, content string) ResponsePart {
	return ResponsePart{Type: PartText, Id: streamID, SessionId: sessionID, Content: content}
}

// NewStepsPart builds a steps part from an extracted outline.
func NewStepsPart(streamID, sessionID string, steps []StepInfo) ResponsePart {
	return ResponsePart{Type: PartSteps, Id: streamID, SessionId: sessionID, Steps: steps}
}

// NewPlotPart builds a plot part from a validated chart document.
func NewPlotPart(streamID, sessionID string, figure json.RawMessage) ResponsePart {
	return ResponsePart{Type: PartPlot, Id: streamID, SessionId: sessionID, Figure: figure}
}

// NewImagePart builds an image part from a resolved illustration.
func NewImagePart(streamID, sessionID, url, prompt string) ResponsePart {
	return ResponsePart{Type: PartImage, Id: streamID, SessionId: sessionID, URL: url, Prompt: prompt}
}

// NewImageRetryPart reports a failed illustration attempt before a retry.
func NewImageRetryPart(streamID, sessionID string, attempt, maxAttempts int) ResponsePart {
	return ResponsePart{
		Type: PartImageRetry, Id: streamID, SessionId: sessionID,
		Attempt: attempt, MaxAttempts: maxAttempts,
	}
}

// NewImageErrorPart reports abandoned illustration generation.
func NewImageErrorPart(streamID, sessionID, message string) ResponsePart {
	return ResponsePart{Type: PartImageError, Id: streamID, SessionId: sessionID, Content: message}
}

// NewErrorPart builds a fatal error part.
func NewErrorPart(streamID, sessionID, message string) ResponsePart {
	return ResponsePart{Type: PartError, Id: streamID, SessionId: sessionID, Content: message}
}

// NewEndPart terminates a stream.
func NewEndPart(streamID, sessionID string) ResponsePart {
	return ResponsePart{Type: PartEnd, Id: streamID, SessionId: sessionID}
}

// IsDurable reports whether the part belongs in the answer cache.
//
// Only content parts survive: text, steps, plot, and image. Progress,
// retry notices, errors, and end markers are per-run signaling and are
// never persisted.
func (p ResponsePart) IsDurable() bool {
	switch p.Type {
	case PartText, PartSteps, PartPlot, PartImage:
		return true
	default:
		return false
	}
}

// Restamp returns a copy of the part carrying the given stream and
// session ids. Used when replaying cached parts into a live stream.
func (p ResponsePart) Restamp(streamID, sessionID string) ResponsePart {
	p.Id = streamID
	p.SessionId = sessionID
	return p
}

// Unstamp returns a copy of the part with stream and session ids cleared.
// Cached parts are stored without ids so a replay can stamp its own.
func (p ResponsePart) Unstamp() ResponsePart {
	p.Id = ""
	p.SessionId = ""
	return p
}

// DurableParts filters a buffer down to the parts worth caching,
// stripped of their stream ids.
func DurableParts(parts []ResponsePart) []ResponsePart {
	out := make([]ResponsePart, 0, len(parts))
	for _, p := range parts {
		if p.IsDurable() {
			out = append(out, p.Unstamp())
		}
	}
	return out
}

// =============================================================================
// Cache Payloads
// =============================================================================

// AnswerCachePayload is the Weaviate property set for one semantic cache
// entry. ResponseData holds the durable parts as a JSON array string;
// Weaviate text properties keep the payload opaque to the store.
type AnswerCachePayload struct {
	QuestionText string `json:"question_text"`
	ResponseData string `json:"response_data"`
	CreatedAt    int64  `json:"created_at"`
}

// ToMap converts the payload to the property map the Weaviate data
// creator expects.
func (p AnswerCachePayload) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"question_text": p.QuestionText,
		"response_data": p.ResponseData,
		"created_at":    p.CreatedAt,
	}
}

// NewAnswerCachePayload serializes durable parts into a cache payload.
// Returns an error if the parts cannot be marshaled.
func NewAnswerCachePayload(question string, parts []ResponsePart) (AnswerCachePayload, error) {
	data, err := json.Marshal(parts)
	if err != nil {
		return AnswerCachePayload{}, err
	}
	return AnswerCachePayload{
		QuestionText: question,
		ResponseData: string(data),
		CreatedAt:    time.Now().UnixMilli(),
	}, nil
}

// DecodeCachedParts parses the response_data payload of a cache hit.
// A payload that fails to parse or parses to an empty list yields
// (nil, false): malformed cache entries are treated as misses upstream.
func DecodeCachedParts(responseData string) ([]ResponsePart, bool) {
	var parts []ResponsePart
	if err := json.Unmarshal([]byte(responseData), &parts); err != nil {
		return nil, false
	}
	if len(parts) == 0 {
		return nil, false
	}
	return parts, true
}

// IllustrationCachePayload is the Weaviate property set for one cached
// illustration: the generating prompt, the hosted image URL, and the
// model that produced it.
type IllustrationCachePayload struct {
	PromptText string `json:"prompt_text"`
	ImageURL   string `json:"image_url"`
	Model      string `json:"model"`
	CachedAt   int64  `json:"cached_at"`
}

// ToMap converts the payload to a Weaviate property map.
func (p IllustrationCachePayload) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"prompt_text": p.PromptText,
		"image_url":   p.ImageURL,
		"model":       p.Model,
		"cached_at":   p.CachedAt,
	}
}

// KnowledgePassagePayload is the Weaviate property set for one retrieval
// corpus passage.
type KnowledgePassagePayload struct {
	TextContent string `json:"text_content"`
	Source      string `json:"source"`
	Domain      string `json:"domain"`
	IngestedAt  int64  `json:"ingested_at"`
}

// ToMap converts the payload to a Weaviate property map.
func (p KnowledgePassagePayload) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"text_content": p.TextContent,
		"source":       p.Source,
		"domain":       p.Domain,
		"ingested_at":  p.IngestedAt,
	}
}
