// Copyright (C) 2025 Grok-STEM contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package services contains the response-generation pipeline and its
// supporting stages: step extraction, plot decision, illustration
// coordination, and background cache write-back.
package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/EbrahimAbdelwahed/Grok-STEM/services/llm"
	"github.com/EbrahimAbdelwahed/Grok-STEM/services/orchestrator/datatypes"
	"github.com/EbrahimAbdelwahed/Grok-STEM/services/orchestrator/observability"
	"github.com/EbrahimAbdelwahed/Grok-STEM/services/orchestrator/retrieval"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"
)

var tracer = otel.Tracer("grokstem.orchestrator.services")

// EmitFunc delivers one part to the caller. Implementations must be
// safe to call from the pipeline's goroutine; they are never called
// concurrently within one run.
type EmitFunc func(datatypes.ResponsePart)

// AnswerCache is the semantic cache the pipeline reads and writes.
type AnswerCache interface {
	Lookup(ctx context.Context, question string) ([]datatypes.ResponsePart, bool, error)
	Store(ctx context.Context, question string, parts []datatypes.ResponsePart) error
}

// ContextRetriever supplies grounding passages for the reasoning prompt.
type ContextRetriever interface {
	Search(ctx context.Context, question string) ([]retrieval.Passage, error)
}

// PipelineConfig tunes a Pipeline.
type PipelineConfig struct {
	// Effort is the reasoning effort hint.
	Effort llm.Effort

	// ContextBudget caps the assembled context block in bytes.
	ContextBudget int
}

// DefaultPipelineConfig returns the production defaults.
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		Effort:        llm.EffortMedium,
		ContextBudget: retrieval.DefaultContextBudget,
	}
}

// Pipeline sequences one question through cache check, retrieval,
// reasoning, post-processing, auxiliary generation, and cache
// write-back, streaming parts to the caller as they become available.
//
// # Description
//
// Stages run strictly in order; later stages consume earlier output.
// Only the reasoning stage is fatal to a run. Cache and retrieval
// failures degrade silently, chart failures drop the plot, and image
// failures are retried a bounded number of times before surfacing an
// informational part.
//
// Concurrent runs asking the same question are collapsed: one leader
// generates while followers wait and replay the leader's durable
// parts under their own stream ids.
//
// # Thread Safety
//
// Pipeline is safe for concurrent use; each Run keeps its own state.
type Pipeline struct {
	cache       AnswerCache
	retriever   ContextRetriever
	reasoner    llm.ReasoningClient
	charts      llm.ChartClient
	illustrator *IllustrationCoordinator
	queue       *WorkQueue
	metrics     *observability.PipelineMetrics
	config      PipelineConfig

	group singleflight.Group
}

// NewPipeline wires a pipeline. reasoner is required; cache,
// retriever, charts, illustrator, queue, and metrics may each be nil,
// disabling the corresponding stage or concern.
func NewPipeline(
	cache AnswerCache,
	retriever ContextRetriever,
	reasoner llm.ReasoningClient,
	charts llm.ChartClient,
	illustrator *IllustrationCoordinator,
	queue *WorkQueue,
	metrics *observability.PipelineMetrics,
	config PipelineConfig,
) *Pipeline {
	if config.Effort == "" {
		config.Effort = llm.EffortMedium
	}
	if config.ContextBudget <= 0 {
		config.ContextBudget = retrieval.DefaultContextBudget
	}
	return &Pipeline{
		cache:       cache,
		retriever:   retriever,
		reasoner:    reasoner,
		charts:      charts,
		illustrator: illustrator,
		queue:       queue,
		metrics:     metrics,
		config:      config,
	}
}

// Run processes one question and emits an ordered part stream that
// always terminates with exactly one End part. A fatal reasoning
// failure emits Error then End; everything emitted before the failure
// point stands.
func (p *Pipeline) Run(ctx context.Context, streamID, sessionID, question string, emit EmitFunc) {
	start := time.Now()
	ctx, span := tracer.Start(ctx, "PipelineRun",
		trace.WithAttributes(
			attribute.String("stream.id", streamID),
			attribute.String("session.id", sessionID),
		))
	defer span.End()

	if p.metrics != nil {
		p.metrics.RunStarted()
		defer p.metrics.RunEnded()
	}

	send := func(part datatypes.ResponsePart) {
		if p.metrics != nil {
			p.metrics.RecordPart(string(part.Type))
		}
		emit(part)
	}

	slog.Info("Pipeline run started",
		"streamID", streamID, "sessionID", sessionID, "questionChars", len(question))

	if parts, ok := p.checkCache(ctx, question); ok {
		for _, part := range parts {
			send(part.Restamp(streamID, sessionID))
		}
		send(datatypes.NewEndPart(streamID, sessionID))
		p.recordRun(observability.OutcomeCacheHit, start)
		slog.Info("Pipeline run served from cache", "streamID", streamID, "parts", len(parts))
		return
	}

	// Collapse concurrent generations of the same question. The leader
	// emits live; followers replay the durable parts afterward. A
	// leader canceled mid-run fails its followers too, which then take
	// the fatal path.
	leader := false
	v, err, _ := p.group.Do(generationKey(question), func() (interface{}, error) {
		leader = true
		return p.generate(ctx, streamID, sessionID, question, send)
	})

	if leader {
		if err != nil {
			p.recordRun(observability.OutcomeError, start)
		} else {
			p.recordRun(observability.OutcomeGenerated, start)
		}
		return
	}

	if err != nil {
		send(datatypes.NewErrorPart(streamID, sessionID, userFacingError(err)))
		send(datatypes.NewEndPart(streamID, sessionID))
		p.recordRun(observability.OutcomeError, start)
		return
	}

	durable := v.([]datatypes.ResponsePart)
	for _, part := range durable {
		send(part.Restamp(streamID, sessionID))
	}
	send(datatypes.NewEndPart(streamID, sessionID))
	p.recordRun(observability.OutcomeGenerated, start)
	slog.Info("Pipeline run replayed from concurrent generation",
		"streamID", streamID, "parts", len(durable))
}

// checkCache runs the CACHE_CHECK stage. Lookup failure is a miss.
func (p *Pipeline) checkCache(ctx context.Context, question string) ([]datatypes.ResponsePart, bool) {
	if p.cache == nil {
		return nil, false
	}

	t0 := time.Now()
	parts, hit, err := p.cache.Lookup(ctx, question)
	p.recordStage("cache_check", t0)

	switch {
	case err != nil:
		slog.Warn("Semantic cache lookup failed, generating instead", "error", err)
		p.recordCacheLookup("answer", "error")
		return nil, false
	case hit:
		p.recordCacheLookup("answer", "hit")
		return parts, true
	default:
		p.recordCacheLookup("answer", "miss")
		return nil, false
	}
}

// generate runs RETRIEVE through CACHE_STORE and emits the full part
// stream for this run, End included. It returns the durable parts for
// follower replay; the error return is non-nil only on the fatal path.
func (p *Pipeline) generate(ctx context.Context, streamID, sessionID, question string, send EmitFunc) ([]datatypes.ResponsePart, error) {
	var buffer []datatypes.ResponsePart

	send(datatypes.NewProgressPart(streamID, sessionID, datatypes.PhaseReasoning))

	// RETRIEVE: context is optional, absence never blocks progress.
	contextBlock := ""
	if p.retriever != nil {
		t0 := time.Now()
		passages, err := p.retriever.Search(ctx, question)
		p.recordStage("retrieve", t0)
		if err != nil {
			slog.Warn("Knowledge retrieval failed, reasoning without context", "error", err)
		} else {
			contextBlock = retrieval.BuildContext(passages, p.config.ContextBudget)
			slog.Debug("Assembled grounding context",
				"passages", len(passages), "chars", len(contextBlock))
		}
	}

	// REASON: the one fatal stage.
	t0 := time.Now()
	answer, err := p.reasoner.Reason(ctx, BuildReasoningMessages(question, contextBlock), p.config.Effort)
	p.recordStage("reason", t0)
	if err != nil || strings.TrimSpace(answer) == "" {
		slog.Error("Reasoning failed, terminating run", "streamID", streamID, "error", err)
		send(datatypes.NewErrorPart(streamID, sessionID, userFacingError(err)))
		send(datatypes.NewEndPart(streamID, sessionID))
		if err == nil {
			err = llm.NewReasoningError(llm.KindEmptyContent, "the reasoning model returned no content", nil)
		}
		return nil, err
	}

	cleaned, illustrationPrompt, wantIllustration := ExtractIllustrationMarker(answer)

	textPart := datatypes.NewTextPart(streamID, sessionID, cleaned)
	send(textPart)
	buffer = append(buffer, textPart)

	// EXTRACT_STEPS: absence of markers is normal.
	send(datatypes.NewProgressPart(streamID, sessionID, datatypes.PhaseSteps))
	if steps := ExtractSteps(cleaned); len(steps) > 0 {
		stepsPart := datatypes.NewStepsPart(streamID, sessionID, steps)
		send(stepsPart)
		buffer = append(buffer, stepsPart)
	}

	// DECIDE_PLOT / GENERATE_PLOT: never fatal.
	if p.charts != nil && PlotNeeded(question, cleaned) {
		send(datatypes.NewProgressPart(streamID, sessionID, datatypes.PhasePlotting))
		t0 = time.Now()
		spec, chartErr := p.charts.ChartSpec(ctx, BuildChartMessages(question, cleaned))
		p.recordStage("plot", t0)
		switch {
		case chartErr != nil:
			slog.Warn("Chart generation failed, continuing without plot", "error", chartErr)
		case spec == nil:
			slog.Debug("Chart model declined, no plot emitted")
		default:
			plotPart := datatypes.NewPlotPart(streamID, sessionID, spec)
			send(plotPart)
			buffer = append(buffer, plotPart)
		}
	}

	// DETECT_ILLUSTRATION / ILLUSTRATE.
	if wantIllustration && p.illustrator != nil {
		t0 = time.Now()
		p.illustrator.Handle(ctx, streamID, sessionID, illustrationPrompt, func(part datatypes.ResponsePart) {
			send(part)
			switch part.Type {
			case datatypes.PartImage:
				p.recordImageAttempt("success")
				buffer = append(buffer, part)
			case datatypes.PartImageRetry:
				p.recordImageAttempt("retry")
			case datatypes.PartImageError:
				p.recordImageAttempt("exhausted")
			}
		})
		p.recordStage("illustrate", t0)
	}

	// CACHE_STORE: fire and forget, must never delay End.
	p.scheduleCacheStore(question, buffer)

	send(datatypes.NewEndPart(streamID, sessionID))
	return datatypes.DurableParts(buffer), nil
}

func (p *Pipeline) scheduleCacheStore(question string, buffer []datatypes.ResponsePart) {
	if p.cache == nil || len(buffer) == 0 {
		return
	}

	parts := make([]datatypes.ResponsePart, len(buffer))
	copy(parts, buffer)
	task := func(ctx context.Context) {
		if err := p.cache.Store(ctx, question, parts); err != nil {
			slog.Warn("Semantic cache store failed", "error", err)
			p.recordCacheWrite("answer", "error")
			return
		}
		p.recordCacheWrite("answer", "ok")
	}

	if p.queue != nil {
		if !p.queue.Submit("answer-cache-store", task) {
			p.recordCacheWrite("answer", "dropped")
		}
		return
	}
	go task(context.Background())
}

// generationKey normalizes a question for concurrent-run collapsing.
func generationKey(question string) string {
	return strings.Join(strings.Fields(strings.ToLower(question)), " ")
}

// userFacingError maps a fatal pipeline error to the message sent to
// the client. Internal detail stays in the logs.
func userFacingError(err error) string {
	var rerr *llm.ReasoningError
	if errors.As(err, &rerr) {
		switch rerr.Kind {
		case llm.KindAuth:
			return "The reasoning service rejected our credentials. Please try again later."
		case llm.KindEmptyContent:
			return "The reasoning service returned an empty answer. Please try again."
		}
	}
	return "Failed to generate a response. Please try again."
}

func (p *Pipeline) recordRun(outcome observability.Outcome, start time.Time) {
	if p.metrics != nil {
		p.metrics.RecordRun(outcome, time.Since(start).Seconds())
	}
}

func (p *Pipeline) recordStage(stage string, start time.Time) {
	if p.metrics != nil {
		p.metrics.RecordStage(stage, time.Since(start).Seconds())
	}
}

func (p *Pipeline) recordCacheLookup(store, result string) {
	if p.metrics != nil {
		p.metrics.RecordCacheLookup(store, result)
	}
}

func (p *Pipeline) recordCacheWrite(store, status string) {
	if p.metrics != nil {
		p.metrics.RecordCacheWrite(store, status)
	}
}

func (p *Pipeline) recordImageAttempt(result string) {
	if p.metrics != nil {
		p.metrics.RecordImageAttempt(result)
	}
}
