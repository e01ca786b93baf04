// Copyright (C) 2025 Grok-STEM contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/EbrahimAbdelwahed/Grok-STEM/services/llm"
	"github.com/EbrahimAbdelwahed/Grok-STEM/services/orchestrator/datatypes"
)

const (
	// DefaultImageMaxAttempts bounds image generation retries.
	DefaultImageMaxAttempts = 3

	// DefaultImageRetryDelay is the fixed wait between attempts.
	// Image backends fail transiently under load; a short fixed delay
	// recovers most of those without exponential machinery.
	DefaultImageRetryDelay = 1500 * time.Millisecond
)

// IllustrationCache is the subset of the illustration store the
// coordinator needs.
type IllustrationCache interface {
	Lookup(ctx context.Context, prompt string) (url string, hit bool, err error)
	Store(ctx context.Context, prompt, imageURL, model string) error
}

// IllustrationCoordinator resolves an illustration prompt into an
// image URL: cache first, then bounded-retry generation with
// caller-visible retry notices.
//
// # Thread Safety
//
// IllustrationCoordinator is safe for concurrent use; all state is
// per-call.
type IllustrationCoordinator struct {
	cache       IllustrationCache
	generator   llm.ImageClient
	queue       *WorkQueue
	maxAttempts int
	retryDelay  time.Duration
}

// NewIllustrationCoordinator creates a coordinator. cache may be nil,
// which disables lookup and write-back but not generation.
func NewIllustrationCoordinator(cache IllustrationCache, generator llm.ImageClient, queue *WorkQueue, maxAttempts int, retryDelay time.Duration) *IllustrationCoordinator {
	if maxAttempts < 1 {
		maxAttempts = DefaultImageMaxAttempts
	}
	if retryDelay <= 0 {
		retryDelay = DefaultImageRetryDelay
	}
	return &IllustrationCoordinator{
		cache:       cache,
		generator:   generator,
		queue:       queue,
		maxAttempts: maxAttempts,
		retryDelay:  retryDelay,
	}
}

// Handle resolves prompt and emits zero or more parts.
//
// # Description
//
// Emits at most one of Image or ImageError, preceded by up to
// maxAttempts-1 ImageRetry notices. An empty prompt is a logged no-op.
// On generation success the cache write-back is scheduled in the
// background; its failure never affects the emitted parts.
func (c *IllustrationCoordinator) Handle(ctx context.Context, streamID, sessionID, prompt string, emit func(datatypes.ResponsePart)) {
	ctx, span := tracer.Start(ctx, "Illustrate")
	defer span.End()

	if prompt == "" {
		slog.Warn("Empty illustration prompt, skipping")
		return
	}

	if c.cache != nil {
		url, hit, err := c.cache.Lookup(ctx, prompt)
		if err != nil {
			slog.Warn("Illustration cache lookup failed, generating instead", "error", err)
		} else if hit {
			emit(datatypes.NewImagePart(streamID, sessionID, url, prompt))
			return
		}
	}

	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		url, err := c.generator.GenerateImage(ctx, prompt)
		if err == nil && url != "" {
			emit(datatypes.NewImagePart(streamID, sessionID, url, prompt))
			c.scheduleCacheWrite(prompt, url)
			return
		}

		slog.Warn("Image generation attempt failed",
			"attempt", attempt, "maxAttempts", c.maxAttempts, "error", err)

		if attempt == c.maxAttempts {
			break
		}
		emit(datatypes.NewImageRetryPart(streamID, sessionID, attempt, c.maxAttempts))
		if !sleepCtx(ctx, c.retryDelay) {
			slog.Info("Illustration canceled during retry wait")
			return
		}
	}

	emit(datatypes.NewImageErrorPart(streamID, sessionID,
		"Image generation failed after repeated attempts."))
}

func (c *IllustrationCoordinator) scheduleCacheWrite(prompt, url string) {
	if c.cache == nil {
		return
	}
	model := c.generator.Model()
	task := func(ctx context.Context) {
		if err := c.cache.Store(ctx, prompt, url, model); err != nil {
			slog.Warn("Illustration cache write failed", "error", err)
		}
	}
	if c.queue != nil {
		c.queue.Submit("illustration-cache-store", task)
		return
	}
	go task(context.Background())
}

// sleepCtx waits for d or until ctx is done. Returns false on
// cancellation.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
