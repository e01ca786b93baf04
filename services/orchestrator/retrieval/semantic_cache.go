// Copyright (C) 2025 Grok-STEM contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/EbrahimAbdelwahed/Grok-STEM/services/orchestrator/datatypes"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
)

// DefaultAnswerCertainty is the similarity floor for treating a cached
// answer as a hit. High on purpose: a near-miss answer to a different
// question is worse than regenerating.
const DefaultAnswerCertainty = 0.92

// maxEmbedLength bounds the text sent to the embedding service.
const maxEmbedLength = 2000

// AnswerCacheConfig tunes the semantic answer cache.
type AnswerCacheConfig struct {
	// Certainty is the minimum certainty for a hit, in [0, 1].
	Certainty float64
}

// DefaultAnswerCacheConfig returns the production defaults.
func DefaultAnswerCacheConfig() AnswerCacheConfig {
	return AnswerCacheConfig{Certainty: DefaultAnswerCertainty}
}

// WeaviateAnswerCache is the semantic cache over the AnswerCache class.
//
// # Description
//
// Lookup embeds the question and runs a top-1 nearVector search with a
// certainty floor. Store writes the question, its durable response
// parts, and the question's vector as a new object. Near-duplicate
// questions converging on one stored answer is the cache working as
// intended, so no read-before-write dedup is attempted.
//
// # Thread Safety
//
// WeaviateAnswerCache is safe for concurrent use.
type WeaviateAnswerCache struct {
	client   *weaviate.Client
	embedder Embedder
	config   AnswerCacheConfig
}

// NewWeaviateAnswerCache creates an answer cache. Out-of-range
// certainty values fall back to the default with a warning.
func NewWeaviateAnswerCache(client *weaviate.Client, embedder Embedder, config AnswerCacheConfig) *WeaviateAnswerCache {
	if config.Certainty <= 0 || config.Certainty > 1 {
		slog.Warn("Invalid answer cache certainty, using default",
			"provided", config.Certainty, "default", DefaultAnswerCertainty)
		config.Certainty = DefaultAnswerCertainty
	}
	return &WeaviateAnswerCache{client: client, embedder: embedder, config: config}
}

// Lookup checks the cache for a prior answer to a semantically
// equivalent question.
//
// # Outputs
//
//   - []datatypes.ResponsePart: The cached durable parts, hit only.
//   - bool: Whether the lookup was a hit.
//   - error: Non-nil if embedding or the search failed. A malformed
//     cached payload is treated as a miss, not an error.
func (c *WeaviateAnswerCache) Lookup(ctx context.Context, question string) ([]datatypes.ResponsePart, bool, error) {
	ctx, span := tracer.Start(ctx, "AnswerCacheLookup")
	defer span.End()

	vector, err := c.embedQuestion(ctx, question)
	if err != nil {
		return nil, false, err
	}

	nearVector := c.client.GraphQL().NearVectorArgBuilder().
		WithVector(vector).
		WithCertainty(float32(c.config.Certainty))

	fields := []graphql.Field{
		{Name: "question_text"},
		{Name: "response_data"},
		{Name: "created_at"},
		{Name: "_additional", Fields: []graphql.Field{
			{Name: "certainty"},
		}},
	}

	result, err := c.client.GraphQL().Get().
		WithClassName(datatypes.ClassAnswerCache).
		WithFields(fields...).
		WithNearVector(nearVector).
		WithLimit(1).
		Do(ctx)
	if err != nil {
		return nil, false, &VectorStoreError{Op: "answer cache search", Err: err}
	}

	parsed, err := datatypes.ParseGraphQLResponse[datatypes.AnswerCacheQueryResponse](result)
	if err != nil {
		return nil, false, fmt.Errorf("failed to parse answer cache results: %w", err)
	}

	hits := parsed.Get.AnswerCache
	if len(hits) == 0 {
		slog.Debug("Answer cache miss", "questionChars", len(question))
		return nil, false, nil
	}

	hit := hits[0]
	parts, ok := datatypes.DecodeCachedParts(hit.ResponseData)
	if !ok {
		slog.Warn("Cached answer payload is malformed, treating as miss",
			"cachedQuestion", hit.QuestionText)
		return nil, false, nil
	}

	certainty := 0.0
	if hit.Additional.Certainty != nil {
		certainty = *hit.Additional.Certainty
	}
	slog.Info("Answer cache hit",
		"certainty", certainty,
		"parts", len(parts),
		"cachedQuestion", hit.QuestionText)
	return parts, true, nil
}

// Store writes a freshly generated answer to the cache.
//
// # Description
//
// Only durable parts are written; stream-scoped parts (progress,
// retries, errors, end markers) are filtered out, and the kept parts
// are stripped of their stream and session ids so a future hit can be
// restamped for any stream.
func (c *WeaviateAnswerCache) Store(ctx context.Context, question string, parts []datatypes.ResponsePart) error {
	ctx, span := tracer.Start(ctx, "AnswerCacheStore")
	defer span.End()

	durable := datatypes.DurableParts(parts)
	if len(durable) == 0 {
		slog.Debug("No durable parts to cache, skipping store")
		return nil
	}

	payload, err := datatypes.NewAnswerCachePayload(question, durable)
	if err != nil {
		return fmt.Errorf("failed to encode cache payload: %w", err)
	}

	vector, err := c.embedQuestion(ctx, question)
	if err != nil {
		return err
	}

	_, err = c.client.Data().Creator().
		WithClassName(datatypes.ClassAnswerCache).
		WithProperties(payload.ToMap()).
		WithVector(vector).
		Do(ctx)
	if err != nil {
		return &VectorStoreError{Op: "answer cache store", Err: err}
	}

	slog.Info("Stored answer in semantic cache",
		"parts", len(durable), "questionChars", len(question))
	return nil
}

func (c *WeaviateAnswerCache) embedQuestion(ctx context.Context, question string) ([]float32, error) {
	if len(question) > maxEmbedLength {
		question = question[:maxEmbedLength]
	}
	start := time.Now()
	vector, err := c.embedder.Embed(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("failed to embed question: %w", err)
	}
	slog.Debug("Embedded question", "dim", len(vector), "tookMs", time.Since(start).Milliseconds())
	return vector, nil
}
