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
	"strings"
	"time"

	"github.com/EbrahimAbdelwahed/Grok-STEM/services/orchestrator/datatypes"
	"github.com/google/uuid"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
)

// DefaultIllustrationCertainty is the similarity floor for reusing a
// cached illustration. Stricter than the answer cache because a
// mismatched picture is more jarring than a slightly-off answer.
const DefaultIllustrationCertainty = 0.95

// illustrationNamespace seeds the deterministic object id derived from
// the prompt, making Store idempotent across concurrent generations.
var illustrationNamespace = uuid.MustParse("7b9f2c1e-3d5a-4f8b-9c0d-1e2f3a4b5c6d")

// WeaviateIllustrationCache caches generated image URLs keyed by the
// illustration prompt's embedding.
//
// # Thread Safety
//
// WeaviateIllustrationCache is safe for concurrent use.
type WeaviateIllustrationCache struct {
	client    *weaviate.Client
	embedder  Embedder
	certainty float64
}

// NewWeaviateIllustrationCache creates an illustration cache.
func NewWeaviateIllustrationCache(client *weaviate.Client, embedder Embedder, certainty float64) *WeaviateIllustrationCache {
	if certainty <= 0 || certainty > 1 {
		slog.Warn("Invalid illustration cache certainty, using default",
			"provided", certainty, "default", DefaultIllustrationCertainty)
		certainty = DefaultIllustrationCertainty
	}
	return &WeaviateIllustrationCache{client: client, embedder: embedder, certainty: certainty}
}

// Lookup returns the cached image URL for a semantically equivalent
// prompt, if one exists.
func (c *WeaviateIllustrationCache) Lookup(ctx context.Context, prompt string) (string, bool, error) {
	ctx, span := tracer.Start(ctx, "IllustrationCacheLookup")
	defer span.End()

	if len(prompt) > maxEmbedLength {
		prompt = prompt[:maxEmbedLength]
	}
	vector, err := c.embedder.Embed(ctx, prompt)
	if err != nil {
		return "", false, fmt.Errorf("failed to embed prompt: %w", err)
	}

	nearVector := c.client.GraphQL().NearVectorArgBuilder().
		WithVector(vector).
		WithCertainty(float32(c.certainty))

	fields := []graphql.Field{
		{Name: "prompt_text"},
		{Name: "image_url"},
		{Name: "model"},
		{Name: "_additional", Fields: []graphql.Field{
			{Name: "certainty"},
		}},
	}

	result, err := c.client.GraphQL().Get().
		WithClassName(datatypes.ClassIllustrationCache).
		WithFields(fields...).
		WithNearVector(nearVector).
		WithLimit(1).
		Do(ctx)
	if err != nil {
		return "", false, &VectorStoreError{Op: "illustration cache search", Err: err}
	}

	parsed, err := datatypes.ParseGraphQLResponse[datatypes.IllustrationCacheQueryResponse](result)
	if err != nil {
		return "", false, fmt.Errorf("failed to parse illustration results: %w", err)
	}

	hits := parsed.Get.IllustrationCache
	if len(hits) == 0 || hits[0].ImageURL == "" {
		return "", false, nil
	}

	slog.Info("Illustration cache hit", "model", hits[0].Model)
	return hits[0].ImageURL, true, nil
}

// Store writes a generated image URL to the cache.
//
// # Description
//
// The object id is a v5 UUID derived from the prompt, so two pipelines
// generating for the same prompt converge on one object. A conflict on
// the derived id means another writer won the race, which is fine.
func (c *WeaviateIllustrationCache) Store(ctx context.Context, prompt, imageURL, model string) error {
	ctx, span := tracer.Start(ctx, "IllustrationCacheStore")
	defer span.End()

	embedText := prompt
	if len(embedText) > maxEmbedLength {
		embedText = embedText[:maxEmbedLength]
	}
	vector, err := c.embedder.Embed(ctx, embedText)
	if err != nil {
		return fmt.Errorf("failed to embed prompt: %w", err)
	}

	payload := datatypes.IllustrationCachePayload{
		PromptText: prompt,
		ImageURL:   imageURL,
		Model:      model,
		CachedAt:   time.Now().UnixMilli(),
	}

	objectID := uuid.NewSHA1(illustrationNamespace, []byte(prompt))
	_, err = c.client.Data().Creator().
		WithClassName(datatypes.ClassIllustrationCache).
		WithID(objectID.String()).
		WithProperties(payload.ToMap()).
		WithVector(vector).
		Do(ctx)
	if err != nil {
		if strings.Contains(err.Error(), "already exists") ||
			strings.Contains(err.Error(), "422") {
			slog.Debug("Illustration already cached", "id", objectID.String())
			return nil
		}
		return &VectorStoreError{Op: "illustration cache store", Err: err}
	}

	slog.Info("Stored illustration in cache", "id", objectID.String(), "model", model)
	return nil
}
