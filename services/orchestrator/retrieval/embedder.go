// Copyright (C) 2025 Grok-STEM contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package retrieval implements the Weaviate-backed lookup layers: the
// semantic answer cache, the knowledge corpus retriever, and the
// illustration cache. All three share one embedding provider and one
// query discipline: embed the text, run a nearVector search, read
// certainty from _additional.
package retrieval

import (
	"context"
	"fmt"

	"github.com/EbrahimAbdelwahed/Grok-STEM/services/orchestrator/datatypes"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("grokstem.orchestrator.retrieval")

// Embedder computes a vector embedding for a piece of text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// ServiceEmbedder implements Embedder against the embedding sidecar
// configured by EMBEDDING_SERVICE_URL.
//
// # Thread Safety
//
// ServiceEmbedder is safe for concurrent use. Each call builds a fresh
// request.
type ServiceEmbedder struct{}

// NewServiceEmbedder creates an embedder backed by the sidecar service.
func NewServiceEmbedder() *ServiceEmbedder {
	return &ServiceEmbedder{}
}

// Embed computes the embedding for text via the sidecar.
func (e *ServiceEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	var resp datatypes.EmbeddingResponse
	if err := resp.GetWithContext(ctx, text); err != nil {
		return nil, fmt.Errorf("embedding failed: %w", err)
	}
	return resp.Vector, nil
}
