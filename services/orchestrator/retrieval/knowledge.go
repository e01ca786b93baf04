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
	"unicode/utf8"

	"github.com/EbrahimAbdelwahed/Grok-STEM/services/orchestrator/datatypes"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
)

const (
	// DefaultRetrievalTopK is how many corpus passages back a prompt.
	DefaultRetrievalTopK = 3

	// DefaultContextBudget caps the assembled context block, in bytes.
	// Past this point extra passages add latency without adding signal.
	DefaultContextBudget = 3500

	// passageSeparator joins passages in the assembled context block.
	passageSeparator = "\n\n---\n\n"
)

// Passage is one retrieved corpus chunk.
type Passage struct {
	Text      string
	Source    string
	Certainty float64
}

// WeaviateKnowledgeRetriever searches the KnowledgePassage class for
// corpus chunks relevant to a question.
//
// # Thread Safety
//
// WeaviateKnowledgeRetriever is safe for concurrent use.
type WeaviateKnowledgeRetriever struct {
	client   *weaviate.Client
	embedder Embedder
	topK     int
}

// NewWeaviateKnowledgeRetriever creates a corpus retriever.
func NewWeaviateKnowledgeRetriever(client *weaviate.Client, embedder Embedder, topK int) *WeaviateKnowledgeRetriever {
	if topK < 1 {
		slog.Warn("Invalid retrieval topK, using default",
			"provided", topK, "default", DefaultRetrievalTopK)
		topK = DefaultRetrievalTopK
	}
	return &WeaviateKnowledgeRetriever{client: client, embedder: embedder, topK: topK}
}

// Search retrieves the topK most similar passages for the question.
// No certainty floor is applied: weak passages are still better prompt
// grounding than none, and the reasoning model is told to ignore
// irrelevant context.
func (r *WeaviateKnowledgeRetriever) Search(ctx context.Context, question string) ([]Passage, error) {
	ctx, span := tracer.Start(ctx, "KnowledgeSearch")
	defer span.End()

	if len(question) > maxEmbedLength {
		question = question[:maxEmbedLength]
	}
	vector, err := r.embedder.Embed(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("failed to embed question: %w", err)
	}

	nearVector := r.client.GraphQL().NearVectorArgBuilder().
		WithVector(vector)

	fields := []graphql.Field{
		{Name: "text_content"},
		{Name: "source"},
		{Name: "domain"},
		{Name: "_additional", Fields: []graphql.Field{
			{Name: "certainty"},
		}},
	}

	result, err := r.client.GraphQL().Get().
		WithClassName(datatypes.ClassKnowledgePassage).
		WithFields(fields...).
		WithNearVector(nearVector).
		WithLimit(r.topK).
		Do(ctx)
	if err != nil {
		return nil, &VectorStoreError{Op: "knowledge search", Err: err}
	}

	parsed, err := datatypes.ParseGraphQLResponse[datatypes.KnowledgePassageQueryResponse](result)
	if err != nil {
		return nil, fmt.Errorf("failed to parse knowledge results: %w", err)
	}

	passages := make([]Passage, 0, len(parsed.Get.KnowledgePassage))
	for _, p := range parsed.Get.KnowledgePassage {
		certainty := 0.0
		if p.Additional.Certainty != nil {
			certainty = *p.Additional.Certainty
		}
		passages = append(passages, Passage{
			Text:      p.TextContent,
			Source:    p.Source,
			Certainty: certainty,
		})
	}

	slog.Debug("Retrieved knowledge passages", "count", len(passages))
	return passages, nil
}

// BuildContext assembles retrieved passages into one context block,
// clipped to budget bytes at a rune boundary. An empty result means
// the prompt carries no context section.
func BuildContext(passages []Passage, budget int) string {
	if len(passages) == 0 {
		return ""
	}

	texts := make([]string, 0, len(passages))
	for _, p := range passages {
		trimmed := strings.TrimSpace(p.Text)
		if trimmed != "" {
			texts = append(texts, trimmed)
		}
	}
	joined := strings.Join(texts, passageSeparator)

	if budget > 0 && len(joined) > budget {
		clipped := joined[:budget]
		// Back up so the clip never splits a multi-byte rune.
		for len(clipped) > 0 && !utf8.ValidString(clipped) {
			clipped = clipped[:len(clipped)-1]
		}
		joined = clipped
	}
	return joined
}
