// Copyright (C) 2025 Grok-STEM contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datatypes

import (
	"context"
	"log"
	"log/slog"

	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate/entities/models"
)

// Weaviate class names used by the pipeline. All three classes store
// externally computed vectors (vectorizer "none"); the embedding sidecar
// owns vector computation.
const (
	// ClassAnswerCache holds fully generated answers keyed by the
	// question embedding.
	ClassAnswerCache = "AnswerCache"

	// ClassKnowledgePassage holds the retrieval corpus.
	ClassKnowledgePassage = "KnowledgePassage"

	// ClassIllustrationCache holds generated illustration URLs keyed by
	// the prompt embedding.
	ClassIllustrationCache = "IllustrationCache"
)

func GetAnswerCacheSchema() *models.Class {
	indexFilterable := new(bool)
	*indexFilterable = true

	return &models.Class{
		Class:       ClassAnswerCache,
		Description: "A cached multi-part answer, keyed by the question embedding.",
		Vectorizer:  "none",
		Properties: []*models.Property{
			{
				Name:         "question_text",
				DataType:     []string{"text"},
				Description:  "The original user question.",
				Tokenization: "word",
			},
			{
				Name:        "response_data",
				DataType:    []string{"text"},
				Description: "The durable response parts, serialized as a JSON array.",
			},
			{
				Name:            "created_at",
				DataType:        []string{"number"},
				Description:     "Timestamp (Unix ms) of when the entry was written.",
				IndexFilterable: indexFilterable,
			},
		},
	}
}

func GetKnowledgePassageSchema() *models.Class {
	indexFilterable := new(bool)
	*indexFilterable = true

	return &models.Class{
		Class:       ClassKnowledgePassage,
		Description: "A passage of grounding material for answer generation.",
		Vectorizer:  "none",
		Properties: []*models.Property{
			{
				Name:         "text_content",
				DataType:     []string{"text"},
				Description:  "The passage text supplied to the reasoning model.",
				Tokenization: "word",
			},
			{
				Name:            "source",
				DataType:        []string{"text"},
				Description:     "The original file path or source of the passage.",
				IndexFilterable: indexFilterable,
				Tokenization:    "field",
			},
			{
				Name:            "domain",
				DataType:        []string{"text"},
				Description:     "Subject domain tag (e.g., 'physics', 'calculus').",
				IndexFilterable: indexFilterable,
				Tokenization:    "field",
			},
			{
				Name:            "ingested_at",
				DataType:        []string{"number"},
				Description:     "Timestamp (Unix ms) of when the passage was ingested.",
				IndexFilterable: indexFilterable,
			},
		},
	}
}

func GetIllustrationCacheSchema() *models.Class {
	indexFilterable := new(bool)
	*indexFilterable = true

	return &models.Class{
		Class:       ClassIllustrationCache,
		Description: "A generated illustration URL, keyed by the prompt embedding.",
		Vectorizer:  "none",
		Properties: []*models.Property{
			{
				Name:         "prompt_text",
				DataType:     []string{"text"},
				Description:  "The illustration prompt.",
				Tokenization: "word",
			},
			{
				Name:        "image_url",
				DataType:    []string{"text"},
				Description: "The hosted URL of the generated image.",
			},
			{
				Name:            "model",
				DataType:        []string{"text"},
				Description:     "The model that generated the image.",
				IndexFilterable: indexFilterable,
				Tokenization:    "field",
			},
			{
				Name:            "cached_at",
				DataType:        []string{"number"},
				Description:     "Timestamp (Unix ms) of when the entry was written.",
				IndexFilterable: indexFilterable,
			},
		},
	}
}

// EnsureWeaviateSchema creates any of the pipeline's classes that do not
// exist yet. Existing classes are left untouched.
func EnsureWeaviateSchema(client *weaviate.Client) {
	schemaGetters := []func() *models.Class{
		GetAnswerCacheSchema,
		GetKnowledgePassageSchema,
		GetIllustrationCacheSchema,
	}

	for _, getSchema := range schemaGetters {
		class := getSchema()
		slog.Info("Checking schema", "class", class.Class)

		// The class getter errors when the class does not exist yet.
		_, err := client.Schema().ClassGetter().WithClassName(class.Class).Do(context.Background())
		if err != nil {
			slog.Info("Schema not found, creating it...", "class", class.Class)
			err := client.Schema().ClassCreator().WithClass(class).Do(context.Background())
			if err != nil {
				log.Fatalf("Failed to create schema for class %s: %v", class.Class, err)
			}
			slog.Info("Successfully created schema", "class", class.Class)
		} else {
			slog.Info("Schema already exists", "class", class.Class)
		}
	}
}
