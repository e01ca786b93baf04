// Copyright (C) 2025 Grok-STEM contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package ingest loads STEM corpus files into the KnowledgePassage
// collection.
//
// # Description
//
// Files are split into overlapping chunks with a recursive character
// splitter, embedded in one batch call against the embedding sidecar,
// and written to Weaviate as one batch import. Chunk object ids are
// derived from the chunk text, so re-ingesting an unchanged file is a
// no-op at the storage layer.
package ingest

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-openapi/strfmt"
	"github.com/google/uuid"
	"github.com/tmc/langchaingo/textsplitter"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate/entities/models"

	"github.com/EbrahimAbdelwahed/Grok-STEM/services/orchestrator/datatypes"
)

const (
	chunkSize    = 1000
	chunkOverlap = 150
)

var (
	defaultSeparators = []string{"\n\n", "\n", " ", ""}

	markdownSeparators = []string{
		"\n# ", "\n## ", "\n### ", "\n#### ", "\n##### ", "\n###### ",
		"\n\n", "\n", " ", "",
	}
)

// ingestibleExtensions lists the corpus file types we accept.
var ingestibleExtensions = map[string]bool{
	".md":       true,
	".markdown": true,
	".txt":      true,
}

type batchEmbeddingRequest struct {
	Texts []string `json:"texts"`
}

type batchEmbeddingResponse struct {
	Vectors [][]float32 `json:"vectors"`
}

// Report summarizes one ingestion run.
type Report struct {
	Files  int
	Chunks int
	Stored int
}

// Ingestor writes corpus chunks into Weaviate.
//
// # Thread Safety
//
// Safe for concurrent use; each call builds its own requests.
type Ingestor struct {
	client        *weaviate.Client
	batchEmbedURL string
	httpClient    *http.Client
}

// New creates an Ingestor. The embedding sidecar location comes from
// EMBEDDING_SERVICE_URL, the same variable the orchestrator uses for
// single-text embedding.
func New(client *weaviate.Client) (*Ingestor, error) {
	if client == nil {
		return nil, fmt.Errorf("weaviate client is required for ingestion")
	}
	base := os.Getenv("EMBEDDING_SERVICE_URL")
	if base == "" {
		return nil, fmt.Errorf("EMBEDDING_SERVICE_URL is not set")
	}
	return &Ingestor{
		client:        client,
		batchEmbedURL: strings.TrimSuffix(base, "/embed") + "/batch_embed",
		// Batch embedding of a large file can take a while.
		httpClient: &http.Client{Timeout: 5 * time.Minute},
	}, nil
}

// IngestDir walks dir and ingests every markdown and text file found.
// Per-file failures are logged and skipped; the walk continues.
func (in *Ingestor) IngestDir(ctx context.Context, dir string) (Report, error) {
	var report Report
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !Ingestible(path) {
			return nil
		}
		stored, chunks, ferr := in.IngestFile(ctx, path)
		if ferr != nil {
			slog.Error("Skipping file after ingestion failure", "path", path, "error", ferr)
			return nil
		}
		report.Files++
		report.Chunks += chunks
		report.Stored += stored
		return nil
	})
	return report, err
}

// IngestFile chunks, embeds, and stores a single file. It returns the
// number of chunks stored and the number produced by splitting.
func (in *Ingestor) IngestFile(ctx context.Context, path string) (stored, chunks int, err error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return 0, 0, fmt.Errorf("reading %s: %w", path, err)
	}

	pieces, err := splitterFor(path).SplitText(string(content))
	if err != nil {
		return 0, 0, fmt.Errorf("splitting %s: %w", path, err)
	}
	if len(pieces) == 0 {
		slog.Warn("No chunks produced after splitting", "path", path)
		return 0, 0, nil
	}

	vectors, err := in.batchEmbed(ctx, pieces)
	if err != nil {
		return 0, len(pieces), err
	}
	if len(vectors) != len(pieces) {
		return 0, len(pieces), fmt.Errorf(
			"embedding service returned %d vectors for %d chunks", len(vectors), len(pieces))
	}

	source := filepath.Base(path)
	domain := DomainFor(path)
	now := time.Now().UnixMilli()

	objects := make([]*models.Object, len(pieces))
	for i, piece := range pieces {
		payload := datatypes.KnowledgePassagePayload{
			TextContent: piece,
			Source:      fmt.Sprintf("%s#%d", source, i+1),
			Domain:      domain,
			IngestedAt:  now,
		}
		objects[i] = &models.Object{
			Class:      datatypes.ClassKnowledgePassage,
			ID:         strfmt.UUID(ChunkID(piece)),
			Vector:     vectors[i],
			Properties: payload.ToMap(),
		}
	}

	resp, err := in.client.Batch().ObjectsBatcher().WithObjects(objects...).Do(ctx)
	if err != nil {
		return 0, len(pieces), fmt.Errorf("batch import failed for %s: %w", path, err)
	}
	for _, item := range resp {
		if item.Result != nil && item.Result.Status != nil && *item.Result.Status == "SUCCESS" {
			stored++
		} else if item.Result != nil && item.Result.Errors != nil {
			for _, e := range item.Result.Errors.Error {
				slog.Warn("Weaviate rejected a chunk", "source", source, "error", e.Message)
			}
		}
	}

	slog.Info("Ingested file", "path", path, "chunks", len(pieces), "stored", stored)
	return stored, len(pieces), nil
}

func (in *Ingestor) batchEmbed(ctx context.Context, texts []string) ([][]float32, error) {
	body, err := json.Marshal(batchEmbeddingRequest{Texts: texts})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, in.batchEmbedURL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := in.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("batch embed call failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading batch embed response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("batch embed returned status %d: %s", resp.StatusCode, string(raw))
	}

	var decoded batchEmbeddingResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("decoding batch embed response: %w", err)
	}
	return decoded.Vectors, nil
}

// Ingestible reports whether path is a corpus file type we accept.
func Ingestible(path string) bool {
	return ingestibleExtensions[strings.ToLower(filepath.Ext(path))]
}

// DomainFor derives the subject domain from the file's parent
// directory, so a corpus laid out as physics/kinematics.md tags its
// passages with "physics". Files at the corpus root get "general".
func DomainFor(path string) string {
	parent := filepath.Base(filepath.Dir(path))
	if parent == "." || parent == string(filepath.Separator) || parent == "" {
		return "general"
	}
	return strings.ToLower(parent)
}

// ChunkID derives a stable object id from the chunk text.
func ChunkID(chunk string) string {
	hash := sha256.Sum256([]byte(chunk))
	id, _ := uuid.FromBytes(hash[:16])
	return id.String()
}

func splitterFor(path string) textsplitter.TextSplitter {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".markdown":
		return textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(chunkSize),
			textsplitter.WithChunkOverlap(chunkOverlap),
			textsplitter.WithSeparators(markdownSeparators),
		)
	default:
		return textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(chunkSize),
			textsplitter.WithChunkOverlap(chunkOverlap),
			textsplitter.WithSeparators(defaultSeparators),
		)
	}
}
