// Copyright (C) 2025 Grok-STEM contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datatypes

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

// EmbeddingRequest is the request body for the embedding sidecar.
type EmbeddingRequest struct {
	Text string `json:"text"`
}

// EmbeddingResponse is the embedding sidecar's response. The vector is
// deterministic for identical input within one model version.
type EmbeddingResponse struct {
	Id        string    `json:"id"`
	Timestamp int       `json:"timestamp"`
	Text      string    `json:"text"`
	Vector    []float32 `json:"vector"`
	Dim       int       `json:"dim"`
}

var embeddingHTTPClient = &http.Client{
	Timeout: 30 * time.Second,
}

// GetWithContext fills the response by calling the embedding service at
// EMBEDDING_SERVICE_URL. The caller owns timeout and cancellation via ctx.
func (e *EmbeddingResponse) GetWithContext(ctx context.Context, text string) error {
	embeddingServiceURL := os.Getenv("EMBEDDING_SERVICE_URL")
	if embeddingServiceURL == "" {
		return fmt.Errorf("EMBEDDING_SERVICE_URL is not set")
	}

	reqBody, err := json.Marshal(EmbeddingRequest{Text: text})
	if err != nil {
		return fmt.Errorf("failed to marshal the embedding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, embeddingServiceURL,
		bytes.NewBuffer(reqBody))
	if err != nil {
		return fmt.Errorf("failed to build the embedding request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Cache-Control", "no-cache, no-store, must-revalidate")

	resp, err := embeddingHTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach the embedding service: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("the embedding service returned %d: %s", resp.StatusCode,
			string(bodyBytes))
	}

	if err := json.Unmarshal(bodyBytes, e); err != nil {
		return fmt.Errorf("failed to parse the embedding response: %w", err)
	}
	if len(e.Vector) == 0 {
		return fmt.Errorf("the embedding service returned an empty vector")
	}
	return nil
}
