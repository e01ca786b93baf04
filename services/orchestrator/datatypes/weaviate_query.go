// Copyright (C) 2025 Grok-STEM contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datatypes

import (
	"encoding/json"
	"fmt"

	"github.com/weaviate/weaviate/entities/models"
)

// ParseGraphQLResponse parses a Weaviate GraphQL response into the target type.
//
// # Description
//
// Encapsulates the marshal/unmarshal round trip needed to convert the
// client's dynamic response (map[string]models.JSONObject) into a
// strongly-typed struct. The target type T must carry json tags matching
// the response shape.
//
// # Limitations
//
//   - Type mismatches produce zero values, not errors.
//
// # Example
//
//	resp, err := client.GraphQL().Get().WithClassName("AnswerCache").Do(ctx)
//	if err != nil { ... }
//	parsed, err := ParseGraphQLResponse[AnswerCacheQueryResponse](resp)
func ParseGraphQLResponse[T any](resp *models.GraphQLResponse) (*T, error) {
	if resp == nil {
		return nil, fmt.Errorf("nil GraphQL response")
	}

	respBytes, err := json.Marshal(resp.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal GraphQL response data: %w", err)
	}

	var result T
	if err := json.Unmarshal(respBytes, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal into target type: %w", err)
	}

	return &result, nil
}

// AdditionalFields carries Weaviate's _additional metadata for a hit.
// Certainty is requested instead of distance because it is always in
// [0, 1] regardless of the index's distance metric.
type AdditionalFields struct {
	ID        string   `json:"id"`
	Certainty *float64 `json:"certainty"`
}

// AnswerCacheQueryResponse is the response shape for AnswerCache queries.
type AnswerCacheQueryResponse struct {
	Get struct {
		AnswerCache []AnswerCacheResult `json:"AnswerCache"`
	} `json:"Get"`
}

// AnswerCacheResult is a single cached-answer hit.
type AnswerCacheResult struct {
	QuestionText string           `json:"question_text"`
	ResponseData string           `json:"response_data"`
	CreatedAt    int64            `json:"created_at"`
	Additional   AdditionalFields `json:"_additional"`
}

// KnowledgePassageQueryResponse is the response shape for
// KnowledgePassage queries.
type KnowledgePassageQueryResponse struct {
	Get struct {
		KnowledgePassage []KnowledgePassageResult `json:"KnowledgePassage"`
	} `json:"Get"`
}

// KnowledgePassageResult is a single retrieved corpus passage.
type KnowledgePassageResult struct {
	TextContent string           `json:"text_content"`
	Source      string           `json:"source"`
	Domain      string           `json:"domain"`
	Additional  AdditionalFields `json:"_additional"`
}

// IllustrationCacheQueryResponse is the response shape for
// IllustrationCache queries.
type IllustrationCacheQueryResponse struct {
	Get struct {
		IllustrationCache []IllustrationCacheResult `json:"IllustrationCache"`
	} `json:"Get"`
}

// IllustrationCacheResult is a single cached-illustration hit.
type IllustrationCacheResult struct {
	PromptText string           `json:"prompt_text"`
	ImageURL   string           `json:"image_url"`
	Model      string           `json:"model"`
	Additional AdditionalFields `json:"_additional"`
}
