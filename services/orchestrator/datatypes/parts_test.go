// Copyright (C) 2025 Grok-STEM contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datatypes

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/weaviate/weaviate/entities/models"
)

func TestDecodeCachedParts_MalformedPayloadIsMiss(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{"truncated JSON", `{not json`},
		{"empty string", ``},
		{"empty array", `[]`},
		{"JSON string, not an array", `"a string"`},
		{"JSON object, not an array", `{"type":"text"}`},
		{"JSON null", `null`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parts, ok := DecodeCachedParts(tt.payload)
			assert.False(t, ok)
			assert.Nil(t, parts)
		})
	}
}

func TestDecodeCachedParts_ValidPayloadIsHit(t *testing.T) {
	parts, ok := DecodeCachedParts(`[{"type":"text","content":"The answer is 4."}]`)
	require.True(t, ok)
	require.Len(t, parts, 1)
	assert.Equal(t, PartText, parts[0].Type)
	assert.Equal(t, "The answer is 4.", parts[0].Content)
}

func TestDecodeCachedParts_RoundTrip(t *testing.T) {
	stored := []ResponsePart{
		NewTextPart("", "", "A block slides down a ramp."),
		NewStepsPart("", "", []StepInfo{{Id: "step-1", Title: "Step 1: Draw forces"}}),
	}
	payload, err := NewAnswerCachePayload("ramp question", stored)
	require.NoError(t, err)

	decoded, ok := DecodeCachedParts(payload.ResponseData)
	require.True(t, ok)
	require.Len(t, decoded, 2)
	assert.Equal(t, stored[0].Content, decoded[0].Content)
	assert.Equal(t, stored[1].Steps, decoded[1].Steps)
}

// A corrupt response_data arriving through a real GraphQL hit must
// decode as a miss, never an error, so the cache degrades silently.
func TestAnswerCacheQuery_CorruptPayloadDecodesAsMiss(t *testing.T) {
	resp := &models.GraphQLResponse{
		Data: map[string]models.JSONObject{
			"Get": map[string]interface{}{
				"AnswerCache": []interface{}{
					map[string]interface{}{
						"question_text": "plot y = sin(x)",
						"response_data": `{corrupt`,
						"created_at":    1700000000000,
						"_additional":   map[string]interface{}{"certainty": 0.97},
					},
				},
			},
		},
	}

	parsed, err := ParseGraphQLResponse[AnswerCacheQueryResponse](resp)
	require.NoError(t, err)
	require.Len(t, parsed.Get.AnswerCache, 1)

	parts, ok := DecodeCachedParts(parsed.Get.AnswerCache[0].ResponseData)
	assert.False(t, ok)
	assert.Nil(t, parts)
}
