// Copyright (C) 2025 Grok-STEM contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package services

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildReasoningMessagesWithContext(t *testing.T) {
	messages := BuildReasoningMessages("Why is the sky blue?", "Rayleigh scattering notes.")

	require.Len(t, messages, 3)
	assert.Equal(t, "system", messages[0].Role)
	assert.Contains(t, messages[0].Content, "GrokSTEM")
	assert.Equal(t, "system", messages[1].Role)
	assert.Contains(t, messages[1].Content, "<context>")
	assert.Contains(t, messages[1].Content, "Rayleigh scattering notes.")
	assert.Equal(t, "user", messages[2].Role)
	assert.Equal(t, "Why is the sky blue?", messages[2].Content)
}

func TestBuildReasoningMessagesWithoutContext(t *testing.T) {
	messages := BuildReasoningMessages("Why is the sky blue?", "")

	require.Len(t, messages, 2)
	assert.Equal(t, "system", messages[0].Role)
	assert.Equal(t, "user", messages[1].Role)
}

func TestBuildChartMessagesClipsAnswer(t *testing.T) {
	longAnswer := strings.Repeat("x", 6000)

	messages := BuildChartMessages("plot it", longAnswer)

	require.Len(t, messages, 1)
	assert.Equal(t, "user", messages[0].Role)
	assert.Contains(t, messages[0].Content, "NO_PLOT")
	assert.Less(t, len(messages[0].Content), 3500,
		"answer quoted into the prompt is capped")
}

func TestExtractIllustrationMarkerTrailing(t *testing.T) {
	answer := "## Step 1: Draw forces\nThe block slides down.\n[ILLUSTRATE: free body diagram of a block on an incline]"

	cleaned, prompt, found := ExtractIllustrationMarker(answer)

	require.True(t, found)
	assert.Equal(t, "free body diagram of a block on an incline", prompt)
	assert.Equal(t, "## Step 1: Draw forces\nThe block slides down.", cleaned)
}

func TestExtractIllustrationMarkerAbsent(t *testing.T) {
	answer := "Plain answer with no marker."

	cleaned, prompt, found := ExtractIllustrationMarker(answer)

	assert.False(t, found)
	assert.Empty(t, prompt)
	assert.Equal(t, answer, cleaned)
}

func TestExtractIllustrationMarkerMidTextIgnored(t *testing.T) {
	answer := "See [ILLUSTRATE: something] mentioned mid-answer, then more prose."

	cleaned, _, found := ExtractIllustrationMarker(answer)

	assert.False(t, found)
	assert.Equal(t, answer, cleaned)
}

func TestExtractIllustrationMarkerTrailingWhitespace(t *testing.T) {
	answer := "Answer body.\n[ILLUSTRATE: a pendulum ]  \n"

	cleaned, prompt, found := ExtractIllustrationMarker(answer)

	require.True(t, found)
	assert.Equal(t, "a pendulum", prompt)
	assert.Equal(t, "Answer body.", cleaned)
}
