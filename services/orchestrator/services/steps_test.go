// Copyright (C) 2025 Grok-STEM contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package services

import (
	"testing"

	"github.com/EbrahimAbdelwahed/Grok-STEM/services/orchestrator/datatypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractStepsBasic(t *testing.T) {
	text := "Let's work through this.\n" +
		"## Step 1: Identify Given Variables\n" +
		"We have m = 2 kg and a = 3 m/s^2.\n" +
		"## Step 2: Apply Formula\n" +
		"F = ma = 6 N.\n"

	steps := ExtractSteps(text)

	require.Len(t, steps, 2)
	assert.Equal(t, "step-1", steps[0].Id)
	assert.Equal(t, "Step 1: Identify Given Variables", steps[0].Title)
	assert.Equal(t, "step-2", steps[1].Id)
	assert.Equal(t, "Step 2: Apply Formula", steps[1].Title)
}

func TestExtractStepsCaseAndPrefixVariants(t *testing.T) {
	text := "#### step 3 - Solve the integral\n" +
		"# STEP 4: Check units\n"

	steps := ExtractSteps(text)

	require.Len(t, steps, 2)
	assert.Equal(t, "step-3", steps[0].Id)
	assert.Equal(t, "Step 3: Solve the integral", steps[0].Title)
	assert.Equal(t, "step-4", steps[1].Id)
	assert.Equal(t, "Step 4: Check units", steps[1].Title)
}

func TestExtractStepsTitleAlreadyRestatesStep(t *testing.T) {
	text := "## Step 2: Step 2 is the hard part\n"

	steps := ExtractSteps(text)

	require.Len(t, steps, 1)
	assert.Equal(t, "Step 2 is the hard part", steps[0].Title,
		"a title that already says Step is kept verbatim")
}

func TestExtractStepsMissingTitle(t *testing.T) {
	steps := ExtractSteps("## Step 5\nSome working.\n")

	require.Len(t, steps, 1)
	assert.Equal(t, "step-5", steps[0].Id)
	assert.Equal(t, "Step 5", steps[0].Title)
}

func TestExtractStepsPreservesModelNumbering(t *testing.T) {
	// Skipped and repeated numbers come through untouched.
	text := "## Step 1: First\n## Step 3: Third\n## Step 3: Third again\n"

	steps := ExtractSteps(text)

	require.Len(t, steps, 3)
	assert.Equal(t, "step-1", steps[0].Id)
	assert.Equal(t, "step-3", steps[1].Id)
	assert.Equal(t, "step-3", steps[2].Id)
}

func TestExtractStepsNoMarkers(t *testing.T) {
	assert.Empty(t, ExtractSteps("Just prose, no outline headings at all."))
	assert.Empty(t, ExtractSteps(""))
}

func TestExtractStepsIdempotent(t *testing.T) {
	text := "## Step 1: One\n## Step 2: Two\n"

	first := ExtractSteps(text)
	second := ExtractSteps(text)

	assert.Equal(t, first, second)
}

func TestExtractStepsIgnoresInlineMentions(t *testing.T) {
	// "Step" mid-line without a heading prefix is not an outline marker.
	steps := ExtractSteps("As shown in Step 2 above, we substitute.\n")

	assert.Empty(t, steps)
}

func TestExtractStepsReturnsStepInfoValues(t *testing.T) {
	steps := ExtractSteps("## Step 1: Setup\n")

	require.Len(t, steps, 1)
	assert.IsType(t, datatypes.StepInfo{}, steps[0])
}
