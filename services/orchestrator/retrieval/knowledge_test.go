// Copyright (C) 2025 Grok-STEM contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package retrieval

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildContextJoinsPassages(t *testing.T) {
	passages := []Passage{
		{Text: "Newton's second law states F = ma.", Source: "physics/dynamics.md"},
		{Text: "  Kinetic energy is (1/2)mv^2.  ", Source: "physics/energy.md"},
	}

	got := BuildContext(passages, DefaultContextBudget)

	assert.Equal(t,
		"Newton's second law states F = ma.\n\n---\n\nKinetic energy is (1/2)mv^2.",
		got)
}

func TestBuildContextEmpty(t *testing.T) {
	assert.Equal(t, "", BuildContext(nil, DefaultContextBudget))
	assert.Equal(t, "", BuildContext([]Passage{{Text: "   "}}, DefaultContextBudget))
}

func TestBuildContextClipsToBudget(t *testing.T) {
	passages := []Passage{{Text: strings.Repeat("a", 5000)}}

	got := BuildContext(passages, DefaultContextBudget)

	assert.Len(t, got, DefaultContextBudget)
}

func TestBuildContextClipRespectsRuneBoundary(t *testing.T) {
	// Greek letters are two bytes each; an odd budget would split one.
	passages := []Passage{{Text: strings.Repeat("ω", 100)}}

	got := BuildContext(passages, 33)

	require.True(t, utf8.ValidString(got))
	assert.Equal(t, 32, len(got))
}

func TestBuildContextZeroBudgetMeansUnclipped(t *testing.T) {
	passages := []Passage{{Text: strings.Repeat("b", 4000)}}

	got := BuildContext(passages, 0)

	assert.Len(t, got, 4000)
}
