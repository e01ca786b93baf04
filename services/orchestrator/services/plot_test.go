// Copyright (C) 2025 Grok-STEM contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPlotNeededKeywordInQuestion(t *testing.T) {
	assert.True(t, PlotNeeded("Can you plot the trajectory?", "The answer is 42."))
	assert.True(t, PlotNeeded("Show me pressure VERSUS volume", "Boyle's law applies."))
	assert.True(t, PlotNeeded("What is the relationship between x and y?", "They are proportional."))
}

func TestPlotNeededKeywordInAnswer(t *testing.T) {
	assert.True(t, PlotNeeded("Explain this", "You could visualize this as a parabola."))
}

func TestPlotNeededFunctionDefinition(t *testing.T) {
	assert.True(t, PlotNeeded("Solve it", "We get y = 3x + 2 for the line."))
	assert.True(t, PlotNeeded("Solve it", "So f(x) = sin(x) over the interval."))
}

func TestPlotNeededCoordinatePairs(t *testing.T) {
	assert.True(t, PlotNeeded("Where does it cross?", "The curve passes through (0, 1) and (2, 5)."))
}

func TestPlotNeededNegative(t *testing.T) {
	assert.False(t, PlotNeeded("What is entropy?", "Entropy measures disorder in a system."))
	assert.False(t, PlotNeeded("Define momentum", ""))
}
