// Copyright (C) 2025 Grok-STEM contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package services

import (
	"log/slog"
	"regexp"
	"strings"
)

// plotKeywords signal visualization or relational intent. Matching is
// case-insensitive over the question and the answer combined. The
// filter is deliberately false-positive tolerant: a wrong "yes" only
// costs one chart-model call that may come back NO_PLOT.
var plotKeywords = []string{
	"plot",
	"graph",
	"visualize",
	"chart",
	"versus",
	" vs. ",
	"relationship between",
	"function of",
}

var (
	// functionPattern matches explicit function definitions: "y =",
	// "f(x) =".
	functionPattern = regexp.MustCompile(`([yY]|f\(x\))\s*=`)

	// coordinatePattern matches explicit coordinate pairs like
	// "(3, -1.5)".
	coordinatePattern = regexp.MustCompile(`\(\s*[\d.\-]+\s*,\s*[\d.\-]+\s*\)`)
)

// PlotNeeded decides whether the chart-spec stage should run at all.
// Checks short-circuit on the first positive signal.
func PlotNeeded(question, answer string) bool {
	if answer == "" {
		return false
	}

	combined := strings.ToLower(question) + " " + strings.ToLower(answer)
	for _, kw := range plotKeywords {
		if strings.Contains(combined, kw) {
			slog.Debug("Plot keyword detected", "keyword", strings.TrimSpace(kw))
			return true
		}
	}

	if functionPattern.MatchString(answer) || coordinatePattern.MatchString(answer) {
		slog.Debug("Function definition or coordinate data detected")
		return true
	}
	return false
}
