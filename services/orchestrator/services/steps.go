// Copyright (C) 2025 Grok-STEM contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package services

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/EbrahimAbdelwahed/Grok-STEM/services/orchestrator/datatypes"
)

// stepPattern matches outline markers like "## Step 2: Apply the
// formula". Line-oriented and case-insensitive; the heading prefix is
// one to four hashes.
var stepPattern = regexp.MustCompile(`(?mi)^[ \t]*#{1,4}[ \t]*step[ \t]+(\d+)[ \t]*[:\-]?[ \t]*(.*?)[ \t]*$`)

// ExtractSteps scans generated text for step outline markers and
// returns them in document order.
//
// # Description
//
// The step id is "step-<n>" with <n> taken verbatim from the text, so
// the model's own numbering survives even when it skips or repeats
// numbers. If the captured title already restates "Step ..." it is
// kept as-is; otherwise the number is prefixed for display. Text with
// no markers yields an empty list, which is a normal outcome, not an
// error.
func ExtractSteps(text string) []datatypes.StepInfo {
	if text == "" {
		return nil
	}

	matches := stepPattern.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		slog.Debug("No step markers found in generated text")
		return nil
	}

	steps := make([]datatypes.StepInfo, 0, len(matches))
	for _, m := range matches {
		num := m[1]
		title := strings.TrimSpace(m[2])

		display := fmt.Sprintf("Step %s", num)
		if title != "" {
			if strings.HasPrefix(strings.ToLower(title), "step") {
				display = title
			} else {
				display = fmt.Sprintf("Step %s: %s", num, title)
			}
		}

		steps = append(steps, datatypes.StepInfo{
			Id:    "step-" + num,
			Title: display,
		})
	}

	slog.Info("Extracted step outline", "count", len(steps))
	return steps
}
