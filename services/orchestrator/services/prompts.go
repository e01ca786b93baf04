// Copyright (C) 2025 Grok-STEM contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package services

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/EbrahimAbdelwahed/Grok-STEM/services/llm"
)

const reasoningSystemPrompt = `You are GrokSTEM, an expert AI assistant specializing in Science, Technology, Engineering, and Mathematics (STEM). Your goal is to provide clear, accurate, and step-by-step reasoning to help users understand complex problems.
1. Analyze the user's question carefully.
2. If relevant context is provided below under <context>, use it to inform your reasoning. If not, rely on your internal knowledge.
3. Break down the solution into logical, numbered steps. Each step MUST start with '## Step X: Title', where X is the step number and Title is a brief, descriptive summary of the step (e.g., "## Step 1: Identify Given Variables", "## Step 2: Apply Formula Y").
4. Explain the concepts and calculations involved in each step clearly. Define variables and state assumptions.
5. If the question involves mathematical formulas, present them clearly using standard notation (LaTeX can be used within markdown $...$ for inline math and $$...$$ for block math).
6. Conclude with a concise final answer or summary directly addressing the user's original question after all steps.
7. If a simple diagram or illustration would substantially aid understanding, append a single marker as the very last line of your answer: [ILLUSTRATE: a short visual description of the diagram]. Use it sparingly; most answers need no illustration.
8. If the question is outside your STEM expertise, too ambiguous, or cannot be answered reliably based on the context/knowledge, clearly state that you cannot provide an answer and explain why.`

// chartPromptBudget caps how much of the answer is quoted into the
// chart prompt.
const chartPromptBudget = 2500

// illustrationMarkerPattern matches the trailing illustration-request
// marker the system prompt asks for.
var illustrationMarkerPattern = regexp.MustCompile(`(?is)\[ILLUSTRATE:\s*([^\]]+?)\s*\]\s*$`)

// BuildReasoningMessages assembles the reasoning prompt. The context
// block is optional; when empty, the model falls back to internal
// knowledge per the system prompt.
func BuildReasoningMessages(question, contextBlock string) []llm.Message {
	messages := []llm.Message{
		{Role: "system", Content: reasoningSystemPrompt},
	}
	if contextBlock != "" {
		messages = append(messages, llm.Message{
			Role:    "system",
			Content: fmt.Sprintf("Use the following context if relevant:\n<context>\n%s\n</context>", contextBlock),
		})
	}
	messages = append(messages, llm.Message{Role: "user", Content: question})
	return messages
}

// BuildChartMessages assembles the chart-spec prompt from the question
// and the generated answer.
func BuildChartMessages(question, answer string) []llm.Message {
	clipped := answer
	if len(clipped) > chartPromptBudget {
		clipped = clipped[:chartPromptBudget]
	}

	prompt := fmt.Sprintf(`Analyze the following STEM problem and its reasoning/solution context. If the context contains sufficient data or a clearly defined mathematical function suitable for visualization, generate a Plotly JSON object for a relevant plot (e.g., line, scatter).

Problem:
%s

Reasoning/Solution context:
%s

Instructions:
- First, determine if a meaningful plot can be generated from the context. If not, respond with only the single word "NO_PLOT".
- If a plot IS possible, output ONLY the Plotly JSON object.
- Ensure the JSON includes 'data' (an array of traces) and 'layout' objects.
- Choose an appropriate plot type. Infer data points if a function and range are clearly implied (e.g., plot y=sin(x) from -pi to pi). Use a reasonable number of points (e.g., 50-100).
- Label axes clearly and provide a concise, relevant title for the plot.
- Do NOT include explanations, code fences, or any text outside the JSON object or the "NO_PLOT" response.`, question, clipped)

	return []llm.Message{{Role: "user", Content: prompt}}
}

// ExtractIllustrationMarker splits a trailing illustration-request
// marker off the generated answer.
//
// Returns the answer with the marker removed, the requested prompt,
// and whether a marker was present. A marker anywhere other than the
// tail of the text is left alone.
func ExtractIllustrationMarker(answer string) (cleaned, prompt string, found bool) {
	m := illustrationMarkerPattern.FindStringSubmatchIndex(answer)
	if m == nil {
		return answer, "", false
	}
	prompt = strings.TrimSpace(answer[m[2]:m[3]])
	cleaned = strings.TrimRight(answer[:m[0]], " \t\n")
	if prompt == "" {
		return cleaned, "", false
	}
	return cleaned, prompt, true
}
