package llm

import (
	"context"
	"encoding/json"
)

// Message is a single chat turn sent to a generation backend.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Effort is the reasoning effort hint passed to the reasoning backend.
type Effort string

const (
	EffortLow    Effort = "low"
	EffortMedium Effort = "medium"
	EffortHigh   Effort = "high"
)

// ReasoningClient defines the contract for the reasoning backend.
//
// Implementations must normalize every failure mode into *ReasoningError:
// transport failures, authentication failures, empty choices, empty
// content, and error payloads embedded in a nominally successful body.
// The pipeline treats any error from Reason as fatal to the run.
type ReasoningClient interface {
	Reason(ctx context.Context, messages []Message, effort Effort) (string, error)
}

// ChartClient defines the contract for chart-spec generation.
//
// ChartSpec returns (nil, nil) when no chart is appropriate: the backend
// answered with the NO_PLOT sentinel, the document was missing its
// mandatory data or layout members, or the response failed to parse.
// A non-nil error indicates a transport-level failure; the caller treats
// both outcomes as "no chart".
type ChartClient interface {
	ChartSpec(ctx context.Context, messages []Message) (json.RawMessage, error)
}

// ImageClient defines the contract for illustration generation.
type ImageClient interface {
	GenerateImage(ctx context.Context, prompt string) (string, error)

	// Model reports the image model name, recorded alongside cached
	// illustrations.
	Model() string
}
