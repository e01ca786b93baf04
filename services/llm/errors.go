package llm

import (
	"errors"
	"fmt"
)

// ReasoningErrorKind categorizes reasoning backend failures. Every kind
// is fatal to the pipeline run that triggered the call; the kind exists
// for logging and metrics, not for branching retry behavior.
type ReasoningErrorKind string

const (
	// KindConnection covers transport failures, timeouts, and provider
	// error payloads embedded in a 200 response.
	KindConnection ReasoningErrorKind = "connection"

	// KindAuth covers rejected or missing credentials.
	KindAuth ReasoningErrorKind = "auth"

	// KindEmptyContent covers structurally valid responses whose content
	// is empty or missing. Soft failure on the provider side, fatal here.
	KindEmptyContent ReasoningErrorKind = "empty_content"
)

// ReasoningError is the single error type surfaced by ReasoningClient.
// Boundary adapters fold every provider-specific failure shape into this
// type so the pipeline's fatal-error handling stays single-sourced.
type ReasoningError struct {
	Kind    ReasoningErrorKind
	Message string
	Err     error
}

func (e *ReasoningError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("reasoning %s error: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("reasoning %s error: %s", e.Kind, e.Message)
}

func (e *ReasoningError) Unwrap() error {
	return e.Err
}

// NewReasoningError builds a ReasoningError wrapping an optional cause.
func NewReasoningError(kind ReasoningErrorKind, message string, err error) *ReasoningError {
	return &ReasoningError{Kind: kind, Message: message, Err: err}
}

// IsReasoningError reports whether err is (or wraps) a ReasoningError.
func IsReasoningError(err error) bool {
	var re *ReasoningError
	return errors.As(err, &re)
}
