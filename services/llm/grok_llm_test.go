package llm

import (
	"errors"
	"net/http"
	"testing"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeAPIErrorAuth(t *testing.T) {
	err := normalizeAPIError(&openai.APIError{HTTPStatusCode: http.StatusUnauthorized})

	var rerr *ReasoningError
	require.True(t, errors.As(err, &rerr))
	assert.Equal(t, KindAuth, rerr.Kind)
}

func TestNormalizeAPIErrorConnection(t *testing.T) {
	cases := []struct {
		name string
		err  error
	}{
		{"server error", &openai.APIError{HTTPStatusCode: http.StatusInternalServerError}},
		{"transport failure", errors.New("dial tcp: connection refused")},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := normalizeAPIError(tc.err)

			var rerr *ReasoningError
			require.True(t, errors.As(err, &rerr))
			assert.Equal(t, KindConnection, rerr.Kind)
			assert.ErrorIs(t, err, tc.err, "original error stays unwrappable")
		})
	}
}

func TestEmbeddedErrorMessage(t *testing.T) {
	msg, ok := embeddedErrorMessage(`{"error": {"message": "quota exceeded"}}`)
	require.True(t, ok)
	assert.Equal(t, "quota exceeded", msg)

	msg, ok = embeddedErrorMessage(`{"error": "rate limited"}`)
	require.True(t, ok)
	assert.Equal(t, "rate limited", msg)

	_, ok = embeddedErrorMessage("Step 1: expand the brackets. {x: 1} is not an error.")
	assert.False(t, ok)

	_, ok = embeddedErrorMessage(`{"answer": "42"}`)
	assert.False(t, ok, "objects without an error member are normal content")
}

func TestReasoningErrorUnwrap(t *testing.T) {
	cause := errors.New("underlying failure")
	err := NewReasoningError(KindConnection, "failed to reach the reasoning API", cause)

	assert.True(t, IsReasoningError(err))
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "failed to reach the reasoning API")
}
