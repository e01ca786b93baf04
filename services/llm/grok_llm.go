package llm

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
)

// reasoningTemperature matches the reference deployment; reasoning wants
// some variance, unlike the deterministic chart call.
const reasoningTemperature = 0.6

// GrokConfig configures the reasoning client. The backend speaks the
// OpenAI chat-completion protocol; BaseURL points it at xAI.
type GrokConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// GrokClient calls an OpenAI-compatible reasoning model with an effort
// hint. Safe for concurrent use.
type GrokClient struct {
	client *openai.Client
	model  string
}

// NewGrokClient builds a reasoning client from explicit configuration.
// Construction never touches the network; a bad key or URL surfaces on
// the first Reason call.
func NewGrokClient(cfg GrokConfig) (*GrokClient, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("reasoning API key is not set")
	}
	if cfg.Model == "" {
		cfg.Model = "grok-3-mini-beta"
		slog.Warn("Reasoning model not set, defaulting", "model", cfg.Model)
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 450 * time.Second
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	}
	clientCfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}

	slog.Info("Initializing reasoning client", "model", cfg.Model, "baseURL", cfg.BaseURL)
	return &GrokClient{
		client: openai.NewClientWithConfig(clientCfg),
		model:  cfg.Model,
	}, nil
}

// Reason implements the ReasoningClient interface.
//
// Every failure shape is normalized to *ReasoningError: API errors,
// transport errors, empty choices, empty content, and provider error
// payloads smuggled inside a 200 body.
func (g *GrokClient) Reason(ctx context.Context, messages []Message, effort Effort) (string, error) {
	if effort == "" {
		effort = EffortMedium
	}
	slog.Debug("Sending messages to the reasoning model",
		"count", len(messages), "model", g.model, "effort", effort)

	req := openai.ChatCompletionRequest{
		Model:           g.model,
		Messages:        toChatMessages(messages),
		Temperature:     reasoningTemperature,
		ReasoningEffort: string(effort),
	}

	resp, err := g.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", normalizeAPIError(err)
	}

	if len(resp.Choices) == 0 {
		return "", NewReasoningError(KindEmptyContent,
			"the reasoning API returned no choices", nil)
	}

	content := resp.Choices[0].Message.Content
	if strings.TrimSpace(content) == "" {
		return "", NewReasoningError(KindEmptyContent,
			"the reasoning API returned empty content", nil)
	}

	// Some OpenAI-compatible gateways return 200 with an error document
	// in place of the completion text. Fold that into the connection
	// category so the caller has one fatal path.
	if msg, ok := embeddedErrorMessage(content); ok {
		return "", NewReasoningError(KindConnection, msg, nil)
	}

	slog.Debug("Received reasoning response",
		"chars", len(content), "finishReason", resp.Choices[0].FinishReason)
	return content, nil
}

func toChatMessages(messages []Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		out = append(out, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}
	return out
}

// normalizeAPIError maps go-openai errors onto ReasoningError kinds.
func normalizeAPIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.HTTPStatusCode == http.StatusUnauthorized ||
			apiErr.HTTPStatusCode == http.StatusForbidden {
			return NewReasoningError(KindAuth, "the reasoning API rejected the credentials", err)
		}
		return NewReasoningError(KindConnection, "the reasoning API returned an error", err)
	}
	return NewReasoningError(KindConnection, "failed to reach the reasoning API", err)
}

// embeddedErrorMessage detects a provider error document delivered as
// completion content. The shape is {"error": {"message": ...}} or
// {"error": "..."}; anything else is treated as normal prose.
func embeddedErrorMessage(content string) (string, bool) {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "{") {
		return "", false
	}

	var doc struct {
		Error json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal([]byte(trimmed), &doc); err != nil || len(doc.Error) == 0 {
		return "", false
	}

	var asString string
	if err := json.Unmarshal(doc.Error, &asString); err == nil {
		return asString, true
	}
	var asObject struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(doc.Error, &asObject); err == nil && asObject.Message != "" {
		return asObject.Message, true
	}
	return "provider returned an embedded error payload", true
}
