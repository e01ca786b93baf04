package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
)

// NoPlotSentinel is what the chart model must answer when a question
// does not warrant a figure. Detection is case-insensitive and
// tolerates surrounding prose.
const NoPlotSentinel = "NO_PLOT"

// chartTemperature keeps the JSON-mode chart call near-deterministic.
const chartTemperature = 0.1

// OpenAIConfig configures the chart and image client.
type OpenAIConfig struct {
	APIKey     string
	BaseURL    string
	ChartModel string
	ImageModel string
	Timeout    time.Duration
}

// OpenAIClient serves the two non-reasoning generation concerns: the
// JSON-mode chart specification call and image generation. Safe for
// concurrent use.
type OpenAIClient struct {
	client     *openai.Client
	chartModel string
	imageModel string
}

// NewOpenAIClient builds the chart/image client.
func NewOpenAIClient(cfg OpenAIConfig) (*OpenAIClient, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("OpenAI API key is not set")
	}
	if cfg.ChartModel == "" {
		cfg.ChartModel = openai.GPT4oMini
	}
	if cfg.ImageModel == "" {
		cfg.ImageModel = "dall-e-3"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 120 * time.Second
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	}
	clientCfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}

	slog.Info("Initializing chart/image client",
		"chartModel", cfg.ChartModel, "imageModel", cfg.ImageModel)
	return &OpenAIClient{
		client:     openai.NewClientWithConfig(clientCfg),
		chartModel: cfg.ChartModel,
		imageModel: cfg.ImageModel,
	}, nil
}

// ChartSpec implements the ChartClient interface.
//
// A (nil, nil) return means the model declined to produce a chart; the
// caller treats that the same as any other no-chart outcome. A non-nil
// result is guaranteed to be a JSON object with both "data" and
// "layout" members.
func (o *OpenAIClient) ChartSpec(ctx context.Context, messages []Message) (json.RawMessage, error) {
	req := openai.ChatCompletionRequest{
		Model:       o.chartModel,
		Messages:    toChatMessages(messages),
		Temperature: chartTemperature,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	}

	resp, err := o.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("chart completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("chart completion returned no choices")
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if IsNoPlot(content) {
		slog.Debug("Chart model declined to produce a figure")
		return nil, nil
	}

	spec, err := ValidateChartDocument(content)
	if err != nil {
		return nil, fmt.Errorf("chart completion returned an invalid document: %w", err)
	}
	return spec, nil
}

// GenerateImage implements the ImageClient interface. It returns a
// hosted URL for the generated image.
func (o *OpenAIClient) GenerateImage(ctx context.Context, prompt string) (string, error) {
	resp, err := o.client.CreateImage(ctx, openai.ImageRequest{
		Model:          o.imageModel,
		Prompt:         prompt,
		N:              1,
		Size:           openai.CreateImageSize1024x1024,
		ResponseFormat: openai.CreateImageResponseFormatURL,
	})
	if err != nil {
		return "", fmt.Errorf("image generation failed: %w", err)
	}
	if len(resp.Data) == 0 || resp.Data[0].URL == "" {
		return "", errors.New("image generation returned no URL")
	}
	return resp.Data[0].URL, nil
}

// Model returns the image model identifier, recorded alongside cached
// illustrations.
func (o *OpenAIClient) Model() string {
	return o.imageModel
}

// IsNoPlot reports whether a chart response is the decline sentinel.
// JSON mode sometimes wraps the sentinel in an object, so both the bare
// token and a small object containing it count.
func IsNoPlot(content string) bool {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return true
	}
	upper := strings.ToUpper(trimmed)
	if upper == NoPlotSentinel {
		return true
	}
	// e.g. {"result": "NO_PLOT"} — a tiny object mentioning the
	// sentinel with no chart members.
	if strings.HasPrefix(trimmed, "{") && len(trimmed) < 64 &&
		strings.Contains(upper, NoPlotSentinel) {
		return true
	}
	return false
}

// ValidateChartDocument checks that content is a JSON object with
// non-null "data" and "layout" members and returns it unmodified as a
// raw document.
func ValidateChartDocument(content string) (json.RawMessage, error) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal([]byte(content), &doc); err != nil {
		return nil, fmt.Errorf("not a JSON object: %w", err)
	}
	data, ok := doc["data"]
	if !ok || isJSONNull(data) {
		return nil, errors.New(`missing "data" member`)
	}
	layout, ok := doc["layout"]
	if !ok || isJSONNull(layout) {
		return nil, errors.New(`missing "layout" member`)
	}
	return json.RawMessage(content), nil
}

func isJSONNull(raw json.RawMessage) bool {
	return strings.TrimSpace(string(raw)) == "null"
}
