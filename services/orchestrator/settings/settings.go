// Copyright (C) 2025 Grok-STEM contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package settings loads orchestrator configuration: defaults, then an
// optional YAML file, then environment variable overrides. Secrets
// (API keys) come from the environment only and never appear in YAML.
package settings

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Settings is the full orchestrator configuration.
type Settings struct {
	Server    ServerSettings    `yaml:"server"`
	Weaviate  WeaviateSettings  `yaml:"weaviate"`
	Embedding EmbeddingSettings `yaml:"embedding"`
	Reasoning ReasoningSettings `yaml:"reasoning"`
	Charts    ChartSettings     `yaml:"charts"`
	Images    ImageSettings     `yaml:"images"`
	Cache     CacheSettings     `yaml:"cache"`
	Pipeline  PipelineSettings  `yaml:"pipeline"`
}

// ServerSettings configures the HTTP/WebSocket listener.
type ServerSettings struct {
	// Port the gin server listens on.
	Port int `yaml:"port" validate:"min=1,max=65535"`

	// AllowedOrigins restricts WebSocket upgrades. Empty allows all,
	// for local development.
	AllowedOrigins []string `yaml:"allowed_origins"`

	// MessagesPerMinute rate-limits questions per connection.
	MessagesPerMinute int `yaml:"messages_per_minute" validate:"min=1"`
}

// WeaviateSettings configures the vector store connection.
type WeaviateSettings struct {
	// URL of the Weaviate instance, e.g. "http://weaviate:8080".
	URL string `yaml:"url" validate:"required,url"`
}

// EmbeddingSettings configures the embedding sidecar.
type EmbeddingSettings struct {
	// ServiceURL of the embedding endpoint. Also settable via
	// EMBEDDING_SERVICE_URL, which the datatypes layer reads directly.
	ServiceURL string `yaml:"service_url" validate:"required,url"`
}

// ReasoningSettings configures the reasoning model boundary.
type ReasoningSettings struct {
	// APIKey is env-only (XAI_API_KEY).
	APIKey string `yaml:"-" validate:"required"`

	BaseURL string `yaml:"base_url" validate:"omitempty,url"`
	Model   string `yaml:"model"`

	// Effort hint passed to the model.
	Effort string `yaml:"effort" validate:"omitempty,oneof=low medium high"`

	// Timeout for one reasoning call.
	Timeout time.Duration `yaml:"timeout"`
}

// ChartSettings configures the chart-spec model boundary.
type ChartSettings struct {
	// APIKey is env-only (OPENAI_API_KEY).
	APIKey string `yaml:"-"`

	BaseURL string `yaml:"base_url" validate:"omitempty,url"`
	Model   string `yaml:"model"`
}

// ImageSettings configures image generation.
type ImageSettings struct {
	Model string `yaml:"model"`

	// MaxAttempts bounds generation retries per illustration.
	MaxAttempts int `yaml:"max_attempts" validate:"min=1,max=10"`

	// RetryDelay is the fixed wait between attempts.
	RetryDelay time.Duration `yaml:"retry_delay"`
}

// CacheSettings tunes the semantic caches.
type CacheSettings struct {
	// AnswerCertainty is the hit threshold for the answer cache.
	AnswerCertainty float64 `yaml:"answer_certainty" validate:"gt=0,lte=1"`

	// IllustrationCertainty is the hit threshold for illustrations.
	IllustrationCertainty float64 `yaml:"illustration_certainty" validate:"gt=0,lte=1"`
}

// PipelineSettings tunes the response pipeline.
type PipelineSettings struct {
	// RetrievalTopK is how many corpus passages to retrieve.
	RetrievalTopK int `yaml:"retrieval_top_k" validate:"min=1"`

	// ContextBudget caps the assembled context block, in bytes.
	ContextBudget int `yaml:"context_budget" validate:"min=1"`

	// BackgroundWorkers bounds concurrent fire-and-forget tasks.
	BackgroundWorkers int `yaml:"background_workers" validate:"min=1"`

	// BackgroundTimeout bounds one background task.
	BackgroundTimeout time.Duration `yaml:"background_timeout"`
}

// Default returns the production defaults. API keys are left empty and
// must come from the environment.
func Default() *Settings {
	return &Settings{
		Server: ServerSettings{
			Port:              8000,
			MessagesPerMinute: 20,
		},
		Weaviate: WeaviateSettings{
			URL: "http://weaviate:8080",
		},
		Embedding: EmbeddingSettings{
			ServiceURL: "http://embedding-service:8001/embed",
		},
		Reasoning: ReasoningSettings{
			BaseURL: "https://api.x.ai/v1",
			Model:   "grok-3-mini-beta",
			Effort:  "medium",
			Timeout: 450 * time.Second,
		},
		Charts: ChartSettings{
			Model: "gpt-4o-mini",
		},
		Images: ImageSettings{
			Model:       "dall-e-3",
			MaxAttempts: 3,
			RetryDelay:  1500 * time.Millisecond,
		},
		Cache: CacheSettings{
			AnswerCertainty:       0.92,
			IllustrationCertainty: 0.95,
		},
		Pipeline: PipelineSettings{
			RetrievalTopK:     3,
			ContextBudget:     3500,
			BackgroundWorkers: 8,
			BackgroundTimeout: 30 * time.Second,
		},
	}
}

// Load builds Settings from defaults, an optional YAML file, and
// environment overrides, then validates the result.
func Load(path string) (*Settings, error) {
	s := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to read settings file: %w", err)
			}
			slog.Warn("Settings file not found, using defaults", "path", path)
		} else {
			if err := yaml.Unmarshal(data, s); err != nil {
				return nil, fmt.Errorf("failed to parse settings file: %w", err)
			}
			slog.Info("Loaded settings file", "path", path)
		}
	}

	s.applyEnv()

	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Validate checks the settings with struct tags.
func (s *Settings) Validate() error {
	if err := validator.New().Struct(s); err != nil {
		return fmt.Errorf("invalid settings: %w", err)
	}
	return nil
}

// applyEnv overlays environment variables onto the settings. Env wins
// over YAML, matching the container deployment model.
func (s *Settings) applyEnv() {
	if v := os.Getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			s.Server.Port = port
		} else {
			slog.Warn("Ignoring non-numeric PORT", "value", v)
		}
	}
	if v := os.Getenv("WEAVIATE_URL"); v != "" {
		s.Weaviate.URL = v
	}
	if v := os.Getenv("EMBEDDING_SERVICE_URL"); v != "" {
		s.Embedding.ServiceURL = v
	}
	if v := os.Getenv("XAI_API_KEY"); v != "" {
		s.Reasoning.APIKey = v
	}
	if v := os.Getenv("XAI_BASE_URL"); v != "" {
		s.Reasoning.BaseURL = v
	}
	if v := os.Getenv("REASONING_MODEL"); v != "" {
		s.Reasoning.Model = v
	}
	if v := os.Getenv("REASONING_EFFORT"); v != "" {
		s.Reasoning.Effort = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		s.Charts.APIKey = v
	}
}
