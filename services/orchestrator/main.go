// Copyright (C) 2025 Grok-STEM contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"log"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/EbrahimAbdelwahed/Grok-STEM/pkg/logging"
	"github.com/EbrahimAbdelwahed/Grok-STEM/services/llm"
	"github.com/EbrahimAbdelwahed/Grok-STEM/services/orchestrator/datatypes"
	"github.com/EbrahimAbdelwahed/Grok-STEM/services/orchestrator/handlers"
	"github.com/EbrahimAbdelwahed/Grok-STEM/services/orchestrator/observability"
	"github.com/EbrahimAbdelwahed/Grok-STEM/services/orchestrator/retrieval"
	"github.com/EbrahimAbdelwahed/Grok-STEM/services/orchestrator/routes"
	"github.com/EbrahimAbdelwahed/Grok-STEM/services/orchestrator/services"
	"github.com/EbrahimAbdelwahed/Grok-STEM/services/orchestrator/settings"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"google.golang.org/grpc/credentials/insecure"

	// --- OpenTelemetry imports ---
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"google.golang.org/grpc"
)

func initTracer() (func(context.Context), error) {
	ctx := context.Background()

	otelEndpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if otelEndpoint == "" {
		otelEndpoint = "grokstem-otel-collector:4317"
	}
	conn, err := grpc.NewClient(otelEndpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, err
	}
	traceExporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, err
	}
	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceNameKey.String("grokstem-orchestrator")))
	if err != nil {
		return nil, err
	}
	bsp := sdktrace.NewBatchSpanProcessor(traceExporter)
	traceProvider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(bsp))
	otel.SetTracerProvider(traceProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.
		TraceContext{}, propagation.Baggage{}))

	return func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, time.Second*5)
		defer cancel()
		if err := traceExporter.Shutdown(ctx); err != nil {
			slog.Error("failed to shutdown OTLP exporter", "error", err)
		}
	}, nil
}

// newWeaviateClient parses the configured URL and, when it is usable,
// connects and ensures the schema. A nil return puts the orchestrator
// in lightweight mode: no semantic cache, no retrieval, no
// illustration cache, but live generation still works.
func newWeaviateClient(rawURL string) *weaviate.Client {
	// Sanitize: trim quotes and whitespace in case the container
	// runtime passes them literally.
	rawURL = strings.Trim(rawURL, "\"' ")
	if rawURL == "" || !strings.Contains(rawURL, "http") {
		slog.Info("Weaviate URL not set or empty. Running in lightweight mode (live generation only).")
		return nil
	}

	parsedURL, err := url.Parse(rawURL)
	if err != nil || parsedURL.Scheme == "" || parsedURL.Host == "" {
		slog.Warn("Weaviate URL is invalid. Running in lightweight mode.",
			"url", rawURL, "error", err)
		return nil
	}

	clientConf := weaviate.Config{
		Host:   parsedURL.Host,
		Scheme: parsedURL.Scheme,
	}
	client, err := weaviate.NewClient(clientConf)
	if err != nil {
		slog.Error("Failed to create Weaviate client", "error", err)
		return nil
	}
	datatypes.EnsureWeaviateSchema(client)
	return client
}

func main() {
	logger := logging.New(logging.Config{
		Level:   logging.LevelInfo,
		LogDir:  os.Getenv("GROKSTEM_LOG_DIR"),
		Service: "orchestrator",
		JSON:    true,
	})
	defer logger.Close()
	slog.SetDefault(logger.Slog())

	cleanup, err := initTracer()
	if err != nil {
		log.Fatalf("failed to setup the OTLP tracer: %v", err)
	}
	defer cleanup(context.Background())

	cfg, err := settings.Load(os.Getenv("GROKSTEM_SETTINGS"))
	if err != nil {
		log.Fatalf("FATAL: could not load settings: %v", err)
	}

	// The datatypes embedding layer reads this directly; keep it in
	// sync with the settings file when only the latter is set.
	if os.Getenv("EMBEDDING_SERVICE_URL") == "" && cfg.Embedding.ServiceURL != "" {
		os.Setenv("EMBEDDING_SERVICE_URL", cfg.Embedding.ServiceURL)
	}

	weaviateClient := newWeaviateClient(cfg.Weaviate.URL)

	slog.Info("Configuring the reasoning client", "model", cfg.Reasoning.Model)
	reasoner, err := llm.NewGrokClient(llm.GrokConfig{
		APIKey:  cfg.Reasoning.APIKey,
		BaseURL: cfg.Reasoning.BaseURL,
		Model:   cfg.Reasoning.Model,
		Timeout: cfg.Reasoning.Timeout,
	})
	if err != nil {
		log.Fatalf("FATAL: could not initialize the reasoning client: %v", err)
	}

	var charts llm.ChartClient
	var images llm.ImageClient
	if cfg.Charts.APIKey != "" {
		openaiClient, err := llm.NewOpenAIClient(llm.OpenAIConfig{
			APIKey:     cfg.Charts.APIKey,
			BaseURL:    cfg.Charts.BaseURL,
			ChartModel: cfg.Charts.Model,
			ImageModel: cfg.Images.Model,
		})
		if err != nil {
			log.Fatalf("FATAL: could not initialize the chart/image client: %v", err)
		}
		charts = openaiClient
		images = openaiClient
	} else {
		slog.Warn("OPENAI_API_KEY not set, charts and illustrations are disabled")
	}

	queue := services.NewWorkQueue(
		int64(cfg.Pipeline.BackgroundWorkers), cfg.Pipeline.BackgroundTimeout)

	var answerCache services.AnswerCache
	var retriever services.ContextRetriever
	var illustrationCache services.IllustrationCache
	if weaviateClient != nil {
		embedder := retrieval.NewServiceEmbedder()
		answerCache = retrieval.NewWeaviateAnswerCache(weaviateClient, embedder,
			retrieval.AnswerCacheConfig{Certainty: cfg.Cache.AnswerCertainty})
		retriever = retrieval.NewWeaviateKnowledgeRetriever(
			weaviateClient, embedder, cfg.Pipeline.RetrievalTopK)
		illustrationCache = retrieval.NewWeaviateIllustrationCache(
			weaviateClient, embedder, cfg.Cache.IllustrationCertainty)
	}

	var illustrator *services.IllustrationCoordinator
	if images != nil {
		illustrator = services.NewIllustrationCoordinator(
			illustrationCache, images, queue,
			cfg.Images.MaxAttempts, cfg.Images.RetryDelay)
	}

	metrics := observability.InitMetrics()

	pipeline := services.NewPipeline(
		answerCache,
		retriever,
		reasoner,
		charts,
		illustrator,
		queue,
		metrics,
		services.PipelineConfig{
			Effort:        llm.Effort(cfg.Reasoning.Effort),
			ContextBudget: cfg.Pipeline.ContextBudget,
		},
	)

	router := gin.Default()
	router.Use(otelgin.Middleware("grokstem-orchestrator"))

	routes.SetupRoutes(router, weaviateClient, pipeline, handlers.WebSocketConfig{
		AllowedOrigins:    cfg.Server.AllowedOrigins,
		MessagesPerMinute: cfg.Server.MessagesPerMinute,
	})

	port := strconv.Itoa(cfg.Server.Port)
	slog.Info("Starting the orchestrator server", "port", port)
	if err := router.Run(":" + port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
