// Copyright (C) 2025 Grok-STEM contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package routes

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/EbrahimAbdelwahed/Grok-STEM/services/orchestrator/handlers"
	"github.com/EbrahimAbdelwahed/Grok-STEM/services/orchestrator/services"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type noopPipeline struct{}

func (noopPipeline) Run(ctx context.Context, streamID, sessionID, question string, emit services.EmitFunc) {
}

func setupTestRouter() *gin.Engine {
	router := gin.New()
	SetupRoutes(router, nil, noopPipeline{}, handlers.WebSocketConfig{MessagesPerMinute: 20})
	return router
}

func TestMetricsRoute(t *testing.T) {
	router := setupTestRouter()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "go_goroutines",
		"Prometheus default collectors are exposed")
}

func TestHealthRouteWithoutStore(t *testing.T) {
	router := setupTestRouter()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	router.ServeHTTP(w, req)

	// No Weaviate client configured reports degraded, not a crash.
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "not_configured")
}

func TestChatRouteRequiresWebSocket(t *testing.T) {
	router := setupTestRouter()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/chat/ws", nil)
	router.ServeHTTP(w, req)

	// A plain GET without the upgrade handshake is rejected.
	assert.NotEqual(t, http.StatusOK, w.Code)
}

func TestUnknownRoute(t *testing.T) {
	router := setupTestRouter()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/nope", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}
