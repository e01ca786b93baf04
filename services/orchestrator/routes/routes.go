// Copyright (C) 2025 Grok-STEM contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"

	"github.com/EbrahimAbdelwahed/Grok-STEM/services/orchestrator/handlers"
)

// SetupRoutes registers the orchestrator's endpoints.
func SetupRoutes(router *gin.Engine, client *weaviate.Client, pipeline handlers.PipelineRunner, wsConfig handlers.WebSocketConfig) {
	router.GET("/health", handlers.HealthCheck(client))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/v1")
	{
		v1.GET("/chat/ws", handlers.HandleChatWebSocket(pipeline, wsConfig))
	}
}
