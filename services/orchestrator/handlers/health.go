// Copyright (C) 2025 Grok-STEM contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
)

// HealthCheck reports liveness of the orchestrator and its vector
// store dependency.
func HealthCheck(client *weaviate.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		weaviateStatus := "ok"
		if client == nil {
			weaviateStatus = "not_configured"
		} else if live, err := client.Misc().LiveChecker().Do(c.Request.Context()); err != nil || !live {
			weaviateStatus = "unreachable"
		}

		status := "ok"
		code := http.StatusOK
		if weaviateStatus != "ok" {
			status = "degraded"
			code = http.StatusServiceUnavailable
		}

		c.JSON(code, gin.H{
			"status":  status,
			"service": "grokstem-orchestrator",
			"dependencies": gin.H{
				"weaviate": weaviateStatus,
			},
		})
	}
}
