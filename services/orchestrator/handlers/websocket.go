// Copyright (C) 2025 Grok-STEM contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package handlers contains the gin handlers for the orchestrator:
// the chat WebSocket and the health endpoint.
package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/EbrahimAbdelwahed/Grok-STEM/services/orchestrator/datatypes"
	"github.com/EbrahimAbdelwahed/Grok-STEM/services/orchestrator/services"
)

// WSRequest is one incoming chat message. A raw non-JSON frame is
// accepted too, treated as the query text.
type WSRequest struct {
	Query string `json:"query"`
}

// PipelineRunner is the part of the pipeline the transport needs.
type PipelineRunner interface {
	Run(ctx context.Context, streamID, sessionID, question string, emit services.EmitFunc)
}

// WebSocketConfig tunes the chat transport.
type WebSocketConfig struct {
	// AllowedOrigins restricts upgrades. Empty allows all origins.
	AllowedOrigins []string

	// MessagesPerMinute rate-limits questions per connection.
	MessagesPerMinute int
}

func newUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024 * 1024,
		WriteBufferSize: 1024 * 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(origin, allowed) {
					return true
				}
			}
			return false
		},
	}
}

func sendJSON(ws *websocket.Conn, v interface{}) error {
	err := ws.WriteJSON(v)
	if err != nil {
		slog.Warn("Failed to write WebSocket JSON", "error", err)
	}
	return err
}

// HandleChatWebSocket upgrades the connection and serves the chat
// loop.
//
// # Description
//
// Each connection is one session with its own session id, announced to
// the client in a session_created handshake. Every question runs the
// pipeline under a fresh stream id; the resulting parts are written in
// order to the socket. Questions within one session are handled
// sequentially, preserving per-session causal order. A write failure
// cancels the in-flight run so no further parts are produced, while
// already-scheduled background cache writes complete on their own.
func HandleChatWebSocket(pipeline PipelineRunner, config WebSocketConfig) gin.HandlerFunc {
	upgrader := newUpgrader(config.AllowedOrigins)
	perMinute := config.MessagesPerMinute
	if perMinute < 1 {
		perMinute = 20
	}

	return func(c *gin.Context) {
		ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			slog.Error("Failed to upgrade the websocket", "error", err)
			return
		}
		defer ws.Close()

		sessionID := uuid.New().String()
		slog.Info("Websocket session started", "sessionID", sessionID)

		if err := sendJSON(ws, map[string]interface{}{
			"type":       "session_created",
			"session_id": sessionID,
		}); err != nil {
			return
		}

		limiter := rate.NewLimiter(rate.Limit(float64(perMinute)/60.0), perMinute)

		for {
			_, raw, err := ws.ReadMessage()
			if err != nil {
				slog.Info("Websocket client disconnected", "sessionID", sessionID, "reason", err.Error())
				return
			}

			query := parseQuery(raw)
			if strings.TrimSpace(query) == "" {
				slog.Warn("Ignoring empty question", "sessionID", sessionID)
				continue
			}

			streamID := uuid.New().String()

			if !limiter.Allow() {
				slog.Warn("Rate limit exceeded", "sessionID", sessionID)
				if sendJSON(ws, datatypes.NewErrorPart(streamID, sessionID,
					"You are sending messages too quickly. Please wait a moment.")) != nil {
					return
				}
				if sendJSON(ws, datatypes.NewEndPart(streamID, sessionID)) != nil {
					return
				}
				continue
			}

			runCtx, cancel := context.WithCancel(c.Request.Context())
			pipeline.Run(runCtx, streamID, sessionID, query, func(part datatypes.ResponsePart) {
				if err := sendJSON(ws, part); err != nil {
					cancel()
				}
			})
			cancel()
		}
	}
}

// parseQuery decodes an incoming frame. JSON with a query field is
// preferred; anything else is taken as the raw question text.
func parseQuery(raw []byte) string {
	var req WSRequest
	if err := json.Unmarshal(raw, &req); err == nil && req.Query != "" {
		return req.Query
	}
	trimmed := strings.TrimSpace(string(raw))
	if strings.HasPrefix(trimmed, "{") {
		// JSON without a query field is malformed, not a question.
		return ""
	}
	return trimmed
}
