// Copyright (C) 2025 Grok-STEM contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"context"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/EbrahimAbdelwahed/Grok-STEM/services/orchestrator/datatypes"
	"github.com/EbrahimAbdelwahed/Grok-STEM/services/orchestrator/services"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// fakePipeline emits a fixed text part and an end part per run.
type fakePipeline struct {
	mu        sync.Mutex
	questions []string
}

func (p *fakePipeline) Run(ctx context.Context, streamID, sessionID, question string, emit services.EmitFunc) {
	p.mu.Lock()
	p.questions = append(p.questions, question)
	p.mu.Unlock()
	emit(datatypes.NewTextPart(streamID, sessionID, "answer to: "+question))
	emit(datatypes.NewEndPart(streamID, sessionID))
}

func newWSServer(t *testing.T, pipeline PipelineRunner, config WebSocketConfig) (*httptest.Server, *websocket.Conn) {
	t.Helper()

	router := gin.New()
	router.GET("/v1/chat/ws", HandleChatWebSocket(pipeline, config))
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/v1/chat/ws"
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { ws.Close() })

	return server, ws
}

func readPart(t *testing.T, ws *websocket.Conn) datatypes.ResponsePart {
	t.Helper()
	var part datatypes.ResponsePart
	require.NoError(t, ws.ReadJSON(&part))
	return part
}

func TestWebSocketHandshakeAndChat(t *testing.T) {
	pipeline := &fakePipeline{}
	_, ws := newWSServer(t, pipeline, WebSocketConfig{MessagesPerMinute: 20})

	var handshake struct {
		Type      string `json:"type"`
		SessionId string `json:"session_id"`
	}
	require.NoError(t, ws.ReadJSON(&handshake))
	assert.Equal(t, "session_created", handshake.Type)
	require.NotEmpty(t, handshake.SessionId)

	require.NoError(t, ws.WriteJSON(WSRequest{Query: "What is torque?"}))

	text := readPart(t, ws)
	assert.Equal(t, datatypes.PartText, text.Type)
	assert.Equal(t, "answer to: What is torque?", text.Content)
	assert.Equal(t, handshake.SessionId, text.SessionId)
	require.NotEmpty(t, text.Id)

	end := readPart(t, ws)
	assert.Equal(t, datatypes.PartEnd, end.Type)
	assert.Equal(t, text.Id, end.Id, "all parts of one exchange share a stream id")
}

func TestWebSocketPlainTextFrame(t *testing.T) {
	pipeline := &fakePipeline{}
	_, ws := newWSServer(t, pipeline, WebSocketConfig{MessagesPerMinute: 20})

	var handshake map[string]interface{}
	require.NoError(t, ws.ReadJSON(&handshake))

	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte("plain question")))

	text := readPart(t, ws)
	assert.Equal(t, datatypes.PartText, text.Type)
	assert.Equal(t, "answer to: plain question", text.Content)
	readPart(t, ws) // end
}

func TestWebSocketFreshStreamIdPerQuestion(t *testing.T) {
	pipeline := &fakePipeline{}
	_, ws := newWSServer(t, pipeline, WebSocketConfig{MessagesPerMinute: 20})

	var handshake map[string]interface{}
	require.NoError(t, ws.ReadJSON(&handshake))

	require.NoError(t, ws.WriteJSON(WSRequest{Query: "first"}))
	first := readPart(t, ws)
	readPart(t, ws) // end

	require.NoError(t, ws.WriteJSON(WSRequest{Query: "second"}))
	second := readPart(t, ws)
	readPart(t, ws) // end

	assert.NotEqual(t, first.Id, second.Id)
	assert.Equal(t, first.SessionId, second.SessionId)
}

func TestWebSocketRateLimit(t *testing.T) {
	pipeline := &fakePipeline{}
	_, ws := newWSServer(t, pipeline, WebSocketConfig{MessagesPerMinute: 1})

	var handshake map[string]interface{}
	require.NoError(t, ws.ReadJSON(&handshake))

	require.NoError(t, ws.WriteJSON(WSRequest{Query: "allowed"}))
	readPart(t, ws) // text
	readPart(t, ws) // end

	require.NoError(t, ws.WriteJSON(WSRequest{Query: "too fast"}))
	errPart := readPart(t, ws)
	assert.Equal(t, datatypes.PartError, errPart.Type)
	assert.Contains(t, errPart.Content, "too quickly")
	end := readPart(t, ws)
	assert.Equal(t, datatypes.PartEnd, end.Type)

	pipeline.mu.Lock()
	defer pipeline.mu.Unlock()
	assert.Equal(t, []string{"allowed"}, pipeline.questions,
		"the rate-limited question never reaches the pipeline")
}

func TestParseQuery(t *testing.T) {
	assert.Equal(t, "hello", parseQuery([]byte(`{"query": "hello"}`)))
	assert.Equal(t, "raw text", parseQuery([]byte("raw text")))
	assert.Equal(t, "", parseQuery([]byte(`{"other": "field"}`)))
	assert.Equal(t, "", parseQuery([]byte("   ")))
}
