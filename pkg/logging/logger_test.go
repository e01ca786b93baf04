// Copyright (C) 2025 Grok-STEM contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package logging

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLevel_String(t *testing.T) {
	tests := []struct {
		level Level
		want  string
	}{
		{LevelDebug, "DEBUG"},
		{LevelInfo, "INFO"},
		{LevelWarn, "WARN"},
		{LevelError, "ERROR"},
		{Level(99), "UNKNOWN"},
		{Level(-1), "UNKNOWN"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.level.String(); got != tt.want {
				t.Errorf("Level.String() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLevel_ToSlogLevel(t *testing.T) {
	tests := []struct {
		level Level
		want  slog.Level
	}{
		{LevelDebug, slog.LevelDebug},
		{LevelInfo, slog.LevelInfo},
		{LevelWarn, slog.LevelWarn},
		{LevelError, slog.LevelError},
		{Level(42), slog.LevelInfo},
	}

	for _, tt := range tests {
		if got := tt.level.toSlogLevel(); got != tt.want {
			t.Errorf("Level(%d).toSlogLevel() = %v, want %v", tt.level, got, tt.want)
		}
	}
}

func TestNew_FileLogging(t *testing.T) {
	dir := t.TempDir()

	logger := New(Config{
		Level:   LevelInfo,
		LogDir:  dir,
		Service: "orchestrator",
		Quiet:   true,
	})
	logger.Info("pipeline started", "question_id", "q-1")
	if err := logger.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}

	name := "orchestrator_" + time.Now().Format("2006-01-02") + ".log"
	data, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		t.Fatalf("log file not written: %v", err)
	}

	var entry map[string]any
	if err := json.Unmarshal(data, &entry); err != nil {
		t.Fatalf("file log is not JSON: %v", err)
	}
	if entry["msg"] != "pipeline started" {
		t.Errorf("msg = %v, want %q", entry["msg"], "pipeline started")
	}
	if entry["service"] != "orchestrator" {
		t.Errorf("service = %v, want %q", entry["service"], "orchestrator")
	}
	if entry["question_id"] != "q-1" {
		t.Errorf("question_id = %v, want %q", entry["question_id"], "q-1")
	}
}

func TestNew_LevelFilter(t *testing.T) {
	dir := t.TempDir()

	logger := New(Config{
		Level:   LevelWarn,
		LogDir:  dir,
		Service: "cli",
		Quiet:   true,
	})
	logger.Debug("hidden")
	logger.Info("also hidden")
	logger.Warn("visible")
	logger.Close()

	name := "cli_" + time.Now().Format("2006-01-02") + ".log"
	data, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		t.Fatalf("log file not written: %v", err)
	}
	out := string(data)
	if strings.Contains(out, "hidden") {
		t.Errorf("below-level messages were written: %s", out)
	}
	if !strings.Contains(out, "visible") {
		t.Errorf("warn message missing: %s", out)
	}
}

func TestWith_CarriesAttributes(t *testing.T) {
	dir := t.TempDir()

	logger := New(Config{LogDir: dir, Service: "cli", Quiet: true})
	child := logger.With("session_id", "s-9")
	child.Info("question received")
	logger.Close()

	name := "cli_" + time.Now().Format("2006-01-02") + ".log"
	data, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		t.Fatalf("log file not written: %v", err)
	}
	if !strings.Contains(string(data), `"session_id":"s-9"`) {
		t.Errorf("derived attribute missing from: %s", data)
	}
}

func TestClose_NoFileIsNoop(t *testing.T) {
	logger := Default()
	if err := logger.Close(); err != nil {
		t.Errorf("Close() on stderr-only logger: %v", err)
	}
	if err := logger.Close(); err != nil {
		t.Errorf("second Close(): %v", err)
	}
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}

	if got := expandPath("~/logs"); got != filepath.Join(home, "logs") {
		t.Errorf("expandPath(~/logs) = %v", got)
	}
	if got := expandPath("/var/log/grokstem"); got != "/var/log/grokstem" {
		t.Errorf("absolute path changed: %v", got)
	}
}
