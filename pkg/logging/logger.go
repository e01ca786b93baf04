// Copyright (C) 2025 Grok-STEM contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package logging provides structured logging for Grok-STEM components.
//
// The package is a thin layer over the standard library slog package
// that standardizes output across the orchestrator and the stemctl
// CLI:
//
//   - Default: stderr output (follows Unix conventions)
//   - Optional: daily log files in a configurable directory
//   - Every entry carries a "service" attribute for aggregation
//
// # Basic Usage
//
//	logger := logging.New(logging.Config{Service: "orchestrator", JSON: true})
//	defer logger.Close()
//	slog.SetDefault(logger.Slog())
//
// File logs are named "{service}_{YYYY-MM-DD}.log" and are always
// JSON, regardless of the stderr format.
package logging

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Level is the minimum severity a logger emits.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// String returns the conventional upper-case name of the level.
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

func (l Level) toSlogLevel() slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Config controls logger construction.
type Config struct {
	// Level sets the minimum log level. Default: LevelInfo.
	Level Level

	// LogDir enables file logging when set. The directory is created
	// with 0750 permissions if missing, and "~" expands to the home
	// directory.
	LogDir string

	// Service is added to every entry as the "service" attribute.
	Service string

	// JSON switches stderr output from text to JSON. File output is
	// always JSON.
	JSON bool

	// Quiet disables stderr output. Useful for daemons whose stderr
	// is not monitored; logs still reach the file when LogDir is set.
	Quiet bool
}

// Logger wraps slog with optional file output.
//
// # Thread Safety
//
// Safe for concurrent use; slog handlers serialize writes.
type Logger struct {
	slog *slog.Logger
	file *os.File
}

// New builds a logger from config. Construction never fails: if the
// log directory or file cannot be set up, the logger falls back to
// stderr only.
func New(config Config) *Logger {
	opts := &slog.HandlerOptions{Level: config.Level.toSlogLevel()}

	var handlers []slog.Handler
	if !config.Quiet {
		if config.JSON {
			handlers = append(handlers, slog.NewJSONHandler(os.Stderr, opts))
		} else {
			handlers = append(handlers, slog.NewTextHandler(os.Stderr, opts))
		}
	}

	logger := &Logger{}
	if config.LogDir != "" {
		logDir := expandPath(config.LogDir)
		if err := os.MkdirAll(logDir, 0750); err == nil {
			service := config.Service
			if service == "" {
				service = "grokstem"
			}
			name := fmt.Sprintf("%s_%s.log", service, time.Now().Format("2006-01-02"))
			file, err := os.OpenFile(filepath.Join(logDir, name),
				os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0640)
			if err == nil {
				logger.file = file
				handlers = append(handlers, slog.NewJSONHandler(file, opts))
			}
		}
	}

	var handler slog.Handler
	switch len(handlers) {
	case 0:
		handler = slog.NewTextHandler(os.Stderr, opts)
	case 1:
		handler = handlers[0]
	default:
		handler = &multiHandler{handlers: handlers}
	}
	if config.Service != "" {
		handler = handler.WithAttrs([]slog.Attr{slog.String("service", config.Service)})
	}

	logger.slog = slog.New(handler)
	return logger
}

// Default returns an Info-level text logger on stderr.
func Default() *Logger {
	return New(Config{Level: LevelInfo, Service: "grokstem"})
}

func (l *Logger) Debug(msg string, args ...any) { l.slog.Debug(msg, args...) }
func (l *Logger) Info(msg string, args ...any)  { l.slog.Info(msg, args...) }
func (l *Logger) Warn(msg string, args ...any)  { l.slog.Warn(msg, args...) }
func (l *Logger) Error(msg string, args ...any) { l.slog.Error(msg, args...) }

// With returns a logger whose entries carry the given attributes.
// The derived logger shares the parent's file handle; only close the
// parent.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{slog: l.slog.With(args...), file: nil}
}

// Slog exposes the underlying slog.Logger, typically for
// slog.SetDefault.
func (l *Logger) Slog() *slog.Logger {
	return l.slog
}

// Close releases the log file, if any. Safe to call on loggers
// without file output.
func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

// multiHandler fans one record out to several slog handlers.
type multiHandler struct {
	handlers []slog.Handler
}

func (h *multiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, handler := range h.handlers {
		if handler.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (h *multiHandler) Handle(ctx context.Context, r slog.Record) error {
	var firstErr error
	for _, handler := range h.handlers {
		if handler.Enabled(ctx, r.Level) {
			if err := handler.Handle(ctx, r.Clone()); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (h *multiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		next[i] = handler.WithAttrs(attrs)
	}
	return &multiHandler{handlers: next}
}

func (h *multiHandler) WithGroup(name string) slog.Handler {
	next := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		next[i] = handler.WithGroup(name)
	}
	return &multiHandler{handlers: next}
}

// expandPath resolves a leading ~ to the user's home directory.
func expandPath(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}
