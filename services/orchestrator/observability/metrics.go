// Copyright (C) 2025 Grok-STEM contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package observability provides Prometheus metrics for the
// orchestrator.
//
// # Description
//
// Metrics cover the response pipeline end to end:
//   - Run counters (by outcome)
//   - Semantic cache hit/miss counters
//   - Per-stage latency histograms
//   - Image generation attempt counters
//   - Active pipeline run gauge
//
// # Integration
//
// Metrics are exposed via the /metrics endpoint. Use with Prometheus +
// Grafana for dashboards and alerting.
//
// # Thread Safety
//
// All metric operations are thread-safe via Prometheus's internal
// locking.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "grokstem"

const pipelineSubsystem = "pipeline"

// PipelineMetrics holds all Prometheus metrics for pipeline runs.
//
// Initialize once at startup via InitMetrics().
type PipelineMetrics struct {
	// RunsTotal counts pipeline runs by outcome.
	// Labels: outcome (cache_hit, generated, error)
	RunsTotal *prometheus.CounterVec

	// CacheLookupsTotal counts semantic cache lookups by store and result.
	// Labels: store (answer, illustration), result (hit, miss, error)
	CacheLookupsTotal *prometheus.CounterVec

	// StageDurationSeconds measures per-stage latency.
	// Labels: stage (cache_check, retrieve, reason, plot, illustrate)
	StageDurationSeconds *prometheus.HistogramVec

	// RunDurationSeconds measures total run duration.
	// Labels: outcome (cache_hit, generated, error)
	RunDurationSeconds *prometheus.HistogramVec

	// PartsEmittedTotal counts emitted response parts by type.
	// Labels: part_type
	PartsEmittedTotal *prometheus.CounterVec

	// ImageAttemptsTotal counts image generation attempts by result.
	// Labels: result (success, retry, exhausted)
	ImageAttemptsTotal *prometheus.CounterVec

	// ActiveRuns tracks currently executing pipeline runs.
	ActiveRuns prometheus.Gauge

	// CacheWritesTotal counts background cache writes by store and status.
	// Labels: store (answer, illustration), status (ok, error, dropped)
	CacheWritesTotal *prometheus.CounterVec
}

// DefaultMetrics is the singleton instance of PipelineMetrics.
// Initialized by InitMetrics().
var DefaultMetrics *PipelineMetrics

// InitMetrics creates and registers all pipeline metrics against the
// default Prometheus registry. Call once at startup; a second call
// panics on duplicate registration.
func InitMetrics() *PipelineMetrics {
	DefaultMetrics = &PipelineMetrics{
		RunsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: pipelineSubsystem,
				Name:      "runs_total",
				Help:      "Total pipeline runs by outcome",
			},
			[]string{"outcome"},
		),

		CacheLookupsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: pipelineSubsystem,
				Name:      "cache_lookups_total",
				Help:      "Semantic cache lookups by store and result",
			},
			[]string{"store", "result"},
		),

		StageDurationSeconds: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: pipelineSubsystem,
				Name:      "stage_duration_seconds",
				Help:      "Per-stage pipeline latency in seconds",
				Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 15.0, 60.0},
			},
			[]string{"stage"},
		),

		RunDurationSeconds: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: pipelineSubsystem,
				Name:      "run_duration_seconds",
				Help:      "Total pipeline run duration in seconds",
				Buckets:   []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
			},
			[]string{"outcome"},
		),

		PartsEmittedTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: pipelineSubsystem,
				Name:      "parts_emitted_total",
				Help:      "Response parts emitted by type",
			},
			[]string{"part_type"},
		),

		ImageAttemptsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: pipelineSubsystem,
				Name:      "image_attempts_total",
				Help:      "Image generation attempts by result",
			},
			[]string{"result"},
		),

		ActiveRuns: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: pipelineSubsystem,
				Name:      "active_runs",
				Help:      "Number of currently executing pipeline runs",
			},
		),

		CacheWritesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: pipelineSubsystem,
				Name:      "cache_writes_total",
				Help:      "Background cache writes by store and status",
			},
			[]string{"store", "status"},
		),
	}

	return DefaultMetrics
}

// Outcome labels a finished pipeline run.
type Outcome string

const (
	// OutcomeCacheHit means the run was answered from the semantic cache.
	OutcomeCacheHit Outcome = "cache_hit"

	// OutcomeGenerated means the run produced a fresh answer.
	OutcomeGenerated Outcome = "generated"

	// OutcomeError means the run terminated on the fatal path.
	OutcomeError Outcome = "error"
)

// RecordRun records a completed run and its duration.
func (m *PipelineMetrics) RecordRun(outcome Outcome, seconds float64) {
	m.RunsTotal.WithLabelValues(string(outcome)).Inc()
	m.RunDurationSeconds.WithLabelValues(string(outcome)).Observe(seconds)
}

// RecordCacheLookup records a cache lookup result for a store.
func (m *PipelineMetrics) RecordCacheLookup(store string, result string) {
	m.CacheLookupsTotal.WithLabelValues(store, result).Inc()
}

// RecordStage records one stage's latency.
func (m *PipelineMetrics) RecordStage(stage string, seconds float64) {
	m.StageDurationSeconds.WithLabelValues(stage).Observe(seconds)
}

// RecordPart counts one emitted response part.
func (m *PipelineMetrics) RecordPart(partType string) {
	m.PartsEmittedTotal.WithLabelValues(partType).Inc()
}

// RecordImageAttempt records one image generation attempt result.
func (m *PipelineMetrics) RecordImageAttempt(result string) {
	m.ImageAttemptsTotal.WithLabelValues(result).Inc()
}

// RecordCacheWrite records a background cache write status.
func (m *PipelineMetrics) RecordCacheWrite(store string, status string) {
	m.CacheWritesTotal.WithLabelValues(store, status).Inc()
}

// RunStarted increments the active run gauge.
func (m *PipelineMetrics) RunStarted() {
	m.ActiveRuns.Inc()
}

// RunEnded decrements the active run gauge.
func (m *PipelineMetrics) RunEnded() {
	m.ActiveRuns.Dec()
}
