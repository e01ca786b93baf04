// Copyright (C) 2025 Grok-STEM contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package observability

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

// newTestMetrics builds PipelineMetrics against an isolated registry
// so tests never collide with the global Prometheus registry.
func newTestMetrics(t *testing.T) *PipelineMetrics {
	t.Helper()

	reg := prometheus.NewRegistry()

	m := &PipelineMetrics{
		RunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: pipelineSubsystem,
				Name:      "runs_total",
				Help:      "Total pipeline runs by outcome",
			},
			[]string{"outcome"},
		),
		CacheLookupsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: pipelineSubsystem,
				Name:      "cache_lookups_total",
				Help:      "Semantic cache lookups by store and result",
			},
			[]string{"store", "result"},
		),
		StageDurationSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: pipelineSubsystem,
				Name:      "stage_duration_seconds",
				Help:      "Per-stage pipeline latency in seconds",
			},
			[]string{"stage"},
		),
		RunDurationSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: pipelineSubsystem,
				Name:      "run_duration_seconds",
				Help:      "Total pipeline run duration in seconds",
			},
			[]string{"outcome"},
		),
		PartsEmittedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: pipelineSubsystem,
				Name:      "parts_emitted_total",
				Help:      "Response parts emitted by type",
			},
			[]string{"part_type"},
		),
		ImageAttemptsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: pipelineSubsystem,
				Name:      "image_attempts_total",
				Help:      "Image generation attempts by result",
			},
			[]string{"result"},
		),
		ActiveRuns: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: pipelineSubsystem,
				Name:      "active_runs",
				Help:      "Number of currently executing pipeline runs",
			},
		),
		CacheWritesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: pipelineSubsystem,
				Name:      "cache_writes_total",
				Help:      "Background cache writes by store and status",
			},
			[]string{"store", "status"},
		),
	}

	reg.MustRegister(
		m.RunsTotal,
		m.CacheLookupsTotal,
		m.StageDurationSeconds,
		m.RunDurationSeconds,
		m.PartsEmittedTotal,
		m.ImageAttemptsTotal,
		m.ActiveRuns,
		m.CacheWritesTotal,
	)

	return m
}

func TestRecordRun(t *testing.T) {
	m := newTestMetrics(t)

	m.RecordRun(OutcomeCacheHit, 0.02)
	m.RecordRun(OutcomeGenerated, 4.5)
	m.RecordRun(OutcomeGenerated, 6.1)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.RunsTotal.WithLabelValues("cache_hit")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.RunsTotal.WithLabelValues("generated")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.RunsTotal.WithLabelValues("error")))
}

func TestRecordCacheLookup(t *testing.T) {
	m := newTestMetrics(t)

	m.RecordCacheLookup("answer", "hit")
	m.RecordCacheLookup("answer", "miss")
	m.RecordCacheLookup("answer", "miss")
	m.RecordCacheLookup("illustration", "error")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheLookupsTotal.WithLabelValues("answer", "hit")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.CacheLookupsTotal.WithLabelValues("answer", "miss")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheLookupsTotal.WithLabelValues("illustration", "error")))
}

func TestActiveRunsGauge(t *testing.T) {
	m := newTestMetrics(t)

	m.RunStarted()
	m.RunStarted()
	assert.Equal(t, 2.0, testutil.ToFloat64(m.ActiveRuns))

	m.RunEnded()
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ActiveRuns))
}

func TestRecordImageAttempt(t *testing.T) {
	m := newTestMetrics(t)

	m.RecordImageAttempt("retry")
	m.RecordImageAttempt("retry")
	m.RecordImageAttempt("success")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.ImageAttemptsTotal.WithLabelValues("retry")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ImageAttemptsTotal.WithLabelValues("success")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.ImageAttemptsTotal.WithLabelValues("exhausted")))
}
