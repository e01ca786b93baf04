// Copyright (C) 2025 Grok-STEM contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package services

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

// WorkQueue runs fire-and-forget tasks with bounded concurrency.
//
// # Description
//
// Cache write-back must never delay the response stream, but unbounded
// goroutine spawn under load is its own failure mode. Submit runs the
// task on a fresh goroutine gated by a weighted semaphore; when the
// queue is saturated the task is dropped with a warning, which is
// acceptable for at-least-once cache population.
//
// Tasks receive a detached context with a deadline, so a client
// disconnect mid-run never cancels an already-scheduled write.
//
// # Thread Safety
//
// WorkQueue is safe for concurrent use.
type WorkQueue struct {
	sem     *semaphore.Weighted
	timeout time.Duration
	wg      sync.WaitGroup
}

// NewWorkQueue creates a queue allowing maxConcurrent simultaneous
// tasks, each bounded by timeout.
func NewWorkQueue(maxConcurrent int64, timeout time.Duration) *WorkQueue {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &WorkQueue{
		sem:     semaphore.NewWeighted(maxConcurrent),
		timeout: timeout,
	}
}

// Submit schedules fn to run in the background. Returns false if the
// queue is saturated and the task was dropped.
func (q *WorkQueue) Submit(name string, fn func(ctx context.Context)) bool {
	if !q.sem.TryAcquire(1) {
		slog.Warn("Background queue saturated, dropping task", "task", name)
		return false
	}

	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		defer q.sem.Release(1)
		defer func() {
			if r := recover(); r != nil {
				slog.Error("Background task panicked", "task", name, "panic", r)
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
		defer cancel()

		start := time.Now()
		fn(ctx)
		slog.Debug("Background task finished", "task", name, "tookMs", time.Since(start).Milliseconds())
	}()
	return true
}

// Wait blocks until all submitted tasks have finished. Used during
// shutdown so in-flight cache writes complete.
func (q *WorkQueue) Wait() {
	q.wg.Wait()
}
