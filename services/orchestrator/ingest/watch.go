// Copyright (C) 2025 Grok-STEM contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package ingest

import (
	"context"
	"io/fs"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// defaultDebounce is how long Watch waits for writes to settle before
// re-ingesting, so an editor save burst triggers one run, not many.
const defaultDebounce = 500 * time.Millisecond

// WatchOptions configures Watch.
type WatchOptions struct {
	// Debounce overrides the settle window. Zero uses the default.
	Debounce time.Duration
}

// Watch re-ingests corpus files under dir as they change. It blocks
// until ctx is canceled or the underlying watcher fails.
//
// New subdirectories are added to the watch as they appear. Removes
// and renames are ignored: stored passages for deleted files stay in
// the collection until a full re-ingest replaces the corpus.
func (in *Ingestor) Watch(ctx context.Context, dir string, opts WatchOptions) error {
	debounce := opts.Debounce
	if debounce <= 0 {
		debounce = defaultDebounce
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := addDirsRecursive(watcher, dir); err != nil {
		return err
	}
	slog.Info("Watching corpus directory", "dir", dir, "debounce", debounce)

	pending := make(map[string]struct{})
	timer := time.NewTimer(debounce)
	if !timer.Stop() {
		<-timer.C
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op.Has(fsnotify.Create) {
				// A new directory needs its own watch.
				if err := addDirsRecursive(watcher, event.Name); err != nil {
					slog.Warn("Could not watch new path", "path", event.Name, "error", err)
				}
			}
			if !event.Op.Has(fsnotify.Create) && !event.Op.Has(fsnotify.Write) {
				continue
			}
			if !Ingestible(event.Name) {
				continue
			}
			pending[event.Name] = struct{}{}
			timer.Reset(debounce)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Error("Watcher error", "error", err)

		case <-timer.C:
			for path := range pending {
				if _, _, err := in.IngestFile(ctx, path); err != nil {
					slog.Error("Re-ingestion failed", "path", path, "error", err)
				}
			}
			pending = make(map[string]struct{})
		}
	}
}

// addDirsRecursive watches path and every directory below it. Passing
// a regular file is a no-op.
func addDirsRecursive(watcher *fsnotify.Watcher, path string) error {
	return filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		return watcher.Add(p)
	})
}
