// Copyright (C) 2025 Grok-STEM contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Command stemctl administers the Grok-STEM knowledge base.
//
// # Usage
//
//	stemctl init-collections --weaviate-url http://localhost:8080
//	stemctl ingest ./corpus
//	stemctl ingest ./corpus --watch
package main

import (
	"log/slog"
	"os"

	"github.com/EbrahimAbdelwahed/Grok-STEM/pkg/logging"
)

func main() {
	logger := logging.New(logging.Config{Level: logging.LevelInfo, Service: "stemctl"})
	slog.SetDefault(logger.Slog())

	err := rootCmd.Execute()
	logger.Close()
	if err != nil {
		os.Exit(1)
	}
}
