// Copyright (C) 2025 Grok-STEM contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"

	"github.com/EbrahimAbdelwahed/Grok-STEM/services/orchestrator/datatypes"
	"github.com/EbrahimAbdelwahed/Grok-STEM/services/orchestrator/ingest"
)

var (
	weaviateURL string
	watchMode   bool

	rootCmd = &cobra.Command{
		Use:   "stemctl",
		Short: "Manage the Grok-STEM knowledge base",
		Long: `stemctl administers the Grok-STEM vector store: it creates the
Weaviate collections the orchestrator expects and loads STEM corpus
files into the retrieval knowledge base.`,
	}

	initCollectionsCmd = &cobra.Command{
		Use:   "init-collections",
		Short: "Create the AnswerCache, KnowledgePassage, and IllustrationCache collections",
		RunE:  runInitCollections,
	}

	ingestCmd = &cobra.Command{
		Use:   "ingest <dir>",
		Short: "Chunk, embed, and store a corpus directory",
		Args:  cobra.ExactArgs(1),
		RunE:  runIngest,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&weaviateURL, "weaviate-url", "",
		"Weaviate URL (defaults to the WEAVIATE_URL environment variable)")
	ingestCmd.Flags().BoolVar(&watchMode, "watch", false,
		"keep running and re-ingest files as they change")

	rootCmd.AddCommand(initCollectionsCmd)
	rootCmd.AddCommand(ingestCmd)
}

func connectWeaviate() (*weaviate.Client, error) {
	raw := weaviateURL
	if raw == "" {
		raw = os.Getenv("WEAVIATE_URL")
	}
	raw = strings.Trim(raw, "\"' ")
	if raw == "" {
		return nil, fmt.Errorf("no Weaviate URL: pass --weaviate-url or set WEAVIATE_URL")
	}
	parsed, err := url.Parse(raw)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("invalid Weaviate URL %q", raw)
	}
	return weaviate.NewClient(weaviate.Config{
		Host:   parsed.Host,
		Scheme: parsed.Scheme,
	})
}

func runInitCollections(cmd *cobra.Command, args []string) error {
	client, err := connectWeaviate()
	if err != nil {
		return err
	}
	datatypes.EnsureWeaviateSchema(client)
	fmt.Println("Collections are in place.")
	return nil
}

func runIngest(cmd *cobra.Command, args []string) error {
	client, err := connectWeaviate()
	if err != nil {
		return err
	}
	ingestor, err := ingest.New(client)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	report, err := ingestor.IngestDir(ctx, args[0])
	if err != nil {
		return err
	}
	fmt.Printf("Ingested %d files: %d chunks split, %d stored.\n",
		report.Files, report.Chunks, report.Stored)

	if !watchMode {
		return nil
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := ingestor.Watch(ctx, args[0], ingest.WatchOptions{}); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}
