// Copyright 2025 MH Assistant Project
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package main provides the ingestion CLI. It parses markdown knowledge
// articles, splits them into chunks, embeds them, and writes the result to
// the chunk store the server loads at startup.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/your-org/mh-assistant/internal/chunker"
	"github.com/your-org/mh-assistant/internal/index"
	"github.com/your-org/mh-assistant/internal/llm"
)

var (
	docsDir   string
	dbPath    string
	chunkSize int
	replace   bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "ingest",
		Short: "Ingest knowledge articles into the embedding index",
		Long: `Ingest parses markdown knowledge articles, splits them into chunks,
generates embeddings via the OpenAI API, and stores the result in the
SQLite chunk store used by the server.

The OPENAI_API_KEY environment variable must be set.`,
		RunE: runIngest,
	}

	rootCmd.Flags().StringVarP(&docsDir, "docs", "d", "./docs", "Directory of markdown knowledge articles")
	rootCmd.Flags().StringVarP(&dbPath, "db", "o", "./data/chunks.db", "Path to the chunk store database")
	rootCmd.Flags().IntVarP(&chunkSize, "chunk-size", "c", 1000, "Maximum chunk size in characters")
	rootCmd.Flags().BoolVar(&replace, "replace", false, "Delete existing chunks for each document before inserting")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runIngest(cmd *cobra.Command, args []string) error {
	logger, _ := zap.NewProduction()
	defer func() { _ = logger.Sync() }()

	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return fmt.Errorf("OPENAI_API_KEY is not set")
	}

	client, err := llm.NewClient(apiKey, os.Getenv("MH_ASSISTANT_EMBED_MODEL"), logger)
	if err != nil {
		return fmt.Errorf("failed to initialize OpenAI client: %w", err)
	}

	store, err := index.NewChunkStore(dbPath, logger)
	if err != nil {
		return fmt.Errorf("failed to open chunk store: %w", err)
	}
	defer func() { _ = store.Close() }()

	entries, err := os.ReadDir(docsDir)
	if err != nil {
		return fmt.Errorf("failed to read docs directory: %w", err)
	}

	ctx := context.Background()
	totalChunks := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".md") {
			continue
		}

		path := filepath.Join(docsDir, entry.Name())
		content, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}

		docID := strings.TrimSuffix(entry.Name(), ".md")
		doc := chunker.ParseMarkdown(docID, string(content))
		pieces := chunker.Split(doc, chunkSize)
		if len(pieces) == 0 {
			logger.Warn("Skipping empty document", zap.String("doc_id", docID))
			continue
		}

		texts := make([]string, len(pieces))
		for i, piece := range pieces {
			texts[i] = piece.Text
		}

		embeddings, err := client.EmbedTexts(ctx, texts)
		if err != nil {
			return fmt.Errorf("failed to embed %s: %w", docID, err)
		}

		chunks := make([]index.Chunk, len(pieces))
		for i, piece := range pieces {
			chunks[i] = index.Chunk{
				ID:        piece.ID,
				DocID:     piece.DocID,
				Text:      piece.Text,
				Embedding: embeddings[i],
				Tags:      piece.Tags,
			}
		}

		if replace {
			if err := store.DeleteDocument(ctx, docID); err != nil {
				return fmt.Errorf("failed to clear existing chunks for %s: %w", docID, err)
			}
		}
		if err := store.SaveChunks(ctx, chunks); err != nil {
			return fmt.Errorf("failed to save chunks for %s: %w", docID, err)
		}

		logger.Info("Ingested document",
			zap.String("doc_id", docID),
			zap.String("title", doc.Title),
			zap.Int("chunks", len(chunks)))
		totalChunks += len(chunks)
	}

	count, err := store.Count(ctx)
	if err != nil {
		return fmt.Errorf("failed to count chunks: %w", err)
	}

	fmt.Printf("Ingestion complete: %d chunks written, %d total in store\n", totalChunks, count)
	return nil
}
