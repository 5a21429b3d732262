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

package index

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// ChunkStore persists embedded chunks to SQLite. Embeddings are stored as
// JSON arrays; the working set is small enough that the whole table is
// loaded into memory at startup.
type ChunkStore struct {
	db     *sql.DB
	logger *zap.Logger
}

const chunkSchema = `
CREATE TABLE IF NOT EXISTS chunks (
	id        TEXT PRIMARY KEY,
	doc_id    TEXT NOT NULL,
	text      TEXT NOT NULL,
	embedding TEXT NOT NULL,
	tags      TEXT
);

CREATE INDEX IF NOT EXISTS idx_chunks_doc ON chunks(doc_id);
`

// NewChunkStore opens or creates the chunk database at dbPath
func NewChunkStore(dbPath string, logger *zap.Logger) (*ChunkStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open chunk database: %w", err)
	}

	if _, err := db.Exec(chunkSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize chunk schema: %w", err)
	}

	logger.Info("Opened SQLite chunk store", zap.String("path", dbPath))

	return &ChunkStore{db: db, logger: logger}, nil
}

// SaveChunks upserts chunks in a single transaction
func (s *ChunkStore) SaveChunks(ctx context.Context, chunks []Chunk) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (id, doc_id, text, embedding, tags)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			doc_id = excluded.doc_id,
			text = excluded.text,
			embedding = excluded.embedding,
			tags = excluded.tags`)
	if err != nil {
		return fmt.Errorf("failed to prepare chunk insert: %w", err)
	}
	defer stmt.Close()

	for _, chunk := range chunks {
		embedding, err := json.Marshal(chunk.Embedding)
		if err != nil {
			return fmt.Errorf("failed to encode embedding for chunk %s: %w", chunk.ID, err)
		}
		if _, err := stmt.ExecContext(ctx, chunk.ID, chunk.DocID, chunk.Text,
			string(embedding), strings.Join(chunk.Tags, ",")); err != nil {
			return fmt.Errorf("failed to insert chunk %s: %w", chunk.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit chunks: %w", err)
	}

	s.logger.Info("Saved chunks", zap.Int("count", len(chunks)))
	return nil
}

// ListChunks returns all stored chunks ordered by ID
func (s *ChunkStore) ListChunks(ctx context.Context) ([]Chunk, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, doc_id, text, embedding, tags FROM chunks ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query chunks: %w", err)
	}
	defer rows.Close()

	chunks := []Chunk{}
	for rows.Next() {
		var chunk Chunk
		var embedding string
		var tags sql.NullString
		if err := rows.Scan(&chunk.ID, &chunk.DocID, &chunk.Text, &embedding, &tags); err != nil {
			return nil, fmt.Errorf("failed to scan chunk: %w", err)
		}
		if err := json.Unmarshal([]byte(embedding), &chunk.Embedding); err != nil {
			return nil, fmt.Errorf("failed to decode embedding for chunk %s: %w", chunk.ID, err)
		}
		if tags.Valid && tags.String != "" {
			chunk.Tags = strings.Split(tags.String, ",")
		}
		chunks = append(chunks, chunk)
	}
	return chunks, rows.Err()
}

// DeleteDocument removes all chunks for a document
func (s *ChunkStore) DeleteDocument(ctx context.Context, docID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM chunks WHERE doc_id = ?`, docID); err != nil {
		return fmt.Errorf("failed to delete chunks for document %s: %w", docID, err)
	}
	return nil
}

// Count returns the number of stored chunks
func (s *ChunkStore) Count(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM chunks`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count chunks: %w", err)
	}
	return count, nil
}

// Close closes the underlying database
func (s *ChunkStore) Close() error {
	return s.db.Close()
}
