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

// Package index provides in-memory vector similarity search over embedded
// knowledge chunks, backed by a SQLite chunk store for persistence.
package index

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"

	"go.uber.org/zap"
)

const (
	// MinTopK and MaxTopK bound the number of results a search may request
	MinTopK = 1
	MaxTopK = 20
)

// ErrIndexUnavailable is returned when the index cannot serve a search
var ErrIndexUnavailable = errors.New("embedding index unavailable")

// Chunk is an embedded piece of a knowledge document
type Chunk struct {
	ID        string    `json:"id"`
	DocID     string    `json:"doc_id"`
	Text      string    `json:"text"`
	Embedding []float32 `json:"embedding"`
	Tags      []string  `json:"tags,omitempty"`
}

// Result pairs a chunk with its similarity score for a query
type Result struct {
	Chunk Chunk   `json:"chunk"`
	Score float64 `json:"score"`
}

// Embedder converts text into an embedding vector
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Index holds embedded chunks in memory and serves similarity queries
type Index struct {
	mutex    sync.RWMutex
	chunks   []Chunk
	embedder Embedder
	logger   *zap.Logger
}

// New creates an empty index
func New(embedder Embedder, logger *zap.Logger) *Index {
	return &Index{
		chunks:   []Chunk{},
		embedder: embedder,
		logger:   logger,
	}
}

// Add inserts chunks into the index. A chunk with an existing ID replaces
// the old one.
func (idx *Index) Add(chunks ...Chunk) {
	idx.mutex.Lock()
	defer idx.mutex.Unlock()

	for _, chunk := range chunks {
		replaced := false
		for i := range idx.chunks {
			if idx.chunks[i].ID == chunk.ID {
				idx.chunks[i] = chunk
				replaced = true
				break
			}
		}
		if !replaced {
			idx.chunks = append(idx.chunks, chunk)
		}
	}
}

// Len returns the number of indexed chunks
func (idx *Index) Len() int {
	idx.mutex.RLock()
	defer idx.mutex.RUnlock()
	return len(idx.chunks)
}

// Search embeds the query and returns the k most similar chunks in
// descending score order. k is clamped to [MinTopK, MaxTopK]. Ties are
// broken by chunk ID so results are deterministic. An empty index returns an
// empty slice without calling the embedder.
func (idx *Index) Search(ctx context.Context, query string, k int) ([]Result, error) {
	if k < MinTopK {
		k = MinTopK
	}
	if k > MaxTopK {
		k = MaxTopK
	}

	// Copy under the read lock; Add replaces elements of the backing array
	// in place, so scoring must not read the shared slice unlocked.
	idx.mutex.RLock()
	chunks := make([]Chunk, len(idx.chunks))
	copy(chunks, idx.chunks)
	idx.mutex.RUnlock()

	if len(chunks) == 0 {
		return []Result{}, nil
	}

	queryEmbedding, err := idx.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to embed query: %v", ErrIndexUnavailable, err)
	}

	results := make([]Result, 0, len(chunks))
	for _, chunk := range chunks {
		score := CosineSimilarity(queryEmbedding, chunk.Embedding)
		results = append(results, Result{Chunk: chunk, Score: score})
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Chunk.ID < results[j].Chunk.ID
	})

	if len(results) > k {
		results = results[:k]
	}

	idx.logger.Debug("Vector search completed",
		zap.Int("candidates", len(chunks)),
		zap.Int("returned", len(results)),
	)

	return results, nil
}

// LoadFromStore replaces the index contents with all chunks in the store
func (idx *Index) LoadFromStore(ctx context.Context, store *ChunkStore) error {
	chunks, err := store.ListChunks(ctx)
	if err != nil {
		return fmt.Errorf("failed to load chunks from store: %w", err)
	}

	idx.mutex.Lock()
	idx.chunks = chunks
	idx.mutex.Unlock()

	idx.logger.Info("Loaded chunks into index", zap.Int("count", len(chunks)))
	return nil
}

// CosineSimilarity computes the cosine similarity between two vectors.
// Mismatched lengths or zero vectors score 0.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
