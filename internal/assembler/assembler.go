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

// Package assembler builds bounded prompt contexts from session history and
// retrieved knowledge chunks. The newest user message is always included in
// full; history and chunks are trimmed to fit the configured budgets.
package assembler

import (
	"strings"
	"unicode/utf8"

	"github.com/your-org/mh-assistant/internal/index"
	"github.com/your-org/mh-assistant/internal/session"
)

// Kind selects the system prompt the generator will use
type Kind string

const (
	// KindGeneral is normal supportive conversation
	KindGeneral Kind = "general"
	// KindCrisis is used when the current message is a crisis
	KindCrisis Kind = "crisis"
	// KindAssessment is used while an assessment run is active
	KindAssessment Kind = "assessment"
)

// Budget bounds how much material the assembled context may carry
type Budget struct {
	MaxHistoryTurns int
	MaxContextChars int
	MaxChunkChars   int
}

// DefaultBudget returns the standard context budget
func DefaultBudget() Budget {
	return Budget{
		MaxHistoryTurns: 10,
		MaxContextChars: 6000,
		MaxChunkChars:   1200,
	}
}

// PromptContext is the assembled input for response generation
type PromptContext struct {
	Kind        Kind
	UserMessage string
	History     []session.Turn
	Chunks      []index.Result
}

// Assembler builds prompt contexts under a budget
type Assembler struct {
	budget Budget
}

// New creates an assembler with the given budget
func New(budget Budget) *Assembler {
	return &Assembler{budget: budget}
}

// Build assembles a context for the newest user message. Retrieved chunks
// are deduplicated by document (highest-scoring chunk per document wins) and
// truncated per chunk; history is added newest-first until the character
// budget is spent. The user message itself never counts against the budget.
func (a *Assembler) Build(kind Kind, sess *session.Session, userMessage string, chunks []index.Result) PromptContext {
	pc := PromptContext{
		Kind:        kind,
		UserMessage: userMessage,
	}

	remaining := a.budget.MaxContextChars

	seen := make(map[string]bool)
	for _, result := range chunks {
		if seen[result.Chunk.DocID] {
			continue
		}
		chunk := result
		chunk.Chunk.Text = truncateAtRune(chunk.Chunk.Text, a.budget.MaxChunkChars)
		if len(chunk.Chunk.Text) > remaining {
			continue
		}
		seen[result.Chunk.DocID] = true
		remaining -= len(chunk.Chunk.Text)
		pc.Chunks = append(pc.Chunks, chunk)
	}

	// History is scanned newest-first so the most recent exchange survives
	// a tight budget, then restored to chronological order.
	turns := session.RecentTurns(sess, a.budget.MaxHistoryTurns)
	var kept []session.Turn
	for i := len(turns) - 1; i >= 0; i-- {
		if len(turns[i].Text) > remaining {
			break
		}
		remaining -= len(turns[i].Text)
		kept = append(kept, turns[i])
	}
	for i := len(kept) - 1; i >= 0; i-- {
		pc.History = append(pc.History, kept[i])
	}

	return pc
}

// Shrink returns a copy of the context with half the chunks and half the
// history dropped, keeping the highest-scoring chunks and the newest turns.
// Used for one retry after a generation failure.
func Shrink(pc PromptContext) PromptContext {
	shrunk := pc
	shrunk.Chunks = pc.Chunks[:len(pc.Chunks)/2]
	if len(pc.History) > 0 {
		shrunk.History = pc.History[len(pc.History)/2:]
	}
	return shrunk
}

// truncateAtRune cuts s to at most max bytes without splitting a rune
func truncateAtRune(s string, max int) string {
	if len(s) <= max {
		return s
	}
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return s[:max]
}

// RenderKnowledge formats the retrieved chunks for inclusion in a prompt
func RenderKnowledge(pc PromptContext) string {
	if len(pc.Chunks) == 0 {
		return ""
	}
	var builder strings.Builder
	builder.WriteString("Relevant support material:\n\n")
	for _, result := range pc.Chunks {
		builder.WriteString(result.Chunk.Text)
		builder.WriteString("\n\n")
	}
	return builder.String()
}

// ChunkIDs returns the IDs of the chunks carried by the context
func ChunkIDs(pc PromptContext) []string {
	ids := make([]string, 0, len(pc.Chunks))
	for _, result := range pc.Chunks {
		ids = append(ids, result.Chunk.ID)
	}
	return ids
}
