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

package assembler

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/your-org/mh-assistant/internal/index"
	"github.com/your-org/mh-assistant/internal/session"
)

func sessionWithTurns(texts ...string) *session.Session {
	sess := &session.Session{ID: "session_test"}
	for i, text := range texts {
		role := session.UserRole
		if i%2 == 1 {
			role = session.AssistantRole
		}
		session.AppendTurn(sess, session.Turn{Role: role, Text: text})
	}
	return sess
}

func TestBuildDedupesChunksByDocument(t *testing.T) {
	a := New(DefaultBudget())
	sess := sessionWithTurns("hi")

	chunks := []index.Result{
		{Chunk: index.Chunk{ID: "doc1#0", DocID: "doc1", Text: "first"}, Score: 0.9},
		{Chunk: index.Chunk{ID: "doc1#3", DocID: "doc1", Text: "second from same doc"}, Score: 0.8},
		{Chunk: index.Chunk{ID: "doc2#0", DocID: "doc2", Text: "other doc"}, Score: 0.7},
	}

	pc := a.Build(KindGeneral, sess, "hello", chunks)
	if len(pc.Chunks) != 2 {
		t.Fatalf("Expected 2 chunks after dedup, got %d", len(pc.Chunks))
	}
	if pc.Chunks[0].Chunk.ID != "doc1#0" || pc.Chunks[1].Chunk.ID != "doc2#0" {
		t.Errorf("Expected highest-scoring chunk per document, got %s and %s",
			pc.Chunks[0].Chunk.ID, pc.Chunks[1].Chunk.ID)
	}
}

func TestBuildTruncatesLongChunks(t *testing.T) {
	budget := Budget{MaxHistoryTurns: 10, MaxContextChars: 6000, MaxChunkChars: 50}
	a := New(budget)

	long := strings.Repeat("x", 500)
	pc := a.Build(KindGeneral, sessionWithTurns(), "q", []index.Result{
		{Chunk: index.Chunk{ID: "d#0", DocID: "d", Text: long}, Score: 1},
	})

	if len(pc.Chunks[0].Chunk.Text) != 50 {
		t.Errorf("Expected chunk truncated to 50 chars, got %d", len(pc.Chunks[0].Chunk.Text))
	}
}

func TestBuildTruncationKeepsRunesIntact(t *testing.T) {
	budget := Budget{MaxHistoryTurns: 10, MaxContextChars: 6000, MaxChunkChars: 10}
	a := New(budget)

	// "éééééé" is 12 bytes; a byte-level cut at 10 would split the sixth rune
	pc := a.Build(KindGeneral, sessionWithTurns(), "q", []index.Result{
		{Chunk: index.Chunk{ID: "d#0", DocID: "d", Text: strings.Repeat("é", 6)}, Score: 1},
	})

	got := pc.Chunks[0].Chunk.Text
	if !utf8.ValidString(got) {
		t.Errorf("Truncated chunk is not valid UTF-8: %q", got)
	}
	if len(got) > 10 {
		t.Errorf("Expected at most 10 bytes, got %d", len(got))
	}
	if got != strings.Repeat("é", 5) {
		t.Errorf("Expected 5 whole runes, got %q", got)
	}
}

func TestTruncateAtRune(t *testing.T) {
	tests := []struct {
		name string
		in   string
		max  int
		want string
	}{
		{"fits untouched", "hello", 10, "hello"},
		{"ascii cut", "hello", 3, "hel"},
		{"backs off mid-rune", "aaé", 3, "aa"},
		{"keeps complete rune", "aaé", 4, "aaé"},
		{"zero budget", "é", 0, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := truncateAtRune(tt.in, tt.max); got != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestBuildKeepsNewestHistoryUnderTightBudget(t *testing.T) {
	budget := Budget{MaxHistoryTurns: 10, MaxContextChars: 30, MaxChunkChars: 100}
	a := New(budget)

	sess := sessionWithTurns(
		strings.Repeat("a", 20),
		strings.Repeat("b", 20),
		"newest user turn",
	)

	pc := a.Build(KindGeneral, sess, "current message", nil)

	if len(pc.History) == 0 {
		t.Fatal("Expected at least the newest history turn to survive")
	}
	last := pc.History[len(pc.History)-1]
	if last.Text != "newest user turn" {
		t.Errorf("Expected newest turn kept, got %q", last.Text)
	}
	// History must stay chronological
	if len(pc.History) > 1 {
		for i := 1; i < len(pc.History); i++ {
			if pc.History[i].Timestamp.Before(pc.History[i-1].Timestamp) {
				t.Error("History must be in chronological order")
			}
		}
	}
}

func TestBuildUserMessageNeverDropped(t *testing.T) {
	budget := Budget{MaxHistoryTurns: 10, MaxContextChars: 0, MaxChunkChars: 100}
	a := New(budget)

	pc := a.Build(KindCrisis, sessionWithTurns("older"), "I need to talk to someone", []index.Result{
		{Chunk: index.Chunk{ID: "d#0", DocID: "d", Text: "chunk"}, Score: 1},
	})

	if pc.UserMessage != "I need to talk to someone" {
		t.Errorf("User message must survive a zero budget, got %q", pc.UserMessage)
	}
	if len(pc.Chunks) != 0 || len(pc.History) != 0 {
		t.Error("Zero budget must drop chunks and history")
	}
}

func TestBuildRespectsMaxHistoryTurns(t *testing.T) {
	budget := Budget{MaxHistoryTurns: 2, MaxContextChars: 6000, MaxChunkChars: 100}
	a := New(budget)

	sess := sessionWithTurns("one", "two", "three", "four")
	pc := a.Build(KindGeneral, sess, "q", nil)

	if len(pc.History) != 2 {
		t.Fatalf("Expected 2 history turns, got %d", len(pc.History))
	}
	if pc.History[0].Text != "three" || pc.History[1].Text != "four" {
		t.Errorf("Expected the two newest turns, got %q and %q",
			pc.History[0].Text, pc.History[1].Text)
	}
}

func TestShrink(t *testing.T) {
	pc := PromptContext{
		Kind:        KindGeneral,
		UserMessage: "message",
		Chunks: []index.Result{
			{Chunk: index.Chunk{ID: "a"}}, {Chunk: index.Chunk{ID: "b"}},
			{Chunk: index.Chunk{ID: "c"}}, {Chunk: index.Chunk{ID: "d"}},
		},
		History: []session.Turn{
			{Text: "1"}, {Text: "2"}, {Text: "3"}, {Text: "4"},
		},
	}

	shrunk := Shrink(pc)
	if len(shrunk.Chunks) != 2 {
		t.Errorf("Expected 2 chunks after shrink, got %d", len(shrunk.Chunks))
	}
	if shrunk.Chunks[0].Chunk.ID != "a" {
		t.Error("Shrink must keep the highest-scoring chunks")
	}
	if len(shrunk.History) != 2 || shrunk.History[0].Text != "3" {
		t.Errorf("Shrink must keep the newest history, got %+v", shrunk.History)
	}
	if shrunk.UserMessage != "message" {
		t.Error("Shrink must never drop the user message")
	}
}

func TestChunkIDs(t *testing.T) {
	pc := PromptContext{Chunks: []index.Result{
		{Chunk: index.Chunk{ID: "x#0"}},
		{Chunk: index.Chunk{ID: "y#1"}},
	}}

	ids := ChunkIDs(pc)
	if len(ids) != 2 || ids[0] != "x#0" || ids[1] != "y#1" {
		t.Errorf("Expected chunk IDs in order, got %v", ids)
	}
}
