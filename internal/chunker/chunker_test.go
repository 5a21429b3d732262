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

package chunker

import (
	"fmt"
	"strings"
	"testing"
)

func TestSplitShortDocument(t *testing.T) {
	doc := Document{ID: "grounding", Body: "Short article.", Tags: []string{"anxiety"}}

	pieces := Split(doc, 500)
	if len(pieces) != 1 {
		t.Fatalf("Expected 1 piece, got %d", len(pieces))
	}
	if pieces[0].ID != "grounding#0" {
		t.Errorf("Expected piece ID grounding#0, got %s", pieces[0].ID)
	}
	if len(pieces[0].Tags) != 1 || pieces[0].Tags[0] != "anxiety" {
		t.Errorf("Expected tags to carry over, got %v", pieces[0].Tags)
	}
}

func TestSplitPrefersSentenceBoundaries(t *testing.T) {
	body := "This is the first sentence. This is the second sentence. " +
		"This is the third sentence which keeps going a bit longer than the others."
	doc := Document{ID: "doc", Body: body}

	pieces := Split(doc, 60)
	if len(pieces) < 2 {
		t.Fatalf("Expected multiple pieces, got %d", len(pieces))
	}
	if !strings.HasSuffix(pieces[0].Text, ".") {
		t.Errorf("Expected first piece to end at a sentence boundary, got %q", pieces[0].Text)
	}
	for i, piece := range pieces {
		if piece.ID != fmt.Sprintf("%s#%d", doc.ID, i) {
			t.Errorf("Piece %d has ID %s", i, piece.ID)
		}
	}

	// All original words survive the split
	joined := strings.Join([]string{pieces[0].Text, pieces[1].Text}, " ")
	for _, piece := range pieces[2:] {
		joined += " " + piece.Text
	}
	if len(strings.Fields(joined)) != len(strings.Fields(body)) {
		t.Error("Splitting must not drop words")
	}
}

func TestSplitEmptyBody(t *testing.T) {
	pieces := Split(Document{ID: "empty", Body: "   "}, 100)
	if len(pieces) != 0 {
		t.Errorf("Expected no pieces for empty body, got %d", len(pieces))
	}
}

func TestParseMarkdown(t *testing.T) {
	content := "# Managing Panic Attacks\n" +
		"Tags: anxiety, panic, coping\n\n\n" +
		"## Recognize the signs\n" +
		"A racing heart is common.\n\n" +
		"### Breathing\n" +
		"Try slow breaths."

	doc := ParseMarkdown("panic-attacks", content)

	if doc.ID != "panic-attacks" {
		t.Errorf("Expected ID panic-attacks, got %s", doc.ID)
	}
	if doc.Title != "Managing Panic Attacks" {
		t.Errorf("Expected title from first heading, got %q", doc.Title)
	}
	if len(doc.Tags) != 3 || doc.Tags[1] != "panic" {
		t.Errorf("Expected parsed tags, got %v", doc.Tags)
	}
	if strings.Contains(doc.Body, "#") {
		t.Errorf("Expected headings flattened, got %q", doc.Body)
	}
	if strings.Contains(doc.Body, "Tags:") {
		t.Error("Tags line must not appear in the body")
	}
	if strings.Contains(doc.Body, "\n\n\n") {
		t.Error("Excessive newlines must be collapsed")
	}
}
