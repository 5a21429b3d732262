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

// Package chunker splits knowledge articles into chunks suitable for
// embedding and retrieval. Splitting prefers sentence boundaries so chunks
// stay semantically coherent.
package chunker

import (
	"fmt"
	"strings"
)

// Document is a parsed knowledge article ready for chunking
type Document struct {
	ID    string
	Title string
	Body  string
	Tags  []string
}

// Piece is one chunk of a document, identified by document ID and ordinal
type Piece struct {
	ID    string
	DocID string
	Text  string
	Tags  []string
}

// Split breaks a document body into pieces of at most chunkSize characters,
// preferring sentence boundaries. Piece IDs are "<docID>#<ordinal>".
func Split(doc Document, chunkSize int) []Piece {
	texts := splitText(doc.Body, chunkSize)
	pieces := make([]Piece, 0, len(texts))
	for i, text := range texts {
		pieces = append(pieces, Piece{
			ID:    fmt.Sprintf("%s#%d", doc.ID, i),
			DocID: doc.ID,
			Text:  text,
			Tags:  doc.Tags,
		})
	}
	return pieces
}

// splitText splits text into chunks based on the specified chunk size
func splitText(text string, chunkSize int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return []string{}
	}

	if len(text) <= chunkSize {
		return []string{text}
	}

	var chunks []string
	words := strings.Fields(text)

	var currentChunk strings.Builder
	wordCount := 0

	for _, word := range words {
		if wordCount > 0 && currentChunk.Len()+len(word)+1 > chunkSize {
			chunk := currentChunk.String()
			if lastSentence := findSentenceBreak(chunk); lastSentence != "" {
				chunks = append(chunks, strings.TrimSpace(lastSentence))
				remaining := strings.TrimSpace(chunk[len(lastSentence):])
				currentChunk.Reset()
				if remaining != "" {
					currentChunk.WriteString(remaining)
					currentChunk.WriteString(" ")
				}
				wordCount = len(strings.Fields(remaining))
			} else {
				chunks = append(chunks, strings.TrimSpace(chunk))
				currentChunk.Reset()
				wordCount = 0
			}
		}

		if currentChunk.Len() > 0 {
			currentChunk.WriteString(" ")
		}
		currentChunk.WriteString(word)
		wordCount++
	}

	if currentChunk.Len() > 0 {
		chunks = append(chunks, strings.TrimSpace(currentChunk.String()))
	}

	return chunks
}

// findSentenceBreak finds the last sentence boundary in the text
func findSentenceBreak(text string) string {
	sentenceEnders := []string{". ", "! ", "? ", ".\n", "!\n", "?\n"}

	lastIndex := -1
	for _, ender := range sentenceEnders {
		if idx := strings.LastIndex(text, ender); idx > lastIndex {
			lastIndex = idx + len(ender)
		}
	}

	if lastIndex > 0 {
		return text[:lastIndex]
	}

	return ""
}

// ParseMarkdown parses a markdown knowledge article. The first level-one
// heading becomes the title; a "Tags:" line immediately after it becomes the
// tag list. Headings are flattened to plain text in the body.
func ParseMarkdown(id, content string) Document {
	for strings.Contains(content, "\n\n\n") {
		content = strings.ReplaceAll(content, "\n\n\n", "\n\n")
	}

	doc := Document{ID: id}
	lines := strings.Split(content, "\n")
	var bodyLines []string

	for _, line := range lines {
		switch {
		case strings.HasPrefix(line, "# "):
			title := strings.TrimPrefix(line, "# ")
			if doc.Title == "" {
				doc.Title = title
			}
			bodyLines = append(bodyLines, title)
		case strings.HasPrefix(line, "## "):
			bodyLines = append(bodyLines, strings.TrimPrefix(line, "## "))
		case strings.HasPrefix(line, "### "):
			bodyLines = append(bodyLines, strings.TrimPrefix(line, "### "))
		case strings.HasPrefix(strings.ToLower(line), "tags:"):
			doc.Tags = parseTags(line[len("tags:"):])
		default:
			bodyLines = append(bodyLines, line)
		}
	}

	doc.Body = strings.TrimSpace(strings.Join(bodyLines, "\n"))
	return doc
}

func parseTags(raw string) []string {
	var tags []string
	for _, tag := range strings.Split(raw, ",") {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag != "" {
			tags = append(tags, tag)
		}
	}
	return tags
}
