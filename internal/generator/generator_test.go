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

package generator

import (
	"context"
	"strings"
	"testing"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap/zaptest"

	"github.com/your-org/mh-assistant/internal/assembler"
	"github.com/your-org/mh-assistant/internal/index"
	"github.com/your-org/mh-assistant/internal/session"
)

func TestNewBackendSelection(t *testing.T) {
	logger := zaptest.NewLogger(t)

	gen, err := New(Config{Backend: "canned"}, nil, logger)
	if err != nil {
		t.Fatalf("New canned failed: %v", err)
	}
	if _, ok := gen.(*CannedGenerator); !ok {
		t.Errorf("Expected CannedGenerator, got %T", gen)
	}

	if _, err := New(Config{Backend: "openai"}, nil, logger); err == nil {
		t.Error("Expected error for openai backend without client")
	}

	if _, err := New(Config{Backend: "llamacpp"}, nil, logger); err == nil {
		t.Error("Expected error for unsupported backend")
	}
}

func TestCannedGeneratorByKind(t *testing.T) {
	gen := NewCannedGenerator(zaptest.NewLogger(t))
	ctx := context.Background()

	crisis, err := gen.Generate(ctx, assembler.PromptContext{Kind: assembler.KindCrisis})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if !strings.Contains(crisis, "988") || !strings.Contains(crisis, "741741") {
		t.Error("Crisis response must include emergency resources")
	}

	general, err := gen.Generate(ctx, assembler.PromptContext{Kind: assembler.KindGeneral})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if general == crisis {
		t.Error("Expected kind-specific responses")
	}
}

func TestBuildMessages(t *testing.T) {
	pc := assembler.PromptContext{
		Kind:        assembler.KindGeneral,
		UserMessage: "I had a hard week",
		History: []session.Turn{
			{Role: session.UserRole, Text: "hello"},
			{Role: session.AssistantRole, Text: "hi, how are you feeling?"},
		},
		Chunks: []index.Result{
			{Chunk: index.Chunk{ID: "d#0", DocID: "d", Text: "grounding exercise text"}},
		},
	}

	messages := buildMessages(pc)

	if len(messages) != 4 {
		t.Fatalf("Expected 4 messages, got %d", len(messages))
	}
	if messages[0].Role != openai.ChatMessageRoleSystem {
		t.Error("First message must be the system prompt")
	}
	if !strings.Contains(messages[0].Content, "grounding exercise text") {
		t.Error("Knowledge chunks must ride in the system prompt")
	}
	if messages[1].Role != openai.ChatMessageRoleUser || messages[2].Role != openai.ChatMessageRoleAssistant {
		t.Error("History roles must be preserved")
	}
	if messages[3].Content != "I had a hard week" {
		t.Error("Last message must be the current user message")
	}
}

func TestSystemPromptSelection(t *testing.T) {
	if !strings.Contains(systemPrompt(assembler.KindCrisis), "CRISIS RESOURCES") {
		t.Error("Crisis prompt must carry resource block")
	}
	if !strings.Contains(systemPrompt(assembler.KindAssessment), "assessment") {
		t.Error("Assessment prompt must mention the assessment")
	}
	if systemPrompt(assembler.KindGeneral) == systemPrompt(assembler.KindCrisis) {
		t.Error("Prompts must differ per kind")
	}
	// Unknown kinds fall back to the general prompt
	if systemPrompt(assembler.Kind("other")) != systemPrompt(assembler.KindGeneral) {
		t.Error("Unknown kind must use the general prompt")
	}
}
