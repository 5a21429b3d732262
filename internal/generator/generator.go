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

// Package generator produces assistant responses from assembled prompt
// contexts. Backends are pluggable; the OpenAI backend enforces a hard
// timeout per call, and a deterministic canned backend serves tests and
// offline deployments.
package generator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/your-org/mh-assistant/internal/assembler"
	"github.com/your-org/mh-assistant/internal/llm"
	"github.com/your-org/mh-assistant/internal/session"
)

// ErrGenerationFailed wraps any backend failure, including timeout
var ErrGenerationFailed = errors.New("response generation failed")

// Generator produces one assistant response for a prompt context. A single
// call makes at most one backend request; retry policy belongs to the
// caller.
type Generator interface {
	Generate(ctx context.Context, pc assembler.PromptContext) (string, error)
}

// Config holds generation settings
type Config struct {
	Backend     string
	Model       string
	MaxTokens   int
	Temperature float32
	Timeout     time.Duration
}

// New creates the configured generator backend
func New(cfg Config, client *llm.Client, logger *zap.Logger) (Generator, error) {
	switch cfg.Backend {
	case "openai":
		if client == nil {
			return nil, fmt.Errorf("openai backend requires a client")
		}
		return NewOpenAIGenerator(cfg, client, logger), nil
	case "canned":
		return NewCannedGenerator(logger), nil
	default:
		return nil, fmt.Errorf("unsupported generation backend: %s", cfg.Backend)
	}
}

// OpenAIGenerator generates responses via the OpenAI chat API
type OpenAIGenerator struct {
	client *llm.Client
	cfg    Config
	logger *zap.Logger
}

// NewOpenAIGenerator creates the OpenAI-backed generator
func NewOpenAIGenerator(cfg Config, client *llm.Client, logger *zap.Logger) *OpenAIGenerator {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &OpenAIGenerator{client: client, cfg: cfg, logger: logger}
}

// Generate produces a response, failing with ErrGenerationFailed once the
// configured timeout elapses
func (g *OpenAIGenerator) Generate(ctx context.Context, pc assembler.PromptContext) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
	defer cancel()

	messages := buildMessages(pc)

	start := time.Now()
	resp, err := g.client.CreateChatCompletion(ctx, llm.ChatRequest{
		Messages:    messages,
		MaxTokens:   g.cfg.MaxTokens,
		Temperature: g.cfg.Temperature,
		Model:       g.cfg.Model,
	})
	if err != nil {
		g.logger.Error("Generation backend call failed",
			zap.Error(err),
			zap.String("kind", string(pc.Kind)),
			zap.Duration("elapsed", time.Since(start)),
		)
		return "", fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}

	g.logger.Debug("Generated response",
		zap.String("kind", string(pc.Kind)),
		zap.String("finish_reason", resp.FinishReason),
		zap.Duration("elapsed", time.Since(start)),
	)

	return resp.Content, nil
}

// buildMessages converts a prompt context into chat messages. Knowledge
// chunks ride in the system prompt; history keeps its original roles.
func buildMessages(pc assembler.PromptContext) []openai.ChatCompletionMessage {
	system := systemPrompt(pc.Kind)
	if knowledge := assembler.RenderKnowledge(pc); knowledge != "" {
		system += "\n\n" + knowledge
	}

	messages := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: system},
	}
	for _, turn := range pc.History {
		role := openai.ChatMessageRoleUser
		if turn.Role == session.AssistantRole {
			role = openai.ChatMessageRoleAssistant
		}
		messages = append(messages, openai.ChatCompletionMessage{Role: role, Content: turn.Text})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: pc.UserMessage,
	})
	return messages
}

// CannedGenerator returns fixed supportive responses per context kind. It
// never fails and is suitable for tests and offline deployments.
type CannedGenerator struct {
	logger *zap.Logger
}

// NewCannedGenerator creates the canned backend
func NewCannedGenerator(logger *zap.Logger) *CannedGenerator {
	return &CannedGenerator{logger: logger}
}

// Generate returns a fixed response for the context kind
func (g *CannedGenerator) Generate(_ context.Context, pc assembler.PromptContext) (string, error) {
	switch pc.Kind {
	case assembler.KindCrisis:
		return "I'm really concerned about what you've shared, and I want you to know you're not alone.\n\n" + CrisisResources, nil
	case assembler.KindAssessment:
		return "Thank you for sharing that. Let's continue with the next question when you're ready.", nil
	default:
		return "Thank you for telling me. That sounds difficult, and your feelings are valid. Would you like to talk more about what's been going on?", nil
	}
}

// FallbackResponse is the degraded reply used when every generation attempt
// has failed. The conversation continues rather than surfacing an error to
// the user.
const FallbackResponse = "I'm sorry, I'm having trouble responding right now. I'm still here with you. If you need immediate support, you can call 988 or text HOME to 741741."
