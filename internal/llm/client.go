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

// Package llm wraps the OpenAI API for embeddings and chat completions with
// retry and rate-limit handling.
package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

const (
	// DefaultEmbeddingModel is used when no embed model is configured
	DefaultEmbeddingModel = string(openai.SmallEmbedding3)
	// ExpectedEmbeddingDimensions defines the expected embedding dimensions
	ExpectedEmbeddingDimensions = 1536
	// MaxRetries defines the maximum number of retry attempts
	MaxRetries = 3
	// BaseRetryDelay defines the base delay for exponential backoff
	BaseRetryDelay = time.Second
)

// Client wraps the go-openai client
type Client struct {
	client     *openai.Client
	logger     *zap.Logger
	embedModel string
}

// RetryableError represents an error that can be retried
type RetryableError struct {
	StatusCode int
	Message    string
	RetryAfter time.Duration
}

func (e *RetryableError) Error() string {
	return fmt.Sprintf("retryable error (status %d): %s", e.StatusCode, e.Message)
}

// NewClient creates a new OpenAI client. No connectivity probe is made at
// startup; the first real request surfaces credential problems.
func NewClient(apiKey, embedModel string, logger *zap.Logger) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API key is required")
	}
	if !strings.HasPrefix(apiKey, "sk-") {
		return nil, fmt.Errorf("invalid API key format")
	}
	if embedModel == "" {
		embedModel = DefaultEmbeddingModel
	}

	client := &Client{
		client:     openai.NewClient(apiKey),
		logger:     logger,
		embedModel: embedModel,
	}

	client.logger.Info("OpenAI client initialized",
		zap.String("embed_model", embedModel),
		zap.Int("max_retries", MaxRetries),
	)

	return client, nil
}

// EmbedTexts generates embeddings for multiple texts in one batch request
func (c *Client) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	embeddings, err := c.createEmbeddingsWithRetry(ctx, texts)
	if err != nil {
		c.logger.Error("Failed to create embeddings",
			zap.Error(err),
			zap.Int("text_count", len(texts)),
		)
		return nil, fmt.Errorf("failed to create embeddings: %w", err)
	}

	for i, embedding := range embeddings {
		if len(embedding) != ExpectedEmbeddingDimensions {
			return nil, fmt.Errorf("embedding %d has %d dimensions, expected %d",
				i, len(embedding), ExpectedEmbeddingDimensions)
		}
	}

	return embeddings, nil
}

// EmbedQuery generates an embedding for a single query text
func (c *Client) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	if query == "" {
		return nil, fmt.Errorf("query text cannot be empty")
	}

	c.logger.Debug("Embedding query",
		zap.String("query_preview", truncateText(query, 100)),
		zap.String("model", c.embedModel),
	)

	embeddings, err := c.EmbedTexts(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	if len(embeddings) == 0 {
		return nil, fmt.Errorf("no embeddings returned for query")
	}

	return embeddings[0], nil
}

// createEmbeddingsWithRetry creates embeddings with exponential backoff
func (c *Client) createEmbeddingsWithRetry(ctx context.Context, texts []string) ([][]float32, error) {
	var lastErr error
	delay := BaseRetryDelay

	for attempt := 0; attempt < MaxRetries; attempt++ {
		if attempt > 0 {
			c.logger.Warn("Retrying embedding request",
				zap.Int("attempt", attempt+1),
				zap.Duration("delay", delay),
			)

			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		resp, err := c.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
			Input: texts,
			Model: openai.EmbeddingModel(c.embedModel),
		})
		if err != nil {
			lastErr = c.handleAPIError(err)

			if retryErr, ok := lastErr.(*RetryableError); ok {
				if retryErr.RetryAfter > 0 {
					delay = retryErr.RetryAfter
				} else {
					delay = BaseRetryDelay * time.Duration(1<<uint(attempt))
				}
				continue
			}
			return nil, lastErr
		}

		if len(resp.Data) != len(texts) {
			return nil, fmt.Errorf("unexpected response: got %d embeddings for %d texts",
				len(resp.Data), len(texts))
		}

		embeddings := make([][]float32, len(resp.Data))
		for i, embedding := range resp.Data {
			embeddings[i] = embedding.Embedding
		}
		return embeddings, nil
	}

	return nil, fmt.Errorf("exhausted all retry attempts: %w", lastErr)
}

// ChatRequest represents a chat completion request
type ChatRequest struct {
	Messages    []openai.ChatCompletionMessage
	MaxTokens   int
	Temperature float32
	Model       string
}

// ChatResponse represents the response from a chat completion
type ChatResponse struct {
	Content      string
	FinishReason string
	Usage        openai.Usage
}

// CreateChatCompletion creates a chat completion with retry logic. Rate
// limits and transient server errors are retried with backoff; all other
// failures return immediately.
func (c *Client) CreateChatCompletion(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	openaiReq := openai.ChatCompletionRequest{
		Model:       req.Model,
		Messages:    req.Messages,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}

	c.logger.Debug("Creating chat completion",
		zap.String("model", req.Model),
		zap.Int("max_tokens", req.MaxTokens),
		zap.Int("message_count", len(req.Messages)),
	)

	var lastErr error
	delay := BaseRetryDelay

	for attempt := 0; attempt < MaxRetries; attempt++ {
		if attempt > 0 {
			c.logger.Warn("Retrying chat completion request",
				zap.Int("attempt", attempt+1),
				zap.Duration("delay", delay),
			)

			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		resp, err := c.client.CreateChatCompletion(ctx, openaiReq)
		if err != nil {
			lastErr = c.handleAPIError(err)

			if retryErr, ok := lastErr.(*RetryableError); ok {
				if retryErr.RetryAfter > 0 {
					delay = retryErr.RetryAfter
				} else {
					delay = BaseRetryDelay * time.Duration(1<<uint(attempt))
				}
				continue
			}
			return nil, lastErr
		}

		if len(resp.Choices) == 0 {
			return nil, fmt.Errorf("no choices returned from OpenAI")
		}

		c.logger.Debug("Chat completion successful",
			zap.String("finish_reason", string(resp.Choices[0].FinishReason)),
			zap.Int("total_tokens", resp.Usage.TotalTokens),
		)

		return &ChatResponse{
			Content:      resp.Choices[0].Message.Content,
			FinishReason: string(resp.Choices[0].FinishReason),
			Usage:        resp.Usage,
		}, nil
	}

	return nil, fmt.Errorf("exhausted all retry attempts: %w", lastErr)
}

// handleAPIError classifies OpenAI API errors as retryable or fatal
func (c *Client) handleAPIError(err error) error {
	if apiErr, ok := err.(*openai.APIError); ok {
		switch apiErr.HTTPStatusCode {
		case http.StatusUnauthorized:
			return fmt.Errorf("invalid API key or unauthorized access: %w", err)
		case http.StatusTooManyRequests:
			// The SDK does not surface the Retry-After header; start from
			// the base delay and let exponential backoff take over.
			return &RetryableError{
				StatusCode: apiErr.HTTPStatusCode,
				Message:    apiErr.Message,
				RetryAfter: BaseRetryDelay,
			}
		case http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			return &RetryableError{
				StatusCode: apiErr.HTTPStatusCode,
				Message:    apiErr.Message,
			}
		default:
			return fmt.Errorf("OpenAI API error (status %d): %s", apiErr.HTTPStatusCode, apiErr.Message)
		}
	}

	return fmt.Errorf("OpenAI client error: %w", err)
}

// truncateText truncates text to a maximum length for logging
func truncateText(text string, maxLength int) string {
	if len(text) <= maxLength {
		return text
	}
	return text[:maxLength] + "..."
}
