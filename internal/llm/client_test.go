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

package llm

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap/zaptest"
)

func TestNewClientValidation(t *testing.T) {
	tests := []struct {
		name       string
		apiKey     string
		embedModel string
		wantErr    bool
	}{
		{"valid key", "sk-test-key", "", false},
		{"valid key with model", "sk-test-key", "text-embedding-3-small", false},
		{"empty key", "", "", true},
		{"malformed key", "not-a-key", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := NewClient(tt.apiKey, tt.embedModel, zaptest.NewLogger(t))
			if tt.wantErr {
				if err == nil {
					t.Error("Expected error, got none")
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if client.embedModel == "" {
				t.Error("Expected embed model to default, got empty string")
			}
		})
	}
}

func TestHandleAPIErrorClassification(t *testing.T) {
	client, err := NewClient("sk-test-key", "", zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}

	tests := []struct {
		name      string
		status    int
		retryable bool
	}{
		{"rate limited", http.StatusTooManyRequests, true},
		{"server error", http.StatusInternalServerError, true},
		{"bad gateway", http.StatusBadGateway, true},
		{"service unavailable", http.StatusServiceUnavailable, true},
		{"gateway timeout", http.StatusGatewayTimeout, true},
		{"unauthorized", http.StatusUnauthorized, false},
		{"bad request", http.StatusBadRequest, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			apiErr := &openai.APIError{
				HTTPStatusCode: tt.status,
				Message:        "upstream says no",
			}

			result := client.handleAPIError(apiErr)

			var retryErr *RetryableError
			isRetryable := errors.As(result, &retryErr)
			if isRetryable != tt.retryable {
				t.Fatalf("Expected retryable=%v for status %d, got %v", tt.retryable, tt.status, isRetryable)
			}
			if isRetryable && retryErr.StatusCode != tt.status {
				t.Errorf("Expected status %d on retryable error, got %d", tt.status, retryErr.StatusCode)
			}
		})
	}
}

func TestRateLimitUsesBaseDelay(t *testing.T) {
	client, err := NewClient("sk-test-key", "", zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}

	result := client.handleAPIError(&openai.APIError{
		HTTPStatusCode: http.StatusTooManyRequests,
		Message:        "rate limited",
	})

	var retryErr *RetryableError
	if !errors.As(result, &retryErr) {
		t.Fatal("Expected a retryable error for 429")
	}
	if retryErr.RetryAfter != BaseRetryDelay {
		t.Errorf("Expected RetryAfter %v, got %v", BaseRetryDelay, retryErr.RetryAfter)
	}
}

func TestEmbedTextsEmptyInput(t *testing.T) {
	client, err := NewClient("sk-test-key", "", zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}

	// No texts means no API call; the result is an empty slice.
	embeddings, err := client.EmbedTexts(context.Background(), nil)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(embeddings) != 0 {
		t.Errorf("Expected no embeddings, got %d", len(embeddings))
	}
}

func TestEmbedQueryRejectsEmpty(t *testing.T) {
	client, err := NewClient("sk-test-key", "", zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}

	if _, err := client.EmbedQuery(context.Background(), ""); err == nil {
		t.Error("Expected error for empty query, got none")
	}
}
