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

// Package main provides the HTTP API for the mental health support
// assistant: chat sessions, assessments, mood tracking, and health checks.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/your-org/mh-assistant/internal/assembler"
	"github.com/your-org/mh-assistant/internal/assessment"
	"github.com/your-org/mh-assistant/internal/config"
	"github.com/your-org/mh-assistant/internal/crisis"
	"github.com/your-org/mh-assistant/internal/generator"
	"github.com/your-org/mh-assistant/internal/health"
	"github.com/your-org/mh-assistant/internal/index"
	"github.com/your-org/mh-assistant/internal/llm"
	"github.com/your-org/mh-assistant/internal/orchestrator"
	"github.com/your-org/mh-assistant/internal/session"
)

// DefaultConfigPath is used when no config path is given via environment
const DefaultConfigPath = "./configs/config.yaml"

// MessageRequest is the body of a chat message call
type MessageRequest struct {
	Message string `json:"message" binding:"required"`
}

// AssessmentRequest selects the questionnaire to start
type AssessmentRequest struct {
	Type string `json:"type" binding:"required"`
}

// MoodRequest is the body of a mood entry call
type MoodRequest struct {
	SessionID string `json:"session_id" binding:"required"`
	Score     int    `json:"score" binding:"required"`
	Note      string `json:"note"`
}

// Server wires the orchestrator into HTTP handlers
type Server struct {
	cfg           *config.Config
	logger        *zap.Logger
	orchestrator  *orchestrator.Orchestrator
	healthManager *health.Manager
}

func main() {
	logger, _ := zap.NewProduction()
	defer func() { _ = logger.Sync() }()

	configPath := os.Getenv("MH_ASSISTANT_CONFIG")
	if configPath == "" {
		configPath = DefaultConfigPath
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}

	healthManager := health.NewManager("mh-assistant", "1.0.0", logger)

	sessionConfig := session.Config{
		StorageType:     session.StorageType(cfg.Session.StorageType),
		DBPath:          cfg.Session.DBPath,
		DefaultTTL:      time.Duration(cfg.Session.DefaultTTLMinutes) * time.Minute,
		MaxSessions:     cfg.Session.MaxSessions,
		CleanupInterval: time.Duration(cfg.Session.CleanupIntervalMinutes) * time.Minute,
	}
	sessionManager, err := session.NewManager(sessionConfig, logger)
	if err != nil {
		logger.Fatal("Failed to initialize session manager", zap.Error(err))
	}
	defer func() { _ = sessionManager.Close() }()

	// The OpenAI client is only needed for the openai backend; the canned
	// backend runs fully offline.
	var client *llm.Client
	if cfg.Generation.Backend == "openai" {
		client, err = llm.NewClient(cfg.OpenAI.APIKey, cfg.OpenAI.EmbedModel, logger)
		if err != nil {
			logger.Fatal("Failed to initialize OpenAI client", zap.Error(err))
		}
	}

	var idx *index.Index
	if client != nil {
		idx = index.New(client, logger)
		chunkStore, err := index.NewChunkStore(cfg.Index.DBPath, logger)
		if err != nil {
			logger.Warn("Failed to open chunk store, retrieval disabled", zap.Error(err))
			idx = nil
		} else {
			defer func() { _ = chunkStore.Close() }()
			if err := idx.LoadFromStore(context.Background(), chunkStore); err != nil {
				logger.Warn("Failed to load knowledge chunks, retrieval starts empty", zap.Error(err))
			}
			healthManager.AddChecker("index", health.IndexHealthChecker(idx.Len))
			healthManager.AddChecker("chunk_store", health.DatabaseHealthChecker("chunks", func(ctx context.Context) error {
				_, err := chunkStore.Count(ctx)
				return err
			}))
		}
	}

	gen, err := generator.New(generator.Config{
		Backend:     cfg.Generation.Backend,
		Model:       cfg.Generation.Model,
		MaxTokens:   cfg.Generation.MaxTokens,
		Temperature: float32(cfg.Generation.Temperature),
		Timeout:     time.Duration(cfg.Generation.TimeoutSeconds) * time.Second,
	}, client, logger)
	if err != nil {
		logger.Fatal("Failed to initialize generator", zap.Error(err))
	}

	orch := orchestrator.New(
		sessionManager,
		crisis.NewDetector(crisis.NewSentimentClassifier(), logger),
		assessment.NewEngine(logger),
		idx,
		assembler.New(assembler.Budget{
			MaxHistoryTurns: cfg.Retrieval.MaxHistoryTurns,
			MaxContextChars: cfg.Retrieval.MaxContextChars,
			MaxChunkChars:   cfg.Retrieval.MaxChunkChars,
		}),
		gen,
		orchestrator.Options{
			TopK:           cfg.Retrieval.TopK,
			ElevatedStreak: cfg.Crisis.ElevatedStreak,
			StreakWindow:   time.Duration(cfg.Crisis.StreakWindowMinutes) * time.Minute,
		},
		logger,
	)

	server := &Server{
		cfg:           cfg,
		logger:        logger,
		orchestrator:  orch,
		healthManager: healthManager,
	}

	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/health", server.handleHealth)
	router.POST("/api/chat/session", server.handleCreateSession)
	router.POST("/api/chat/session/:id/message", server.handleMessage)
	router.GET("/api/chat/session/:id/history", server.handleHistory)
	router.DELETE("/api/chat/session/:id", server.handleEndSession)
	router.POST("/api/chat/session/:id/assessment/start", server.handleStartAssessment)
	router.POST("/api/mood/entry", server.handleMoodEntry)

	port := cfg.Server.Port
	if envPort := os.Getenv("PORT"); envPort != "" {
		port = envPort
	}

	logger.Info("Starting MH Assistant server",
		zap.String("port", port),
		zap.String("backend", cfg.Generation.Backend),
	)

	if err := router.Run(":" + port); err != nil {
		logger.Fatal("Failed to start server", zap.Error(err))
	}
}

// handleHealth returns the aggregate health status
func (s *Server) handleHealth(c *gin.Context) {
	result := s.healthManager.Check(c.Request.Context())

	statusCode := http.StatusOK
	if result.Status == health.StatusUnhealthy {
		statusCode = http.StatusServiceUnavailable
	}
	c.JSON(statusCode, result)
}

// handleCreateSession creates a new anonymous chat session
func (s *Server) handleCreateSession(c *gin.Context) {
	sess, err := s.orchestrator.CreateSession(c.Request.Context())
	if err != nil {
		s.logger.Error("Failed to create session", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create session"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"session_id": sess.ID,
		"created_at": sess.CreatedAt,
	})
}

// handleMessage processes one chat message through the orchestrator
func (s *Server) handleMessage(c *gin.Context) {
	var req MessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "message is required"})
		return
	}

	result, err := s.orchestrator.HandleTurn(c.Request.Context(), c.Param("id"), req.Message)
	if err != nil {
		switch {
		case errors.Is(err, orchestrator.ErrEmptyMessage):
			c.JSON(http.StatusBadRequest, gin.H{"error": "message is empty"})
		default:
			s.logger.Error("Failed to handle turn", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to process message"})
		}
		return
	}

	c.JSON(http.StatusOK, result)
}

// handleHistory returns the turn history for a session
func (s *Server) handleHistory(c *gin.Context) {
	turns, err := s.orchestrator.History(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
			return
		}
		s.logger.Error("Failed to load history", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load history"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"session_id": c.Param("id"),
		"turns":      turns,
	})
}

// handleEndSession deletes a session and all of its history
func (s *Server) handleEndSession(c *gin.Context) {
	if err := s.orchestrator.EndSession(c.Request.Context(), c.Param("id")); err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
			return
		}
		s.logger.Error("Failed to end session", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to end session"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ended"})
}

// handleStartAssessment begins a PHQ-9 or GAD-7 run for the session
func (s *Server) handleStartAssessment(c *gin.Context) {
	var req AssessmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "assessment type is required"})
		return
	}

	result, err := s.orchestrator.StartAssessment(c.Request.Context(), c.Param("id"), assessment.Type(req.Type))
	if err != nil {
		switch {
		case errors.Is(err, assessment.ErrUnknownType):
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown assessment type"})
		case errors.Is(err, orchestrator.ErrAssessmentActive):
			c.JSON(http.StatusConflict, gin.H{"error": "an assessment is already in progress"})
		default:
			s.logger.Error("Failed to start assessment", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to start assessment"})
		}
		return
	}

	c.JSON(http.StatusOK, result)
}

// handleMoodEntry records a self-reported mood score
func (s *Server) handleMoodEntry(c *gin.Context) {
	var req MoodRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "session_id and score are required"})
		return
	}

	if err := s.orchestrator.RecordMood(c.Request.Context(), req.SessionID, req.Score, req.Note); err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"status": "recorded"})
}
