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

// Package session provides conversation state management for the support
// assistant. It tracks turn history, assessment runs, and mood entries per
// session, with in-memory and SQLite storage backends and configurable
// expiration.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/your-org/mh-assistant/internal/assessment"
	"github.com/your-org/mh-assistant/internal/crisis"
)

// StorageType represents the type of storage backend for sessions
type StorageType string

const (
	// MemoryStorageType uses in-memory storage for sessions
	MemoryStorageType StorageType = "memory"
	// SQLiteStorageType uses SQLite for session storage
	SQLiteStorageType StorageType = "sqlite"
)

// ErrSessionNotFound is returned when a session ID resolves to nothing
var ErrSessionNotFound = errors.New("session not found")

// Config holds configuration for session management
type Config struct {
	StorageType     StorageType   `json:"storage_type"`
	DBPath          string        `json:"db_path,omitempty"`
	DefaultTTL      time.Duration `json:"default_ttl"`
	MaxSessions     int           `json:"max_sessions"`
	CleanupInterval time.Duration `json:"cleanup_interval"`
}

// DefaultConfig returns default session configuration
func DefaultConfig() Config {
	return Config{
		StorageType:     MemoryStorageType,
		DefaultTTL:      60 * time.Minute,
		MaxSessions:     1000,
		CleanupInterval: 5 * time.Minute,
	}
}

// Mode indicates how the orchestrator should interpret incoming messages
type Mode string

const (
	// ModeFreeform is normal conversational mode
	ModeFreeform Mode = "freeform"
	// ModeAssessment routes messages to the active assessment run
	ModeAssessment Mode = "in_assessment"
)

// Role represents the author of a turn
type Role string

const (
	// UserRole indicates a turn from the user
	UserRole Role = "user"
	// AssistantRole indicates a turn from the assistant
	AssistantRole Role = "assistant"
)

// Turn is a single message in the conversation history
type Turn struct {
	ID        string           `json:"id"`
	Role      Role             `json:"role"`
	Text      string           `json:"text"`
	Timestamp time.Time        `json:"timestamp"`
	Risk      crisis.RiskLevel `json:"risk,omitempty"`
	Sentiment float64          `json:"sentiment,omitempty"`
	ChunkIDs  []string         `json:"chunk_ids,omitempty"`
}

// MoodEntry is a self-reported mood on a 1-10 scale
type MoodEntry struct {
	Score     int       `json:"score"`
	Note      string    `json:"note,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Session holds the full conversational state for one user interaction
type Session struct {
	ID          string          `json:"id"`
	Anonymous   bool            `json:"anonymous"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	ExpiresAt   time.Time       `json:"expires_at"`
	Mode        Mode            `json:"mode"`
	Turns       []Turn          `json:"turns"`
	ActiveRun   *assessment.Run `json:"active_run,omitempty"`
	MoodEntries []MoodEntry     `json:"mood_entries,omitempty"`
	// LastSentiment is the classifier score of the most recent user turn
	LastSentiment float64 `json:"last_sentiment"`
	// LastMood is the coarse mood label derived from that score
	LastMood string `json:"last_mood,omitempty"`
}

// Store defines the interface for session storage backends
type Store interface {
	// Get retrieves a session by ID
	Get(ctx context.Context, sessionID string) (*Session, error)
	// Set stores a session with optional TTL
	Set(ctx context.Context, session *Session, ttl time.Duration) error
	// Delete removes a session
	Delete(ctx context.Context, sessionID string) error
	// Exists checks if a session exists
	Exists(ctx context.Context, sessionID string) (bool, error)
	// Cleanup removes expired sessions
	Cleanup(ctx context.Context) error
	// Close closes the storage backend
	Close() error
}

// Manager handles session lifecycle and storage operations
type Manager struct {
	storage Store
	config  Config
	logger  *zap.Logger
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// NewManager creates a new session manager with the specified storage backend
func NewManager(config Config, logger *zap.Logger) (*Manager, error) {
	var storage Store
	var err error

	switch config.StorageType {
	case MemoryStorageType:
		storage = NewMemoryStore(config.MaxSessions)
	case SQLiteStorageType:
		storage, err = NewSQLiteStore(config.DBPath, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite storage: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", config.StorageType)
	}

	manager := &Manager{
		storage: storage,
		config:  config,
		logger:  logger,
		stopCh:  make(chan struct{}),
	}

	if config.CleanupInterval > 0 {
		manager.wg.Add(1)
		go manager.cleanupLoop()
	}

	return manager, nil
}

// CreateSession creates a new session. Sessions are anonymous unless the
// caller supplies an identity upstream.
func (m *Manager) CreateSession(ctx context.Context, anonymous bool) (*Session, error) {
	sessionID := GenerateSessionID()
	now := time.Now()

	session := &Session{
		ID:          sessionID,
		Anonymous:   anonymous,
		CreatedAt:   now,
		UpdatedAt:   now,
		ExpiresAt:   now.Add(m.config.DefaultTTL),
		Mode:        ModeFreeform,
		Turns:       []Turn{},
		MoodEntries: []MoodEntry{},
	}

	if err := m.storage.Set(ctx, session, m.config.DefaultTTL); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	m.logger.Info("Created new session",
		zap.String("session_id", sessionID),
		zap.Bool("anonymous", anonymous))

	return session, nil
}

// GetSession retrieves a session by ID
func (m *Manager) GetSession(ctx context.Context, sessionID string) (*Session, error) {
	session, err := m.storage.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return session, nil
}

// GetOrCreate retrieves a session, creating a fresh anonymous one when the
// ID is unknown. An expired session is treated as unknown.
func (m *Manager) GetOrCreate(ctx context.Context, sessionID string) (*Session, error) {
	if sessionID != "" {
		session, err := m.storage.Get(ctx, sessionID)
		if err == nil && !IsExpired(session) {
			return session, nil
		}
		if err != nil && !errors.Is(err, ErrSessionNotFound) {
			return nil, err
		}
	}
	return m.CreateSession(ctx, true)
}

// UpdateSession persists session state and extends its expiry
func (m *Manager) UpdateSession(ctx context.Context, session *Session) error {
	session.UpdatedAt = time.Now()

	if err := m.storage.Set(ctx, session, m.config.DefaultTTL); err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}

	return nil
}

// AppendTurn adds a turn to the in-memory session object. The caller is
// responsible for persisting via UpdateSession once the full exchange is
// assembled, so a failed exchange never leaves a half-written pair.
func AppendTurn(session *Session, turn Turn) {
	if turn.ID == "" {
		turn.ID = GenerateTurnID()
	}
	if turn.Timestamp.IsZero() {
		turn.Timestamp = time.Now()
	}
	session.Turns = append(session.Turns, turn)
}

// RecordMood appends a mood entry and persists the session
func (m *Manager) RecordMood(ctx context.Context, sessionID string, entry MoodEntry) error {
	if entry.Score < 1 || entry.Score > 10 {
		return fmt.Errorf("mood score must be between 1 and 10, got %d", entry.Score)
	}

	session, err := m.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}

	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}
	session.MoodEntries = append(session.MoodEntries, entry)

	if err := m.UpdateSession(ctx, session); err != nil {
		return fmt.Errorf("failed to record mood entry: %w", err)
	}

	m.logger.Debug("Recorded mood entry",
		zap.String("session_id", sessionID),
		zap.Int("score", entry.Score))

	return nil
}

// RecentTurns returns up to maxTurns of the most recent history
func RecentTurns(session *Session, maxTurns int) []Turn {
	turns := session.Turns
	if maxTurns > 0 && len(turns) > maxTurns {
		turns = turns[len(turns)-maxTurns:]
	}
	return turns
}

// DeleteSession removes a session
func (m *Manager) DeleteSession(ctx context.Context, sessionID string) error {
	if err := m.storage.Delete(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	m.logger.Info("Deleted session", zap.String("session_id", sessionID))
	return nil
}

// cleanupLoop runs periodic cleanup of expired sessions
func (m *Manager) cleanupLoop() {
	defer m.wg.Done()
	ticker := time.NewTicker(m.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			if err := m.storage.Cleanup(ctx); err != nil {
				m.logger.Error("Failed to cleanup expired sessions", zap.Error(err))
			}
			cancel()
		case <-m.stopCh:
			return
		}
	}
}

// Close gracefully closes the session manager
func (m *Manager) Close() error {
	close(m.stopCh)
	m.wg.Wait()

	if err := m.storage.Close(); err != nil {
		return fmt.Errorf("failed to close storage: %w", err)
	}

	return nil
}
