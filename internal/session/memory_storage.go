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

package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/your-org/mh-assistant/internal/assessment"
)

// MemoryStore provides in-memory session storage with LRU eviction
type MemoryStore struct {
	sessions    map[string]*Session
	maxSessions int
	mutex       sync.RWMutex
	accessTime  map[string]time.Time // Track access time for LRU
}

// NewMemoryStore creates a new in-memory session store
func NewMemoryStore(maxSessions int) *MemoryStore {
	return &MemoryStore{
		sessions:    make(map[string]*Session),
		maxSessions: maxSessions,
		accessTime:  make(map[string]time.Time),
	}
}

// Get retrieves a session by ID
func (m *MemoryStore) Get(_ context.Context, sessionID string) (*Session, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	session, exists := m.sessions[sessionID]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}

	// Update access time for LRU
	m.accessTime[sessionID] = time.Now()

	return copySession(session), nil
}

// Set stores a session with optional TTL
func (m *MemoryStore) Set(_ context.Context, session *Session, ttl time.Duration) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if _, exists := m.sessions[session.ID]; !exists && len(m.sessions) >= m.maxSessions {
		m.evictOldestSession()
	}

	stored := copySession(session)
	if ttl > 0 {
		stored.ExpiresAt = time.Now().Add(ttl)
	}

	m.sessions[session.ID] = stored
	m.accessTime[session.ID] = time.Now()

	return nil
}

// Delete removes a session
func (m *MemoryStore) Delete(_ context.Context, sessionID string) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if _, exists := m.sessions[sessionID]; !exists {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}

	delete(m.sessions, sessionID)
	delete(m.accessTime, sessionID)

	return nil
}

// Exists checks if a session exists
func (m *MemoryStore) Exists(_ context.Context, sessionID string) (bool, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	_, exists := m.sessions[sessionID]
	return exists, nil
}

// Cleanup removes expired sessions
func (m *MemoryStore) Cleanup(_ context.Context) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	now := time.Now()
	for sessionID, session := range m.sessions {
		if session.ExpiresAt.Before(now) {
			delete(m.sessions, sessionID)
			delete(m.accessTime, sessionID)
		}
	}

	return nil
}

// Close closes the storage backend
func (m *MemoryStore) Close() error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.sessions = make(map[string]*Session)
	m.accessTime = make(map[string]time.Time)

	return nil
}

// evictOldestSession removes the least recently used session. Caller holds
// the write lock.
func (m *MemoryStore) evictOldestSession() {
	var oldestSessionID string
	var oldestTime time.Time

	for sessionID, accessTime := range m.accessTime {
		if oldestSessionID == "" || accessTime.Before(oldestTime) {
			oldestSessionID = sessionID
			oldestTime = accessTime
		}
	}

	if oldestSessionID != "" {
		delete(m.sessions, oldestSessionID)
		delete(m.accessTime, oldestSessionID)
	}
}

// copySession returns a deep copy so callers never share mutable slices with
// stored state
func copySession(session *Session) *Session {
	sessionCopy := *session

	sessionCopy.Turns = make([]Turn, len(session.Turns))
	copy(sessionCopy.Turns, session.Turns)

	sessionCopy.MoodEntries = make([]MoodEntry, len(session.MoodEntries))
	copy(sessionCopy.MoodEntries, session.MoodEntries)

	if session.ActiveRun != nil {
		runCopy := *session.ActiveRun
		runCopy.Answers = append([]assessment.Answer(nil), session.ActiveRun.Answers...)
		if session.ActiveRun.Score != nil {
			scoreCopy := *session.ActiveRun.Score
			runCopy.Score = &scoreCopy
		}
		sessionCopy.ActiveRun = &runCopy
	}

	return &sessionCopy
}
