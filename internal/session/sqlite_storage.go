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
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/your-org/mh-assistant/internal/assessment"
	"github.com/your-org/mh-assistant/internal/crisis"
)

// SQLiteStore persists sessions to a local SQLite database. Turns and mood
// entries live in their own tables; the active assessment run is stored as a
// JSON document since it is small and replaced atomically.
type SQLiteStore struct {
	db     *sql.DB
	logger *zap.Logger
}

const sessionSchema = `
CREATE TABLE IF NOT EXISTS sessions (
	id             TEXT PRIMARY KEY,
	anonymous      INTEGER NOT NULL DEFAULT 1,
	created_at     TIMESTAMP NOT NULL,
	updated_at     TIMESTAMP NOT NULL,
	expires_at     TIMESTAMP NOT NULL,
	mode           TEXT NOT NULL,
	last_sentiment REAL NOT NULL DEFAULT 0,
	last_mood      TEXT NOT NULL DEFAULT '',
	active_run     TEXT
);

CREATE TABLE IF NOT EXISTS turns (
	id         TEXT PRIMARY KEY,
	session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
	seq        INTEGER NOT NULL,
	role       TEXT NOT NULL,
	text       TEXT NOT NULL,
	timestamp  TIMESTAMP NOT NULL,
	risk       TEXT,
	sentiment  REAL NOT NULL DEFAULT 0,
	chunk_ids  TEXT
);

CREATE INDEX IF NOT EXISTS idx_turns_session ON turns(session_id, seq);

CREATE TABLE IF NOT EXISTS mood_entries (
	session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
	score      INTEGER NOT NULL,
	note       TEXT,
	timestamp  TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_mood_session ON mood_entries(session_id, timestamp);
`

// NewSQLiteStore opens or creates the session database at dbPath
func NewSQLiteStore(dbPath string, logger *zap.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open session database: %w", err)
	}

	if _, err := db.Exec(sessionSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize session schema: %w", err)
	}

	logger.Info("Opened SQLite session store", zap.String("path", dbPath))

	return &SQLiteStore{db: db, logger: logger}, nil
}

// Get retrieves a session by ID
func (s *SQLiteStore) Get(ctx context.Context, sessionID string) (*Session, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, anonymous, created_at, updated_at, expires_at, mode, last_sentiment, last_mood, active_run
		FROM sessions WHERE id = ?`, sessionID)

	var session Session
	var anonymous int
	var activeRun sql.NullString
	err := row.Scan(&session.ID, &anonymous, &session.CreatedAt, &session.UpdatedAt,
		&session.ExpiresAt, &session.Mode, &session.LastSentiment, &session.LastMood, &activeRun)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query session: %w", err)
	}
	session.Anonymous = anonymous != 0

	if activeRun.Valid && activeRun.String != "" {
		var run assessment.Run
		if err := json.Unmarshal([]byte(activeRun.String), &run); err != nil {
			return nil, fmt.Errorf("failed to decode active assessment run: %w", err)
		}
		session.ActiveRun = &run
	}

	if session.Turns, err = s.loadTurns(ctx, sessionID); err != nil {
		return nil, err
	}
	if session.MoodEntries, err = s.loadMoodEntries(ctx, sessionID); err != nil {
		return nil, err
	}

	return &session, nil
}

func (s *SQLiteStore) loadTurns(ctx context.Context, sessionID string) ([]Turn, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, role, text, timestamp, risk, sentiment, chunk_ids
		FROM turns WHERE session_id = ? ORDER BY seq`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query turns: %w", err)
	}
	defer rows.Close()

	turns := []Turn{}
	for rows.Next() {
		var turn Turn
		var risk, chunkIDs sql.NullString
		if err := rows.Scan(&turn.ID, &turn.Role, &turn.Text, &turn.Timestamp,
			&risk, &turn.Sentiment, &chunkIDs); err != nil {
			return nil, fmt.Errorf("failed to scan turn: %w", err)
		}
		if risk.Valid {
			turn.Risk = crisis.RiskLevel(risk.String)
		}
		if chunkIDs.Valid && chunkIDs.String != "" {
			turn.ChunkIDs = strings.Split(chunkIDs.String, ",")
		}
		turns = append(turns, turn)
	}
	return turns, rows.Err()
}

func (s *SQLiteStore) loadMoodEntries(ctx context.Context, sessionID string) ([]MoodEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT score, note, timestamp
		FROM mood_entries WHERE session_id = ? ORDER BY timestamp`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query mood entries: %w", err)
	}
	defer rows.Close()

	entries := []MoodEntry{}
	for rows.Next() {
		var entry MoodEntry
		var note sql.NullString
		if err := rows.Scan(&entry.Score, &note, &entry.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan mood entry: %w", err)
		}
		entry.Note = note.String
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// Set stores a session with optional TTL. The full state is written in one
// transaction so readers never observe a half-written exchange.
func (s *SQLiteStore) Set(ctx context.Context, session *Session, ttl time.Duration) error {
	expiresAt := session.ExpiresAt
	if ttl > 0 {
		expiresAt = time.Now().Add(ttl)
	}

	var activeRun interface{}
	if session.ActiveRun != nil {
		data, err := json.Marshal(session.ActiveRun)
		if err != nil {
			return fmt.Errorf("failed to encode active assessment run: %w", err)
		}
		activeRun = string(data)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO sessions (id, anonymous, created_at, updated_at, expires_at, mode, last_sentiment, last_mood, active_run)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			updated_at = excluded.updated_at,
			expires_at = excluded.expires_at,
			mode = excluded.mode,
			last_sentiment = excluded.last_sentiment,
			last_mood = excluded.last_mood,
			active_run = excluded.active_run`,
		session.ID, boolToInt(session.Anonymous), session.CreatedAt, session.UpdatedAt,
		expiresAt, session.Mode, session.LastSentiment, session.LastMood, activeRun)
	if err != nil {
		return fmt.Errorf("failed to upsert session: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM turns WHERE session_id = ?`, session.ID); err != nil {
		return fmt.Errorf("failed to clear turns: %w", err)
	}
	for seq, turn := range session.Turns {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO turns (id, session_id, seq, role, text, timestamp, risk, sentiment, chunk_ids)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			turn.ID, session.ID, seq, turn.Role, turn.Text, turn.Timestamp,
			string(turn.Risk), turn.Sentiment, strings.Join(turn.ChunkIDs, ","))
		if err != nil {
			return fmt.Errorf("failed to insert turn: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM mood_entries WHERE session_id = ?`, session.ID); err != nil {
		return fmt.Errorf("failed to clear mood entries: %w", err)
	}
	for _, entry := range session.MoodEntries {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO mood_entries (session_id, score, note, timestamp)
			VALUES (?, ?, ?, ?)`,
			session.ID, entry.Score, entry.Note, entry.Timestamp)
		if err != nil {
			return fmt.Errorf("failed to insert mood entry: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit session: %w", err)
	}
	return nil
}

// Delete removes a session
func (s *SQLiteStore) Delete(ctx context.Context, sessionID string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, sessionID)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	return nil
}

// Exists checks if a session exists
func (s *SQLiteStore) Exists(ctx context.Context, sessionID string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM sessions WHERE id = ?`, sessionID).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check session existence: %w", err)
	}
	return count > 0, nil
}

// Cleanup removes expired sessions
func (s *SQLiteStore) Cleanup(ctx context.Context) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at < ?`, time.Now())
	if err != nil {
		return fmt.Errorf("failed to cleanup expired sessions: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected > 0 {
		s.logger.Debug("Removed expired sessions", zap.Int64("count", affected))
	}
	return nil
}

// Close closes the storage backend
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
