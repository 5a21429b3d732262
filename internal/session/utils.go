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
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"
)

// GenerateSessionID generates a unique session identifier
func GenerateSessionID() string {
	bytes := make([]byte, 16)
	if _, err := rand.Read(bytes); err != nil {
		// Fallback to timestamp-based ID if crypto/rand fails
		return fmt.Sprintf("session_%d", time.Now().UnixNano())
	}
	return "session_" + hex.EncodeToString(bytes)
}

// GenerateTurnID generates a unique turn identifier
func GenerateTurnID() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		// Fallback to timestamp-based ID if crypto/rand fails
		return fmt.Sprintf("turn_%d", time.Now().UnixNano())
	}
	return "turn_" + hex.EncodeToString(bytes)
}

// ValidateSessionID validates a session ID format
func ValidateSessionID(sessionID string) bool {
	if sessionID == "" {
		return false
	}

	matched, err := regexp.MatchString(`^session_[a-f0-9]{32}$`, sessionID)
	if err != nil {
		return false
	}
	return matched
}

var controlChars = regexp.MustCompile(`[\x00-\x08\x0B\x0C\x0E-\x1F\x7F]`)

// SanitizeUserInput sanitizes user input for safe storage
func SanitizeUserInput(input string) string {
	input = controlChars.ReplaceAllString(input, "")

	// Limit length
	const maxInputLength = 10000
	if utf8.RuneCountInString(input) > maxInputLength {
		runes := []rune(input)
		input = string(runes[:maxInputLength])
	}

	return strings.TrimSpace(input)
}

// IsExpired checks if a session is expired
func IsExpired(session *Session) bool {
	return session.ExpiresAt.Before(time.Now())
}

// LastUserTurns returns the N most recent user turns, newest last
func LastUserTurns(session *Session, count int) []Turn {
	var user []Turn
	for _, turn := range session.Turns {
		if turn.Role == UserRole {
			user = append(user, turn)
		}
	}
	if len(user) > count {
		user = user[len(user)-count:]
	}
	return user
}
