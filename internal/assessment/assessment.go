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

// Package assessment implements standardized mental-health screening
// questionnaires (PHQ-9 and GAD-7) as a strict question-by-question state
// machine. A run advances one answer at a time and produces a sealed score
// once the final question is answered.
package assessment

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Type identifies a supported questionnaire
type Type string

const (
	// TypePHQ9 is the 9-item depression screen (score range 0-27)
	TypePHQ9 Type = "phq9"
	// TypeGAD7 is the 7-item anxiety screen (score range 0-21)
	TypeGAD7 Type = "gad7"
)

// State is the lifecycle phase of a run
type State string

const (
	StateNotStarted State = "not_started"
	StateInProgress State = "in_progress"
	StateCompleted  State = "completed"
)

// Sentinel errors returned by the engine
var (
	ErrUnknownType      = errors.New("unknown assessment type")
	ErrInvalidOption    = errors.New("answer does not match any option")
	ErrAlreadyCompleted = errors.New("assessment already completed")
	ErrNoActiveQuestion = errors.New("no active question to answer")
)

// Option is a selectable answer with its scored value
type Option struct {
	Value int    `json:"value"`
	Text  string `json:"text"`
}

// Question is a single questionnaire item
type Question struct {
	ID      string   `json:"id"`
	Text    string   `json:"text"`
	Options []Option `json:"options"`
}

// Answer records one accepted response
type Answer struct {
	QuestionID string    `json:"question_id"`
	Value      int       `json:"value"`
	AnsweredAt time.Time `json:"answered_at"`
}

// Score is the sealed result of a completed run. It is immutable once
// produced; repeat answers never alter it.
type Score struct {
	Total          int    `json:"total"`
	Max            int    `json:"max"`
	Severity       string `json:"severity"`
	Interpretation string `json:"interpretation"`
}

// Run is the mutable state of one questionnaire administration. It is stored
// on the session and owned by the session lock; the engine itself is
// stateless.
type Run struct {
	Type      Type      `json:"type"`
	State     State     `json:"state"`
	Cursor    int       `json:"cursor"`
	Answers   []Answer  `json:"answers"`
	Score     *Score    `json:"score,omitempty"`
	StartedAt time.Time `json:"started_at"`
}

// Engine creates and advances assessment runs
type Engine struct {
	logger *zap.Logger
}

// NewEngine creates an assessment engine
func NewEngine(logger *zap.Logger) *Engine {
	return &Engine{logger: logger}
}

// Questions returns the ordered question catalog for a type
func Questions(t Type) ([]Question, error) {
	switch t {
	case TypePHQ9:
		return phq9Questions, nil
	case TypeGAD7:
		return gad7Questions, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, t)
	}
}

// Start creates a fresh run positioned at the first question
func (e *Engine) Start(t Type) (*Run, error) {
	if _, err := Questions(t); err != nil {
		return nil, err
	}
	run := &Run{
		Type:      t,
		State:     StateInProgress,
		Cursor:    0,
		Answers:   make([]Answer, 0),
		StartedAt: time.Now(),
	}
	e.logger.Info("Assessment started", zap.String("type", string(t)))
	return run, nil
}

// CurrentQuestion returns the question the run is waiting on, or nil when the
// run is complete
func (e *Engine) CurrentQuestion(run *Run) *Question {
	questions, err := Questions(run.Type)
	if err != nil || run.Cursor >= len(questions) {
		return nil
	}
	q := questions[run.Cursor]
	return &q
}

// Answer validates and records a response to the current question, advancing
// the cursor. Input may be the option value ("0".."3") or the option text,
// matched case-insensitively. An invalid answer leaves the run untouched and
// returns ErrInvalidOption so the caller can re-ask the same question.
func (e *Engine) Answer(run *Run, input string) error {
	if run.State == StateCompleted {
		return ErrAlreadyCompleted
	}
	questions, err := Questions(run.Type)
	if err != nil {
		return err
	}
	if run.Cursor >= len(questions) {
		return ErrNoActiveQuestion
	}

	question := questions[run.Cursor]
	option, ok := matchOption(question.Options, input)
	if !ok {
		return fmt.Errorf("%w: %q for question %s", ErrInvalidOption, input, question.ID)
	}

	run.Answers = append(run.Answers, Answer{
		QuestionID: question.ID,
		Value:      option.Value,
		AnsweredAt: time.Now(),
	})
	run.Cursor++

	if run.Cursor >= len(questions) {
		run.State = StateCompleted
		run.Score = scoreRun(run)
		e.logger.Info("Assessment completed",
			zap.String("type", string(run.Type)),
			zap.Int("total", run.Score.Total),
			zap.String("severity", run.Score.Severity))
	}
	return nil
}

// matchOption resolves an answer against the option list, accepting either
// the numeric value or the option text
func matchOption(options []Option, input string) (Option, bool) {
	trimmed := strings.TrimSpace(input)
	if value, err := strconv.Atoi(trimmed); err == nil {
		for _, opt := range options {
			if opt.Value == value {
				return opt, true
			}
		}
		return Option{}, false
	}
	for _, opt := range options {
		if strings.EqualFold(opt.Text, trimmed) {
			return opt, true
		}
	}
	return Option{}, false
}

// scoreRun totals the answers and seals the result
func scoreRun(run *Run) *Score {
	total := 0
	for _, a := range run.Answers {
		total += a.Value
	}
	switch run.Type {
	case TypeGAD7:
		severity := gad7Severity(total)
		return &Score{
			Total:          total,
			Max:            21,
			Severity:       severity,
			Interpretation: fmt.Sprintf("GAD-7 score %d of 21 indicates %s anxiety symptoms.", total, severity),
		}
	default:
		severity := phq9Severity(total)
		return &Score{
			Total:          total,
			Max:            27,
			Severity:       severity,
			Interpretation: fmt.Sprintf("PHQ-9 score %d of 27 indicates %s depressive symptoms.", total, severity),
		}
	}
}
