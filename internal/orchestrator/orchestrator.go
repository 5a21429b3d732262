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

// Package orchestrator coordinates one conversational turn end to end:
// crisis detection, assessment delegation, retrieval, response generation,
// and recommendation ranking. Turns for the same session are serialized;
// risk assessment always runs before any other processing.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/your-org/mh-assistant/internal/assembler"
	"github.com/your-org/mh-assistant/internal/assessment"
	"github.com/your-org/mh-assistant/internal/crisis"
	"github.com/your-org/mh-assistant/internal/generator"
	"github.com/your-org/mh-assistant/internal/index"
	"github.com/your-org/mh-assistant/internal/recommend"
	"github.com/your-org/mh-assistant/internal/session"
)

// ErrEmptyMessage is returned when the incoming message is empty after
// sanitization. No turns are recorded in that case.
var ErrEmptyMessage = errors.New("message is empty")

// ErrAssessmentActive is returned when a new assessment is requested while
// another run is still in progress
var ErrAssessmentActive = errors.New("an assessment is already in progress")

// Degradation markers reported on TurnResult.ErrorKind. The call itself
// still succeeds and records a full turn pair.
const (
	ErrorKindInvalidOption    = "invalid_option"
	ErrorKindGenerationFailed = "generation_failed"
	ErrorKindIndexUnavailable = "index_unavailable"
)

// Options tunes orchestration behavior
type Options struct {
	// TopK is the number of chunks retrieved per freeform turn
	TopK int
	// ElevatedStreak is the number of consecutive elevated user turns that
	// escalates to a crisis response
	ElevatedStreak int
	// StreakWindow bounds how far back the streak may reach
	StreakWindow time.Duration
}

// DefaultOptions returns the standard orchestration options
func DefaultOptions() Options {
	return Options{
		TopK:           5,
		ElevatedStreak: 3,
		StreakWindow:   10 * time.Minute,
	}
}

// AssessmentUpdate describes assessment progress made during a turn
type AssessmentUpdate struct {
	Type         assessment.Type   `json:"type"`
	State        assessment.State  `json:"state"`
	QuestionID   string            `json:"question_id,omitempty"`
	QuestionText string            `json:"question_text,omitempty"`
	Progress     string            `json:"progress,omitempty"`
	Score        *assessment.Score `json:"score,omitempty"`
}

// TurnResult is the outcome of one handled turn
type TurnResult struct {
	SessionID       string                     `json:"session_id"`
	Message         string                     `json:"message"`
	Risk            crisis.RiskLevel           `json:"risk"`
	CrisisDetected  bool                       `json:"crisis_detected"`
	Confidence      float64                    `json:"confidence"`
	Recommendations []recommend.Recommendation `json:"recommendations,omitempty"`
	Assessment      *AssessmentUpdate          `json:"assessment,omitempty"`
	ChunkIDs        []string                   `json:"chunk_ids,omitempty"`
	ErrorKind       string                     `json:"error_kind,omitempty"`
}

// Orchestrator wires the conversational pipeline together
type Orchestrator struct {
	sessions  *session.Manager
	detector  *crisis.Detector
	engine    *assessment.Engine
	idx       *index.Index
	asm       *assembler.Assembler
	gen       generator.Generator
	opts      Options
	logger    *zap.Logger
	turnLocks sync.Map // session ID -> *sync.Mutex
}

// New creates an orchestrator. The index may be nil when retrieval is
// disabled; generation then runs without knowledge context.
func New(
	sessions *session.Manager,
	detector *crisis.Detector,
	engine *assessment.Engine,
	idx *index.Index,
	asm *assembler.Assembler,
	gen generator.Generator,
	opts Options,
	logger *zap.Logger,
) *Orchestrator {
	return &Orchestrator{
		sessions: sessions,
		detector: detector,
		engine:   engine,
		idx:      idx,
		asm:      asm,
		gen:      gen,
		opts:     opts,
		logger:   logger,
	}
}

// lockSession serializes turns per session ID
func (o *Orchestrator) lockSession(sessionID string) func() {
	value, _ := o.turnLocks.LoadOrStore(sessionID, &sync.Mutex{})
	mutex := value.(*sync.Mutex)
	mutex.Lock()
	return mutex.Unlock
}

// HandleTurn processes one user message. Exactly one user turn and one
// assistant turn are appended on success; an empty message appends nothing.
// Crisis detection runs before everything else, and backend failures degrade
// to a recorded fallback reply rather than surfacing an error.
func (o *Orchestrator) HandleTurn(ctx context.Context, sessionID, rawText string) (*TurnResult, error) {
	text := session.SanitizeUserInput(rawText)
	if text == "" {
		return nil, ErrEmptyMessage
	}

	sess, err := o.sessions.GetOrCreate(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve session: %w", err)
	}

	unlock := o.lockSession(sess.ID)
	defer unlock()

	// Re-read under the lock so concurrent turns observe each other
	if current, err := o.sessions.GetSession(ctx, sess.ID); err == nil {
		sess = current
	}

	risk := o.detector.Assess(text)
	sess.LastSentiment = risk.Confidence
	sess.LastMood = crisis.MoodLabel(risk.Confidence)

	if risk.Level == crisis.RiskCrisis || o.streakEscalated(sess, risk.Level) {
		return o.handleCrisisTurn(ctx, sess, text, risk)
	}

	if sess.Mode == session.ModeAssessment && sess.ActiveRun != nil {
		return o.handleAssessmentTurn(ctx, sess, text, risk)
	}

	return o.handleFreeformTurn(ctx, sess, text, risk)
}

// streakEscalated reports whether the current elevated turn completes a
// streak of consecutive elevated user turns inside the window. The current
// turn counts as one, so the previous ElevatedStreak-1 user turns must all be
// elevated and recent.
func (o *Orchestrator) streakEscalated(sess *session.Session, level crisis.RiskLevel) bool {
	if level != crisis.RiskElevated || o.opts.ElevatedStreak <= 0 {
		return false
	}

	prior := session.LastUserTurns(sess, o.opts.ElevatedStreak-1)
	if len(prior) < o.opts.ElevatedStreak-1 {
		return false
	}

	cutoff := time.Now().Add(-o.opts.StreakWindow)
	for _, turn := range prior {
		if turn.Timestamp.Before(cutoff) || !turn.Risk.AtLeast(crisis.RiskElevated) {
			return false
		}
	}

	o.logger.Warn("Elevated streak escalated to crisis handling",
		zap.String("session_id", sess.ID),
		zap.Int("streak", o.opts.ElevatedStreak))
	return true
}

// handleCrisisTurn short-circuits everything else. The reply always carries
// the fixed crisis resources, whether or not the generator succeeds.
func (o *Orchestrator) handleCrisisTurn(ctx context.Context, sess *session.Session, text string, risk crisis.Assessment) (*TurnResult, error) {
	pc := o.asm.Build(assembler.KindCrisis, sess, text, nil)

	message, err := o.gen.Generate(ctx, pc)
	if err != nil {
		o.logger.Warn("Crisis response generation failed, using canned reply",
			zap.String("session_id", sess.ID),
			zap.Error(err))
		message = "I'm really concerned about what you've shared, and I want you to know you're not alone."
	}
	if !strings.Contains(message, "988") {
		message = message + "\n\n" + generator.CrisisResources
	}

	session.AppendTurn(sess, session.Turn{
		Role:      session.UserRole,
		Text:      text,
		Risk:      crisis.RiskCrisis,
		Sentiment: risk.Confidence,
	})
	session.AppendTurn(sess, session.Turn{
		Role: session.AssistantRole,
		Text: message,
	})

	if err := o.sessions.UpdateSession(ctx, sess); err != nil {
		return nil, fmt.Errorf("failed to persist crisis turn: %w", err)
	}

	o.logger.Warn("Crisis turn handled",
		zap.String("session_id", sess.ID),
		zap.Float64("confidence", risk.Confidence),
		zap.Strings("signals", risk.Signals))

	return &TurnResult{
		SessionID:       sess.ID,
		Message:         message,
		Risk:            crisis.RiskCrisis,
		CrisisDetected:  true,
		Confidence:      risk.Confidence,
		Recommendations: recommend.Emergency(),
	}, nil
}

// handleAssessmentTurn routes the message to the active assessment run
func (o *Orchestrator) handleAssessmentTurn(ctx context.Context, sess *session.Session, text string, risk crisis.Assessment) (*TurnResult, error) {
	run := sess.ActiveRun

	answerErr := o.engine.Answer(run, text)
	if answerErr != nil && !errors.Is(answerErr, assessment.ErrInvalidOption) {
		return nil, fmt.Errorf("failed to process assessment answer: %w", answerErr)
	}

	var message string
	var update AssessmentUpdate
	var recs []recommend.Recommendation
	errorKind := ""

	switch {
	case answerErr != nil:
		// Re-ask the same question; the run is untouched
		question := o.engine.CurrentQuestion(run)
		message = "I didn't catch that. " + formatQuestion(run, question)
		errorKind = ErrorKindInvalidOption
		update = runUpdate(run, question)
	case run.State == assessment.StateCompleted:
		message = fmt.Sprintf("That completes the questionnaire. %s Thank you for taking the time to answer honestly.",
			run.Score.Interpretation)
		update = runUpdate(run, nil)
		recs = recommend.Recommend(recommend.Signals{
			Risk:               risk.Level,
			StressScore:        risk.Confidence,
			AssessmentType:     run.Type,
			AssessmentSeverity: run.Score.Severity,
			TimeOfDay:          timeOfDay(time.Now()),
			MoodScore:          latestMood(sess),
		})
		sess.Mode = session.ModeFreeform
		sess.ActiveRun = nil
	default:
		question := o.engine.CurrentQuestion(run)
		message = formatQuestion(run, question)
		update = runUpdate(run, question)
	}

	session.AppendTurn(sess, session.Turn{
		Role:      session.UserRole,
		Text:      text,
		Risk:      risk.Level,
		Sentiment: risk.Confidence,
	})
	session.AppendTurn(sess, session.Turn{
		Role: session.AssistantRole,
		Text: message,
	})

	if err := o.sessions.UpdateSession(ctx, sess); err != nil {
		return nil, fmt.Errorf("failed to persist assessment turn: %w", err)
	}

	return &TurnResult{
		SessionID:       sess.ID,
		Message:         message,
		Risk:            risk.Level,
		Confidence:      risk.Confidence,
		Assessment:      &update,
		Recommendations: recs,
		ErrorKind:       errorKind,
	}, nil
}

// handleFreeformTurn runs retrieval-augmented generation. Retrieval and
// generation failures degrade rather than fail the turn.
func (o *Orchestrator) handleFreeformTurn(ctx context.Context, sess *session.Session, text string, risk crisis.Assessment) (*TurnResult, error) {
	errorKind := ""

	var chunks []index.Result
	if o.idx != nil {
		retrieved, err := o.idx.Search(ctx, text, o.opts.TopK)
		if err != nil {
			o.logger.Warn("Retrieval unavailable, generating without knowledge context",
				zap.String("session_id", sess.ID),
				zap.Error(err))
			errorKind = ErrorKindIndexUnavailable
		} else {
			chunks = retrieved
		}
	}

	pc := o.asm.Build(assembler.KindGeneral, sess, text, chunks)

	message, err := o.gen.Generate(ctx, pc)
	if err != nil {
		// One retry with a smaller context before giving up
		o.logger.Warn("Generation failed, retrying with reduced context",
			zap.String("session_id", sess.ID),
			zap.Error(err))
		message, err = o.gen.Generate(ctx, assembler.Shrink(pc))
	}
	if err != nil {
		o.logger.Error("Generation failed after retry, using fallback reply",
			zap.String("session_id", sess.ID),
			zap.Error(err))
		message = generator.FallbackResponse
		errorKind = ErrorKindGenerationFailed
	}

	chunkIDs := assembler.ChunkIDs(pc)

	session.AppendTurn(sess, session.Turn{
		Role:      session.UserRole,
		Text:      text,
		Risk:      risk.Level,
		Sentiment: risk.Confidence,
	})
	session.AppendTurn(sess, session.Turn{
		Role:     session.AssistantRole,
		Text:     message,
		ChunkIDs: chunkIDs,
	})

	if err := o.sessions.UpdateSession(ctx, sess); err != nil {
		return nil, fmt.Errorf("failed to persist turn: %w", err)
	}

	var recs []recommend.Recommendation
	if risk.Level == crisis.RiskElevated {
		recs = recommend.Recommend(recommend.Signals{
			Risk:        risk.Level,
			StressScore: risk.Confidence,
			TimeOfDay:   timeOfDay(time.Now()),
			MoodScore:   latestMood(sess),
		})
	}

	return &TurnResult{
		SessionID:       sess.ID,
		Message:         message,
		Risk:            risk.Level,
		Confidence:      risk.Confidence,
		ChunkIDs:        chunkIDs,
		Recommendations: recs,
		ErrorKind:       errorKind,
	}, nil
}

// StartAssessment begins a questionnaire for the session and returns the
// first question as an assistant turn. Only one run may be active at a time;
// a start while another run is in progress fails with ErrAssessmentActive so
// recorded answers are never discarded.
func (o *Orchestrator) StartAssessment(ctx context.Context, sessionID string, t assessment.Type) (*TurnResult, error) {
	sess, err := o.sessions.GetOrCreate(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve session: %w", err)
	}

	unlock := o.lockSession(sess.ID)
	defer unlock()

	if sess.ActiveRun != nil && sess.ActiveRun.State == assessment.StateInProgress {
		return nil, fmt.Errorf("%w: %s", ErrAssessmentActive, sess.ActiveRun.Type)
	}

	run, err := o.engine.Start(t)
	if err != nil {
		return nil, err
	}

	sess.ActiveRun = run
	sess.Mode = session.ModeAssessment

	question := o.engine.CurrentQuestion(run)
	message := fmt.Sprintf(
		"Let's go through a short questionnaire together. Answer each question based on how you've felt over the last two weeks.\n\n%s",
		formatQuestion(run, question))

	session.AppendTurn(sess, session.Turn{
		Role: session.AssistantRole,
		Text: message,
	})

	if err := o.sessions.UpdateSession(ctx, sess); err != nil {
		return nil, fmt.Errorf("failed to persist assessment start: %w", err)
	}

	update := runUpdate(run, question)
	return &TurnResult{
		SessionID:  sess.ID,
		Message:    message,
		Risk:       crisis.RiskNone,
		Assessment: &update,
	}, nil
}

// RecordMood stores a self-reported mood entry on the session
func (o *Orchestrator) RecordMood(ctx context.Context, sessionID string, score int, note string) error {
	return o.sessions.RecordMood(ctx, sessionID, session.MoodEntry{Score: score, Note: note})
}

// EndSession deletes a session and all of its history
func (o *Orchestrator) EndSession(ctx context.Context, sessionID string) error {
	unlock := o.lockSession(sessionID)
	defer unlock()
	return o.sessions.DeleteSession(ctx, sessionID)
}

// History returns the turn history for a session
func (o *Orchestrator) History(ctx context.Context, sessionID string) ([]session.Turn, error) {
	sess, err := o.sessions.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return sess.Turns, nil
}

// CreateSession creates a fresh session
func (o *Orchestrator) CreateSession(ctx context.Context) (*session.Session, error) {
	return o.sessions.CreateSession(ctx, true)
}

// formatQuestion renders a question with its numbered options
func formatQuestion(run *assessment.Run, q *assessment.Question) string {
	if q == nil {
		return ""
	}
	questions, _ := assessment.Questions(run.Type)

	var builder strings.Builder
	builder.WriteString(fmt.Sprintf("Question %d of %d: Over the last two weeks, how often have you been bothered by the following?\n%s\n",
		run.Cursor+1, len(questions), q.Text))
	for _, opt := range q.Options {
		builder.WriteString(fmt.Sprintf("  %d - %s\n", opt.Value, opt.Text))
	}
	return builder.String()
}

// runUpdate builds the assessment progress payload for a turn result
func runUpdate(run *assessment.Run, q *assessment.Question) AssessmentUpdate {
	questions, _ := assessment.Questions(run.Type)
	update := AssessmentUpdate{
		Type:     run.Type,
		State:    run.State,
		Progress: fmt.Sprintf("%d/%d", len(run.Answers), len(questions)),
		Score:    run.Score,
	}
	if q != nil {
		update.QuestionID = q.ID
		update.QuestionText = q.Text
	}
	return update
}

// timeOfDay buckets a timestamp for recommendation signals
func timeOfDay(t time.Time) string {
	switch hour := t.Hour(); {
	case hour < 12:
		return "morning"
	case hour < 18:
		return "afternoon"
	default:
		return "evening"
	}
}

// latestMood returns the most recent mood entry score, 0 when none exists
func latestMood(sess *session.Session) int {
	if len(sess.MoodEntries) == 0 {
		return 0
	}
	return sess.MoodEntries[len(sess.MoodEntries)-1].Score
}
