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

package assessment

import (
	"errors"
	"testing"

	"go.uber.org/zap/zaptest"
)

func TestStartUnknownType(t *testing.T) {
	engine := NewEngine(zaptest.NewLogger(t))

	_, err := engine.Start(Type("phq15"))
	if !errors.Is(err, ErrUnknownType) {
		t.Errorf("Expected ErrUnknownType, got %v", err)
	}
}

func TestStartPositionsAtFirstQuestion(t *testing.T) {
	engine := NewEngine(zaptest.NewLogger(t))

	run, err := engine.Start(TypePHQ9)
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if run.State != StateInProgress {
		t.Errorf("Expected state %s, got %s", StateInProgress, run.State)
	}
	q := engine.CurrentQuestion(run)
	if q == nil || q.ID != "phq9_1" {
		t.Errorf("Expected first question phq9_1, got %+v", q)
	}
}

func TestAnswerMatching(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantErr   bool
		wantValue int
	}{
		{
			name:      "numeric value",
			input:     "2",
			wantValue: 2,
		},
		{
			name:      "option text exact",
			input:     "Several days",
			wantValue: 1,
		},
		{
			name:      "option text case insensitive",
			input:     "  nearly every day ",
			wantValue: 3,
		},
		{
			name:    "out of range number",
			input:   "4",
			wantErr: true,
		},
		{
			name:    "free text",
			input:   "sometimes I guess",
			wantErr: true,
		},
		{
			name:    "empty",
			input:   "",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := NewEngine(zaptest.NewLogger(t))
			run, err := engine.Start(TypeGAD7)
			if err != nil {
				t.Fatalf("Start failed: %v", err)
			}

			err = engine.Answer(run, tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidOption) {
					t.Errorf("Expected ErrInvalidOption, got %v", err)
				}
				if run.Cursor != 0 || len(run.Answers) != 0 {
					t.Error("Invalid answer must not advance the run")
				}
				return
			}
			if err != nil {
				t.Fatalf("Answer failed: %v", err)
			}
			if len(run.Answers) != 1 || run.Answers[0].Value != tt.wantValue {
				t.Errorf("Expected recorded value %d, got %+v", tt.wantValue, run.Answers)
			}
			if run.Cursor != 1 {
				t.Errorf("Expected cursor 1, got %d", run.Cursor)
			}
		})
	}
}

func TestFullPHQ9Run(t *testing.T) {
	engine := NewEngine(zaptest.NewLogger(t))
	run, err := engine.Start(TypePHQ9)
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	answers := []string{"0", "1", "2", "3", "0", "1", "2", "3", "1"}
	for i, a := range answers {
		if err := engine.Answer(run, a); err != nil {
			t.Fatalf("Answer %d failed: %v", i+1, err)
		}
	}

	if run.State != StateCompleted {
		t.Fatalf("Expected state %s, got %s", StateCompleted, run.State)
	}
	if run.Score == nil {
		t.Fatal("Expected sealed score on completion")
	}
	if run.Score.Total != 13 {
		t.Errorf("Expected total 13, got %d", run.Score.Total)
	}
	if run.Score.Max != 27 {
		t.Errorf("Expected max 27, got %d", run.Score.Max)
	}
	if run.Score.Severity != "moderate" {
		t.Errorf("Expected severity moderate, got %s", run.Score.Severity)
	}
	if engine.CurrentQuestion(run) != nil {
		t.Error("Completed run must have no current question")
	}
}

func TestCompletedRunRejectsFurtherAnswers(t *testing.T) {
	engine := NewEngine(zaptest.NewLogger(t))
	run, err := engine.Start(TypeGAD7)
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	for i := 0; i < 7; i++ {
		if err := engine.Answer(run, "3"); err != nil {
			t.Fatalf("Answer %d failed: %v", i+1, err)
		}
	}
	sealed := *run.Score

	if err := engine.Answer(run, "0"); !errors.Is(err, ErrAlreadyCompleted) {
		t.Errorf("Expected ErrAlreadyCompleted, got %v", err)
	}
	if *run.Score != sealed {
		t.Error("Score must remain sealed after completion")
	}
}

func TestSeverityBands(t *testing.T) {
	tests := []struct {
		assessType Type
		total      int
		want       string
	}{
		{TypePHQ9, 0, "minimal"},
		{TypePHQ9, 4, "minimal"},
		{TypePHQ9, 5, "mild"},
		{TypePHQ9, 10, "moderate"},
		{TypePHQ9, 15, "moderately severe"},
		{TypePHQ9, 20, "severe"},
		{TypePHQ9, 27, "severe"},
		{TypeGAD7, 4, "minimal"},
		{TypeGAD7, 9, "mild"},
		{TypeGAD7, 14, "moderate"},
		{TypeGAD7, 15, "severe"},
		{TypeGAD7, 21, "severe"},
	}

	for _, tt := range tests {
		var got string
		if tt.assessType == TypePHQ9 {
			got = phq9Severity(tt.total)
		} else {
			got = gad7Severity(tt.total)
		}
		if got != tt.want {
			t.Errorf("%s total %d: expected %s, got %s", tt.assessType, tt.total, tt.want, got)
		}
	}
}
