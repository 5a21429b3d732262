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

package crisis

import (
	"errors"
	"testing"

	"go.uber.org/zap/zaptest"
)

// failingClassifier simulates an unavailable hosted model
type failingClassifier struct{}

func (f *failingClassifier) Score(text string) (float64, error) {
	return 0, errors.New("model endpoint unreachable")
}

// fixedClassifier returns a constant score
type fixedClassifier struct {
	score float64
}

func (f *fixedClassifier) Score(text string) (float64, error) {
	return f.score, nil
}

func TestLexicalMatchAlwaysWins(t *testing.T) {
	tests := []struct {
		name       string
		message    string
		classifier RiskClassifier
	}{
		{
			name:       "nil classifier",
			message:    "I want to end my life",
			classifier: nil,
		},
		{
			name:       "failing classifier",
			message:    "sometimes I think about suicide",
			classifier: &failingClassifier{},
		},
		{
			name:       "classifier reports low score",
			message:    "I might hurt myself tonight",
			classifier: &fixedClassifier{score: 0.1},
		},
		{
			name:       "case insensitive match",
			message:    "I Want To DIE",
			classifier: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			detector := NewDetector(tt.classifier, zaptest.NewLogger(t))
			result := detector.Assess(tt.message)
			if result.Level != RiskCrisis {
				t.Errorf("Expected %s, got %s", RiskCrisis, result.Level)
			}
			if len(result.Signals) == 0 {
				t.Error("Expected matched phrases in signals")
			}
			if result.Confidence < LexicalConfidence {
				t.Errorf("Expected confidence >= %v, got %v", LexicalConfidence, result.Confidence)
			}
		})
	}
}

func TestClassifierBandMapping(t *testing.T) {
	tests := []struct {
		name  string
		score float64
		want  RiskLevel
	}{
		{"well below elevated", 0.1, RiskNone},
		{"just below elevated", 0.29, RiskNone},
		{"at elevated threshold", 0.3, RiskElevated},
		{"mid band", 0.5, RiskElevated},
		{"at crisis threshold", 0.7, RiskElevated},
		{"above crisis threshold", 0.71, RiskCrisis},
		{"maximum", 1.0, RiskCrisis},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			detector := NewDetector(&fixedClassifier{score: tt.score}, zaptest.NewLogger(t))
			result := detector.Assess("a message with no listed phrases")
			if result.Level != tt.want {
				t.Errorf("Score %v: expected %s, got %s", tt.score, tt.want, result.Level)
			}
			if result.Confidence != tt.score {
				t.Errorf("Expected classifier confidence %v, got %v", tt.score, result.Confidence)
			}
		})
	}
}

func TestClassifierFailureFallsBackToLexical(t *testing.T) {
	detector := NewDetector(&failingClassifier{}, zaptest.NewLogger(t))

	result := detector.Assess("I had a rough day at work")
	if result.Level != RiskNone {
		t.Errorf("Expected %s on classifier failure with no lexical match, got %s", RiskNone, result.Level)
	}
}

func TestAssessIsDeterministic(t *testing.T) {
	detector := NewDetector(NewSentimentClassifier(), zaptest.NewLogger(t))
	message := "I feel hopeless and all alone, like I can't cope"

	first := detector.Assess(message)
	for i := 0; i < 10; i++ {
		again := detector.Assess(message)
		if again.Level != first.Level || again.Confidence != first.Confidence {
			t.Fatalf("Assessment not deterministic: %+v vs %+v", first, again)
		}
	}
}

func TestSentimentClassifierScoring(t *testing.T) {
	classifier := NewSentimentClassifier()

	tests := []struct {
		name    string
		message string
		minimum float64
		maximum float64
	}{
		{
			name:    "neutral message",
			message: "what is the weather like",
			minimum: 0.0,
			maximum: 0.0,
		},
		{
			name:    "single negative mood word",
			message: "I have been feeling so anxious lately",
			minimum: 0.05,
			maximum: 0.3,
		},
		{
			name:    "crisis signal phrase",
			message: "there is no reason to live anymore",
			minimum: 0.3,
			maximum: 1.0,
		},
		{
			name:    "positive message stays low",
			message: "feeling good and grateful today",
			minimum: 0.0,
			maximum: 0.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			score, err := classifier.Score(tt.message)
			if err != nil {
				t.Fatalf("Score failed: %v", err)
			}
			if score < tt.minimum || score > tt.maximum {
				t.Errorf("Expected score in [%v, %v], got %v", tt.minimum, tt.maximum, score)
			}
		})
	}
}

func TestRiskLevelOrdering(t *testing.T) {
	if MaxLevel(RiskNone, RiskElevated) != RiskElevated {
		t.Error("Expected elevated to outrank none")
	}
	if MaxLevel(RiskCrisis, RiskElevated) != RiskCrisis {
		t.Error("Expected crisis to outrank elevated")
	}
	if !RiskCrisis.AtLeast(RiskElevated) {
		t.Error("Expected crisis to be at least elevated")
	}
	if RiskNone.AtLeast(RiskElevated) {
		t.Error("Expected none to be below elevated")
	}
}

func TestMoodLabel(t *testing.T) {
	tests := []struct {
		score float64
		want  string
	}{
		{0.0, "neutral"},
		{0.1, "neutral"},
		{0.11, "mixed"},
		{0.29, "mixed"},
		{0.3, "negative"},
		{0.9, "negative"},
	}

	for _, tt := range tests {
		if got := MoodLabel(tt.score); got != tt.want {
			t.Errorf("MoodLabel(%f): expected %q, got %q", tt.score, tt.want, got)
		}
	}
}
