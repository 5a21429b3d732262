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

// Package crisis provides risk assessment over raw user messages. It combines
// a deterministic lexical scan for self-harm language with a pluggable
// statistical risk classifier, and always degrades to the lexical path when
// the classifier is unavailable.
package crisis

import (
	"sort"
	"strings"

	"go.uber.org/zap"
)

// RiskLevel is the ordered severity of a message
type RiskLevel string

const (
	// RiskNone indicates no detected risk
	RiskNone RiskLevel = "none"
	// RiskElevated indicates elevated risk requiring monitoring
	RiskElevated RiskLevel = "elevated"
	// RiskCrisis indicates an immediate-crisis message
	RiskCrisis RiskLevel = "crisis"
)

// Classifier score thresholds for mapping to risk bands
const (
	ElevatedThreshold = 0.3
	CrisisThreshold   = 0.7
	// LexicalConfidence is the confidence assigned to a single lexical match
	LexicalConfidence = 0.9
)

// rank orders risk levels for comparison
func rank(l RiskLevel) int {
	switch l {
	case RiskElevated:
		return 1
	case RiskCrisis:
		return 2
	default:
		return 0
	}
}

// MaxLevel returns the more severe of two risk levels
func MaxLevel(a, b RiskLevel) RiskLevel {
	if rank(b) > rank(a) {
		return b
	}
	return a
}

// AtLeast reports whether l is at least as severe as other
func (l RiskLevel) AtLeast(other RiskLevel) bool {
	return rank(l) >= rank(other)
}

// Assessment is the result of assessing a single message
type Assessment struct {
	Level      RiskLevel `json:"level"`
	Confidence float64   `json:"confidence"`
	Signals    []string  `json:"signals,omitempty"`
}

// RiskClassifier scores a message for mental-health risk in [0,1]
type RiskClassifier interface {
	Score(text string) (float64, error)
}

// Detector assesses messages for crisis language
type Detector struct {
	phrases    []string
	classifier RiskClassifier
	logger     *zap.Logger
}

// crisisPhrases is the curated lexical list. Any match yields an immediate
// CRISIS verdict regardless of classifier output.
var crisisPhrases = []string{
	"suicide",
	"suicidal",
	"kill myself",
	"end it all",
	"end my life",
	"not worth living",
	"better off dead",
	"want to die",
	"hurt myself",
	"self harm",
	"self-harm",
	"cut myself",
	"overdose",
	"jump off",
	"hang myself",
}

// NewDetector creates a detector with the curated phrase list and the given
// classifier. A nil classifier is valid; assessment then runs lexical-only.
func NewDetector(classifier RiskClassifier, logger *zap.Logger) *Detector {
	return &Detector{
		phrases:    crisisPhrases,
		classifier: classifier,
		logger:     logger,
	}
}

// Assess scores a single message. It is stateless: history-aware escalation
// is the orchestrator's concern. The lexical path is deterministic and wins
// whenever it fires; otherwise the classifier score is mapped to a band and
// the conservative maximum of the two paths is returned.
func (d *Detector) Assess(text string) Assessment {
	lower := strings.ToLower(text)

	var matched []string
	for _, phrase := range d.phrases {
		if strings.Contains(lower, phrase) {
			matched = append(matched, phrase)
		}
	}
	sort.Strings(matched)

	lexical := Assessment{Level: RiskNone, Confidence: 0, Signals: matched}
	if len(matched) > 0 {
		confidence := LexicalConfidence + 0.05*float64(len(matched)-1)
		if confidence > 1.0 {
			confidence = 1.0
		}
		lexical = Assessment{Level: RiskCrisis, Confidence: confidence, Signals: matched}
	}

	if d.classifier == nil {
		return lexical
	}

	score, err := d.classifier.Score(text)
	if err != nil {
		// Classifier failure must never fail the call; fall back to the
		// conservative lexical-only verdict.
		d.logger.Warn("Risk classifier unavailable, using lexical-only assessment",
			zap.Error(err))
		return lexical
	}

	classified := Assessment{Level: levelForScore(score), Confidence: score, Signals: matched}

	if rank(lexical.Level) >= rank(classified.Level) {
		if lexical.Level == RiskCrisis {
			return lexical
		}
		// Both paths agree on NONE; keep the classifier confidence so
		// callers see the continuous score.
		return classified
	}
	return classified
}

// levelForScore maps a classifier score to a risk band
func levelForScore(score float64) RiskLevel {
	switch {
	case score > CrisisThreshold:
		return RiskCrisis
	case score >= ElevatedThreshold:
		return RiskElevated
	default:
		return RiskNone
	}
}
