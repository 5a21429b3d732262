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
	"strings"
)

// Signal group weights for the keyword risk scorer
const (
	CrisisSignalWeight    = 0.5
	SupportSeekingWeight  = 0.2
	NegativeMoodWeight    = 0.15
	IsolationWeight       = 0.15
	PositiveMoodDiscount  = 0.1
	MaxScore              = 1.0
)

// SentimentClassifier is a deterministic keyword-weighted risk scorer. It is
// the default RiskClassifier implementation and stands in for a hosted
// sentiment model when none is configured.
type SentimentClassifier struct {
	crisisSignals   []string
	supportSeeking  []string
	negativeMood    []string
	isolation       []string
	positiveMood    []string
}

// NewSentimentClassifier creates the keyword-based risk scorer
func NewSentimentClassifier() *SentimentClassifier {
	return &SentimentClassifier{
		crisisSignals: []string{
			"can't go on", "cant go on", "no reason to live", "give up on life",
			"nothing matters anymore", "disappear forever",
		},
		supportSeeking: []string{
			"need help", "can't cope", "cant cope", "don't know what to do",
			"dont know what to do", "feeling lost", "need support",
			"reaching out", "cry for help",
		},
		negativeMood: []string{
			"hopeless", "worthless", "empty", "depressed", "miserable",
			"anxious", "panic", "overwhelmed", "terrified", "exhausted",
			"guilty", "ashamed", "sad", "crying",
		},
		isolation: []string{
			"lonely", "isolated", "all alone", "no friends", "nobody cares",
			"avoiding people", "withdrawn",
		},
		positiveMood: []string{
			"happy", "grateful", "hopeful", "better today", "feeling good",
			"optimistic", "calm", "relaxed",
		},
	}
}

// Score returns a risk score in [0,1] for the message. Pure and
// deterministic; never returns an error.
func (c *SentimentClassifier) Score(text string) (float64, error) {
	lower := strings.ToLower(text)

	score := 0.0
	score += CrisisSignalWeight * groupScore(lower, c.crisisSignals)
	score += SupportSeekingWeight * groupScore(lower, c.supportSeeking)
	score += NegativeMoodWeight * groupScore(lower, c.negativeMood)
	score += IsolationWeight * groupScore(lower, c.isolation)

	if countMatches(lower, c.positiveMood) > 0 && score < CrisisSignalWeight {
		score -= PositiveMoodDiscount
	}

	if score < 0 {
		score = 0
	}
	if score > MaxScore {
		score = MaxScore
	}
	return score, nil
}

// groupScore saturates at two matches within a group so long messages do not
// inflate the score
func groupScore(text string, phrases []string) float64 {
	n := countMatches(text, phrases)
	if n >= 2 {
		return 1.0
	}
	if n == 1 {
		return 0.7
	}
	return 0.0
}

func countMatches(text string, phrases []string) int {
	count := 0
	for _, phrase := range phrases {
		if strings.Contains(text, phrase) {
			count++
		}
	}
	return count
}

// MoodLabel maps a risk score to a coarse mood label recorded on the session
func MoodLabel(score float64) string {
	switch {
	case score >= ElevatedThreshold:
		return "negative"
	case score > 0.1:
		return "mixed"
	default:
		return "neutral"
	}
}
