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

// Package recommend produces ranked self-care recommendations from session
// signals. Recommendation generation is a pure function of its inputs so
// identical signals always yield identical output.
package recommend

import (
	"sort"

	"github.com/your-org/mh-assistant/internal/assessment"
	"github.com/your-org/mh-assistant/internal/crisis"
)

// MaxRecommendations caps the list returned by Recommend
const MaxRecommendations = 5

// Recommendation is one ranked self-care suggestion. Lower priority numbers
// rank higher.
type Recommendation struct {
	Type        string `json:"type"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Content     string `json:"content"`
	Duration    string `json:"duration"`
	Priority    int    `json:"priority"`
	IsEmergency bool   `json:"is_emergency,omitempty"`
}

// Signals are the inputs recommendations are derived from
type Signals struct {
	// MoodScore is the most recent self-reported mood, 1-10, 0 when absent
	MoodScore int
	// Risk is the risk level of the latest user turn
	Risk crisis.RiskLevel
	// StressScore is the classifier score of the latest user turn, 0-1
	StressScore float64
	// AssessmentType and AssessmentSeverity describe the most recently
	// completed assessment, empty when none
	AssessmentType     assessment.Type
	AssessmentSeverity string
	// TimeOfDay is "morning", "afternoon", or "evening"
	TimeOfDay string
	// AvailableMinutes bounds suggested activity length, 0 means unknown
	AvailableMinutes int
}

// Recommend returns up to MaxRecommendations suggestions sorted by priority,
// title breaking ties. A crisis risk level always yields the emergency set.
func Recommend(signals Signals) []Recommendation {
	if signals.Risk == crisis.RiskCrisis {
		return Emergency()
	}

	var recs []Recommendation

	if signals.MoodScore > 0 && signals.MoodScore <= 3 {
		recs = append(recs,
			Recommendation{
				Type:        "mood_boost",
				Title:       "Mood-Boosting Activities",
				Description: "Engage in activities that can help improve your mood",
				Content:     "Try listening to uplifting music, going for a walk in nature, or doing something creative like drawing or writing.",
				Duration:    "15-30 minutes",
				Priority:    2,
			},
			Recommendation{
				Type:        "social_connection",
				Title:       "Connect with Others",
				Description: "Reach out to friends, family, or support groups",
				Content:     "Call or text someone you care about. Social connection can significantly improve mood.",
				Duration:    "10-20 minutes",
				Priority:    2,
			},
		)
	}

	if signals.StressScore >= 0.7 || signals.Risk == crisis.RiskElevated {
		if signals.AvailableMinutes >= 30 || signals.AvailableMinutes == 0 {
			recs = append(recs, Recommendation{
				Type:        "stress_relief",
				Title:       "Deep Relaxation Session",
				Description: "Take time for a comprehensive stress relief session",
				Content:     "Try progressive muscle relaxation, guided meditation, or a calming bath. Focus on deep breathing.",
				Duration:    "30 minutes",
				Priority:    1,
			})
		} else {
			recs = append(recs, Recommendation{
				Type:        "quick_stress_relief",
				Title:       "Quick Stress Relief",
				Description: "Fast techniques to reduce stress in the moment",
				Content:     "Try the 4-7-8 breathing technique: Inhale for 4 counts, hold for 7, exhale for 8. Repeat 3 times.",
				Duration:    "5 minutes",
				Priority:    1,
			})
		}
	}

	if needsProfessionalHelp(signals.AssessmentSeverity) {
		recs = append(recs,
			Recommendation{
				Type:        "professional_help",
				Title:       "Mental Health Professional",
				Description: "Connect with a qualified mental health professional",
				Content:     "Consider reaching out to a therapist, psychologist, or psychiatrist. They can provide specialized treatment and support.",
				Duration:    "Ongoing",
				Priority:    1,
			},
			Recommendation{
				Type:        "support_group",
				Title:       "Support Group",
				Description: "Join a support group for shared experiences",
				Content:     "Support groups can provide understanding, shared experiences, and practical advice from others facing similar challenges.",
				Duration:    "1-2 hours weekly",
				Priority:    2,
			},
		)
	}

	switch signals.TimeOfDay {
	case "morning":
		recs = append(recs, Recommendation{
			Type:        "morning_routine",
			Title:       "Morning Mental Health Routine",
			Description: "Start your day with positive mental health practices",
			Content:     "Try gratitude journaling, gentle stretching, or a short meditation to set a positive tone for your day.",
			Duration:    "10-15 minutes",
			Priority:    3,
		})
	case "evening":
		recs = append(recs, Recommendation{
			Type:        "evening_wind_down",
			Title:       "Evening Wind-Down Routine",
			Description: "Prepare your mind and body for restful sleep",
			Content:     "Create a calming bedtime routine: dim lights, avoid screens, try gentle breathing exercises or light reading.",
			Duration:    "20-30 minutes",
			Priority:    3,
		})
	}

	sort.SliceStable(recs, func(i, j int) bool {
		if recs[i].Priority != recs[j].Priority {
			return recs[i].Priority < recs[j].Priority
		}
		return recs[i].Title < recs[j].Title
	})

	if len(recs) > MaxRecommendations {
		recs = recs[:MaxRecommendations]
	}
	return recs
}

// needsProfessionalHelp reports whether an assessment severity warrants a
// professional-help recommendation
func needsProfessionalHelp(severity string) bool {
	switch severity {
	case "moderate", "moderately severe", "severe":
		return true
	default:
		return false
	}
}

// Emergency returns the fixed crisis resource set. It does not depend on
// any signal so crisis responses are never personalized away from the
// hotline information.
func Emergency() []Recommendation {
	return []Recommendation{
		{
			Type:        "crisis_support",
			Title:       "Crisis Support Resources",
			Description: "Immediate help is available 24/7",
			Content:     "National Suicide Prevention Lifeline: 988\nCrisis Text Line: Text HOME to 741741\nEmergency Services: 911",
			Duration:    "Immediate",
			Priority:    1,
			IsEmergency: true,
		},
		{
			Type:        "professional_help",
			Title:       "Emergency Mental Health Services",
			Description: "Connect with emergency mental health professionals",
			Content:     "Contact your local emergency room or mental health crisis center immediately.",
			Duration:    "Immediate",
			Priority:    1,
			IsEmergency: true,
		},
		{
			Type:        "support_system",
			Title:       "Reach Out to Support System",
			Description: "Contact trusted friends, family, or support groups",
			Content:     "Call or text someone you trust. You don't have to go through this alone.",
			Duration:    "5-10 minutes",
			Priority:    2,
			IsEmergency: true,
		},
	}
}
