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

// frequencyOptions is the shared 0-3 answer scale used by PHQ-9 and GAD-7
var frequencyOptions = []Option{
	{Value: 0, Text: "Not at all"},
	{Value: 1, Text: "Several days"},
	{Value: 2, Text: "More than half the days"},
	{Value: 3, Text: "Nearly every day"},
}

var phq9Questions = []Question{
	{ID: "phq9_1", Text: "Little interest or pleasure in doing things", Options: frequencyOptions},
	{ID: "phq9_2", Text: "Feeling down, depressed, or hopeless", Options: frequencyOptions},
	{ID: "phq9_3", Text: "Trouble falling or staying asleep, or sleeping too much", Options: frequencyOptions},
	{ID: "phq9_4", Text: "Feeling tired or having little energy", Options: frequencyOptions},
	{ID: "phq9_5", Text: "Poor appetite or overeating", Options: frequencyOptions},
	{ID: "phq9_6", Text: "Feeling bad about yourself - or that you are a failure or have let yourself or your family down", Options: frequencyOptions},
	{ID: "phq9_7", Text: "Trouble concentrating on things, such as reading the newspaper or watching television", Options: frequencyOptions},
	{ID: "phq9_8", Text: "Moving or speaking so slowly that other people could have noticed, or the opposite - being so fidgety or restless that you have been moving around a lot more than usual", Options: frequencyOptions},
	{ID: "phq9_9", Text: "Thoughts that you would be better off dead, or of hurting yourself", Options: frequencyOptions},
}

var gad7Questions = []Question{
	{ID: "gad7_1", Text: "Feeling nervous, anxious, or on edge", Options: frequencyOptions},
	{ID: "gad7_2", Text: "Not being able to stop or control worrying", Options: frequencyOptions},
	{ID: "gad7_3", Text: "Worrying too much about different things", Options: frequencyOptions},
	{ID: "gad7_4", Text: "Trouble relaxing", Options: frequencyOptions},
	{ID: "gad7_5", Text: "Being so restless that it is hard to sit still", Options: frequencyOptions},
	{ID: "gad7_6", Text: "Becoming easily annoyed or irritable", Options: frequencyOptions},
	{ID: "gad7_7", Text: "Feeling afraid, as if something awful might happen", Options: frequencyOptions},
}

// phq9Severity maps a PHQ-9 total score to a severity band
func phq9Severity(total int) string {
	switch {
	case total <= 4:
		return "minimal"
	case total <= 9:
		return "mild"
	case total <= 14:
		return "moderate"
	case total <= 19:
		return "moderately severe"
	default:
		return "severe"
	}
}

// gad7Severity maps a GAD-7 total score to a severity band
func gad7Severity(total int) string {
	switch {
	case total <= 4:
		return "minimal"
	case total <= 9:
		return "mild"
	case total <= 14:
		return "moderate"
	default:
		return "severe"
	}
}
