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

package generator

import "github.com/your-org/mh-assistant/internal/assembler"

// CrisisResources is the fixed emergency resource block. It is appended to
// every crisis response and never depends on model output.
const CrisisResources = `If you are in immediate danger, please reach out now:
- National Suicide Prevention Lifeline: 988
- Crisis Text Line: Text HOME to 741741
- Emergency Services: 911`

const generalPrompt = `You are an empathetic mental health support assistant. Your role is to:
1. Provide emotional support and validation
2. Listen actively and respond with empathy
3. Offer practical coping strategies when appropriate
4. Encourage professional help when needed
5. Maintain a warm, non-judgmental tone
6. Ask thoughtful follow-up questions
7. Never provide medical diagnoses or replace professional therapy

Remember: You are here to support, not to diagnose or treat.`

const crisisPrompt = `You are a mental health crisis support assistant. Your role is to:
1. Take any mention of self-harm or suicide seriously
2. Provide immediate emotional support
3. Encourage contacting crisis hotlines or emergency services
4. Stay calm and supportive
5. Never minimize the person's feelings
6. Provide crisis resources immediately

CRISIS RESOURCES:
- National Suicide Prevention Lifeline: 988
- Crisis Text Line: Text HOME to 741741
- Emergency Services: 911`

const assessmentPrompt = `You are guiding a mental health assessment. Your role is to:
1. Ask assessment questions in a supportive manner
2. Validate the person's responses
3. Explain the purpose of each question
4. Maintain a non-judgmental approach
5. Provide reassurance about confidentiality
6. Guide through the assessment process smoothly`

// systemPrompt returns the prompt for a context kind
func systemPrompt(kind assembler.Kind) string {
	switch kind {
	case assembler.KindCrisis:
		return crisisPrompt
	case assembler.KindAssessment:
		return assessmentPrompt
	default:
		return generalPrompt
	}
}
