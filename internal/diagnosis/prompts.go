package diagnosis

import (
	"encoding/json"
	"fmt"
)

const (
	defaultAnalysisText = "Analyze this medical document."

	questionPrompt = `You are a symptom checker AI. Ask only ONE clarifying question. Your response MUST be ONLY a single, valid JSON object with two keys: "question" (your follow-up question) and "is_final" (which must be the boolean value false).`

	chatPrompt = "You are a compassionate AI assistant. Respond directly to the user's last message in a supportive, conversational tone. Do not output JSON."

	chatApology = "I'm sorry, I'm having a connection issue."
)

func specialtyList(specialties []string) string {
	if specialties == nil {
		specialties = []string{}
	}
	b, _ := json.Marshal(specialties)
	return string(b)
}

func analysisPrompt(specialties []string) string {
	return fmt.Sprintf(`You are a professional medical AI assistant. Your response MUST be ONLY a single, valid JSON object with keys "SUMMARY", "FINDINGS", "SUGGESTED_SPECIALTIES", "CONFIDENCE", and "NEXT_STEPS". The value for "FINDINGS" must be a single string with each finding separated by a newline (\n). The value for "SUGGESTED_SPECIALTIES" MUST be a single string of one or more specialties separated by a comma, chosen ONLY from this exact list: %s. All text values must be in clear, beginner-friendly English.`,
		specialtyList(specialties))
}

func finalTriagePrompt(specialties []string) string {
	return fmt.Sprintf(`You are a symptom analysis AI. Based on the conversation, provide a final analysis. Your response MUST be ONLY a single, valid JSON object with keys "POSSIBLE_CAUSES", "SUGGESTED_SPECIALTIES", and "NEXT_STEPS". The value for "SUGGESTED_SPECIALTIES" MUST be a single string of specialties separated by a comma, chosen ONLY from this list: %s. All text values must be in clear, beginner-friendly English.`,
		specialtyList(specialties))
}
