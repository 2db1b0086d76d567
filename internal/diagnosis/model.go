package diagnosis

import (
	"github.com/google/uuid"

	"medmatch/internal/contract"
	"medmatch/internal/doctor"
	"medmatch/internal/query"
)

// MaxUserTurns is the number of user messages after which triage closes with
// a final analysis.
const MaxUserTurns = 3

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

const (
	triageGreeting = "Welcome to the Interactive Symptom Checker. To begin, please describe your main symptom (e.g., 'I have a headache')."
	chatGreeting   = "Hello! I'm here to listen. How are you feeling today?"
)

type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Conversation is the session-carried state of a triage or chat exchange.
// It is a value: engine calls take one and return the next.
type Conversation struct {
	Turns []Turn `json:"turns"`
	Final bool   `json:"final"`
}

func NewTriage() Conversation {
	return Conversation{Turns: []Turn{{Role: RoleAssistant, Content: triageGreeting}}}
}

func NewChat() Conversation {
	return Conversation{Turns: []Turn{{Role: RoleAssistant, Content: chatGreeting}}}
}

// UserTurns counts role=user entries.
func (c Conversation) UserTurns() int {
	n := 0
	for _, t := range c.Turns {
		if t.Role == RoleUser {
			n++
		}
	}
	return n
}

// With returns a copy of c with t appended. c itself is not modified.
func (c Conversation) With(t Turn) Conversation {
	turns := make([]Turn, len(c.Turns), len(c.Turns)+1)
	copy(turns, c.Turns)
	c.Turns = append(turns, t)
	return c
}

// Finding is the structured result shared by single-shot analysis and the
// final triage turn.
type Finding struct {
	Summary              string   `json:"SUMMARY,omitempty"`
	Findings             []string `json:"FINDINGS,omitempty"`
	PossibleCauses       string   `json:"POSSIBLE_CAUSES,omitempty"`
	SuggestedSpecialties []string `json:"SUGGESTED_SPECIALTIES"`
	Confidence           string   `json:"CONFIDENCE,omitempty"`
	NextSteps            string   `json:"NEXT_STEPS,omitempty"`
}

// FindingFromPayload coerces a decoded model reply into a Finding.
func FindingFromPayload(p contract.Payload) Finding {
	return Finding{
		Summary:              contract.Text(p["SUMMARY"]),
		Findings:             contract.Lines(p["FINDINGS"]),
		PossibleCauses:       contract.Text(p["POSSIBLE_CAUSES"]),
		SuggestedSpecialties: contract.List(p["SUGGESTED_SPECIALTIES"]),
		Confidence:           contract.Text(p["CONFIDENCE"]),
		NextSteps:            contract.Text(p["NEXT_STEPS"]),
	}
}

// TriageReply is either an interim question or, with IsFinal set, the closing
// analysis flattened alongside the matched doctors.
type TriageReply struct {
	Question string `json:"question,omitempty"`
	IsFinal  bool   `json:"is_final"`
	*Finding
	Doctors []doctor.Doctor `json:"doctors,omitempty"`
	QueryID *uuid.UUID      `json:"query_id,omitempty"`
}

type AnalysisInput struct {
	AccountID uuid.UUID
	Text      string
	FilePath  string
	// InputType is one of the query.Input* constants.
	InputType string
	// Attachment is FilePath as a data URI. Analyze encodes FilePath when it
	// is empty.
	Attachment string
}

type AnalysisOutcome struct {
	QueryID uuid.UUID       `json:"query_id"`
	Finding Finding         `json:"result"`
	Doctors []doctor.Doctor `json:"doctors"`
}

// Entry is a stored query re-read for display.
type Entry struct {
	Record  query.Record    `json:"query"`
	Finding Finding         `json:"result"`
	Doctors []doctor.Doctor `json:"doctors"`
}
