package contract

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// Schema is a compiled JSON Schema.
type Schema struct {
	name   string
	schema *gojsonschema.Schema
}

// NewSchema compiles a JSON Schema document.
func NewSchema(name, document string) (*Schema, error) {
	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(document))
	if err != nil {
		return nil, fmt.Errorf("compile schema %s: %w", name, err)
	}
	return &Schema{name: name, schema: s}, nil
}

// MustSchema is NewSchema for package-level schemas.
func MustSchema(name, document string) *Schema {
	s, err := NewSchema(name, document)
	if err != nil {
		panic(err)
	}
	return s
}

// Validate returns an error wrapping ErrSchema that lists every violation.
func (s *Schema) Validate(p Payload) error {
	result, err := s.schema.Validate(gojsonschema.NewGoLoader(map[string]any(p)))
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrSchema, s.name, err)
	}
	if result.Valid() {
		return nil
	}

	msgs := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		msgs = append(msgs, e.String())
	}
	return fmt.Errorf("%w: %s: %s", ErrSchema, s.name, strings.Join(msgs, "; "))
}

// Text-or-list fields: the model is told to send strings, arrays are tolerated.
const textOrList = `{"type": ["string", "array"], "items": {"type": "string"}}`

// AnalysisSchema is the single-shot document/symptom analysis reply.
var AnalysisSchema = MustSchema("analysis", `{
	"type": "object",
	"required": ["SUMMARY", "SUGGESTED_SPECIALTIES"],
	"properties": {
		"SUMMARY": {"type": "string"},
		"FINDINGS": `+textOrList+`,
		"SUGGESTED_SPECIALTIES": `+textOrList+`,
		"CONFIDENCE": {"type": "string"},
		"NEXT_STEPS": `+textOrList+`
	}
}`)

// QuestionSchema is a non-final triage reply.
var QuestionSchema = MustSchema("question", `{
	"type": "object",
	"required": ["question"],
	"properties": {
		"question": {"type": "string", "minLength": 1}
	}
}`)

// FinalTriageSchema is the closing triage analysis.
var FinalTriageSchema = MustSchema("final_triage", `{
	"type": "object",
	"required": ["POSSIBLE_CAUSES", "SUGGESTED_SPECIALTIES"],
	"properties": {
		"POSSIBLE_CAUSES": `+textOrList+`,
		"SUGGESTED_SPECIALTIES": `+textOrList+`,
		"NEXT_STEPS": `+textOrList+`
	}
}`)
