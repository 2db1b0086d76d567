// Package contract recovers a JSON object from free-form model output,
// parses it and validates it against a JSON Schema.
package contract

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// NoJSONPayload stands in for a reply that contains no '{' at all.
const NoJSONPayload = `{"error": "No JSON found"}`

var (
	ErrNoJSON    = errors.New("no JSON found")
	ErrMalformed = errors.New("malformed JSON")
	ErrSchema    = errors.New("payload does not match schema")
)

// ModelError is an error the model reported itself through an "error" key.
type ModelError struct {
	Message string
}

func (e *ModelError) Error() string { return "model reported error: " + e.Message }

// Payload is a decoded JSON object.
type Payload map[string]any

// Extract returns the text between the first '{' and the last '}' of raw,
// inclusive. Leading and trailing prose is dropped. Without any '{' it
// returns NoJSONPayload.
func Extract(raw string) string {
	start := strings.IndexByte(raw, '{')
	if start < 0 {
		return NoJSONPayload
	}
	end := strings.LastIndexByte(raw, '}')
	if end < start {
		// Unterminated object; let the parser reject it.
		return raw[start:]
	}
	return raw[start : end+1]
}

// Decode runs Extract, parse and validate over raw. The returned string is
// the extracted JSON text, suitable for storage. schema may be nil. A reply
// without any object yields NoJSONPayload together with ErrNoJSON.
func Decode(raw string, schema *Schema) (Payload, string, error) {
	text := Extract(raw)
	if text == NoJSONPayload && strings.IndexByte(raw, '{') < 0 {
		return nil, text, ErrNoJSON
	}

	var p Payload
	if err := json.Unmarshal([]byte(text), &p); err != nil {
		return nil, text, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	if msg, ok := p.ModelError(); ok {
		return p, text, &ModelError{Message: msg}
	}

	if schema != nil {
		if err := schema.Validate(p); err != nil {
			return p, text, err
		}
	}
	return p, text, nil
}

// ModelError reports the payload's "error" value when it is truthy.
func (p Payload) ModelError() (string, bool) {
	switch v := p["error"].(type) {
	case nil:
		return "", false
	case bool:
		if !v {
			return "", false
		}
		return "unspecified error", true
	case string:
		if strings.TrimSpace(v) == "" {
			return "", false
		}
		return v, true
	default:
		return fmt.Sprint(v), true
	}
}
