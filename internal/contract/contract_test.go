package contract

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtract(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"surrounding prose", `Sure! {"a":1} thanks`, `{"a":1}`},
		{"bare object", `{"a":1}`, `{"a":1}`},
		{"nested braces", "```json\n{\"a\":{\"b\":{}}}\n```", `{"a":{"b":{}}}`},
		{"two objects span both", `{"a":1} and {"b":2}`, `{"a":1} and {"b":2}`},
		{"no braces", "I cannot help with that.", NoJSONPayload},
		{"empty", "", NoJSONPayload},
		{"only closing brace", "oops }", NoJSONPayload},
		{"unterminated", `here: {"a": 1`, `{"a": 1`},
		{"closing before opening", `} then {"a"`, `{"a"`},
		{"unicode", `Réponse: {"résumé":"douleur thoracique ❤"} fin`, `{"résumé":"douleur thoracique ❤"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Extract(tt.raw))
		})
	}
}

func TestNoJSONPayloadIsValidErrorObject(t *testing.T) {
	var p Payload
	require.NoError(t, json.Unmarshal([]byte(Extract("no braces here")), &p))
	msg, ok := p.ModelError()
	assert.True(t, ok)
	assert.Equal(t, "No JSON found", msg)
}

func TestDecode(t *testing.T) {
	t.Run("ok", func(t *testing.T) {
		p, text, err := Decode(`Here you go: {"question":"How long?","is_final":false}`, QuestionSchema)
		require.NoError(t, err)
		assert.Equal(t, "How long?", p["question"])
		assert.Equal(t, `{"question":"How long?","is_final":false}`, text)
	})

	t.Run("no json", func(t *testing.T) {
		p, text, err := Decode("plain text", QuestionSchema)
		assert.ErrorIs(t, err, ErrNoJSON)
		assert.Nil(t, p)
		assert.Equal(t, NoJSONPayload, text)
	})

	t.Run("truncated", func(t *testing.T) {
		_, _, err := Decode(`{"SUMMARY":"Chest pain","FINDINGS":"Chest`, AnalysisSchema)
		assert.ErrorIs(t, err, ErrMalformed)
	})

	t.Run("model error", func(t *testing.T) {
		_, _, err := Decode(`{"error":"Failed to process file"}`, AnalysisSchema)
		var me *ModelError
		require.True(t, errors.As(err, &me))
		assert.Equal(t, "Failed to process file", me.Message)
	})

	t.Run("falsy error key ignored", func(t *testing.T) {
		_, _, err := Decode(`{"error":false,"question":"Any fever?"}`, QuestionSchema)
		assert.NoError(t, err)
	})

	t.Run("missing required key", func(t *testing.T) {
		_, _, err := Decode(`{"SUMMARY":"ok"}`, AnalysisSchema)
		assert.ErrorIs(t, err, ErrSchema)
		assert.Contains(t, err.Error(), "SUGGESTED_SPECIALTIES")
	})

	t.Run("wrong type", func(t *testing.T) {
		_, _, err := Decode(`{"question":42}`, QuestionSchema)
		assert.ErrorIs(t, err, ErrSchema)
	})

	t.Run("nil schema", func(t *testing.T) {
		p, _, err := Decode(`{"anything":true}`, nil)
		require.NoError(t, err)
		assert.Equal(t, true, p["anything"])
	})
}

func TestDecode_EndToEndAnalysisFields(t *testing.T) {
	raw := `{"SUMMARY":"...","FINDINGS":"Chest pain\nShortness of breath","SUGGESTED_SPECIALTIES":"Cardiology, Pulmonology","CONFIDENCE":"medium","NEXT_STEPS":"..."}`
	p, _, err := Decode(raw, AnalysisSchema)
	require.NoError(t, err)

	assert.Equal(t, []string{"Chest pain", "Shortness of breath"}, Lines(p["FINDINGS"]))
	assert.Equal(t, []string{"Cardiology", "Pulmonology"}, List(p["SUGGESTED_SPECIALTIES"]))
}

func TestLines(t *testing.T) {
	assert.Equal(t,
		[]string{"Elevated troponin", "Mild tachycardia", "ST changes"},
		Lines("* Elevated troponin\n\n- Mild tachycardia  \n• ST changes\n   "))
	assert.Equal(t, []string{"a", "b"}, Lines([]any{" a", "- b", ""}))
	assert.Empty(t, Lines(nil))
	assert.Empty(t, Lines("\n \n"))
}

func TestList(t *testing.T) {
	assert.Equal(t, []string{"Cardiology", "Pulmonology"}, List(" Cardiology ,, Pulmonology,"))
	assert.Equal(t, []string{"Neurology"}, List([]any{"Neurology", " "}))
	assert.Empty(t, List(""))
}

func TestText(t *testing.T) {
	assert.Equal(t, "See a doctor", Text("  See a doctor "))
	assert.Equal(t, "Rest\nHydrate", Text([]any{"Rest", "", "Hydrate"}))
	assert.Equal(t, "3", Text(float64(3)))
	assert.Equal(t, "", Text(nil))
}

func FuzzExtract(f *testing.F) {
	for _, seed := range []string{
		`Sure! {"a":1} thanks`,
		`{{{`,
		`}}}{`,
		`{"a":"}"}`,
		"no json",
		`{"ü":"❤"}`,
		"",
	} {
		f.Add(seed)
	}

	f.Fuzz(func(t *testing.T, raw string) {
		got := Extract(raw)
		if !strings.Contains(raw, "{") {
			if got != NoJSONPayload {
				t.Fatalf("Extract(%q) = %q, want no-JSON payload", raw, got)
			}
			return
		}
		if !strings.HasPrefix(got, "{") || !strings.Contains(raw, got) {
			t.Fatalf("Extract(%q) = %q is not a '{'-prefixed substring", raw, got)
		}
		if strings.Contains(got, "}") && !strings.HasSuffix(got, "}") {
			t.Fatalf("Extract(%q) = %q stops before the last '}'", raw, got)
		}
		if utf8.ValidString(raw) && !utf8.ValidString(got) {
			t.Fatalf("Extract(%q) split a rune", raw)
		}
		// Decode must classify, never panic.
		_, _, _ = Decode(raw, AnalysisSchema)
	})
}
