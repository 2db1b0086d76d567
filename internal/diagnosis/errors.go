package diagnosis

import "errors"

var (
	// ErrTransport covers network failures, timeouts and non-2xx replies from
	// the inference endpoint.
	ErrTransport = errors.New("AI service unavailable")
	// ErrContract means the reply held no usable JSON object.
	ErrContract = errors.New("invalid AI response")
	// ErrValidation rejects input before any AI call is made.
	ErrValidation = errors.New("invalid input")
	// ErrModel matches any *ModelError.
	ErrModel = errors.New("AI reported an error")
	// ErrConversationClosed is returned for input after the final triage turn.
	ErrConversationClosed = errors.New("conversation is finished, reset to start a new one")
)

// ModelError carries the message the model put in its "error" key.
type ModelError struct {
	Message string
}

func (e *ModelError) Error() string { return "AI Error: " + e.Message }

func (e *ModelError) Is(target error) bool { return target == ErrModel }
