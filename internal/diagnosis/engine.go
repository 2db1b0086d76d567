// Package diagnosis drives the conversations with the inference endpoint:
// single-shot analysis, three-turn symptom triage and free-form supportive
// chat. Structured replies are routed to the doctor matcher.
package diagnosis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"medmatch/internal/agent"
	"medmatch/internal/contract"
	"medmatch/internal/doctor"
	"medmatch/internal/platform/metrics"
	"medmatch/internal/query"
	"medmatch/internal/specialty"
)

// History is where successful analyses are recorded.
type History interface {
	Save(ctx context.Context, rec *query.Record) error
	SetMatchedDoctors(ctx context.Context, id uuid.UUID, doctorIDs []int64) error
}

type Matcher interface {
	Match(ctx context.Context, suggested []string) ([]doctor.Doctor, error)
}

type Engine struct {
	ai          agent.Completer
	specialties *specialty.Normalizer
	matcher     Matcher
	history     History
	log         *zap.Logger
	encode      func(path string) (string, error)
}

func NewEngine(ai agent.Completer, specialties *specialty.Normalizer, matcher Matcher, history History, log *zap.Logger) *Engine {
	return &Engine{
		ai:          ai,
		specialties: specialties,
		matcher:     matcher,
		history:     history,
		log:         log,
		encode:      agent.EncodeAttachment,
	}
}

// Analyze runs one document or free-text analysis. The record is persisted
// only when the reply passes the contract.
func (e *Engine) Analyze(ctx context.Context, in AnalysisInput) (*AnalysisOutcome, error) {
	text := strings.TrimSpace(in.Text)
	if text == "" && in.FilePath == "" {
		return nil, fmt.Errorf("%w: provide text or a file for analysis", ErrValidation)
	}

	prompt := text
	if prompt == "" {
		prompt = defaultAnalysisText
	}
	parts := []agent.Part{agent.TextPart(prompt)}
	if in.FilePath != "" {
		uri := in.Attachment
		if uri == "" {
			var err error
			if uri, err = e.Attach(in.FilePath); err != nil {
				return nil, err
			}
		}
		parts = append(parts, agent.ImagePart(uri))
	}

	msgs := []agent.Message{
		{Role: agent.RoleSystem, Content: analysisPrompt(e.specialties.Canonical())},
		{Role: agent.RoleUser, Parts: parts},
	}
	p, raw, err := e.complete(ctx, "analysis", msgs, contract.AnalysisSchema)
	if err != nil {
		return nil, err
	}

	inputType := in.InputType
	if inputType == "" {
		inputType = query.InputText
	}
	rec := &query.Record{
		AccountID:   in.AccountID,
		InputType:   inputType,
		FilePath:    in.FilePath,
		UserText:    text,
		RawResponse: raw,
	}
	if err := e.history.Save(ctx, rec); err != nil {
		return nil, fmt.Errorf("save query: %w", err)
	}

	f := FindingFromPayload(p)
	return &AnalysisOutcome{
		QueryID: rec.ID,
		Finding: f,
		Doctors: e.match(ctx, rec.ID, f.SuggestedSpecialties),
	}, nil
}

// Attach renders a stored upload as the data URI sent to the model.
func (e *Engine) Attach(path string) (string, error) {
	uri, err := e.encode(path)
	if err != nil {
		e.log.Warn("attachment encoding failed", zap.String("file", path), zap.Error(err))
		return "", fmt.Errorf("%w: failed to process file", ErrValidation)
	}
	return uri, nil
}

// Triage advances a symptom-checker conversation by one user message. The
// returned Conversation always carries the user's message unless the input
// was rejected; an assistant turn is added only for interim questions.
func (e *Engine) Triage(ctx context.Context, accountID uuid.UUID, conv Conversation, msg string) (Conversation, *TriageReply, error) {
	msg = strings.TrimSpace(msg)
	if msg == "" {
		return conv, nil, fmt.Errorf("%w: no message provided", ErrValidation)
	}
	if conv.Final {
		return conv, nil, ErrConversationClosed
	}
	if len(conv.Turns) == 0 {
		conv = NewTriage()
	}

	conv = conv.With(Turn{Role: RoleUser, Content: msg})
	canonical := e.specialties.Canonical()

	if conv.UserTurns() < MaxUserTurns {
		p, _, err := e.complete(ctx, "triage", transcript(questionPrompt, conv), contract.QuestionSchema)
		if err != nil {
			return conv, nil, err
		}
		question := contract.Text(p["question"])
		conv = conv.With(Turn{Role: RoleAssistant, Content: question})
		return conv, &TriageReply{Question: question}, nil
	}

	p, raw, err := e.complete(ctx, "triage", transcript(finalTriagePrompt(canonical), conv), contract.FinalTriageSchema)
	if err != nil {
		return conv, nil, err
	}
	conv.Final = true

	f := FindingFromPayload(p)
	reply := &TriageReply{IsFinal: true, Finding: &f}

	rec := &query.Record{
		AccountID:   accountID,
		InputType:   query.InputTriage,
		UserText:    userText(conv),
		RawResponse: raw,
	}
	if err := e.history.Save(ctx, rec); err != nil {
		e.log.Error("save triage query failed", zap.String("account_id", accountID.String()), zap.Error(err))
		rec.ID = uuid.Nil
	} else {
		id := rec.ID
		reply.QueryID = &id
	}
	reply.Doctors = e.match(ctx, rec.ID, f.SuggestedSpecialties)
	return conv, reply, nil
}

// Chat appends the user's message and the assistant's prose reply. Failures
// degrade to a fixed apology so chat never errors after validation.
func (e *Engine) Chat(ctx context.Context, conv Conversation, msg string) (Conversation, string, error) {
	msg = strings.TrimSpace(msg)
	if msg == "" {
		return conv, "", fmt.Errorf("%w: no message provided", ErrValidation)
	}
	if len(conv.Turns) == 0 {
		conv = NewChat()
	}
	conv = conv.With(Turn{Role: RoleUser, Content: msg})

	start := time.Now()
	raw, err := e.ai.Complete(ctx, transcript(chatPrompt, conv))
	reply := strings.TrimSpace(raw)
	switch {
	case err != nil:
		metrics.ObserveCompletion("chat", "transport", time.Since(start))
		e.log.Error("chat completion failed", zap.Error(err))
		reply = chatApology
	case reply == "":
		metrics.ObserveCompletion("chat", "contract", time.Since(start))
		e.log.Error("chat completion was empty")
		reply = chatApology
	default:
		metrics.ObserveCompletion("chat", "ok", time.Since(start))
	}

	conv = conv.With(Turn{Role: RoleAssistant, Content: reply})
	return conv, reply, nil
}

// complete calls the model and runs the reply through the JSON contract,
// mapping every failure onto the package's error taxonomy.
func (e *Engine) complete(ctx context.Context, protocol string, msgs []agent.Message, schema *contract.Schema) (contract.Payload, string, error) {
	start := time.Now()
	raw, err := e.ai.Complete(ctx, msgs)
	if err != nil {
		metrics.ObserveCompletion(protocol, "transport", time.Since(start))
		e.log.Error("ai completion failed", zap.String("protocol", protocol), zap.Error(err))
		return nil, "", fmt.Errorf("%w: %w", ErrTransport, err)
	}

	p, text, err := contract.Decode(raw, schema)
	if err != nil {
		var me *contract.ModelError
		if errors.As(err, &me) {
			metrics.ObserveCompletion(protocol, "model", time.Since(start))
			e.log.Warn("ai reported an error", zap.String("protocol", protocol), zap.String("message", me.Message))
			return nil, "", &ModelError{Message: me.Message}
		}
		metrics.ObserveCompletion(protocol, "contract", time.Since(start))
		e.log.Error("ai reply violated contract",
			zap.String("protocol", protocol), zap.Error(err), zap.String("raw", truncate(raw, 512)))
		return nil, "", fmt.Errorf("%w: %w", ErrContract, err)
	}

	metrics.ObserveCompletion(protocol, "ok", time.Since(start))
	return p, text, nil
}

// match never fails the caller: a directory outage yields no doctors.
func (e *Engine) match(ctx context.Context, queryID uuid.UUID, suggested []string) []doctor.Doctor {
	ds, err := e.matcher.Match(ctx, suggested)
	if err != nil {
		e.log.Error("doctor match failed", zap.Strings("specialties", suggested), zap.Error(err))
		return []doctor.Doctor{}
	}
	if queryID != uuid.Nil {
		if err := e.history.SetMatchedDoctors(ctx, queryID, doctor.IDs(ds)); err != nil {
			e.log.Error("record matched doctors failed", zap.String("query_id", queryID.String()), zap.Error(err))
		}
	}
	return ds
}

// transcript prefixes the system instruction and drops the opening greeting,
// which is UI text the model never needs.
func transcript(system string, conv Conversation) []agent.Message {
	turns := conv.Turns
	if len(turns) > 0 && turns[0].Role == RoleAssistant {
		turns = turns[1:]
	}
	msgs := make([]agent.Message, 0, len(turns)+1)
	msgs = append(msgs, agent.Message{Role: agent.RoleSystem, Content: system})
	for _, t := range turns {
		msgs = append(msgs, agent.Message{Role: t.Role, Content: t.Content})
	}
	return msgs
}

func userText(conv Conversation) string {
	var parts []string
	for _, t := range conv.Turns {
		if t.Role == RoleUser {
			parts = append(parts, t.Content)
		}
	}
	return strings.Join(parts, "\n")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
