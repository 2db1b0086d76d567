package diagnosis

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"medmatch/internal/account"
	"medmatch/internal/agent"
	"medmatch/internal/query"
	"medmatch/internal/report"
	"medmatch/internal/session"
)

var allowedExtensions = map[string]string{
	".png":  query.InputImage,
	".jpg":  query.InputImage,
	".jpeg": query.InputImage,
	".pdf":  query.InputPDF,
}

// Reporter renders and shares stored analyses.
type Reporter interface {
	Render(doc report.Document) ([]byte, error)
	Share(ctx context.Context, doc report.Document) error
}

// Quota meters file uploads.
type Quota interface {
	ConsumeUpload(ctx context.Context, a *account.Account) error
}

type Deps struct {
	Engine   *Engine
	Archive  *Archive
	Quota    Quota
	Sessions session.Store
	STT      agent.STTClient
	TTS      agent.TTSClient
	Reports  Reporter

	UploadDir      string
	MaxUploadBytes int64
	Log            *zap.Logger
}

type Handler struct {
	Deps
}

func NewHandler(d Deps) *Handler {
	return &Handler{Deps: d}
}

type messageRequest struct {
	Message string `json:"message"`
}

func (h *Handler) Analyze(w http.ResponseWriter, r *http.Request) {
	acct := mustAccount(r)
	r.Body = http.MaxBytesReader(w, r.Body, h.MaxUploadBytes+1<<20)
	if err := r.ParseMultipartForm(8 << 20); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		h.writeError(w, fmt.Errorf("%w: upload too large or malformed", ErrValidation))
		return
	}

	in := AnalysisInput{
		AccountID: acct.ID,
		Text:      strings.TrimSpace(r.FormValue("query_text")),
		InputType: query.InputText,
	}

	file, header, err := r.FormFile("file")
	switch {
	case err == nil:
		defer file.Close()
		path, inputType, uri, err := h.acceptUpload(r.Context(), acct, file, header)
		if err != nil {
			h.writeError(w, err)
			return
		}
		in.FilePath, in.InputType, in.Attachment = path, inputType, uri
	case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
	default:
		h.writeError(w, fmt.Errorf("%w: unreadable file", ErrValidation))
		return
	}

	out, err := h.Engine.Analyze(r.Context(), in)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if err := h.Sessions.Save(r.Context(), acct.ID.String(), session.KeyLastResult, out); err != nil {
		h.Log.Warn("save last result failed", zap.Error(err))
	}
	writeJSON(w, http.StatusOK, out)
}

// acceptUpload validates, stores and encodes an upload, then takes one unit
// of quota. Nothing is consumed or kept when any of those steps fails.
func (h *Handler) acceptUpload(ctx context.Context, acct *account.Account, file multipart.File, header *multipart.FileHeader) (path, inputType, uri string, err error) {
	name := filepath.Base(header.Filename)
	inputType, ok := allowedExtensions[strings.ToLower(filepath.Ext(name))]
	if !ok || name == "." || name == string(filepath.Separator) {
		return "", "", "", fmt.Errorf("%w: invalid file type, use png, jpg, jpeg or pdf", ErrValidation)
	}
	if header.Size > h.MaxUploadBytes {
		return "", "", "", fmt.Errorf("%w: file exceeds %d bytes", ErrValidation, h.MaxUploadBytes)
	}
	if !acct.CanUpload() {
		return "", "", "", account.ErrQuotaExceeded
	}

	if err := os.MkdirAll(h.UploadDir, 0o755); err != nil {
		return "", "", "", fmt.Errorf("create upload dir: %w", err)
	}
	path = filepath.Join(h.UploadDir, uuid.NewString()+"_"+name)
	if err := storeUpload(path, file); err != nil {
		return "", "", "", err
	}

	if uri, err = h.Engine.Attach(path); err != nil {
		os.Remove(path)
		return "", "", "", err
	}
	if err := h.Quota.ConsumeUpload(ctx, acct); err != nil {
		os.Remove(path)
		return "", "", "", err
	}
	return path, inputType, uri, nil
}

func storeUpload(path string, src io.Reader) error {
	dst, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("store upload: %w", err)
	}
	_, err = io.Copy(dst, src)
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
		return fmt.Errorf("store upload: %w", err)
	}
	return nil
}

func (h *Handler) LastResult(w http.ResponseWriter, r *http.Request) {
	acct := mustAccount(r)
	var out AnalysisOutcome
	err := h.Sessions.Load(r.Context(), acct.ID.String(), session.KeyLastResult, &out)
	if errors.Is(err, session.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, errorBody("No recent analysis"))
		return
	}
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) GetTriage(w http.ResponseWriter, r *http.Request) {
	h.getConversation(w, r, session.KeyTriage, NewTriage)
}

func (h *Handler) SendTriage(w http.ResponseWriter, r *http.Request) {
	var req messageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("Invalid request"))
		return
	}

	reply, err := h.triage(r, req.Message)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reply)
}

// VoiceTriage transcribes an uploaded recording, runs it as a triage message
// and attaches synthesized speech for the reply when TTS is available.
func (h *Handler) VoiceTriage(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.MaxUploadBytes)
	file, _, err := r.FormFile("audio")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("Error retrieving audio file"))
		return
	}
	defer file.Close()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, file); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("Failed to read audio file"))
		return
	}

	text, err := h.STT.Transcribe(r.Context(), buf.Bytes())
	if err != nil {
		h.Log.Error("transcription failed", zap.Error(err))
		h.writeError(w, fmt.Errorf("%w: %w", ErrTransport, err))
		return
	}
	if strings.TrimSpace(text) == "" {
		writeJSON(w, http.StatusOK, map[string]string{"text": ""})
		return
	}

	reply, err := h.triage(r, text)
	if err != nil {
		h.writeError(w, err)
		return
	}

	spoken := reply.Question
	if reply.IsFinal {
		spoken = reply.Finding.PossibleCauses
	}
	var audioBase64 string
	if audio, err := h.TTS.Synthesize(r.Context(), spoken); err == nil {
		audioBase64 = base64.StdEncoding.EncodeToString(audio)
	} else if !errors.Is(err, agent.ErrTTSDisabled) {
		h.Log.Warn("speech synthesis failed", zap.Error(err))
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"text":         text,
		"reply":        reply,
		"audio_base64": audioBase64,
	})
}

// triage loads the session conversation, advances it and saves it back. An
// engine failure still saves the user's message; a failed load saves nothing.
func (h *Handler) triage(r *http.Request, msg string) (*TriageReply, error) {
	acct := mustAccount(r)
	conv, err := h.loadConversation(r, session.KeyTriage, NewTriage)
	if err != nil {
		return nil, err
	}

	next, reply, err := h.Engine.Triage(r.Context(), acct.ID, conv, msg)
	if saveErr := h.Sessions.Save(r.Context(), acct.ID.String(), session.KeyTriage, next); saveErr != nil {
		h.Log.Error("save triage session failed", zap.Error(saveErr))
	}
	return reply, err
}

func (h *Handler) ResetTriage(w http.ResponseWriter, r *http.Request) {
	h.reset(w, r, session.KeyTriage, NewTriage())
}

func (h *Handler) GetChat(w http.ResponseWriter, r *http.Request) {
	h.getConversation(w, r, session.KeyChat, NewChat)
}

func (h *Handler) SendChat(w http.ResponseWriter, r *http.Request) {
	acct := mustAccount(r)
	var req messageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("Invalid request"))
		return
	}

	conv, err := h.loadConversation(r, session.KeyChat, NewChat)
	if err != nil {
		h.writeError(w, err)
		return
	}
	next, reply, err := h.Engine.Chat(r.Context(), conv, req.Message)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if err := h.Sessions.Save(r.Context(), acct.ID.String(), session.KeyChat, next); err != nil {
		h.Log.Error("save chat session failed", zap.Error(err))
	}
	writeJSON(w, http.StatusOK, map[string]any{"reply": reply, "conversation": next})
}

func (h *Handler) ResetChat(w http.ResponseWriter, r *http.Request) {
	h.reset(w, r, session.KeyChat, NewChat())
}

// reset drops the stored conversation; the next load starts from fresh.
func (h *Handler) reset(w http.ResponseWriter, r *http.Request, key string, fresh Conversation) {
	acct := mustAccount(r)
	if err := h.Sessions.Delete(r.Context(), acct.ID.String(), key); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, fresh)
}

func (h *Handler) getConversation(w http.ResponseWriter, r *http.Request, key string, fresh func() Conversation) {
	conv, err := h.loadConversation(r, key, fresh)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, conv)
}

// loadConversation starts over only when nothing is stored. Any other
// failure is returned so the caller never overwrites a conversation it
// could not read.
func (h *Handler) loadConversation(r *http.Request, key string, fresh func() Conversation) (Conversation, error) {
	acct := mustAccount(r)
	var conv Conversation
	err := h.Sessions.Load(r.Context(), acct.ID.String(), key, &conv)
	if errors.Is(err, session.ErrNotFound) {
		return fresh(), nil
	}
	if err != nil {
		return Conversation{}, fmt.Errorf("load %s session: %w", key, err)
	}
	return conv, nil
}

func (h *Handler) ListQueries(w http.ResponseWriter, r *http.Request) {
	acct := mustAccount(r)
	recs, err := h.Archive.Recent(r.Context(), acct.ID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"queries": recs})
}

func (h *Handler) GetQuery(w http.ResponseWriter, r *http.Request) {
	entry, ok := h.entry(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (h *Handler) QueryReport(w http.ResponseWriter, r *http.Request) {
	entry, ok := h.entry(w, r)
	if !ok {
		return
	}
	doc := entry.Document()
	data, err := h.Reports.Render(doc)
	if err != nil {
		h.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", doc.FileName()))
	w.Write(data)
}

func (h *Handler) ShareQuery(w http.ResponseWriter, r *http.Request) {
	entry, ok := h.entry(w, r)
	if !ok {
		return
	}
	if err := h.Reports.Share(r.Context(), entry.Document()); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (h *Handler) entry(w http.ResponseWriter, r *http.Request) (*Entry, bool) {
	acct := mustAccount(r)
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("Invalid query ID"))
		return nil, false
	}
	entry, err := h.Archive.Detail(r.Context(), acct.ID, id)
	if err != nil {
		h.writeError(w, err)
		return nil, false
	}
	return entry, true
}

// writeError maps the error taxonomy onto status codes. Internal detail is
// logged, never returned.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var me *ModelError
	switch {
	case errors.Is(err, ErrValidation):
		writeJSON(w, http.StatusBadRequest, errorBody(validationMessage(err)))
	case errors.Is(err, account.ErrQuotaExceeded):
		writeJSON(w, http.StatusPaymentRequired, errorBody("Upload quota exceeded."))
	case errors.Is(err, ErrConversationClosed):
		writeJSON(w, http.StatusConflict, errorBody("This check is finished. Start a new one to continue."))
	case errors.As(err, &me):
		writeJSON(w, http.StatusUnprocessableEntity, errorBody(me.Error()))
	case errors.Is(err, ErrContract):
		writeJSON(w, http.StatusBadGateway, errorBody("Invalid AI response."))
	case errors.Is(err, ErrTransport):
		writeJSON(w, http.StatusBadGateway, errorBody("Sorry, a server error occurred. Please try again."))
	case errors.Is(err, query.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody("Query not found"))
	case errors.Is(err, report.ErrNoRecipient):
		writeJSON(w, http.StatusServiceUnavailable, errorBody("Report sharing is not configured"))
	default:
		h.Log.Error("request failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorBody("Internal error"))
	}
}

// validationMessage strips the sentinel prefix from a wrapped validation error.
func validationMessage(err error) string {
	msg := strings.TrimPrefix(err.Error(), ErrValidation.Error()+": ")
	if msg == "" {
		return ErrValidation.Error()
	}
	return strings.ToUpper(msg[:1]) + msg[1:]
}

func errorBody(msg string) map[string]string {
	return map[string]string{"error": msg}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func mustAccount(r *http.Request) *account.Account {
	a, ok := account.FromContext(r.Context())
	if !ok {
		panic("diagnosis: route mounted without account.Middleware")
	}
	return a
}

// RegisterRoutes expects r to run account.Middleware.
func RegisterRoutes(r chi.Router, h *Handler) {
	r.Post("/analyze", h.Analyze)
	r.Get("/analyze/last", h.LastResult)

	r.Get("/triage", h.GetTriage)
	r.Post("/triage", h.SendTriage)
	r.Post("/triage/voice", h.VoiceTriage)
	r.Post("/triage/reset", h.ResetTriage)

	r.Get("/chat", h.GetChat)
	r.Post("/chat", h.SendChat)
	r.Post("/chat/reset", h.ResetChat)

	r.Get("/queries", h.ListQueries)
	r.Get("/queries/{id}", h.GetQuery)
	r.Get("/queries/{id}/report", h.QueryReport)
	r.Post("/queries/{id}/share", h.ShareQuery)
}
