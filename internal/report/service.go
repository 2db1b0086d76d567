// Package report renders a stored analysis as a PDF and delivers it to the
// on-call doctor over Telegram.
package report

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/signintech/gopdf"
	"go.uber.org/zap"

	"medmatch/internal/doctor"
)

var (
	ErrNoFont      = errors.New("no usable TTF font")
	ErrNoRecipient = errors.New("doctor chat is not configured")
)

// Document is the printable view of one analysis.
type Document struct {
	QueryID        string
	CreatedAt      time.Time
	InputType      string
	UserText       string
	Summary        string
	Findings       []string
	PossibleCauses string
	Specialties    []string
	Confidence     string
	NextSteps      string
	Doctors        []doctor.Doctor
}

// FileName is the attachment name used when sharing.
func (d Document) FileName() string {
	return fmt.Sprintf("report_%s.pdf", d.QueryID)
}

type TelegramClient interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
	SendDocument(ctx context.Context, chatID int64, fileData []byte, fileName string) error
}

type Service struct {
	tgClient     TelegramClient
	doctorChatID int64
	fontPaths    []string
	log          *zap.Logger
}

func NewService(tg TelegramClient, doctorChatID int64, fontPaths []string, log *zap.Logger) *Service {
	return &Service{
		tgClient:     tg,
		doctorChatID: doctorChatID,
		fontPaths:    fontPaths,
		log:          log,
	}
}

const (
	pageBottom = 780
	textWidth  = 500
)

// Render lays out doc on A4 pages.
func (s *Service) Render(doc Document) ([]byte, error) {
	pdf := gopdf.GoPdf{}
	pdf.Start(gopdf.Config{PageSize: *gopdf.PageSizeA4})
	pdf.AddPage()

	if err := s.loadFont(&pdf); err != nil {
		return nil, err
	}

	w := &writer{pdf: &pdf}
	w.line(20, "Medical Analysis Report")
	w.gap(15)

	w.line(11, "Date: "+doc.CreatedAt.Format("02.01.2006 15:04"))
	w.line(11, "Query: "+doc.QueryID)
	w.line(11, "Input: "+doc.InputType)
	w.gap(10)

	if doc.UserText != "" {
		w.section("Patient description", doc.UserText)
	}
	if doc.Summary != "" {
		w.section("Summary", doc.Summary)
	}
	if len(doc.Findings) > 0 {
		w.section("Findings", "- "+strings.Join(doc.Findings, "\n- "))
	}
	if doc.PossibleCauses != "" {
		w.section("Possible causes", doc.PossibleCauses)
	}
	if len(doc.Specialties) > 0 {
		w.section("Suggested specialties", strings.Join(doc.Specialties, ", "))
	}
	if doc.Confidence != "" {
		w.section("Confidence", doc.Confidence)
	}
	if doc.NextSteps != "" {
		w.section("Next steps", doc.NextSteps)
	}

	if len(doc.Doctors) > 0 {
		lines := make([]string, 0, len(doc.Doctors))
		for _, d := range doc.Doctors {
			lines = append(lines, fmt.Sprintf("- %s (%s), %s", d.Name, d.PrimarySpecialty, d.LocationText))
		}
		w.section("Matched doctors", strings.Join(lines, "\n"))
	}

	w.gap(10)
	w.line(9, "Generated by an AI assistant. Not a substitute for professional medical advice.")

	if w.err != nil {
		return nil, w.err
	}

	var buf bytes.Buffer
	if _, err := pdf.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("failed to write PDF: %w", err)
	}
	return buf.Bytes(), nil
}

// Share renders doc and sends it, with a one-line summary, to the doctor chat.
func (s *Service) Share(ctx context.Context, doc Document) error {
	if s.doctorChatID == 0 {
		return ErrNoRecipient
	}

	data, err := s.Render(doc)
	if err != nil {
		return err
	}

	msg := fmt.Sprintf("New %s analysis %s. Suggested: %s", doc.InputType, doc.QueryID, strings.Join(doc.Specialties, ", "))
	if err := s.tgClient.SendMessage(ctx, s.doctorChatID, msg); err != nil {
		return err
	}
	if err := s.tgClient.SendDocument(ctx, s.doctorChatID, data, doc.FileName()); err != nil {
		return err
	}
	s.log.Info("report shared", zap.String("query_id", doc.QueryID), zap.Int64("chat_id", s.doctorChatID))
	return nil
}

func (s *Service) loadFont(pdf *gopdf.GoPdf) error {
	var lastErr error
	for _, path := range s.fontPaths {
		if err := pdf.AddTTFFont("body", path); err != nil {
			lastErr = err
			continue
		}
		s.log.Debug("report font loaded", zap.String("path", path))
		return nil
	}
	if lastErr == nil {
		return ErrNoFont
	}
	return fmt.Errorf("%w: %v", ErrNoFont, lastErr)
}

// writer keeps the first layout error and adds pages as text runs off the
// bottom.
type writer struct {
	pdf *gopdf.GoPdf
	err error
}

func (w *writer) line(size float64, text string) {
	if w.err != nil {
		return
	}
	if w.err = w.pdf.SetFont("body", "", size); w.err != nil {
		return
	}
	lines, err := w.pdf.SplitText(text, textWidth)
	if err != nil {
		lines = []string{text}
	}
	for _, l := range lines {
		if w.pdf.GetY() > pageBottom {
			w.pdf.AddPage()
		}
		if w.err = w.pdf.Cell(nil, l); w.err != nil {
			return
		}
		w.pdf.Br(size + 3)
	}
}

func (w *writer) gap(h float64) {
	w.pdf.Br(h)
}

func (w *writer) section(title, body string) {
	w.line(14, title)
	for _, para := range strings.Split(body, "\n") {
		if strings.TrimSpace(para) != "" {
			w.line(11, para)
		}
	}
	w.gap(8)
}
