package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
)

// STTClient turns a recorded symptom description into text.
type STTClient interface {
	Transcribe(ctx context.Context, audioData []byte) (string, error)
}

type whisperClient struct {
	url        string
	httpClient *http.Client
}

// NewWhisperClient posts audio to a Whisper transcription service.
func NewWhisperClient(url string) STTClient {
	return &whisperClient{url: url, httpClient: &http.Client{Timeout: 60 * time.Second}}
}

type transcription struct {
	Text     string `json:"text"`
	Language string `json:"language"`
}

// audioFileName picks an upload name the service can infer a decoder from.
// Browsers record webm or ogg; anything unrecognised is sent as wav.
func audioFileName(data []byte) string {
	switch ct := http.DetectContentType(data); {
	case strings.Contains(ct, "webm"):
		return "symptoms.webm"
	case strings.Contains(ct, "ogg"):
		return "symptoms.ogg"
	case strings.Contains(ct, "mpeg"):
		return "symptoms.mp3"
	default:
		return "symptoms.wav"
	}
}

func (c *whisperClient) Transcribe(ctx context.Context, audioData []byte) (string, error) {
	var form bytes.Buffer
	mw := multipart.NewWriter(&form)
	part, err := mw.CreateFormFile("file", audioFileName(audioData))
	if err != nil {
		return "", err
	}
	if _, err := part.Write(audioData); err != nil {
		return "", err
	}
	if err := mw.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, &form)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("calling STT service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("STT API error: %w", &StatusError{StatusCode: resp.StatusCode, Body: string(body)})
	}

	var out transcription
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decoding transcription: %w", err)
	}
	return strings.TrimSpace(out.Text), nil
}
