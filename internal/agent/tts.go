package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	defaultVoiceID = "21m00Tcm4TlvDq8ikWAM"
	ttsModel       = "eleven_multilingual_v2"
)

// ErrTTSDisabled is returned when no API key is configured.
var ErrTTSDisabled = errors.New("text-to-speech is not configured")

// TTSClient reads triage questions aloud for the voice flow.
type TTSClient interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

type elevenLabsClient struct {
	baseURL    string
	apiKey     string
	voiceID    string
	httpClient *http.Client
}

func NewElevenLabsClient(baseURL, apiKey, voiceID string) TTSClient {
	if voiceID == "" {
		voiceID = defaultVoiceID
	}
	return &elevenLabsClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		voiceID:    voiceID,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

type speechRequest struct {
	Text     string        `json:"text"`
	ModelID  string        `json:"model_id"`
	Settings voiceSettings `json:"voice_settings"`
}

// Synthesize returns MPEG audio for text. Blank text yields no audio.
func (c *elevenLabsClient) Synthesize(ctx context.Context, text string) ([]byte, error) {
	if c.apiKey == "" {
		return nil, ErrTTSDisabled
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}

	payload, err := json.Marshal(speechRequest{
		Text:     text,
		ModelID:  ttsModel,
		Settings: voiceSettings{Stability: 0.5, SimilarityBoost: 0.75},
	})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+c.voiceID, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/mpeg")
	req.Header.Set("xi-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling TTS service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("TTS API error: %w", &StatusError{StatusCode: resp.StatusCode, Body: string(body)})
	}
	return io.ReadAll(resp.Body)
}
