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
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one chat entry. When Parts is set it is sent instead of Content
// as a list of typed parts.
type Message struct {
	Role    string
	Content string
	Parts   []Part
}

type Part struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

type ImageURL struct {
	URL string `json:"url"`
}

func TextPart(text string) Part { return Part{Type: "text", Text: text} }

func ImagePart(dataURI string) Part {
	return Part{Type: "image_url", ImageURL: &ImageURL{URL: dataURI}}
}

func (m Message) MarshalJSON() ([]byte, error) {
	if m.Parts != nil {
		return json.Marshal(struct {
			Role    string `json:"role"`
			Content []Part `json:"content"`
		}{m.Role, m.Parts})
	}
	return json.Marshal(struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	}{m.Role, m.Content})
}

// Completer sends a message sequence to the inference endpoint and returns the
// assistant's raw text.
type Completer interface {
	Complete(ctx context.Context, messages []Message) (string, error)
}

type Config struct {
	Host        string
	APIKey      string
	Model       string
	Timeout     time.Duration
	Temperature float64
	MaxTokens   int
}

// withDefaults fills unset sizing fields. Temperature is taken as given:
// zero is a valid setting.
func (c Config) withDefaults() Config {
	if c.Model == "" {
		c.Model = "medgemma-4b-it"
	}
	if c.Timeout == 0 {
		c.Timeout = 180 * time.Second
	}
	if c.MaxTokens == 0 {
		c.MaxTokens = 1500
	}
	return c
}

// StatusError is a non-2xx reply from the inference endpoint.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("inference endpoint returned %d: %s", e.StatusCode, e.Body)
}

var ErrEmptyReply = errors.New("inference endpoint returned no choices")

type chatClient struct {
	cfg        Config
	endpoint   string
	httpClient *http.Client
}

// NewChatClient talks to an OpenAI-compatible /v1/chat/completions endpoint.
func NewChatClient(cfg Config) Completer {
	cfg = cfg.withDefaults()
	return &chatClient{
		cfg:      cfg,
		endpoint: strings.TrimRight(cfg.Host, "/") + "/v1/chat/completions",
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens"`
	Stream      bool      `json:"stream"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (c *chatClient) Complete(ctx context.Context, messages []Message) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model:       c.cfg.Model,
		Messages:    messages,
		Temperature: c.cfg.Temperature,
		MaxTokens:   c.cfg.MaxTokens,
		Stream:      false,
	})
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("calling inference endpoint: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return "", &StatusError{StatusCode: resp.StatusCode, Body: string(b)}
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decoding response: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", ErrEmptyReply
	}
	return out.Choices[0].Message.Content, nil
}
