package agent

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

type langchainClient struct {
	llm *openai.LLM
	cfg Config
}

// NewLangChainClient is the langchaingo-backed Completer, selected with
// ai.backend=langchain.
func NewLangChainClient(cfg Config) (Completer, error) {
	cfg = cfg.withDefaults()
	llm, err := openai.New(
		openai.WithBaseURL(strings.TrimRight(cfg.Host, "/")+"/v1"),
		openai.WithToken(cfg.APIKey),
		openai.WithModel(cfg.Model),
		openai.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}),
	)
	if err != nil {
		return nil, fmt.Errorf("creating langchain client: %w", err)
	}
	return &langchainClient{llm: llm, cfg: cfg}, nil
}

func (c *langchainClient) Complete(ctx context.Context, messages []Message) (string, error) {
	content := make([]llms.MessageContent, 0, len(messages))
	for _, m := range messages {
		content = append(content, toMessageContent(m))
	}

	resp, err := c.llm.GenerateContent(ctx, content,
		llms.WithTemperature(c.cfg.Temperature),
		llms.WithMaxTokens(c.cfg.MaxTokens),
	)
	if err != nil {
		return "", fmt.Errorf("calling inference endpoint: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyReply
	}
	return resp.Choices[0].Content, nil
}

func toMessageContent(m Message) llms.MessageContent {
	role := llms.ChatMessageTypeHuman
	switch m.Role {
	case RoleSystem:
		role = llms.ChatMessageTypeSystem
	case RoleAssistant:
		role = llms.ChatMessageTypeAI
	}

	if m.Parts == nil {
		return llms.TextParts(role, m.Content)
	}
	parts := make([]llms.ContentPart, 0, len(m.Parts))
	for _, p := range m.Parts {
		if p.ImageURL != nil {
			parts = append(parts, llms.ImageURLContent{URL: p.ImageURL.URL})
			continue
		}
		parts = append(parts, llms.TextContent{Text: p.Text})
	}
	return llms.MessageContent{Role: role, Parts: parts}
}
