// Package claude implements the report summarizer on the Anthropic
// Messages API.
package claude

import (
	"context"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/saikatdas-ai/saikat-ai-assistant/internal/apperr"
)

// DefaultModel is a small model; report text does not need more.
const DefaultModel = "claude-3-5-haiku-20241022"

const maxTokens = 1024

type Client struct {
	client *anthropic.Client
	model  string
}

// NewClient builds a client for apiKey. Extra options (base URL, retries)
// are passed to the SDK.
func NewClient(apiKey, model string, opts ...option.RequestOption) *Client {
	if model == "" {
		model = DefaultModel
	}
	opts = append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	client := anthropic.NewClient(opts...)
	return &Client{client: &client, model: model}
}

// Summarize sends prompt as a single user message and joins the text
// blocks of the reply.
func (c *Client) Summarize(ctx context.Context, prompt string) (string, error) {
	resp, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", apperr.Wrap(apperr.External, "claude messages", err)
	}

	var b strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	text := strings.TrimSpace(b.String())
	if text == "" {
		return "", apperr.Errorf(apperr.External, "claude messages", "no text in response (stop reason %s)", resp.StopReason)
	}
	return text, nil
}
