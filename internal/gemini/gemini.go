package gemini

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/saikatdas-ai/saikat-ai-assistant/internal/apperr"
)

// DefaultModel is used when no model name is configured.
const DefaultModel = "gemini-1.5-flash"

// maxPromptChars bounds the prompt sent to the API.
const maxPromptChars = 6000

type Client struct {
	client *genai.Client
	model  *genai.GenerativeModel
}

func NewClient(ctx context.Context, apiKey, model string, opts ...option.ClientOption) (*Client, error) {
	if model == "" {
		model = DefaultModel
	}

	opts = append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)
	client, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return nil, apperr.Wrap(apperr.External, "create gemini client", err)
	}

	m := client.GenerativeModel(model)
	m.SetTemperature(0.4)

	return &Client{client: client, model: m}, nil
}

func (c *Client) Close() {
	if c.client != nil {
		c.client.Close()
	}
}

// Summarize sends prompt and returns the text of the first candidate.
func (c *Client) Summarize(ctx context.Context, prompt string) (string, error) {
	resp, err := c.model.GenerateContent(ctx, genai.Text(sanitize(prompt)))
	if err != nil {
		return "", apperr.Wrap(apperr.External, "gemini generate", err)
	}
	return responseText(resp)
}

// sanitize collapses whitespace within lines and caps the prompt length,
// cutting at a sentence end when one is close enough.
func sanitize(prompt string) string {
	prompt = strings.ReplaceAll(prompt, "\r", "")
	lines := strings.Split(strings.TrimSpace(prompt), "\n")
	for i, l := range lines {
		lines[i] = strings.Join(strings.Fields(l), " ")
	}
	prompt = strings.Join(lines, "\n")

	if utf8.RuneCountInString(prompt) <= maxPromptChars {
		return prompt
	}
	trimmed := string([]rune(prompt)[:maxPromptChars])
	if idx := strings.LastIndex(trimmed, ". "); idx > maxPromptChars/5 {
		trimmed = trimmed[:idx+1]
	}
	return trimmed + "\n[TRUNCATED]"
}

func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", apperr.Errorf(apperr.External, "gemini generate", "no candidates in response")
	}
	cand := resp.Candidates[0]
	if cand.Content == nil {
		return "", apperr.Errorf(apperr.External, "gemini generate", "empty candidate")
	}

	var b strings.Builder
	for _, part := range cand.Content.Parts {
		if t, ok := part.(genai.Text); ok {
			b.WriteString(string(t))
		}
	}
	text := strings.TrimSpace(b.String())
	if text == "" {
		return "", apperr.Errorf(apperr.External, "gemini generate", "no text in response: %s", fmt.Sprint(cand.FinishReason))
	}
	return text, nil
}
