package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/saikatdas-ai/saikat-ai-assistant/internal/apperr"
	"github.com/saikatdas-ai/saikat-ai-assistant/internal/logger"
	"github.com/saikatdas-ai/saikat-ai-assistant/internal/metrics"
	"github.com/saikatdas-ai/saikat-ai-assistant/internal/report"
	"github.com/saikatdas-ai/saikat-ai-assistant/internal/retry"
)

const DefaultBaseURL = "https://api.telegram.org"

// PollTimeout is the long-polling timeout passed to getUpdates.
const PollTimeout = 20 * time.Second

type Options struct {
	BaseURL string
	// Timeout bounds one sendMessage request.
	Timeout time.Duration
	// MessagesPerSecond paces outgoing messages; 0 means 1.
	MessagesPerSecond float64
	Retry             retry.RetryConfig
	ChunkSize         int

	Metrics *metrics.Metrics
	Logger  *slog.Logger
}

// Client talks to the Bot API over plain HTTP.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	limiter *rate.Limiter
	opts    Options
	logger  *slog.Logger

	// offset is the next update id to fetch; only Poll touches it.
	offset int64
}

func NewClient(token string, opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.MessagesPerSecond <= 0 {
		opts.MessagesPerSecond = 1
	}
	if opts.Retry.MaxAttempts == 0 {
		opts.Retry = retry.RetryConfig{MaxAttempts: 3, Delay: 2 * time.Second, Backoff: true}
	}
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = report.DefaultChunkSize
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.New()
	}

	return &Client{
		baseURL: opts.BaseURL,
		token:   token,
		http:    &http.Client{},
		limiter: rate.NewLimiter(rate.Limit(opts.MessagesPerSecond), 1),
		opts:    opts,
		logger:  logger.Component(opts.Logger, "telegram"),
	}
}

type apiResponse struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result"`
	Description string          `json:"description"`
	ErrorCode   int             `json:"error_code"`
}

func (c *Client) endpoint(method string) string {
	return fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.token, method)
}

// call posts payload to method and decodes the result into out.
// Client errors other than 429 are permanent.
func (c *Client) call(ctx context.Context, method string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return retry.Permanent(fmt.Errorf("encode %s: %w", method, err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(method), bytes.NewReader(body))
	if err != nil {
		return retry.Permanent(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return apperr.Wrap(apperr.Transport, method, err)
	}
	defer func(Body io.ReadCloser) {
		if err := Body.Close(); err != nil {
			c.logger.Warn("failed to close response body", "error", err)
		}
	}(resp.Body)

	var ar apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&ar); err != nil {
		return apperr.Errorf(apperr.Transport, method, "status %d: undecodable response: %v", resp.StatusCode, err)
	}

	if resp.StatusCode != http.StatusOK || !ar.OK {
		err := apperr.Errorf(apperr.Transport, method, "telegram API error %d: %s", resp.StatusCode, ar.Description)
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return retry.Permanent(err)
		}
		return err
	}

	if out != nil {
		if err := json.Unmarshal(ar.Result, out); err != nil {
			return apperr.Wrap(apperr.Transport, method, err)
		}
	}
	return nil
}

// SendMessage delivers text to chatID, split into chunks that fit one
// message. Each chunk is paced and retried on its own.
func (c *Client) SendMessage(ctx context.Context, chatID int64, text string) error {
	chunks := report.Chunk(text, c.opts.ChunkSize)
	for i, chunk := range chunks {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		err := retry.WithRetry(ctx, c.opts.Retry, func() error {
			sctx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
			defer cancel()
			return c.call(sctx, "sendMessage", map[string]any{
				"chat_id":                  chatID,
				"text":                     chunk,
				"disable_web_page_preview": true,
			}, nil)
		})
		if err != nil {
			c.logger.Error("send failed", "chat_id", chatID, "chunk", i+1, "of", len(chunks), "error", err)
			return err
		}
		c.opts.Metrics.IncrementMessagesSent()
	}

	c.logger.Debug("message sent", "chat_id", chatID, "chunks", len(chunks))
	return nil
}

type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username,omitempty"`
}

type Chat struct {
	ID int64 `json:"id"`
}

type Message struct {
	MessageID int64  `json:"message_id"`
	From      *User  `json:"from,omitempty"`
	Chat      Chat   `json:"chat"`
	Text      string `json:"text,omitempty"`
}

type Update struct {
	UpdateID int64    `json:"update_id"`
	Message  *Message `json:"message,omitempty"`
}

// GetUpdates long-polls for updates with id >= offset.
func (c *Client) GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]Update, error) {
	pctx, cancel := context.WithTimeout(ctx, timeout+10*time.Second)
	defer cancel()

	var updates []Update
	err := c.call(pctx, "getUpdates", map[string]any{
		"offset":          offset,
		"timeout":         int(timeout / time.Second),
		"allowed_updates": []string{"message"},
	}, &updates)
	return updates, err
}

// Poll feeds every update to handle until ctx is done or a poll fails.
// The offset survives across calls, so a restarted Poll does not replay
// updates that were already handled.
func (c *Client) Poll(ctx context.Context, handle func(context.Context, Update)) error {
	for {
		updates, err := c.GetUpdates(ctx, c.offset, PollTimeout)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			return err
		}
		for _, u := range updates {
			if u.UpdateID >= c.offset {
				c.offset = u.UpdateID + 1
			}
			handle(ctx, u)
		}
	}
}
