package telegram

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saikatdas-ai/saikat-ai-assistant/internal/logger"
	"github.com/saikatdas-ai/saikat-ai-assistant/internal/metrics"
	"github.com/saikatdas-ai/saikat-ai-assistant/internal/retry"
)

type fakeAPI struct {
	mu       sync.Mutex
	sent     []map[string]any
	failures int
	status   int
	updates  [][]Update
	offsets  []float64
	onPoll   func(call int)
}

func (f *fakeAPI) handler(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Header().Set("Content-Type", "application/json")

		f.mu.Lock()
		defer f.mu.Unlock()

		switch r.URL.Path {
		case "/botTOKEN/sendMessage":
			if f.failures > 0 {
				f.failures--
				w.WriteHeader(f.status)
				_, _ = w.Write([]byte(`{"ok":false,"error_code":500,"description":"try later"}`))
				return
			}
			f.sent = append(f.sent, body)
			_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":1}}`))

		case "/botTOKEN/getUpdates":
			f.offsets = append(f.offsets, body["offset"].(float64))
			call := len(f.offsets)
			if f.onPoll != nil {
				f.onPoll(call)
			}
			var result []Update
			if call <= len(f.updates) {
				result = f.updates[call-1]
			}
			data, _ := json.Marshal(map[string]any{"ok": true, "result": result})
			_, _ = w.Write(data)

		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"ok":false,"error_code":404,"description":"Not Found"}`))
		}
	})
}

func newTestClient(t *testing.T, api *fakeAPI, m *metrics.Metrics) *Client {
	t.Helper()
	srv := httptest.NewServer(api.handler(t))
	t.Cleanup(srv.Close)
	return NewClient("TOKEN", Options{
		BaseURL:           srv.URL,
		MessagesPerSecond: 1000,
		Retry:             retry.RetryConfig{MaxAttempts: 3, Delay: time.Millisecond},
		ChunkSize:         20,
		Metrics:           m,
		Logger:            logger.Discard(),
	})
}

func TestSendMessageChunks(t *testing.T) {
	api := &fakeAPI{}
	m := metrics.New()
	c := newTestClient(t, api, m)

	err := c.SendMessage(context.Background(), 42, "line one\nline two\nline three\nline four")
	require.NoError(t, err)

	require.Len(t, api.sent, 2)
	assert.Equal(t, "line one\nline two", api.sent[0]["text"])
	assert.Equal(t, "line three\nline four", api.sent[1]["text"])
	assert.Equal(t, float64(42), api.sent[0]["chat_id"])
	assert.Equal(t, true, api.sent[0]["disable_web_page_preview"])
	assert.Equal(t, int64(2), m.GetStats()["messages_sent"])
}

func TestSendMessageRetriesServerErrors(t *testing.T) {
	api := &fakeAPI{failures: 2, status: http.StatusBadGateway}
	c := newTestClient(t, api, nil)

	require.NoError(t, c.SendMessage(context.Background(), 42, "hello"))
	assert.Len(t, api.sent, 1)
}

func TestSendMessageDoesNotRetryClientErrors(t *testing.T) {
	api := &fakeAPI{failures: 2, status: http.StatusBadRequest}
	c := newTestClient(t, api, nil)

	err := c.SendMessage(context.Background(), 42, "hello")
	require.Error(t, err)
	assert.True(t, retry.IsPermanent(err))
	assert.Equal(t, 1, api.failures)
}

func TestPollAdvancesOffset(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	api := &fakeAPI{
		updates: [][]Update{
			{
				{UpdateID: 7, Message: &Message{Text: "/scout", From: &User{ID: 1}, Chat: Chat{ID: 1}}},
				{UpdateID: 8, Message: &Message{Text: "/leads", From: &User{ID: 1}, Chat: Chat{ID: 1}}},
			},
			{},
		},
		onPoll: func(call int) {
			if call == 3 {
				cancel()
			}
		},
	}
	c := newTestClient(t, api, nil)

	var got []string
	err := c.Poll(ctx, func(_ context.Context, u Update) {
		got = append(got, u.Message.Text)
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []string{"/scout", "/leads"}, got)

	api.mu.Lock()
	defer api.mu.Unlock()
	assert.Equal(t, []float64{0, 9, 9}, api.offsets)
}

func TestPollReturnsAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"ok":false,"error_code":401,"description":"Unauthorized"}`))
	}))
	defer srv.Close()

	c := NewClient("bad", Options{BaseURL: srv.URL, Logger: logger.Discard()})
	err := c.Poll(context.Background(), func(context.Context, Update) {})
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "Unauthorized"))
}
