// Package rss searches the Google News RSS endpoint and turns feed entries
// into FeedItems.
package rss

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"

	"github.com/saikatdas-ai/saikat-ai-assistant/internal/apperr"
	"github.com/saikatdas-ai/saikat-ai-assistant/internal/logger"
)

// DefaultBaseURL is the Google News search feed.
const DefaultBaseURL = "https://news.google.com/rss/search"

const userAgent = "saikat-scoutbot/1.0"

// FeedItem is one entry of a search feed.
type FeedItem struct {
	Title       string
	Link        string
	Summary     string
	PublishedAt *time.Time
	Query       string
	Category    string
}

// Source runs searches against one feed endpoint.
type Source struct {
	baseURL string
	parser  *gofeed.Parser
	logger  *slog.Logger
}

// NewSource returns a Source for baseURL ("" means DefaultBaseURL). Each
// request is bounded by timeout.
func NewSource(baseURL string, timeout time.Duration, l *slog.Logger) *Source {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 20 * time.Second
	}

	p := gofeed.NewParser()
	p.Client = &http.Client{Timeout: timeout}
	p.UserAgent = userAgent

	return &Source{baseURL: baseURL, parser: p, logger: logger.Component(l, "rss")}
}

// SearchURL builds the feed URL for query. lookbackDays > 0 restricts the
// search to the last N days.
func (s *Source) SearchURL(query string, lookbackDays int) string {
	q := query
	if lookbackDays > 0 {
		q = fmt.Sprintf("%s when:%dd", query, lookbackDays)
	}
	v := url.Values{}
	v.Set("q", q)
	v.Set("hl", "en-IN")
	v.Set("gl", "IN")
	v.Set("ceid", "IN:en")
	return s.baseURL + "?" + v.Encode()
}

// Search fetches and parses the feed for query. Entries keep feed order.
func (s *Source) Search(ctx context.Context, query string, lookbackDays int) ([]FeedItem, error) {
	u := s.SearchURL(query, lookbackDays)

	feed, err := s.parser.ParseURLWithContext(u, ctx)
	if err != nil {
		return nil, apperr.Wrap(apperr.External, "fetch feed", err)
	}

	items := make([]FeedItem, 0, len(feed.Items))
	for _, it := range feed.Items {
		if it == nil {
			continue
		}
		items = append(items, FeedItem{
			Title:       strings.TrimSpace(it.Title),
			Link:        strings.TrimSpace(it.Link),
			Summary:     PlainText(it.Description),
			PublishedAt: it.PublishedParsed,
			Query:       query,
		})
	}

	s.logger.Debug("feed loaded", "query", query, "items", len(items))
	return items, nil
}

// PlainText strips markup from an HTML fragment and collapses whitespace.
func PlainText(fragment string) string {
	if !strings.ContainsAny(fragment, "<&") {
		return strings.Join(strings.Fields(fragment), " ")
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return strings.Join(strings.Fields(fragment), " ")
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}
