// Package report renders ranked leads into the text sent to the operator.
package report

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/saikatdas-ai/saikat-ai-assistant/internal/cache"
	"github.com/saikatdas-ai/saikat-ai-assistant/internal/discovery"
	"github.com/saikatdas-ai/saikat-ai-assistant/internal/logger"
	"github.com/saikatdas-ai/saikat-ai-assistant/internal/metrics"
	"github.com/saikatdas-ai/saikat-ai-assistant/internal/ratelimit"
)

// Kind is the reason a report was produced; it names the header.
type Kind string

const (
	KindDaily   Kind = "DAILY"
	KindCatchUp Kind = "CATCHUP"
	KindManual  Kind = "MANUAL"
	KindArchive Kind = "ARCHIVE"
)

// NoLeads is the body of a report without leads.
const NoLeads = "No qualifying leads found."

// Fallback texts used when enrichment is unavailable.
const (
	FallbackStrategy = "Strategy note unavailable. Work the list top-down and contact Tier A leads first."
	fallbackPitch    = "Pitch: introduce your portfolio to the team behind %q and offer coverage."
)

// Summarizer turns a prompt into text.
type Summarizer interface {
	Summarize(ctx context.Context, prompt string) (string, error)
}

// Report is what Render turns into text.
type Report struct {
	Kind  Kind
	Leads []discovery.Lead
}

// Options configure a Formatter. A nil Summarizer disables enrichment.
type Options struct {
	Scheme       TierScheme
	Summarizer   Summarizer
	Timeout      time.Duration
	Photographer string

	// Cache memoizes enrichment per lead; nil means no memoization.
	Cache    *cache.Cache
	CacheTTL time.Duration
	// Limiter bounds summarizer calls; nil means unbounded.
	Limiter *ratelimit.Limiter

	Metrics *metrics.Metrics
	Logger  *slog.Logger
}

// Formatter renders reports. Safe for concurrent use if its Summarizer is.
type Formatter struct {
	opts   Options
	logger *slog.Logger
}

func NewFormatter(opts Options) *Formatter {
	if opts.Scheme == "" {
		opts.Scheme = SchemeScore
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 45 * time.Second
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 24 * time.Hour
	}
	if opts.Photographer == "" {
		opts.Photographer = "the photographer"
	}
	return &Formatter{opts: opts, logger: logger.Component(opts.Logger, "report")}
}

// Tier returns the tier of lead under the configured scheme.
func (f *Formatter) Tier(lead discovery.Lead) string {
	if f.opts.Scheme == SchemeContent {
		return ContentTier(lead.Title)
	}
	return ScoreTier(lead.Score)
}

// Render builds the report text. Enrichment failures never abort it; they
// fall back to fixed text.
func (f *Formatter) Render(ctx context.Context, r Report) string {
	var b strings.Builder
	b.WriteString(Header(r.Kind))
	b.WriteString("\n\n")

	if len(r.Leads) == 0 {
		b.WriteString(NoLeads)
		return b.String()
	}

	enrich := f.opts.Summarizer != nil
	if enrich {
		b.WriteString("Strategy\n")
		b.WriteString(f.strategy(ctx, r.Leads))
		b.WriteString("\n\n")
	}

	groups := make(map[string][]int)
	for i, lead := range r.Leads {
		tier := f.Tier(lead)
		groups[tier] = append(groups[tier], i)
	}

	first := true
	for _, tier := range f.opts.Scheme.Order() {
		idx := groups[tier]
		if len(idx) == 0 {
			continue
		}
		if !first {
			b.WriteString("\n")
		}
		first = false

		fmt.Fprintf(&b, "%s (%d)\n", tier, len(idx))
		for _, i := range idx {
			lead := r.Leads[i]
			fmt.Fprintf(&b, "%d. [%d] %s\n", i+1, lead.Score, lead.Title)
			fmt.Fprintf(&b, "   %s\n", lead.Link)
			if enrich {
				fmt.Fprintf(&b, "   %s\n", f.pitch(ctx, lead))
			}
		}
	}

	return strings.TrimRight(b.String(), "\n")
}

// Header is the first line of a report of kind k.
func Header(k Kind) string {
	if k == "" {
		k = KindManual
	}
	return string(k) + " REPORT"
}

func (f *Formatter) strategy(ctx context.Context, leads []discovery.Lead) string {
	type promptLead struct {
		Title string `json:"title"`
		Link  string `json:"link"`
		Score int    `json:"score"`
	}
	list := make([]promptLead, 0, len(leads))
	parts := make([]string, 0, len(leads))
	for _, l := range leads {
		list = append(list, promptLead{Title: l.Title, Link: l.Link, Score: l.Score})
		parts = append(parts, l.Link)
	}
	data, _ := json.MarshalIndent(list, "", "  ")

	prompt := fmt.Sprintf(
		"Write a concise business strategy for these leads for photographer %s.\nLeads:\n%s\nPlain text only.",
		f.opts.Photographer, data)

	return f.enrich(ctx, "strategy:"+cache.GenerateKey(parts...), prompt, FallbackStrategy)
}

func (f *Formatter) pitch(ctx context.Context, lead discovery.Lead) string {
	prompt := fmt.Sprintf(
		"In one or two sentences, suggest how photographer %s could pitch services around this news.\nHeadline: %s\nLink: %s\nPlain text only.",
		f.opts.Photographer, lead.Title, lead.Link)

	text := f.enrich(ctx, "pitch:"+lead.Link, prompt, "")
	if text == "" {
		return fmt.Sprintf(fallbackPitch, lead.Title)
	}
	return "Pitch: " + text
}

// enrich asks the summarizer for prompt, memoized under key. Any error,
// timeout or exhausted budget yields fallback.
func (f *Formatter) enrich(ctx context.Context, key, prompt, fallback string) string {
	if f.opts.Cache != nil {
		if v, ok := f.opts.Cache.Get(key); ok {
			if f.opts.Limiter != nil {
				f.opts.Limiter.RecordCacheHit()
			}
			return v
		}
	}

	if f.opts.Limiter != nil {
		if err := f.opts.Limiter.Use(); err != nil {
			f.logger.Warn("summarizer budget exhausted", "error", err)
			f.fallback()
			return fallback
		}
	}

	cctx, cancel := context.WithTimeout(ctx, f.opts.Timeout)
	defer cancel()

	text, err := f.opts.Summarizer.Summarize(cctx, prompt)
	text = strings.TrimSpace(text)
	if err != nil || text == "" {
		f.logger.Warn("summarizer failed, using fallback", "error", err)
		f.fallback()
		return fallback
	}

	if f.opts.Cache != nil {
		f.opts.Cache.Set(key, text, f.opts.CacheTTL)
	}
	return text
}

func (f *Formatter) fallback() {
	if f.opts.Metrics != nil {
		f.opts.Metrics.IncrementSummaryFallbacks()
	}
}
