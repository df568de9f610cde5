package report

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saikatdas-ai/saikat-ai-assistant/internal/cache"
	"github.com/saikatdas-ai/saikat-ai-assistant/internal/discovery"
	"github.com/saikatdas-ai/saikat-ai-assistant/internal/logger"
	"github.com/saikatdas-ai/saikat-ai-assistant/internal/metrics"
	"github.com/saikatdas-ai/saikat-ai-assistant/internal/ratelimit"
)

type fakeSummarizer struct {
	mu    sync.Mutex
	calls int
	err   error
	block bool
}

func (s *fakeSummarizer) Summarize(ctx context.Context, prompt string) (string, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()

	if s.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if s.err != nil {
		return "", s.err
	}
	if strings.Contains(prompt, "business strategy") {
		return "Focus on the BCCI sponsor first.", nil
	}
	return " Offer match-day coverage. ", nil
}

func (s *fakeSummarizer) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func sampleLeads() []discovery.Lead {
	return []discovery.Lead{
		{Title: "BCCI names new sponsor for IPL 2026 season", Link: "https://news.example.com/1", Score: 92},
		{Title: "Franchise auction dates fixed", Link: "https://news.example.com/2", Score: 75},
		{Title: "Inaugural city marathon gets title sponsorship", Link: "https://news.example.com/3", Score: 60},
		{Title: "Agency reshuffle", Link: "https://news.example.com/4", Score: 50},
	}
}

func TestRenderEmpty(t *testing.T) {
	f := NewFormatter(Options{Logger: logger.Discard()})
	assert.Equal(t, "DAILY REPORT\n\nNo qualifying leads found.", f.Render(context.Background(), Report{Kind: KindDaily}))
	assert.Equal(t, "MANUAL REPORT\n\nNo qualifying leads found.", f.Render(context.Background(), Report{}))
}

func TestRenderScoreTiers(t *testing.T) {
	f := NewFormatter(Options{Logger: logger.Discard()})

	got := f.Render(context.Background(), Report{Kind: KindCatchUp, Leads: sampleLeads()})
	want := strings.Join([]string{
		"CATCHUP REPORT",
		"",
		"Tier A (1)",
		"1. [92] BCCI names new sponsor for IPL 2026 season",
		"   https://news.example.com/1",
		"",
		"Tier B (1)",
		"2. [75] Franchise auction dates fixed",
		"   https://news.example.com/2",
		"",
		"Tier C (1)",
		"3. [60] Inaugural city marathon gets title sponsorship",
		"   https://news.example.com/3",
		"",
		"Watchlist (1)",
		"4. [50] Agency reshuffle",
		"   https://news.example.com/4",
	}, "\n")
	assert.Equal(t, want, got)
}

func TestRenderContentTiers(t *testing.T) {
	f := NewFormatter(Options{Scheme: SchemeContent, Logger: logger.Discard()})

	got := f.Render(context.Background(), Report{Kind: KindArchive, Leads: sampleLeads()})
	assert.True(t, strings.HasPrefix(got, "ARCHIVE REPORT\n\nTier A (1)\n3. [60] Inaugural"))
	assert.Contains(t, got, "Tier B (1)\n2. [75] Franchise auction")
	assert.Contains(t, got, "Baseline (2)\n1. [92] BCCI")
	assert.NotContains(t, got, "Tier C")
}

func TestTiers(t *testing.T) {
	assert.Equal(t, TierA, ScoreTier(85))
	assert.Equal(t, TierB, ScoreTier(84))
	assert.Equal(t, TierB, ScoreTier(70))
	assert.Equal(t, TierC, ScoreTier(55))
	assert.Equal(t, TierWatchlist, ScoreTier(54))

	assert.Equal(t, TierA, ContentTier("League DEBUT season"))
	assert.Equal(t, TierB, ContentTier("Expansion of the league"))
	assert.Equal(t, TierC, ContentTier("Valuation crosses 1 billion"))
	assert.Equal(t, TierBaseline, ContentTier("Quiet week"))

	_, err := ParseTierScheme("alphabetical")
	assert.Error(t, err)
}

func TestRenderWithEnrichment(t *testing.T) {
	s := &fakeSummarizer{}
	f := NewFormatter(Options{Summarizer: s, Cache: cache.New(), Logger: logger.Discard()})
	leads := sampleLeads()[:2]

	got := f.Render(context.Background(), Report{Kind: KindDaily, Leads: leads})
	assert.Contains(t, got, "DAILY REPORT\n\nStrategy\nFocus on the BCCI sponsor first.\n\nTier A (1)")
	assert.Contains(t, got, "   https://news.example.com/1\n   Pitch: Offer match-day coverage.")
	assert.Equal(t, 3, s.count())

	// A second render of the same leads is served from cache.
	again := f.Render(context.Background(), Report{Kind: KindDaily, Leads: leads})
	assert.Equal(t, got, again)
	assert.Equal(t, 3, s.count())
}

func TestRenderFallsBackOnError(t *testing.T) {
	s := &fakeSummarizer{err: errors.New("quota")}
	m := metrics.New()
	f := NewFormatter(Options{Summarizer: s, Metrics: m, Logger: logger.Discard()})

	got := f.Render(context.Background(), Report{Kind: KindManual, Leads: sampleLeads()[:1]})
	assert.Contains(t, got, "Strategy\n"+FallbackStrategy)
	assert.Contains(t, got, `Pitch: introduce your portfolio to the team behind "BCCI names new sponsor for IPL 2026 season"`)
	assert.Equal(t, int64(2), m.GetStats()["summary_fallbacks"])
}

func TestRenderFallsBackOnTimeout(t *testing.T) {
	s := &fakeSummarizer{block: true}
	f := NewFormatter(Options{Summarizer: s, Timeout: 20 * time.Millisecond, Logger: logger.Discard()})

	start := time.Now()
	got := f.Render(context.Background(), Report{Kind: KindManual, Leads: sampleLeads()[:2]})
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Contains(t, got, FallbackStrategy)
	assert.Contains(t, got, "2. [75] Franchise auction dates fixed")
}

func TestRenderRespectsBudget(t *testing.T) {
	s := &fakeSummarizer{}
	f := NewFormatter(Options{
		Summarizer: s,
		Limiter:    ratelimit.New("test", 1, time.Hour, logger.Discard()),
		Logger:     logger.Discard(),
	})

	got := f.Render(context.Background(), Report{Kind: KindManual, Leads: sampleLeads()[:2]})
	require.Equal(t, 1, s.count())
	assert.Contains(t, got, "Focus on the BCCI sponsor first.")
	assert.Equal(t, 2, strings.Count(got, "Pitch: introduce your portfolio"))
}

func TestChunk(t *testing.T) {
	assert.Nil(t, Chunk("", 10))
	assert.Equal(t, []string{"short"}, Chunk("short", 10))

	text := "line one\nline two\nline three\nline four"
	chunks := Chunk(text, 20)
	for _, c := range chunks {
		assert.LessOrEqual(t, len([]rune(c)), 20)
	}
	assert.Equal(t, []string{"line one\nline two", "line three\nline four"}, chunks)
	assert.Equal(t, text, strings.Join(chunks, "\n"))

	assert.Equal(t, []string{"aaaa", "aaaa", "aa"}, Chunk("aaaaaaaaaa", 4))
	assert.Equal(t, []string{"éé", "éé", "é"}, Chunk("ééééé", 2))
}

func TestChunkLongReport(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 400; i++ {
		b.WriteString("1. [90] A fairly long headline about a sponsorship announcement\n")
	}
	chunks := Chunk(b.String(), DefaultChunkSize)
	require.Greater(t, len(chunks), 1)
	for _, c := range chunks {
		assert.LessOrEqual(t, len([]rune(c)), DefaultChunkSize)
		assert.True(t, strings.HasPrefix(c, "1. [90]"))
	}
}
