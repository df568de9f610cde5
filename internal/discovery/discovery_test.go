package discovery

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saikatdas-ai/saikat-ai-assistant/internal/logger"
	"github.com/saikatdas-ai/saikat-ai-assistant/internal/rss"
	"github.com/saikatdas-ai/saikat-ai-assistant/internal/scoring"
	"github.com/saikatdas-ai/saikat-ai-assistant/internal/storage"
)

var (
	ist     = time.FixedZone("IST", 5*3600+1800)
	testNow = time.Date(2026, 10, 14, 4, 30, 0, 0, time.UTC)
)

type fakeSource struct {
	mu        sync.Mutex
	feeds     map[string][]rss.FeedItem
	errs      map[string]error
	lookbacks []int
}

func (f *fakeSource) Search(ctx context.Context, query string, lookbackDays int) ([]rss.FeedItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lookbacks = append(f.lookbacks, lookbackDays)
	if err := f.errs[query]; err != nil {
		return nil, err
	}
	out := make([]rss.FeedItem, len(f.feeds[query]))
	copy(out, f.feeds[query])
	return out, nil
}

func item(title, link string) rss.FeedItem {
	return rss.FeedItem{Title: title, Link: link}
}

type fixture struct {
	dir        string
	pipeline   *Pipeline
	seen       *storage.SeenLedger
	signatures *storage.SignatureLedger
	followups  *storage.FollowupLedger
}

// newFixture builds a pipeline over dir from scratch, the way a restarted
// process would.
func newFixture(t *testing.T, dir string, src Searcher, queries []Query, policy SeenPolicy) *fixture {
	t.Helper()
	return newFixtureAt(t, dir, src, queries, policy, 60)
}

// newFixtureAt is newFixture with an explicit admission threshold.
func newFixtureAt(t *testing.T, dir string, src Searcher, queries []Query, policy SeenPolicy, threshold int) *fixture {
	t.Helper()

	store, err := storage.NewStore(dir, logger.Discard())
	require.NoError(t, err)

	engine, err := scoring.NewEngine(scoring.DefaultRules(), scoring.Options{Policy: scoring.Additive, Base: 50, Threshold: threshold})
	require.NoError(t, err)

	f := &fixture{
		dir:        dir,
		seen:       storage.NewSeenLedger(store, 30*24*time.Hour),
		signatures: storage.NewSignatureLedger(store),
		followups:  storage.NewFollowupLedger(store),
	}
	f.pipeline, err = New(Config{
		Source:     src,
		Engine:     engine,
		Seen:       f.seen,
		Signatures: f.signatures,
		Followups:  f.followups,
		Queries:    queries,
		SeenPolicy: policy,
		Location:   ist,
		Logger:     logger.Discard(),
		Now:        func() time.Time { return testNow },
	})
	require.NoError(t, err)
	return f
}

// onDisk reloads the ledger files under dir.
func onDisk(t *testing.T, dir string) (seen int, signatures int, followups []storage.FollowupEntry) {
	t.Helper()
	store, err := storage.NewStore(dir, logger.Discard())
	require.NoError(t, err)

	s := storage.NewSeenLedger(store, 0)
	s.Load(testNow)
	return s.Len(), storage.NewSignatureLedger(store).Len(), storage.NewFollowupLedger(store).List()
}

func xyzSource() (*fakeSource, []Query) {
	q := Query{Text: `"XYZ" league`, Category: scoring.CategorySports}
	return &fakeSource{feeds: map[string][]rss.FeedItem{
		q.Text: {
			item("XYZ T20 League Auction Announced", "https://news.example.com/xyz-1"),
			item("XYZ T20 League: Teams Set for Auction", "https://news.example.com/xyz-2"),
		},
	}}, []Query{q}
}

func TestRephrasedHeadlineCollapsesToOneLead(t *testing.T) {
	src, queries := xyzSource()
	dir := t.TempDir()
	f := newFixture(t, dir, src, queries, SeenScanned)

	res, err := f.pipeline.Run(context.Background(), DailyMode())
	require.NoError(t, err)

	require.Len(t, res.Leads, 1)
	assert.Equal(t, "XYZ T20 League Auction Announced", res.Leads[0].Title)
	assert.Equal(t, 100, res.Leads[0].Score)
	assert.Equal(t, scoring.CategorySports, res.Leads[0].Category)
	assert.Equal(t, 2, res.Scanned)
	assert.Equal(t, 1, res.Duplicates)
	assert.NotEmpty(t, res.RunID)

	seen, sigs, followups := onDisk(t, dir)
	assert.Equal(t, 2, seen)
	assert.Equal(t, 1, sigs)
	require.Len(t, followups, 1)
	assert.Equal(t, "https://news.example.com/xyz-1", followups[0].Link)
	assert.Equal(t, "2026-10-14", followups[0].FirstSeen)
	assert.Equal(t, storage.StatusNew, followups[0].Status)
}

func TestAdmittedSeenPolicy(t *testing.T) {
	src, queries := xyzSource()
	dir := t.TempDir()

	res, err := newFixture(t, dir, src, queries, SeenAdmitted).pipeline.Run(context.Background(), DailyMode())
	require.NoError(t, err)
	require.Len(t, res.Leads, 1)

	seen, sigs, _ := onDisk(t, dir)
	assert.Equal(t, 1, seen)
	assert.Equal(t, 1, sigs)

	// After a restart the rejected link is scanned again but its signature
	// is already known.
	res, err = newFixture(t, dir, src, queries, SeenAdmitted).pipeline.Run(context.Background(), DailyMode())
	require.NoError(t, err)
	assert.Empty(t, res.Leads)
	assert.Equal(t, 1, res.Scanned)
	assert.Equal(t, 2, res.Duplicates)
}

func TestSecondRunSkipsSeenLinks(t *testing.T) {
	src, queries := xyzSource()
	dir := t.TempDir()

	_, err := newFixture(t, dir, src, queries, SeenScanned).pipeline.Run(context.Background(), DailyMode())
	require.NoError(t, err)

	res, err := newFixture(t, dir, src, queries, SeenScanned).pipeline.Run(context.Background(), DailyMode())
	require.NoError(t, err)
	assert.Empty(t, res.Leads)
	assert.Zero(t, res.Scanned)
	assert.Equal(t, 2, res.Duplicates)
}

func TestQueryErrorsDoNotStopTheRun(t *testing.T) {
	queries := []Query{
		{Text: "broken", Category: scoring.CategorySports},
		{Text: "works", Category: scoring.CategorySports},
	}
	src := &fakeSource{
		feeds: map[string][]rss.FeedItem{
			"works": {item("BCCI partner announced", "https://news.example.com/bcci")},
		},
		errs: map[string]error{"broken": errors.New("connection reset")},
	}

	res, err := newFixture(t, t.TempDir(), src, queries, SeenScanned).pipeline.Run(context.Background(), DailyMode())
	require.NoError(t, err)

	require.Len(t, res.QueryErrors, 1)
	assert.Equal(t, "broken", res.QueryErrors[0].Query)
	assert.Contains(t, res.QueryErrors[0].Error(), "connection reset")
	require.Len(t, res.Leads, 1)
	assert.Equal(t, 90, res.Leads[0].Score)
}

func TestRankingIsStableAndTruncated(t *testing.T) {
	queries := []Query{
		{Text: "q1", Category: scoring.CategoryAds},
		{Text: "q2", Category: scoring.CategorySports},
		{Text: "q3", Category: scoring.CategoryAds},
	}
	src := &fakeSource{feeds: map[string][]rss.FeedItem{
		"q1": {item("Nike wins creative mandate for Mumbai Indians", "https://news.example.com/nike")},
		"q2": {item("BCCI partner announced", "https://news.example.com/bcci")},
		"q3": {item("Tata Group partner announced", "https://news.example.com/tata")},
	}}

	res, err := newFixture(t, t.TempDir(), src, queries, SeenScanned).pipeline.Run(context.Background(), DailyMode())
	require.NoError(t, err)
	require.Len(t, res.Leads, 3)
	assert.Equal(t, "https://news.example.com/bcci", res.Leads[0].Link)
	assert.Equal(t, "https://news.example.com/nike", res.Leads[1].Link)
	assert.Equal(t, "https://news.example.com/tata", res.Leads[2].Link)
	assert.Equal(t, []string{"region", "win"}, res.Leads[1].Matched)

	mode := DailyMode()
	mode.MaxLeads = 2
	res, err = newFixture(t, t.TempDir(), src, queries, SeenScanned).pipeline.Run(context.Background(), mode)
	require.NoError(t, err)
	require.Len(t, res.Leads, 2)
	assert.Equal(t, "https://news.example.com/nike", res.Leads[1].Link)
}

func TestRejectionsAndNearDuplicates(t *testing.T) {
	queries := []Query{{Text: "cricket", Category: scoring.CategorySports}}
	src := &fakeSource{feeds: map[string][]rss.FeedItem{
		"cricket": {
			item("India vs Australia T20 preview", "https://news.example.com/preview"),
			item("Cricket fans queue for tickets", "https://news.example.com/fans"),
			item("", "https://news.example.com/untitled"),
			item("No link here", ""),
		},
	}}
	mode := DailyMode()
	mode.MaxItemsPerQuery = 10

	res, err := newFixture(t, t.TempDir(), src, queries, SeenScanned).pipeline.Run(context.Background(), mode)
	require.NoError(t, err)
	assert.Empty(t, res.Leads)
	assert.Equal(t, 3, res.Scanned)
	assert.Equal(t, 3, res.Rejected)

	src = &fakeSource{feeds: map[string][]rss.FeedItem{
		"cricket": {
			item("BCCI names new sponsor for IPL 2026 season", "https://a.example.com/1"),
			item("BCCI names new sponsor for IPL 2026 Season!", "https://b.example.com/2"),
		},
	}}
	res, err = newFixture(t, t.TempDir(), src, queries, SeenScanned).pipeline.Run(context.Background(), mode)
	require.NoError(t, err)
	require.Len(t, res.Leads, 1)
	assert.Equal(t, "https://a.example.com/1", res.Leads[0].Link)
	assert.Equal(t, 1, res.Duplicates)
}

func TestMaxItemsPerQuery(t *testing.T) {
	queries := []Query{{Text: "many", Category: scoring.CategoryAds}}
	src := &fakeSource{feeds: map[string][]rss.FeedItem{
		"many": {
			item("Story one", "https://news.example.com/1"),
			item("Story two", "https://news.example.com/2"),
			item("Story three", "https://news.example.com/3"),
			item("Story four", "https://news.example.com/4"),
			item("Story five", "https://news.example.com/5"),
		},
	}}

	res, err := newFixture(t, t.TempDir(), src, queries, SeenScanned).pipeline.Run(context.Background(), DailyMode())
	require.NoError(t, err)
	assert.Equal(t, 3, res.Scanned)
}

func TestArchiveModeSkipsStaleItems(t *testing.T) {
	old := testNow.AddDate(0, 0, -100)
	recent := testNow.AddDate(0, 0, -10)

	queries := []Query{{Text: "tenders", Category: scoring.CategorySports}}
	staleItem := item("Old tender for stadium lights", "https://news.example.com/old")
	staleItem.PublishedAt = &old
	freshItem := item("Sports Authority of India floats tender for photography", "https://news.example.com/new")
	freshItem.PublishedAt = &recent

	src := &fakeSource{feeds: map[string][]rss.FeedItem{"tenders": {staleItem, freshItem}}}

	res, err := newFixture(t, t.TempDir(), src, queries, SeenScanned).pipeline.Run(context.Background(), ArchiveMode(90))
	require.NoError(t, err)
	assert.Equal(t, []int{90}, src.lookbacks)
	assert.Equal(t, 1, res.Stale)
	require.Len(t, res.Leads, 1)
	assert.Equal(t, 85, res.Leads[0].Score)
	assert.Equal(t, "archive", res.Mode.Name)
}

func TestRunCanceled(t *testing.T) {
	src, queries := xyzSource()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newFixture(t, t.TempDir(), src, queries, SeenScanned).pipeline.Run(ctx, DailyMode())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewValidation(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)

	src, queries := xyzSource()
	f := newFixture(t, t.TempDir(), src, queries, SeenScanned)
	cfg := f.pipeline.cfg
	cfg.SeenPolicy = "everything"
	_, err = New(cfg)
	assert.Error(t, err)

	_, err = ParseSeenPolicy("admitted")
	assert.NoError(t, err)
}

func TestModes(t *testing.T) {
	assert.Equal(t, Mode{Name: "daily", LookbackDays: 0, MaxItemsPerQuery: 3, MaxLeads: 5}, DailyMode())
	assert.Equal(t, Mode{Name: "archive", LookbackDays: 90, MaxItemsPerQuery: 30, MaxLeads: 9999}, ArchiveMode(0))
	assert.Equal(t, 14, ArchiveMode(14).LookbackDays)
	assert.Len(t, DefaultQueries(), 6)
}

func academySource() (*fakeSource, []Query) {
	q := Query{Text: `"cricket" academy`, Category: scoring.CategorySports}
	return &fakeSource{feeds: map[string][]rss.FeedItem{
		q.Text: {item("Acme Cricket Academy Opens Doors", "https://news.example.com/acme")},
	}}, []Query{q}
}

func TestAdmittedPolicyRescoresRejectedHeadline(t *testing.T) {
	src, queries := academySource()
	dir := t.TempDir()

	res, err := newFixtureAt(t, dir, src, queries, SeenAdmitted, 60).pipeline.Run(context.Background(), DailyMode())
	require.NoError(t, err)
	assert.Empty(t, res.Leads)
	assert.Equal(t, 1, res.Rejected)

	seen, sigs, _ := onDisk(t, dir)
	assert.Equal(t, 0, seen)
	assert.Equal(t, 0, sigs)

	// A lower threshold on the next run admits the same headline.
	res, err = newFixtureAt(t, dir, src, queries, SeenAdmitted, 10).pipeline.Run(context.Background(), DailyMode())
	require.NoError(t, err)
	require.Len(t, res.Leads, 1)
	assert.Equal(t, "https://news.example.com/acme", res.Leads[0].Link)
	assert.Equal(t, 50, res.Leads[0].Score)
	assert.Equal(t, 0, res.Duplicates)

	seen, sigs, _ = onDisk(t, dir)
	assert.Equal(t, 1, seen)
	assert.Equal(t, 1, sigs)
}

func TestScannedPolicyRemembersRejectedHeadline(t *testing.T) {
	src, queries := academySource()
	dir := t.TempDir()

	res, err := newFixtureAt(t, dir, src, queries, SeenScanned, 60).pipeline.Run(context.Background(), DailyMode())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Rejected)

	seen, sigs, _ := onDisk(t, dir)
	assert.Equal(t, 1, seen)
	assert.Equal(t, 1, sigs)

	res, err = newFixtureAt(t, dir, src, queries, SeenScanned, 10).pipeline.Run(context.Background(), DailyMode())
	require.NoError(t, err)
	assert.Empty(t, res.Leads)
	assert.Equal(t, 1, res.Duplicates)
}
