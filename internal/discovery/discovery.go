// Package discovery runs the lead search: fetch every query, then filter,
// dedupe, score and rank the items, persisting the ledgers along the way.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/saikatdas-ai/saikat-ai-assistant/internal/dedup"
	"github.com/saikatdas-ai/saikat-ai-assistant/internal/logger"
	"github.com/saikatdas-ai/saikat-ai-assistant/internal/metrics"
	"github.com/saikatdas-ai/saikat-ai-assistant/internal/rss"
	"github.com/saikatdas-ai/saikat-ai-assistant/internal/scoring"
	"github.com/saikatdas-ai/saikat-ai-assistant/internal/storage"
)

// Searcher fetches feed items for one query.
type Searcher interface {
	Search(ctx context.Context, query string, lookbackDays int) ([]rss.FeedItem, error)
}

// Lead is an admitted headline.
type Lead struct {
	Title       string
	Link        string
	Score       int
	Category    string
	Query       string
	Summary     string
	Matched     []string
	PublishedAt *time.Time
}

// QueryError records a query whose fetch failed.
type QueryError struct {
	Query string
	Err   error
}

func (e QueryError) Error() string { return fmt.Sprintf("query %q: %v", e.Query, e.Err) }

// Result summarizes one run.
type Result struct {
	RunID       string
	Mode        Mode
	Leads       []Lead
	Scanned     int
	Duplicates  int
	Rejected    int
	Stale       int
	QueryErrors []QueryError
	StartedAt   time.Time
	Duration    time.Duration
}

// Config wires a Pipeline.
type Config struct {
	Source     Searcher
	Engine     *scoring.Engine
	Seen       *storage.SeenLedger
	Signatures *storage.SignatureLedger
	Followups  *storage.FollowupLedger

	Queries         []Query
	StopWords       dedup.StopWords
	SignatureTokens int
	Similarity      float64
	SeenPolicy      SeenPolicy
	// Concurrency bounds parallel feed fetches; 0 means 4.
	Concurrency int
	// Location decides which calendar day follow-ups are stamped with.
	Location *time.Location

	Metrics *metrics.Metrics
	Logger  *slog.Logger
	Now     func() time.Time
}

// Pipeline is not safe for concurrent Runs; callers serialize them.
type Pipeline struct {
	cfg    Config
	signer *dedup.Signer
	logger *slog.Logger
}

// New checks cfg and fills defaults.
func New(cfg Config) (*Pipeline, error) {
	switch {
	case cfg.Source == nil:
		return nil, errors.New("discovery: no feed source")
	case cfg.Engine == nil:
		return nil, errors.New("discovery: no scoring engine")
	case cfg.Seen == nil || cfg.Signatures == nil || cfg.Followups == nil:
		return nil, errors.New("discovery: ledgers are required")
	}

	if cfg.Queries == nil {
		cfg.Queries = DefaultQueries()
	}
	if cfg.StopWords == nil {
		cfg.StopWords = dedup.NewStopWords(dedup.DefaultStopWords)
	}
	if cfg.SeenPolicy == "" {
		cfg.SeenPolicy = SeenScanned
	}
	if _, err := ParseSeenPolicy(string(cfg.SeenPolicy)); err != nil {
		return nil, err
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.New()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &Pipeline{
		cfg:    cfg,
		signer: dedup.NewSigner(cfg.StopWords, cfg.SignatureTokens),
		logger: logger.Component(cfg.Logger, "discovery"),
	}, nil
}

// Queries returns the configured search queries.
func (p *Pipeline) Queries() []Query { return p.cfg.Queries }

// Run executes one discovery pass. Failed queries are reported in the
// result; only a canceled context fails the run.
func (p *Pipeline) Run(ctx context.Context, mode Mode) (*Result, error) {
	now := p.cfg.Now()
	res := &Result{RunID: uuid.NewString(), Mode: mode, StartedAt: now}
	log := p.logger.With("run_id", res.RunID, "mode", mode.Name)

	if pruned := p.cfg.Seen.Load(now); pruned > 0 {
		log.Info("pruned seen links", "count", pruned)
	}

	batches, errs := p.fetch(ctx, mode)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for i, err := range errs {
		if err == nil {
			continue
		}
		q := p.cfg.Queries[i].Text
		log.Error("feed error", "query", q, "error", err)
		res.QueryErrors = append(res.QueryErrors, QueryError{Query: q, Err: err})
		p.cfg.Metrics.IncrementFeedErrors()
	}

	var (
		window   = dedup.NewRunWindow(p.cfg.StopWords, p.cfg.Similarity)
		runLinks = make(map[string]struct{})
		scanned  []string
		admitted []string
		today    = now.In(p.cfg.Location).Format(storage.DateLayout)
		cutoff   time.Time
	)
	if mode.LookbackDays > 0 {
		cutoff = now.AddDate(0, 0, -mode.LookbackDays)
	}

	for i, q := range p.cfg.Queries {
		for _, item := range batches[i] {
			item.Category = q.Category
			if item.Link == "" {
				continue
			}
			if !cutoff.IsZero() && item.PublishedAt != nil && item.PublishedAt.Before(cutoff) {
				res.Stale++
				continue
			}

			if _, dup := runLinks[item.Link]; dup || p.cfg.Seen.Contains(item.Link) {
				res.Duplicates++
				continue
			}
			runLinks[item.Link] = struct{}{}
			scanned = append(scanned, item.Link)
			res.Scanned++

			lead, outcome := p.evaluate(item, window, now, log)
			switch outcome {
			case outcomeDuplicate:
				res.Duplicates++
				continue
			case outcomeRejected:
				res.Rejected++
				continue
			}

			res.Leads = append(res.Leads, lead)
			admitted = append(admitted, item.Link)
			p.cfg.Followups.Register(item.Title, item.Link, today)
		}
	}

	record := scanned
	if p.cfg.SeenPolicy == SeenAdmitted {
		record = admitted
	}
	p.cfg.Seen.Add(record, now)
	if err := p.cfg.Seen.Flush(); err != nil {
		log.Error("seen ledger not saved", "error", err)
	}
	if err := p.cfg.Followups.Flush(); err != nil {
		log.Error("follow-up ledger not saved", "error", err)
	}

	sort.SliceStable(res.Leads, func(i, j int) bool {
		return res.Leads[i].Score > res.Leads[j].Score
	})
	if mode.MaxLeads > 0 && len(res.Leads) > mode.MaxLeads {
		res.Leads = res.Leads[:mode.MaxLeads]
	}

	res.Duration = p.cfg.Now().Sub(now)
	p.cfg.Metrics.AddScanned(res.Scanned)
	p.cfg.Metrics.AddDuplicates(res.Duplicates)
	p.cfg.Metrics.AddLeads(len(res.Leads))

	log.Info("run finished",
		"scanned", res.Scanned,
		"leads", len(res.Leads),
		"duplicates", res.Duplicates,
		"rejected", res.Rejected,
		"stale", res.Stale,
		"query_errors", len(res.QueryErrors),
	)
	return res, nil
}

// fetch runs every query concurrently. Results keep query order so item
// processing stays deterministic.
func (p *Pipeline) fetch(ctx context.Context, mode Mode) ([][]rss.FeedItem, []error) {
	queries := p.cfg.Queries
	batches := make([][]rss.FeedItem, len(queries))
	errs := make([]error, len(queries))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Concurrency)

	for i, q := range queries {
		g.Go(func() error {
			items, err := p.cfg.Source.Search(gctx, q.Text, mode.LookbackDays)
			if err != nil {
				errs[i] = err
				return nil
			}
			if mode.MaxItemsPerQuery > 0 && len(items) > mode.MaxItemsPerQuery {
				items = items[:mode.MaxItemsPerQuery]
			}
			batches[i] = items
			return nil
		})
	}
	_ = g.Wait()

	return batches, errs
}

type outcome int

const (
	outcomeAdmitted outcome = iota
	outcomeDuplicate
	outcomeRejected
)

// evaluate runs gate, near-duplicate checks and scoring for one fresh link.
// Under SeenScanned the signature is registered as soon as the item survives
// the fuzzy check; under SeenAdmitted only admitted items register one, so a
// rejected headline is scored again on a later run.
func (p *Pipeline) evaluate(item rss.FeedItem, window *dedup.RunWindow, now time.Time, log *slog.Logger) (Lead, outcome) {
	in := scoring.Input{Title: item.Title, Category: item.Category, Summary: item.Summary}

	if v := p.cfg.Engine.Filter(in); !v.Passed {
		log.Debug("rejected", "gate", v.Gate, "title", item.Title)
		return Lead{}, outcomeRejected
	}

	if dup, prev := window.IsDuplicate(item.Title); dup {
		log.Debug("near duplicate", "title", item.Title, "of", prev)
		return Lead{}, outcomeDuplicate
	}
	window.Add(item.Title)

	sig := p.signer.Signature(item.Title)
	if sig != "" && p.cfg.Signatures.Contains(sig) {
		log.Debug("known signature", "signature", sig, "title", item.Title)
		return Lead{}, outcomeDuplicate
	}
	if p.cfg.SeenPolicy != SeenAdmitted {
		p.register(sig, now, log)
	}

	score, matched := p.cfg.Engine.Score(in)
	if !p.cfg.Engine.Admits(score) {
		log.Debug("below threshold", "score", score, "title", item.Title)
		return Lead{}, outcomeRejected
	}
	if p.cfg.SeenPolicy == SeenAdmitted {
		p.register(sig, now, log)
	}

	return Lead{
		Title:       item.Title,
		Link:        item.Link,
		Score:       score,
		Category:    item.Category,
		Query:       item.Query,
		Summary:     item.Summary,
		Matched:     matched,
		PublishedAt: item.PublishedAt,
	}, outcomeAdmitted
}

func (p *Pipeline) register(sig string, now time.Time, log *slog.Logger) {
	if sig == "" {
		return
	}
	if _, err := p.cfg.Signatures.Register(sig, now); err != nil {
		log.Error("signature not saved", "signature", sig, "error", err)
	}
}
