package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/saikatdas-ai/saikat-ai-assistant/internal/cache"
	"github.com/saikatdas-ai/saikat-ai-assistant/internal/claude"
	"github.com/saikatdas-ai/saikat-ai-assistant/internal/config"
	"github.com/saikatdas-ai/saikat-ai-assistant/internal/dedup"
	"github.com/saikatdas-ai/saikat-ai-assistant/internal/discovery"
	"github.com/saikatdas-ai/saikat-ai-assistant/internal/gemini"
	"github.com/saikatdas-ai/saikat-ai-assistant/internal/metrics"
	"github.com/saikatdas-ai/saikat-ai-assistant/internal/ratelimit"
	"github.com/saikatdas-ai/saikat-ai-assistant/internal/report"
	"github.com/saikatdas-ai/saikat-ai-assistant/internal/retry"
	"github.com/saikatdas-ai/saikat-ai-assistant/internal/rss"
	"github.com/saikatdas-ai/saikat-ai-assistant/internal/scoring"
	"github.com/saikatdas-ai/saikat-ai-assistant/internal/storage"
	"github.com/saikatdas-ai/saikat-ai-assistant/internal/telegram"
)

// Build assembles an App from cfg. Reports go to sender, or to the admin
// over Telegram when sender is nil. The Telegram client is returned for
// polling either way.
func Build(ctx context.Context, cfg *config.Config, sender telegram.Sender, l *slog.Logger) (*App, *telegram.Client, error) {
	m := metrics.New()

	store, err := storage.NewStore(cfg.DataDir, l)
	if err != nil {
		return nil, nil, err
	}

	policy, _ := scoring.ParsePolicy(cfg.ScorePolicy)
	engine, err := scoring.NewEngine(cfg.Rules, scoring.Options{
		Policy:     policy,
		Base:       cfg.ScoreBase,
		Threshold:  cfg.ScoreThreshold,
		UseSummary: cfg.ScoreUseSummary,
	})
	if err != nil {
		return nil, nil, err
	}

	seenPolicy, _ := discovery.ParseSeenPolicy(cfg.SeenPolicy)
	followups := storage.NewFollowupLedger(store)
	pipeline, err := discovery.New(discovery.Config{
		Source:          rss.NewSource(cfg.FeedBaseURL, cfg.FeedTimeout, l),
		Engine:          engine,
		Seen:            storage.NewSeenLedger(store, cfg.SeenRetention()),
		Signatures:      storage.NewSignatureLedger(store),
		Followups:       followups,
		Queries:         cfg.Queries,
		StopWords:       dedup.NewStopWords(cfg.StopWords),
		SignatureTokens: cfg.SignatureTokens,
		Similarity:      cfg.SimilarityThreshold,
		SeenPolicy:      seenPolicy,
		Concurrency:     cfg.FeedConcurrency,
		Location:        cfg.Location(),
		Metrics:         m,
		Logger:          l,
	})
	if err != nil {
		return nil, nil, err
	}

	var closers []func()
	var summarizer report.Summarizer
	switch cfg.Summarizer {
	case config.SummarizerGemini:
		gc, err := gemini.NewClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			return nil, nil, err
		}
		closers = append(closers, gc.Close)
		summarizer = gc
	case config.SummarizerAnthropic:
		summarizer = claude.NewClient(cfg.AnthropicAPIKey, cfg.AnthropicModel)
	}

	var limiter *ratelimit.Limiter
	opts := report.Options{
		Scheme:       report.TierScheme(cfg.TierScheme),
		Timeout:      cfg.SummaryTimeout,
		Photographer: cfg.Photographer,
		Metrics:      m,
		Logger:       l,
	}
	if summarizer != nil {
		c := cache.New()
		closers = append(closers, c.Close)
		limiter = ratelimit.New(cfg.Summarizer, cfg.MaxSummaryRequests, 24*time.Hour, l)

		opts.Summarizer = summarizer
		opts.Cache = c
		opts.Limiter = limiter
	}

	tg := telegram.NewClient(cfg.TelegramToken, telegram.Options{
		BaseURL:   cfg.TelegramBaseURL,
		Retry:     retry.RetryConfig{MaxAttempts: cfg.RetryAttempts, Delay: cfg.RetryDelay, Backoff: true},
		ChunkSize: cfg.ChunkSize,
		Metrics:   m,
		Logger:    l,
	})
	if sender == nil {
		sender = tg
	}

	a, err := New(Deps{
		Pipeline:  pipeline,
		Formatter: report.NewFormatter(opts),
		Followups: followups,
		State:     storage.NewRunStateStore(store),
		Sender:    sender,
		AdminID:   cfg.AdminUserID,
		Daily:     cfg.DailyMode(),
		Archive:   cfg.ArchiveMode(0),
		Location:  cfg.Location(),
		Metrics:   m,
		Limiter:   limiter,
		Logger:    l,
	})
	if err != nil {
		for _, c := range closers {
			c()
		}
		return nil, nil, err
	}
	a.closers = closers
	return a, tg, nil
}
