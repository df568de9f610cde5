// Package config loads settings from the environment and the optional rules
// file.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/saikatdas-ai/saikat-ai-assistant/internal/apperr"
	"github.com/saikatdas-ai/saikat-ai-assistant/internal/dedup"
	"github.com/saikatdas-ai/saikat-ai-assistant/internal/discovery"
	"github.com/saikatdas-ai/saikat-ai-assistant/internal/report"
	"github.com/saikatdas-ai/saikat-ai-assistant/internal/scheduler"
	"github.com/saikatdas-ai/saikat-ai-assistant/internal/scoring"
)

// Summarizer backends.
const (
	SummarizerGemini    = "gemini"
	SummarizerAnthropic = "anthropic"
	SummarizerNone      = "none"
)

type Config struct {
	// Telegram settings
	TelegramToken   string
	AdminUserID     int64
	TelegramBaseURL string

	// Summarizer settings
	Summarizer         string
	GeminiAPIKey       string
	GeminiModel        string
	AnthropicAPIKey    string
	AnthropicModel     string
	MaxSummaryRequests int // per day, 0 = unlimited
	SummaryTimeout     time.Duration
	Photographer       string

	// Feed settings
	FeedBaseURL     string
	FeedTimeout     time.Duration
	FeedConcurrency int

	// Discovery settings
	SeenPolicy              string
	SeenRetentionDays       int
	MaxItemsPerQuery        int
	MaxLeads                int
	ArchiveLookbackDays     int
	ArchiveMaxItemsPerQuery int
	ArchiveMaxLeads         int
	SignatureTokens         int
	SimilarityThreshold     float64

	// Scoring settings
	ScorePolicy     string
	ScoreBase       int
	ScoreThreshold  int
	ScoreUseSummary bool
	RulesConfigPath string

	// Resolved from defaults and the rules file
	Rules     scoring.Rules
	Queries   []discovery.Query
	StopWords []string

	// Report settings
	TierScheme string
	ChunkSize  int

	// Schedule settings
	ScheduleTime     string
	ScheduleTimezone string
	location         *time.Location

	// App settings
	DataDir              string
	Debug                bool
	EnableHTTPMonitoring bool
	MonitoringPort       string
	RetryAttempts        int
	RetryDelay           time.Duration
}

// Load reads the environment, applies the rules file if one is configured,
// and validates the result.
func Load() (*Config, error) {
	cfg := &Config{
		// Default values
		TelegramBaseURL:         "https://api.telegram.org",
		Summarizer:              SummarizerGemini,
		GeminiModel:             "gemini-1.5-flash",
		AnthropicModel:          "claude-3-5-haiku-20241022",
		MaxSummaryRequests:      50,
		SummaryTimeout:          45 * time.Second,
		Photographer:            "Saikat Das",
		FeedBaseURL:             "https://news.google.com/rss/search",
		FeedTimeout:             20 * time.Second,
		FeedConcurrency:         4,
		SeenPolicy:              string(discovery.SeenScanned),
		SeenRetentionDays:       30,
		MaxItemsPerQuery:        3,
		MaxLeads:                5,
		ArchiveLookbackDays:     90,
		ArchiveMaxItemsPerQuery: 30,
		ArchiveMaxLeads:         9999,
		SignatureTokens:         dedup.DefaultSignatureTokens,
		SimilarityThreshold:     dedup.DefaultSimilarity,
		ScorePolicy:             string(scoring.Additive),
		ScoreBase:               50,
		ScoreThreshold:          60,
		TierScheme:              string(report.SchemeScore),
		ChunkSize:               report.DefaultChunkSize,
		ScheduleTime:            "10:00",
		ScheduleTimezone:        "Asia/Kolkata",
		DataDir:                 "data",
		MonitoringPort:          "8080",
		RetryAttempts:           3,
		RetryDelay:              2 * time.Second,
	}

	// Load from environment
	cfg.TelegramToken = os.Getenv("TELEGRAM_TOKEN")
	cfg.GeminiAPIKey = os.Getenv("GEMINI_API_KEY")
	cfg.AnthropicAPIKey = os.Getenv("ANTHROPIC_API_KEY")

	if v := os.Getenv("ADMIN_USER_ID"); v != "" {
		id, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return nil, apperr.Errorf(apperr.Config, "load", "ADMIN_USER_ID must be a numeric Telegram user id (got %q)", v)
		}
		cfg.AdminUserID = id
	}

	cfg.TelegramBaseURL = getEnvOrDefault("TELEGRAM_BASE_URL", cfg.TelegramBaseURL)
	cfg.Summarizer = strings.ToLower(getEnvOrDefault("SUMMARIZER", cfg.Summarizer))
	cfg.GeminiModel = getEnvOrDefault("GEMINI_MODEL", cfg.GeminiModel)
	cfg.AnthropicModel = getEnvOrDefault("ANTHROPIC_MODEL", cfg.AnthropicModel)
	cfg.MaxSummaryRequests = getEnvIntOrDefault("MAX_SUMMARY_REQUESTS", cfg.MaxSummaryRequests)
	cfg.SummaryTimeout = getEnvDurationOrDefault("SUMMARY_TIMEOUT", cfg.SummaryTimeout)
	cfg.Photographer = getEnvOrDefault("PHOTOGRAPHER_NAME", cfg.Photographer)

	cfg.FeedBaseURL = getEnvOrDefault("FEED_BASE_URL", cfg.FeedBaseURL)
	cfg.FeedTimeout = getEnvDurationOrDefault("FEED_TIMEOUT", cfg.FeedTimeout)
	cfg.FeedConcurrency = getEnvIntOrDefault("FEED_CONCURRENCY", cfg.FeedConcurrency)

	cfg.SeenPolicy = getEnvOrDefault("SEEN_POLICY", cfg.SeenPolicy)
	cfg.SeenRetentionDays = getEnvIntOrDefault("SEEN_RETENTION_DAYS", cfg.SeenRetentionDays)
	cfg.MaxItemsPerQuery = getEnvIntOrDefault("MAX_ITEMS_PER_QUERY", cfg.MaxItemsPerQuery)
	cfg.MaxLeads = getEnvIntOrDefault("MAX_LEADS", cfg.MaxLeads)
	cfg.ArchiveLookbackDays = getEnvIntOrDefault("ARCHIVE_LOOKBACK_DAYS", cfg.ArchiveLookbackDays)
	cfg.ArchiveMaxItemsPerQuery = getEnvIntOrDefault("ARCHIVE_MAX_ITEMS_PER_QUERY", cfg.ArchiveMaxItemsPerQuery)
	cfg.ArchiveMaxLeads = getEnvIntOrDefault("ARCHIVE_MAX_LEADS", cfg.ArchiveMaxLeads)
	cfg.SignatureTokens = getEnvIntOrDefault("SIGNATURE_TOKENS", cfg.SignatureTokens)
	cfg.SimilarityThreshold = getEnvFloatOrDefault("SIMILARITY_THRESHOLD", cfg.SimilarityThreshold)

	cfg.ScorePolicy = getEnvOrDefault("SCORE_POLICY", cfg.ScorePolicy)
	cfg.ScoreBase = getEnvIntOrDefault("SCORE_BASE", cfg.ScoreBase)
	cfg.ScoreThreshold = getEnvIntOrDefault("SCORE_THRESHOLD", cfg.ScoreThreshold)
	cfg.ScoreUseSummary = getEnvBool("SCORE_USE_SUMMARY")
	cfg.RulesConfigPath = os.Getenv("RULES_CONFIG_PATH")

	cfg.TierScheme = getEnvOrDefault("TIER_SCHEME", cfg.TierScheme)
	cfg.ChunkSize = getEnvIntOrDefault("CHUNK_SIZE", cfg.ChunkSize)

	cfg.ScheduleTime = getEnvOrDefault("SCHEDULE_TIME", cfg.ScheduleTime)
	cfg.ScheduleTimezone = getEnvOrDefault("SCHEDULE_TIMEZONE", cfg.ScheduleTimezone)

	cfg.DataDir = getEnvOrDefault("DATA_DIR", cfg.DataDir)
	cfg.Debug = getEnvBool("DEBUG")
	cfg.EnableHTTPMonitoring = getEnvBool("ENABLE_HTTP_MONITORING")
	cfg.MonitoringPort = getEnvOrDefault("MONITORING_PORT", cfg.MonitoringPort)
	cfg.RetryAttempts = getEnvIntOrDefault("RETRY_ATTEMPTS", cfg.RetryAttempts)
	cfg.RetryDelay = getEnvDurationOrDefault("RETRY_DELAY", cfg.RetryDelay)

	cfg.Rules = scoring.DefaultRules()
	cfg.Queries = discovery.DefaultQueries()
	cfg.StopWords = append([]string(nil), dedup.DefaultStopWords...)
	if cfg.RulesConfigPath != "" {
		rf, err := LoadRulesFile(cfg.RulesConfigPath)
		if err != nil {
			return nil, err
		}
		rf.Apply(cfg)
	}

	loc, err := time.LoadLocation(cfg.ScheduleTimezone)
	if err != nil {
		return nil, apperr.Errorf(apperr.Config, "load", "SCHEDULE_TIMEZONE %q: %v", cfg.ScheduleTimezone, err)
	}
	cfg.location = loc

	return cfg, cfg.Validate()
}

// Location is the scheduler time zone; it also decides what "today" means.
func (c *Config) Location() *time.Location {
	if c.location == nil {
		return time.UTC
	}
	return c.location
}

// DailyMode is the routine run shape.
func (c *Config) DailyMode() discovery.Mode {
	m := discovery.DailyMode()
	m.MaxItemsPerQuery = c.MaxItemsPerQuery
	m.MaxLeads = c.MaxLeads
	return m
}

// ArchiveMode is the bootstrap run shape; days <= 0 uses the configured
// lookback.
func (c *Config) ArchiveMode(days int) discovery.Mode {
	if days <= 0 {
		days = c.ArchiveLookbackDays
	}
	m := discovery.ArchiveMode(days)
	m.MaxItemsPerQuery = c.ArchiveMaxItemsPerQuery
	m.MaxLeads = c.ArchiveMaxLeads
	return m
}

// SeenRetention is the seen-ledger window.
func (c *Config) SeenRetention() time.Duration {
	return time.Duration(c.SeenRetentionDays) * 24 * time.Hour
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(strings.TrimSpace(value), 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvDurationOrDefault accepts Go durations ("45s") or whole seconds.
func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}

func getEnvBool(key string) bool {
	b, _ := strconv.ParseBool(strings.TrimSpace(os.Getenv(key)))
	return b
}

func (c *Config) Validate() error {
	fail := func(format string, args ...any) error {
		return apperr.Errorf(apperr.Config, "validate", format, args...)
	}

	if c.TelegramToken == "" {
		return fail("TELEGRAM_TOKEN is required")
	}
	if c.AdminUserID == 0 {
		return fail("ADMIN_USER_ID is required")
	}

	switch c.Summarizer {
	case SummarizerGemini:
		if c.GeminiAPIKey == "" {
			return fail("GEMINI_API_KEY is required when SUMMARIZER=gemini")
		}
	case SummarizerAnthropic:
		if c.AnthropicAPIKey == "" {
			return fail("ANTHROPIC_API_KEY is required when SUMMARIZER=anthropic")
		}
	case SummarizerNone:
	default:
		return fail("SUMMARIZER must be 'gemini', 'anthropic' or 'none'")
	}

	if _, err := discovery.ParseSeenPolicy(c.SeenPolicy); err != nil {
		return fail("SEEN_POLICY: %v", err)
	}
	if _, err := scoring.ParsePolicy(c.ScorePolicy); err != nil {
		return fail("SCORE_POLICY: %v", err)
	}
	if _, err := report.ParseTierScheme(c.TierScheme); err != nil {
		return fail("TIER_SCHEME: %v", err)
	}
	if _, _, err := scheduler.ParseClock(c.ScheduleTime); err != nil {
		return fail("SCHEDULE_TIME: %v", err)
	}

	if c.ScoreBase < 0 || c.ScoreBase > 100 {
		return fail("SCORE_BASE must be within 0..100")
	}
	if c.ScoreThreshold < 0 || c.ScoreThreshold > 100 {
		return fail("SCORE_THRESHOLD must be within 0..100")
	}
	if c.SimilarityThreshold <= 0 || c.SimilarityThreshold >= 1 {
		return fail("SIMILARITY_THRESHOLD must be between 0 and 1")
	}
	if c.SeenRetentionDays < 0 {
		return fail("SEEN_RETENTION_DAYS must not be negative")
	}
	if c.MaxItemsPerQuery <= 0 || c.MaxLeads <= 0 {
		return fail("MAX_ITEMS_PER_QUERY and MAX_LEADS must be positive")
	}
	if c.ChunkSize <= 0 || c.ChunkSize > 4096 {
		return fail("CHUNK_SIZE must be within 1..4096")
	}
	if len(c.Queries) == 0 {
		return fail("no search queries configured")
	}
	if err := c.Rules.Validate(); err != nil {
		return fail("rules: %v", err)
	}
	if c.DataDir == "" {
		return fail("DATA_DIR must not be empty")
	}
	return nil
}
