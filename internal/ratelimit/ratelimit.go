package ratelimit

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/saikatdas-ai/saikat-ai-assistant/internal/logger"
)

// ErrLimitExceeded is returned by Use once the window's budget is spent.
var ErrLimitExceeded = errors.New("request limit exceeded")

// Limiter counts requests to one AI backend inside a rolling window.
type Limiter struct {
	mu          sync.Mutex
	name        string
	count       int
	max         int
	window      time.Duration
	resetTime   time.Time
	cacheHits   int
	cacheMisses int
	now         func() time.Time
	logger      *slog.Logger
}

// New allows max requests per window. max <= 0 disables the limit; a zero
// window means 24 hours.
func New(name string, max int, window time.Duration, l *slog.Logger) *Limiter {
	return newLimiter(name, max, window, time.Now, l)
}

func newLimiter(name string, max int, window time.Duration, now func() time.Time, l *slog.Logger) *Limiter {
	if window <= 0 {
		window = 24 * time.Hour
	}
	return &Limiter{
		name:      name,
		max:       max,
		window:    window,
		resetTime: now().Add(window),
		now:       now,
		logger:    logger.Component(l, "ratelimit").With("backend", name),
	}
}

// Allow reports whether another request fits the budget.
func (rl *Limiter) Allow() bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.checkReset()
	if rl.max > 0 && rl.count >= rl.max {
		rl.logger.Warn("rate limit reached", "used", rl.count, "limit", rl.max)
		return false
	}
	return true
}

// Use takes one request from the budget.
func (rl *Limiter) Use() error {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.checkReset()
	if rl.max > 0 && rl.count >= rl.max {
		return ErrLimitExceeded
	}

	rl.count++
	rl.cacheMisses++
	rl.logger.Debug("ai usage", "used", rl.count, "limit", rl.max)
	return nil
}

// RecordCacheHit notes a request answered from cache.
func (rl *Limiter) RecordCacheHit() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.cacheHits++
}

func (rl *Limiter) cacheHitRate() float64 {
	total := rl.cacheHits + rl.cacheMisses
	if total == 0 {
		return 0
	}
	return float64(rl.cacheHits) / float64(total) * 100
}

func (rl *Limiter) GetStats() map[string]interface{} {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	return map[string]interface{}{
		"backend":        rl.name,
		"used":           rl.count,
		"limit":          rl.max,
		"cache_hits":     rl.cacheHits,
		"cache_misses":   rl.cacheMisses,
		"cache_hit_rate": rl.cacheHitRate(),
		"reset_time":     rl.resetTime,
	}
}

// checkReset resets counters if reset time has passed
func (rl *Limiter) checkReset() {
	now := rl.now()
	if !now.After(rl.resetTime) {
		return
	}
	rl.logger.Info("resetting rate limiter",
		"used", rl.count,
		"cache_hits", rl.cacheHits,
		"cache_hit_rate", rl.cacheHitRate(),
	)
	rl.count = 0
	rl.cacheHits = 0
	rl.cacheMisses = 0
	rl.resetTime = now.Add(rl.window)
}
