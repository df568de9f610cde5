package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/saikatdas-ai/saikat-ai-assistant/internal/logger"
)

type RetryConfig struct {
	MaxAttempts int
	Delay       time.Duration
	Backoff     bool // Exponential backoff
}

type permanentError struct{ err error }

func (p *permanentError) Error() string { return p.err.Error() }
func (p *permanentError) Unwrap() error { return p.err }

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

// WithRetry calls fn until it succeeds, returns a permanent error, or
// MaxAttempts is reached.
func WithRetry(ctx context.Context, config RetryConfig, fn func() error) error {
	if config.MaxAttempts < 1 {
		config.MaxAttempts = 1
	}
	var lastErr error

	for attempt := 1; attempt <= config.MaxAttempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if IsPermanent(err) {
			return err
		}
		if attempt == config.MaxAttempts {
			return fmt.Errorf("failed after %d attempts: %w", config.MaxAttempts, err)
		}

		delay := config.Delay
		if config.Backoff {
			delay = config.Delay << (attempt - 1)
		}

		if err := sleep(ctx, delay); err != nil {
			return err
		}
	}

	return lastErr
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Supervisor keeps a long-running loop alive. Each failure waits before the
// restart, doubling the wait up to Max. A cycle that ran for at least
// ResetAfter, or returned nil, resets the wait to Initial.
type Supervisor struct {
	Initial    time.Duration
	Max        time.Duration
	ResetAfter time.Duration
	Logger     *slog.Logger

	sleep func(context.Context, time.Duration) error
	now   func() time.Time
}

// DefaultSupervisor waits 5s after the first crash and at most 5 minutes.
func DefaultSupervisor(l *slog.Logger) *Supervisor {
	return &Supervisor{
		Initial:    5 * time.Second,
		Max:        300 * time.Second,
		ResetAfter: 10 * time.Minute,
		Logger:     l,
	}
}

// Run calls fn until ctx is done. It only returns ctx's error.
func (s *Supervisor) Run(ctx context.Context, name string, fn func(context.Context) error) error {
	wait := s.sleep
	if wait == nil {
		wait = sleep
	}
	now := s.now
	if now == nil {
		now = time.Now
	}
	log := logger.Component(s.Logger, "supervisor").With("loop", name)

	delay := s.Initial
	for {
		start := now()
		err := fn(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err == nil {
			delay = s.Initial
			continue
		}
		if s.ResetAfter > 0 && now().Sub(start) >= s.ResetAfter {
			delay = s.Initial
		}

		log.Error("loop crashed, restarting", "error", err, "delay", delay)
		if err := wait(ctx, delay); err != nil {
			return err
		}

		delay *= 2
		if s.Max > 0 && delay > s.Max {
			delay = s.Max
		}
	}
}
