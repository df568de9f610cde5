// Package scheduler fires a job once a day at a wall-clock time in a fixed
// time zone.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/saikatdas-ai/saikat-ai-assistant/internal/logger"
)

// Daily runs a job every day at Hour:Minute in Location.
type Daily struct {
	Hour     int
	Minute   int
	Location *time.Location

	logger *slog.Logger
	now    func() time.Time
	after  func(time.Duration) <-chan time.Time
	stop   chan struct{}
}

// ParseClock parses "HH:MM" (24h).
func ParseClock(s string) (hour, minute int, err error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid time of day %q (want HH:MM): %w", s, err)
	}
	return t.Hour(), t.Minute(), nil
}

// NewDaily builds a schedule for at ("HH:MM") in loc.
func NewDaily(at string, loc *time.Location, l *slog.Logger) (*Daily, error) {
	h, m, err := ParseClock(at)
	if err != nil {
		return nil, err
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Daily{
		Hour:     h,
		Minute:   m,
		Location: loc,
		logger:   logger.Component(l, "scheduler"),
		now:      time.Now,
		after:    time.After,
	}, nil
}

// Next returns the first run time strictly after now.
func (d *Daily) Next(now time.Time) time.Time {
	local := now.In(d.Location)
	next := time.Date(local.Year(), local.Month(), local.Day(), d.Hour, d.Minute, 0, 0, d.Location)
	if !next.After(local) {
		next = time.Date(local.Year(), local.Month(), local.Day()+1, d.Hour, d.Minute, 0, 0, d.Location)
	}
	return next
}

// Due reports whether the run time of now's calendar day has been reached.
func (d *Daily) Due(now time.Time) bool {
	local := now.In(d.Location)
	slot := time.Date(local.Year(), local.Month(), local.Day(), d.Hour, d.Minute, 0, 0, d.Location)
	return !local.Before(slot)
}

// Start runs job at every occurrence until ctx is done or Stop is called.
// The job runs on the scheduler goroutine, so runs never overlap.
func (d *Daily) Start(ctx context.Context, job func(context.Context, time.Time)) error {
	if job == nil {
		return nil
	}
	if d.stop != nil {
		return fmt.Errorf("scheduler already started")
	}
	d.stop = make(chan struct{})
	stop := d.stop

	go func() {
		for {
			next := d.Next(d.now())
			d.logger.Info("next scheduled run", "at", next.Format(time.RFC3339))

			select {
			case <-d.after(next.Sub(d.now())):
				job(ctx, next)
			case <-ctx.Done():
				return
			case <-stop:
				return
			}
		}
	}()
	return nil
}

// Stop halts the scheduler goroutine.
func (d *Daily) Stop() {
	if d.stop == nil {
		return
	}
	close(d.stop)
	d.stop = nil
}
