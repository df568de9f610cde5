package app

import (
	"context"
	"errors"
	"time"

	"github.com/saikatdas-ai/saikat-ai-assistant/internal/report"
	"github.com/saikatdas-ai/saikat-ai-assistant/internal/retry"
	"github.com/saikatdas-ai/saikat-ai-assistant/internal/scheduler"
	"github.com/saikatdas-ai/saikat-ai-assistant/internal/telegram"
)

// Serve runs the scheduler and the command loop until ctx is done. When
// today's slot has already passed without a run, a catch-up starts right
// away. A crashing poll loop is restarted with backoff.
func (a *App) Serve(ctx context.Context, poller telegram.Poller, sched *scheduler.Daily) error {
	bot := telegram.NewBot(a.deps.Sender, a.deps.AdminID, a.deps.Logger)
	a.Register(bot)

	if sched != nil {
		err := sched.Start(ctx, func(ctx context.Context, _ time.Time) {
			if _, err := a.Scout(ctx, report.KindDaily, a.deps.Daily); err != nil {
				a.logger.Error("scheduled run failed", "error", err)
			}
		})
		if err != nil {
			return err
		}
		defer sched.Stop()

		if now := a.deps.Now(); sched.Due(now) && a.NeedsCatchUp(now) {
			go func() {
				if _, err := a.CatchUp(ctx, now); err != nil {
					a.logger.Error("catch-up failed", "error", err)
				}
			}()
		}
	}

	sup := retry.DefaultSupervisor(a.deps.Logger)
	err := sup.Run(ctx, "telegram-poll", func(ctx context.Context) error {
		return bot.Serve(ctx, poller)
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
