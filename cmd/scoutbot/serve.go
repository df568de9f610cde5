package main

import (
	"errors"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/saikatdas-ai/saikat-ai-assistant/internal/app"
	"github.com/saikatdas-ai/saikat-ai-assistant/internal/scheduler"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the bot: daily schedule, catch-up and operator commands",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, l, err := setup()
		if err != nil {
			return err
		}

		ctx, stop := signalContext()
		defer stop()

		a, tg, err := app.Build(ctx, cfg, nil, l)
		if err != nil {
			return err
		}
		defer a.Close()

		sched, err := scheduler.NewDaily(cfg.ScheduleTime, cfg.Location(), l)
		if err != nil {
			return err
		}

		if cfg.EnableHTTPMonitoring {
			srv := &http.Server{Addr: ":" + cfg.MonitoringPort, Handler: monitoringHandler(a.Metrics())}
			go func() {
				l.Info("starting monitoring server", "port", cfg.MonitoringPort)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					l.Error("monitoring server error", "error", err)
				}
			}()
			defer srv.Close()
		}

		l.Info("scoutbot started",
			"schedule", cfg.ScheduleTime,
			"timezone", cfg.Location().String(),
			"summarizer", cfg.Summarizer,
			"queries", len(cfg.Queries),
		)
		return a.Serve(ctx, tg, sched)
	},
}
