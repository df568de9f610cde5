package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/saikatdas-ai/saikat-ai-assistant/internal/app"
	"github.com/saikatdas-ai/saikat-ai-assistant/internal/discovery"
	"github.com/saikatdas-ai/saikat-ai-assistant/internal/report"
	"github.com/saikatdas-ai/saikat-ai-assistant/internal/storage"
	"github.com/saikatdas-ai/saikat-ai-assistant/internal/telegram"
)

var scoutCmd = &cobra.Command{
	Use:   "scout",
	Short: "Run one scout pass and print the report",
	Long: `Run one scout pass now. The report is printed to stdout; with --send it
goes to the operator on Telegram instead. The ledgers are updated either way.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		send, _ := cmd.Flags().GetBool("send")
		return runOnce(send, report.KindManual, func(a *app.App) discovery.Mode { return a.DailyMode() })
	},
}

var archiveCmd = &cobra.Command{
	Use:   "archive",
	Short: "Scan a wider window of past news to seed the ledgers",
	RunE: func(cmd *cobra.Command, args []string) error {
		send, _ := cmd.Flags().GetBool("send")
		days, _ := cmd.Flags().GetInt("days")
		if days < 0 {
			return fmt.Errorf("--days must not be negative")
		}
		return runOnce(send, report.KindArchive, func(a *app.App) discovery.Mode { return a.ArchiveMode(days) })
	},
}

var leadsCmd = &cobra.Command{
	Use:   "leads",
	Short: "List the follow-up ledger",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, l, err := setup()
		if err != nil {
			return err
		}
		store, err := storage.NewStore(cfg.DataDir, l)
		if err != nil {
			return err
		}
		printFollowups(os.Stdout, storage.NewFollowupLedger(store).List())
		return nil
	},
}

func init() {
	scoutCmd.Flags().Bool("send", false, "deliver the report over Telegram instead of printing it")
	archiveCmd.Flags().Bool("send", false, "deliver the report over Telegram instead of printing it")
	archiveCmd.Flags().Int("days", 0, "lookback window in days (default ARCHIVE_LOOKBACK_DAYS)")
}

func runOnce(send bool, kind report.Kind, mode func(*app.App) discovery.Mode) error {
	cfg, l, err := setup()
	if err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()

	var sender telegram.Sender
	if !send {
		sender = writerSender{w: os.Stdout}
	}
	a, _, err := app.Build(ctx, cfg, sender, l)
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := a.Scout(ctx, kind, mode(a))
	if err != nil {
		return err
	}
	if res == nil {
		return fmt.Errorf("scout run failed")
	}
	l.Info("scout finished", "run_id", res.RunID, "leads", len(res.Leads), "scanned", res.Scanned)
	return nil
}

// writerSender prints reports instead of sending them.
type writerSender struct{ w io.Writer }

func (s writerSender) SendMessage(_ context.Context, _ int64, text string) error {
	_, err := fmt.Fprintln(s.w, text)
	return err
}

func printFollowups(w io.Writer, entries []storage.FollowupEntry) {
	bold := color.New(color.Bold).SprintFunc()
	gray := color.New(color.FgHiBlack).SprintFunc()

	if len(entries) == 0 {
		fmt.Fprintln(w, gray("No follow-ups recorded yet."))
		return
	}

	fmt.Fprintf(w, "%s\n\n", bold(fmt.Sprintf("Follow-ups (%d)", len(entries))))
	for _, e := range entries {
		status := statusColor(e.Status).SprintFunc()
		fmt.Fprintf(w, "  %s %s\n", status(fmt.Sprintf("%-9s", e.Status)), e.Title)
		fmt.Fprintf(w, "            %s\n", gray(e.Link))
		line := "first seen " + e.FirstSeen
		if e.LastContact != "" {
			line += ", last contact " + e.LastContact
		}
		fmt.Fprintf(w, "            %s\n", gray(line))
		if e.Notes != "" {
			fmt.Fprintf(w, "            %s\n", e.Notes)
		}
	}
}

func statusColor(s storage.Status) *color.Color {
	switch s {
	case storage.StatusBooked:
		return color.New(color.FgGreen, color.Bold)
	case storage.StatusReplied:
		return color.New(color.FgCyan)
	case storage.StatusContacted:
		return color.New(color.FgYellow)
	}
	return color.New(color.FgWhite)
}
