package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/saikatdas-ai/saikat-ai-assistant/internal/config"
	"github.com/saikatdas-ai/saikat-ai-assistant/internal/logger"
)

var rootCmd = &cobra.Command{
	Use:   "scoutbot",
	Short: "Find photography leads in the news and deliver them over Telegram",
	Long: `scoutbot searches Google News for sponsorships, tenders and launches,
scores the headlines as photography leads, drops duplicates and sends a tiered
report to the operator on Telegram.

Settings come from the environment (a .env file is read when present).`,
	SilenceUsage: true,
}

func main() {
	// .env is optional; real environment variables win.
	_ = godotenv.Load()

	rootCmd.AddCommand(serveCmd, scoutCmd, archiveCmd, leadsCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// setup loads the config and installs the default logger.
func setup() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger.Init(cfg.Debug), nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}
