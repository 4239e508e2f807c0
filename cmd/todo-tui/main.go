package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"todo-tracker/internal/client"
	"todo-tracker/internal/config"
	"todo-tracker/internal/logging"
	"todo-tracker/internal/ui"

	"github.com/charmbracelet/log"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "todo-tui: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// stdout belongs to the terminal UI.
	logger := logging.Discard()
	if cfg.Client.LogFile != "" {
		f, err := os.OpenFile(cfg.Client.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		defer f.Close()
		logger = logging.NewWithWriter(f, logging.Options{
			Level:  cfg.Log.Level,
			Format: cfg.Log.Format,
			Prefix: "todo-tui",
		})
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return runUI(ctx, cfg, logger)
}

func runUI(ctx context.Context, cfg *config.Config, logger *log.Logger) error {
	notes := ui.NewNotificationQueue()
	ctrl := client.NewController(
		client.NewAPIClient(cfg.Client.BaseURL, cfg.Client.RequestTimeout),
		client.Options{
			PageSize: cfg.Client.PageSize,
			Notifier: notes,
			Logger:   logger,
		},
	)

	logger.Info("starting terminal client", "api", cfg.Client.BaseURL, "page_size", cfg.Client.PageSize)
	return ui.Run(ctx, ctrl, notes)
}
