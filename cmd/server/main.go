package main

import (
	"context"
	"fmt"
	"os"

	"todo-tracker/internal/app"
	"todo-tracker/internal/config"
	"todo-tracker/internal/logging"

	gfshutdown "github.com/gelmium/graceful-shutdown"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(logging.Options{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Prefix: "todo-api",
	})
	logger.Info("starting todo api",
		"environment", cfg.Server.Environment,
		"driver", cfg.Database.Driver,
		"cache", cfg.Cache.Enabled,
		"worker", cfg.Worker.Enabled,
	)

	a, err := app.New(context.Background(), cfg, logger)
	if err != nil {
		logger.Fatal("failed to initialize application", "err", err)
	}
	if err := a.Start(); err != nil {
		logger.Fatal("failed to start application", "err", err)
	}

	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		cfg.Server.ShutdownTimeout,
		a.ShutdownOperations(),
	)

	exitCode := <-wait
	logger.Info("exited", "code", exitCode)
	os.Exit(exitCode)
}
