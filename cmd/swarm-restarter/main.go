package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/ccheshirecat/swarmctl/internal/config"
	"github.com/ccheshirecat/swarmctl/internal/restarter"
	"github.com/ccheshirecat/swarmctl/internal/shared/logging"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger := logging.New("restarter")

	cfg, err := config.RestarterFromEnv()
	if err != nil {
		logger.Error("load config", "error", err)
		os.Exit(1)
	}

	app, err := restarter.New(cfg, logger, nil)
	if err != nil {
		logger.Error("init restarter", "error", err)
		os.Exit(1)
	}

	if err := app.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("restarter stopped", "error", err)
		os.Exit(1)
	}
	logger.Info("restarter stopped")
}
