package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/felixgeelhaar/perks/adapter/cli"
	cliBilling "github.com/felixgeelhaar/perks/adapter/cli/billing"
	"github.com/felixgeelhaar/perks/adapter/cli/family"
	"github.com/felixgeelhaar/perks/internal/app"
	"github.com/felixgeelhaar/perks/pkg/config"
	"github.com/felixgeelhaar/perks/pkg/observability"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	logger = observability.LoggerFor(cfg.AppEnv, cfg.LogLevel, cfg.LogFormat, cli.Version)
	cli.SetLogger(logger)

	// Pricing and advice work without a database, so a failed container
	// leaves the CLI usable in development.
	container, err := app.NewContainer(ctx, cfg, logger)
	if err != nil {
		if !cfg.IsDevelopment() {
			logger.Error("failed to initialize container", "error", err)
			os.Exit(1)
		}
		logger.Warn("failed to initialize container, running in limited mode", "error", err)
	} else {
		defer container.Close()
		cli.SetApp(cli.NewApp(container))
	}

	cli.AddCommand(cliBilling.PriceCmd)
	cli.AddCommand(cliBilling.CreditsCmd)
	cli.AddCommand(cliBilling.SubscriptionCmd)
	cli.AddCommand(cliBilling.AdviseCmd)
	cli.AddCommand(family.Cmd)

	cli.Execute(ctx)
}
